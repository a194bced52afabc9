package github

import (
	"context"
	"fmt"
)

const projectsPerQuery = 10

// projectsQuery is formatted with the owner scope ("user" or "organization") and the page size
const projectsQuery = `
	query($login: String!) {
		%s(login: $login) {
			projectsV2(first: %d) {
				nodes {
					id
					title
					number
				}
			}
		}
	}
`

const addProjectItemMutation = `
	mutation($projectId: ID!, $contentId: ID!) {
		addProjectV2ItemById(input: {projectId: $projectId, contentId: $contentId}) {
			item {
				id
			}
		}
	}
`

type projectsOwner struct {
	ProjectsV2 struct {
		Nodes []Project `json:"nodes"`
	} `json:"projectsV2"`
}

// ListProjects returns the Projects (v2) boards owned by login in the given scope
func (c *Client) ListProjects(ctx context.Context, ownerType OwnerType, login string) ([]Project, error) {
	if ownerType != OwnerUser && ownerType != OwnerOrganization {
		return nil, fmt.Errorf("unknown owner type '%s'", ownerType)
	}

	var resp struct {
		User         *projectsOwner `json:"user"`
		Organization *projectsOwner `json:"organization"`
	}

	query := fmt.Sprintf(projectsQuery, ownerType, projectsPerQuery)
	op := fmt.Sprintf("list %s projects", ownerType)
	if _, err := c.GraphQL(ctx, op, query, map[string]any{"login": login}, &resp); err != nil {
		return nil, err
	}

	owner := resp.User
	if ownerType == OwnerOrganization {
		owner = resp.Organization
	}
	if owner == nil {
		return nil, fmt.Errorf("no %s found for login '%s': %w", ownerType, login, ErrOwnerNotFound)
	}

	return owner.ProjectsV2.Nodes, nil
}

// AddProjectItem adds the issue or pull request with node ID contentID to a project and returns the new item's ID
func (c *Client) AddProjectItem(ctx context.Context, projectID string, contentID string) (string, error) {
	var resp struct {
		AddProjectV2ItemById struct {
			Item struct {
				ID string `json:"id"`
			} `json:"item"`
		} `json:"addProjectV2ItemById"`
	}

	vars := map[string]any{
		"projectId": projectID,
		"contentId": contentID,
	}
	if _, err := c.GraphQL(ctx, "add project item", addProjectItemMutation, vars, &resp); err != nil {
		return "", err
	}

	return resp.AddProjectV2ItemById.Item.ID, nil
}
