package github

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v72/github"
)

const issuesPerPage = 100

// ListIssues fetches every issue in the repository, open and closed, following the next page relation until there
// is none. Pull requests are dropped. If any page fails, no issues are returned and the error is a *PaginationError.
// Cancelling ctx stops the listing between pages; a page request already in flight completes
func (c *Client) ListIssues(ctx context.Context) ([]Issue, error) {
	opts := &github.IssueListByRepoOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: issuesPerPage},
	}

	issues := []Issue{}
	pages := 0
	for {
		page, resp, err := c.rest.Issues.ListByRepo(context.WithoutCancel(ctx), c.owner, c.repo, opts)
		if err != nil {
			return nil, &PaginationError{Page: pages + 1, PagesFetched: pages, Err: classify("list issues", resp, err)}
		}

		for _, issue := range page {
			if issue == nil {
				return nil, &PaginationError{
					Page:         pages + 1,
					PagesFetched: pages,
					Err:          &MalformedResponseError{Op: "list issues", StatusCode: resp.StatusCode, Err: fmt.Errorf("null issue in listing")},
				}
			}
			if issue.IsPullRequest() {
				c.logger.Printf("[github] Skipping #%d: pull request", issue.GetNumber())
				continue
			}
			issues = append(issues, fromGitHubIssue(issue))
		}
		pages++

		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage

		if err := ctx.Err(); err != nil {
			return nil, &PaginationError{Page: pages + 1, PagesFetched: pages, Err: err}
		}
		if err := sleep(ctx, c.pageDelay); err != nil {
			return nil, &PaginationError{Page: pages + 1, PagesFetched: pages, Err: err}
		}
	}

	c.logger.Printf("[github] Fetched %d issues from %s/%s in %d pages", len(issues), c.owner, c.repo, pages)
	return issues, nil
}

// CreateIssue opens a new issue. Creation is not deduplicated: calling it twice with the same title creates two issues
func (c *Client) CreateIssue(ctx context.Context, title string, body string) (*Issue, error) {
	req := &github.IssueRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
	}

	created, resp, err := c.rest.Issues.Create(ctx, c.owner, c.repo, req)
	if err != nil {
		return nil, classify(fmt.Sprintf("create issue '%s'", title), resp, err)
	}

	issue := fromGitHubIssue(created)
	return &issue, nil
}

// UpdateIssue replaces the title and body of an existing issue
func (c *Client) UpdateIssue(ctx context.Context, number int, title string, body string) (*Issue, error) {
	req := &github.IssueRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
	}

	updated, resp, err := c.rest.Issues.Edit(ctx, c.owner, c.repo, number, req)
	if err != nil {
		return nil, classify(fmt.Sprintf("update issue #%d", number), resp, err)
	}

	issue := fromGitHubIssue(updated)
	return &issue, nil
}

func fromGitHubIssue(issue *github.Issue) Issue {
	return Issue{
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
		NodeID: issue.GetNodeID(),
		URL:    issue.GetHTMLURL(),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
