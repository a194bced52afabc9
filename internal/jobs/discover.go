package jobs

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ktaey129/weekboard/internal/github"
	"github.com/ktaey129/weekboard/internal/telemetry"
)

// DiscoverProjectID looks up the Projects (v2) boards of an owner so their IDs can be copied into PROJECT_ID. The
// owner is first treated as a user; if that finds nothing the same lookup is repeated as an organization
type DiscoverProjectID struct {
	Projects ProjectFinder
	Owner    string

	Runtime
}

func (j *DiscoverProjectID) Name() string { return "discover-project" }

func (j *DiscoverProjectID) Run(ctx context.Context) (Summary, error) {
	logger := j.logger()
	ctx, span := j.startRun(ctx, j.Name())
	defer span.End()

	var summary Summary
	projects, failures := j.Discover(ctx)
	summary.Processed = failures
	summary.Failed = failures

	if len(projects) == 0 {
		logger.Printf("[%s] Warning: No projects found for %s. Please create a Project (v2) at https://github.com/users/%s/projects", j.Name(), j.Owner, j.Owner)
		return j.finish(j.Name(), summary)
	}

	logger.Printf("[%s] Found %d projects:", j.Name(), len(projects))
	for _, project := range projects {
		logger.Printf("[%s] Title: %s, ID: %s, Number: %d", j.Name(), project.Title, project.ID, project.Number)
		summary.Processed++
		summary.Succeeded++
	}

	return j.finish(j.Name(), summary)
}

// Discover returns the owner's projects and the number of lookups that failed. A user lookup that finds nothing falls
// through to the organization lookup, since GitHub rejects user queries for organization logins. A login that does
// not resolve in a scope is not a failure; a lookup that could not be completed is
func (j *DiscoverProjectID) Discover(ctx context.Context) ([]github.Project, int) {
	logger := j.logger()
	logger.Printf("[%s] Fetching projects for %s", j.Name(), j.Owner)

	failures := 0
	projects, err := j.query(ctx, github.OwnerUser)
	if err != nil && !notFound(err) {
		failures++
	}
	if len(projects) > 0 {
		return projects, failures
	}

	logger.Printf("[%s] No user projects found for %s. Trying organization...", j.Name(), j.Owner)
	projects, err = j.query(ctx, github.OwnerOrganization)
	if err != nil && !notFound(err) {
		failures++
	}
	return projects, failures
}

// notFound reports whether err means the login does not exist in the queried scope
func notFound(err error) bool {
	return errors.Is(err, github.ErrOwnerNotFound) || github.IsRejected(err)
}

func (j *DiscoverProjectID) query(ctx context.Context, ownerType github.OwnerType) ([]github.Project, error) {
	itemCtx, itemSpan := j.startItem(ctx, "query projects", attribute.String("weekboard.owner_type", string(ownerType)))

	projects, err := j.Projects.ListProjects(callContext(itemCtx), ownerType, j.Owner)
	if err != nil {
		if notFound(err) {
			j.logger().Printf("[%s] No %s found for login %s: %v", j.Name(), ownerType, j.Owner, err)
			telemetry.EndItem(itemSpan, telemetry.OutcomeSkipped, nil)
		} else {
			j.logger().Printf("[%s] Failed to query %s projects: %v", j.Name(), ownerType, err)
			telemetry.EndItem(itemSpan, telemetry.OutcomeFailed, err)
		}
		return nil, err
	}

	itemSpan.SetAttributes(attribute.Int("weekboard.projects", len(projects)))
	telemetry.EndItem(itemSpan, telemetry.OutcomeSucceeded, nil)
	return projects, nil
}
