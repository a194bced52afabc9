package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ktaey129/weekboard/internal/github"
	"github.com/ktaey129/weekboard/internal/telemetry"
)

// LinkIssuesToProject adds every issue of the repository to a Projects (v2) board
type LinkIssuesToProject struct {
	Issues     IssueLister
	Projects   ProjectLinker
	ProjectID  string
	Repository string // owner/repo, for logging
	Delay      time.Duration

	Runtime
}

func (j *LinkIssuesToProject) Name() string { return "link-issues" }

func (j *LinkIssuesToProject) Run(ctx context.Context) (Summary, error) {
	logger := j.logger()
	ctx, span := j.startRun(ctx, j.Name())
	defer span.End()

	logger.Printf("[%s] Fetching issues for %s", j.Name(), j.Repository)
	issues, err := j.Issues.ListIssues(ctx)
	if errors.Is(err, context.Canceled) {
		return j.interrupted(j.Name(), Summary{}, err)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("failed to fetch issues: %w", err)
	}

	var summary Summary
	if len(issues) == 0 {
		logger.Printf("[%s] Warning: No issues found in the repository", j.Name())
		return j.finish(j.Name(), summary)
	}

	logger.Printf("[%s] Found %d issues to link", j.Name(), len(issues))
	p := pacer{delay: j.Delay}
	for _, issue := range issues {
		if err := ctx.Err(); err != nil {
			return j.interrupted(j.Name(), summary, err)
		}

		outcome := j.link(ctx, &p, issue)
		if outcome == "" {
			return j.interrupted(j.Name(), summary, ctx.Err())
		}
		summary.record(outcome)
	}

	return j.finish(j.Name(), summary)
}

// link adds one issue to the project. It returns an empty outcome if the run was interrupted before the call
func (j *LinkIssuesToProject) link(ctx context.Context, p *pacer, issue github.Issue) telemetry.Outcome {
	logger := j.logger()

	if issue.NodeID == "" {
		logger.Printf("[%s] Skipping issue #%d: no node ID", j.Name(), issue.Number)
		return telemetry.OutcomeSkipped
	}

	if err := p.wait(ctx); err != nil {
		return ""
	}

	itemCtx, itemSpan := j.startItem(ctx, "link issue", attribute.Int("weekboard.issue", issue.Number))
	itemID, err := j.Projects.AddProjectItem(callContext(itemCtx), j.ProjectID, issue.NodeID)
	if err != nil {
		if github.IsRejected(err) {
			logger.Printf("[%s] Failed to link issue #%d: rejected: %v", j.Name(), issue.Number, err)
		} else {
			logger.Printf("[%s] Failed to link issue #%d: %v", j.Name(), issue.Number, err)
		}
		telemetry.EndItem(itemSpan, telemetry.OutcomeFailed, err)
		return telemetry.OutcomeFailed
	}

	logger.Printf("[%s] Linked issue #%d to project %s (item %s)", j.Name(), issue.Number, j.ProjectID, itemID)
	telemetry.EndItem(itemSpan, telemetry.OutcomeSucceeded, nil)
	return telemetry.OutcomeSucceeded
}
