package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ktaey129/weekboard/internal/github"
	"github.com/ktaey129/weekboard/internal/telemetry"
	"github.com/ktaey129/weekboard/internal/weekly"
)

// RetitleWeeklyIssues rewrites every weekly issue to the current title format and body template. Issues whose title
// is not a weekly title are left alone
type RetitleWeeklyIssues struct {
	Issues     IssueEditor
	Roadmap    string // Defaults to weekly.RetitleRoadmap
	Repository string // owner/repo, for logging
	Delay      time.Duration

	Runtime
}

func (j *RetitleWeeklyIssues) Name() string { return "retitle-issues" }

func (j *RetitleWeeklyIssues) Run(ctx context.Context) (Summary, error) {
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

	roadmap := j.Roadmap
	if roadmap == "" {
		roadmap = weekly.RetitleRoadmap
	}

	logger.Printf("[%s] Found %d issues to check", j.Name(), len(issues))
	p := pacer{delay: j.Delay}
	for _, issue := range issues {
		if err := ctx.Err(); err != nil {
			return j.interrupted(j.Name(), summary, err)
		}

		outcome := j.retitle(ctx, &p, issue, roadmap)
		if outcome == "" {
			return j.interrupted(j.Name(), summary, ctx.Err())
		}
		summary.record(outcome)
	}

	return j.finish(j.Name(), summary)
}

// retitle rewrites one issue. It returns an empty outcome if the run was interrupted before the call
func (j *RetitleWeeklyIssues) retitle(ctx context.Context, p *pacer, issue github.Issue, roadmap string) telemetry.Outcome {
	logger := j.logger()

	week, ok := weekly.ParseTitle(issue.Title)
	if !ok {
		logger.Printf("[%s] Skipping issue #%d: Not a weekly issue (%s)", j.Name(), issue.Number, issue.Title)
		return telemetry.OutcomeSkipped
	}

	if err := p.wait(ctx); err != nil {
		return ""
	}

	itemCtx, itemSpan := j.startItem(ctx, "retitle issue",
		attribute.Int("weekboard.issue", issue.Number),
		attribute.Int("weekboard.week", week),
	)
	title := weekly.Title(week)
	if _, err := j.Issues.UpdateIssue(callContext(itemCtx), issue.Number, title, weekly.Body(week, roadmap)); err != nil {
		logger.Printf("[%s] Failed to update issue #%d: %v", j.Name(), issue.Number, err)
		telemetry.EndItem(itemSpan, telemetry.OutcomeFailed, err)
		return telemetry.OutcomeFailed
	}

	logger.Printf("[%s] Updated issue #%d: %s", j.Name(), issue.Number, title)
	telemetry.EndItem(itemSpan, telemetry.OutcomeSucceeded, nil)
	return telemetry.OutcomeSucceeded
}
