package jobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ktaey129/weekboard/internal/telemetry"
	"github.com/ktaey129/weekboard/internal/weekly"
)

// CreateWeeklyIssues opens one issue per week of the plan, "Week 01" through "Week 52". It does not look for
// existing issues first, so running it twice creates every week twice
type CreateWeeklyIssues struct {
	Issues  IssueCreator
	Roadmap string // Defaults to weekly.CreateRoadmap
	Delay   time.Duration

	Runtime
}

func (j *CreateWeeklyIssues) Name() string { return "create-issues" }

func (j *CreateWeeklyIssues) Run(ctx context.Context) (Summary, error) {
	logger := j.logger()
	ctx, span := j.startRun(ctx, j.Name())
	defer span.End()

	roadmap := j.Roadmap
	if roadmap == "" {
		roadmap = weekly.CreateRoadmap
	}

	var summary Summary
	p := pacer{delay: j.Delay}
	for week := 1; week <= weekly.WeeksPerYear; week++ {
		if err := p.wait(ctx); err != nil {
			return j.interrupted(j.Name(), summary, err)
		}

		itemCtx, itemSpan := j.startItem(ctx, "create issue", attribute.Int("weekboard.week", week))
		title := weekly.Title(week)
		issue, err := j.Issues.CreateIssue(callContext(itemCtx), title, weekly.Body(week, roadmap))
		if err != nil {
			logger.Printf("[%s] Failed to create issue for week %d: %v", j.Name(), week, err)
			summary.record(telemetry.OutcomeFailed)
			telemetry.EndItem(itemSpan, telemetry.OutcomeFailed, err)
			continue
		}

		logger.Printf("[%s] Created issue #%d: %s", j.Name(), issue.Number, title)
		itemSpan.SetAttributes(attribute.Int("weekboard.issue", issue.Number))
		summary.record(telemetry.OutcomeSucceeded)
		telemetry.EndItem(itemSpan, telemetry.OutcomeSucceeded, nil)
	}

	return j.finish(j.Name(), summary)
}
