// Package jobs contains the batch jobs that maintain a repository's weekly planning issues. Each job is a fixed,
// sequential walk over its input that logs one line per item and never lets a single item's failure end the run.
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ktaey129/weekboard/internal/github"
	"github.com/ktaey129/weekboard/internal/telemetry"
)

// Job is a single batch job
type Job interface {
	Name() string
	// Run processes the job's whole input. Per-item failures are counted in the summary, not returned. The error is
	// non-nil only when the run could not proceed, or wraps context.Canceled when it was interrupted
	Run(ctx context.Context) (Summary, error)
}

type IssueCreator interface {
	CreateIssue(ctx context.Context, title string, body string) (*github.Issue, error)
}

// IssueLister lists every issue of the repository. Implementations stop between pages when ctx is cancelled
type IssueLister interface {
	ListIssues(ctx context.Context) ([]github.Issue, error)
}

type IssueUpdater interface {
	UpdateIssue(ctx context.Context, number int, title string, body string) (*github.Issue, error)
}

type IssueEditor interface {
	IssueLister
	IssueUpdater
}

type ProjectFinder interface {
	ListProjects(ctx context.Context, ownerType github.OwnerType, login string) ([]github.Project, error)
}

type ProjectLinker interface {
	AddProjectItem(ctx context.Context, projectID string, contentID string) (string, error)
}

// Summary counts what happened to each item of a run. Processed is the number of items looked at
type Summary struct {
	Processed int
	Succeeded int
	Skipped   int
	Failed    int
}

func (s Summary) String() string {
	return fmt.Sprintf("processed=%d succeeded=%d skipped=%d failed=%d", s.Processed, s.Succeeded, s.Skipped, s.Failed)
}

func (s *Summary) record(outcome telemetry.Outcome) {
	s.Processed++
	switch outcome {
	case telemetry.OutcomeSucceeded:
		s.Succeeded++
	case telemetry.OutcomeSkipped:
		s.Skipped++
	case telemetry.OutcomeFailed:
		s.Failed++
	}
}

// Runtime carries what every job needs besides its GitHub dependencies. The zero value logs to the standard logger
// and does not trace
type Runtime struct {
	Logger *log.Logger
	Tracer trace.Tracer
	RunID  string
}

func (r Runtime) logger() *log.Logger {
	if r.Logger == nil {
		return log.Default()
	}
	return r.Logger
}

func (r Runtime) tracer() trace.Tracer {
	if r.Tracer == nil {
		return noop.NewTracerProvider().Tracer("")
	}
	return r.Tracer
}

func (r Runtime) startRun(ctx context.Context, job string) (context.Context, trace.Span) {
	return r.tracer().Start(ctx, job, trace.WithAttributes(
		attribute.String("weekboard.job", job),
		attribute.String("weekboard.run_id", r.RunID),
	))
}

func (r Runtime) startItem(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return r.tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// finish logs the summary of a run that reached the end of its input
func (r Runtime) finish(job string, summary Summary) (Summary, error) {
	r.logger().Printf("[%s] Completed: %s", job, summary)
	return summary, nil
}

// interrupted logs the partial summary of a run that was cancelled between items
func (r Runtime) interrupted(job string, summary Summary, err error) (Summary, error) {
	r.logger().Printf("[%s] Interrupted after %d items: %s", job, summary.Processed, summary)
	return summary, fmt.Errorf("%s interrupted: %w", job, err)
}

// callContext detaches ctx from cancellation so that an interrupt never aborts a request in flight. Interrupts are
// observed between items instead
func callContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// pacer spaces out consecutive API calls by a fixed delay
type pacer struct {
	delay   time.Duration
	started bool
}

// wait blocks until the next call may be made. The first call is not delayed. It returns the context's error if
// the run was interrupted
func (p *pacer) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.started && p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	p.started = true
	return nil
}
