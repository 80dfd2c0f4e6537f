// Package generate runs every builder once over the manifest's entities and
// collects what each one did.
package generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/dalgen/api"
	"github.com/agentic-research/dalgen/internal/ledger"
)

// DefaultConcurrency bounds how many builders run at once.
const DefaultConcurrency = 4

// Recorder persists run history. *ledger.Ledger satisfies it.
type Recorder interface {
	Begin(ctx context.Context) (int64, error)
	Record(ctx context.Context, run int64, a ledger.Artifact) error
	Finish(ctx context.Context, run int64, runErr error) error
}

type Orchestrator struct {
	Builders    []Builder
	Concurrency int
	Logger      *zap.Logger
	Ledger      Recorder // optional
}

// Summary collects every report of one run, grouped by builder in
// registration order.
type Summary struct {
	Run      int64 // ledger run id; 0 without a ledger
	Reports  []Report
	Duration time.Duration
}

// Written counts the artifacts a run wrote (or would write, in dry-run).
func (s Summary) Written() int {
	n := 0
	for _, r := range s.Reports {
		if r.Written {
			n++
		}
	}
	return n
}

// Failed returns the reports that carry an error.
func (s Summary) Failed() []Report {
	var out []Report
	for _, r := range s.Reports {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Run executes every builder once. Builders own distinct artifacts, so they
// run concurrently; one failing builder does not stop the others. The
// returned error joins every builder error.
func (o *Orchestrator) Run(ctx context.Context, entities []api.Entity) (Summary, error) {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	start := time.Now()
	sum := Summary{}

	log.Info("generation started",
		zap.Int("entities", len(entities)),
		zap.Strings("names", api.Names(entities)),
		zap.Int("builders", len(o.Builders)))

	if o.Ledger != nil {
		run, err := o.Ledger.Begin(ctx)
		if err != nil {
			log.Warn("ledger unavailable, run not recorded", zap.Error(err))
		} else {
			sum.Run = run
		}
	}

	limit := o.Concurrency
	if limit < 1 {
		limit = DefaultConcurrency
	}

	type outcome struct {
		reports []Report
		err     error
	}
	outcomes := make([]outcome, len(o.Builders))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, b := range o.Builders {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = outcome{err: fmt.Errorf("%s: %w", b.Name(), err)}
				return nil
			}
			reports, err := b.Build(entities)
			if err != nil {
				err = fmt.Errorf("%s: %w", b.Name(), err)
			}
			outcomes[i] = outcome{reports: reports, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, oc := range outcomes {
		if oc.err != nil {
			errs = append(errs, oc.err)
		}
		for _, r := range oc.reports {
			o.report(ctx, log, sum.Run, r)
			sum.Reports = append(sum.Reports, r)
		}
	}
	runErr := errors.Join(errs...)
	sum.Duration = time.Since(start)

	if o.Ledger != nil && sum.Run != 0 {
		if err := o.Ledger.Finish(context.WithoutCancel(ctx), sum.Run, runErr); err != nil {
			log.Warn("ledger finish failed", zap.Int64("run", sum.Run), zap.Error(err))
		}
	}

	fields := []zap.Field{
		zap.Int("artifacts", len(sum.Reports)),
		zap.Int("written", sum.Written()),
		zap.Duration("took", sum.Duration),
	}
	if runErr != nil {
		log.Error("generation finished with errors", append(fields, zap.Error(runErr))...)
	} else {
		log.Info("generation finished", fields...)
	}
	return sum, runErr
}

func (o *Orchestrator) report(ctx context.Context, log *zap.Logger, run int64, r Report) {
	fields := []zap.Field{
		zap.String("builder", r.Builder),
		zap.String("artifact", r.Artifact),
		zap.Bool("created", r.Created),
		zap.Bool("written", r.Written),
		zap.Int("added", r.Added),
		zap.Int("present", r.Present),
	}
	for _, w := range r.Warnings {
		log.Warn("artifact lint", zap.String("artifact", r.Artifact), zap.String("finding", w))
	}
	switch {
	case r.Err != nil:
		log.Error("artifact failed", append(fields, zap.Error(r.Err))...)
	case r.Written:
		log.Info("artifact written", fields...)
	default:
		log.Debug("artifact unchanged", fields...)
	}

	if o.Ledger == nil || run == 0 {
		return
	}
	a := ledger.Artifact{
		Builder:  r.Builder,
		Artifact: r.Artifact,
		Created:  r.Created,
		Written:  r.Written,
		Added:    r.Added,
		Present:  r.Present,
	}
	if r.Err != nil {
		a.Err = r.Err.Error()
	}
	if err := o.Ledger.Record(context.WithoutCancel(ctx), run, a); err != nil {
		log.Warn("ledger record failed", zap.String("artifact", r.Artifact), zap.Error(err))
	}
}
