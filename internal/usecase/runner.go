package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc"

	"PersonaPipeline/internal/domain"
	"PersonaPipeline/internal/ports"
)

// ReportHook observes every finished run.
type ReportHook func(ctx context.Context, report domain.RunReport)

// Runner is the single way into the pipeline. It takes the persona's run
// token before any run starts, so at most one run per persona is active and
// later triggers are rejected with ErrRunInProgress.
type Runner struct {
	pipeline *Pipeline
	guard    ports.RunGuard
	logger   *slog.Logger
	base     context.Context
	wg       conc.WaitGroup
	hooks    []ReportHook
}

// NewRunner binds async runs to base; cancelling it interrupts them.
func NewRunner(base context.Context, pipeline *Pipeline, guard ports.RunGuard, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		pipeline: pipeline,
		guard:    guard,
		logger:   logger,
		base:     base,
	}
}

// OnFinished registers a hook called after each run, successful or not.
// Hooks are registered during composition, before runs are dispatched.
func (r *Runner) OnFinished(hook ReportHook) {
	r.hooks = append(r.hooks, hook)
}

// Run executes a run synchronously.
func (r *Runner) Run(ctx context.Context, kind domain.RunKind, personaID int64) (domain.RunReport, error) {
	release, err := r.acquire(ctx, personaID)
	if err != nil {
		return domain.RunReport{Kind: kind, PersonaID: personaID}, err
	}
	defer release()
	return r.execute(ctx, kind, personaID)
}

// Dispatch takes the run token now and executes the run in the background.
func (r *Runner) Dispatch(kind domain.RunKind, personaID int64) error {
	release, err := r.acquire(r.base, personaID)
	if err != nil {
		return err
	}

	r.wg.Go(func() {
		defer release()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("pipeline run panicked", "run", string(kind), "persona_id", personaID, "panic", rec)
			}
		}()
		_, _ = r.execute(r.base, kind, personaID)
	})
	return nil
}

// Wait blocks until every dispatched run has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) acquire(ctx context.Context, personaID int64) (func(), error) {
	release, err := r.guard.Acquire(ctx, personaID)
	if errors.Is(err, ports.ErrTokenHeld) {
		r.logger.Warn("trigger rejected, run in progress", "persona_id", personaID)
		return nil, ErrRunInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("acquire run token: %w", err)
	}
	return release, nil
}

func (r *Runner) execute(ctx context.Context, kind domain.RunKind, personaID int64) (domain.RunReport, error) {
	var (
		report domain.RunReport
		err    error
	)
	switch kind {
	case domain.RunFull:
		report, err = r.pipeline.RunFull(ctx, personaID)
	case domain.RunIncremental:
		report, err = r.pipeline.RunIncremental(ctx, personaID)
	case domain.RunReanalyze:
		report, err = r.pipeline.Reanalyze(ctx, personaID)
	default:
		return domain.RunReport{Kind: kind, PersonaID: personaID}, fmt.Errorf("unknown run kind %q", kind)
	}

	hookCtx := context.WithoutCancel(ctx)
	for _, hook := range r.hooks {
		hook(hookCtx, report)
	}
	return report, err
}
