package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"PersonaPipeline/internal/domain"
	"PersonaPipeline/internal/ports"
)

// RefreshScheduler keeps one recurring incremental-update job per ready
// persona, all sharing a single cron expression.
type RefreshScheduler struct {
	driver ports.JobScheduler
	repo   ports.PersonaRepository
	runner *Runner
	spec   string
	logger *slog.Logger
}

// NewRefreshScheduler wires the cron driver with the runner.
func NewRefreshScheduler(driver ports.JobScheduler, repo ports.PersonaRepository, runner *Runner, spec string, logger *slog.Logger) *RefreshScheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RefreshScheduler{
		driver: driver,
		repo:   repo,
		runner: runner,
		spec:   spec,
		logger: logger,
	}
}

// Start registers a job for every ready persona and starts the driver.
// On failure no job stays registered; the caller decides whether to go on.
func (s *RefreshScheduler) Start(ctx context.Context) error {
	personas, err := s.repo.ListPersonasByStatus(ctx, domain.StatusReady)
	if err != nil {
		return fmt.Errorf("list ready personas: %w", err)
	}

	for _, persona := range personas {
		if err := s.register(persona); err != nil {
			s.driver.Clear()
			return err
		}
		s.logger.Info("scheduled refresh", "persona", persona.Name, "cron", s.spec)
	}

	if err := s.driver.Start(ctx); err != nil {
		s.driver.Clear()
		return fmt.Errorf("start scheduler: %w", err)
	}

	s.logger.Info("scheduler started", "jobs", len(s.driver.Jobs()))
	return nil
}

// Stop halts the driver without waiting for runs it already dispatched.
func (s *RefreshScheduler) Stop() {
	s.driver.Stop()
}

// EnsureJob registers the persona's job only when none exists yet.
func (s *RefreshScheduler) EnsureJob(persona domain.Persona) (bool, error) {
	if s.driver.Has(domain.RefreshJobKey(persona.Slug)) {
		return false, nil
	}
	if err := s.register(persona); err != nil {
		return false, err
	}
	s.logger.Info("scheduled refresh on demand", "persona", persona.Name, "cron", s.spec)
	return true, nil
}

// Forget drops the persona's job, if any.
func (s *RefreshScheduler) Forget(slug string) bool {
	return s.driver.Remove(domain.RefreshJobKey(slug))
}

// Jobs lists registered jobs with their next fire time.
func (s *RefreshScheduler) Jobs() []domain.ScheduledJob {
	return s.driver.Jobs()
}

// Running reports whether the driver is started.
func (s *RefreshScheduler) Running() bool {
	return s.driver.Running()
}

// Spec is the shared cron expression.
func (s *RefreshScheduler) Spec() string {
	return s.spec
}

// HandleReport schedules personas that just finished their first run.
func (s *RefreshScheduler) HandleReport(ctx context.Context, report domain.RunReport) {
	if report.Kind != domain.RunFull || report.Status != domain.StatusReady {
		return
	}
	persona, err := s.repo.PersonaByID(ctx, report.PersonaID)
	if err != nil {
		s.logger.Warn("load persona for scheduling", "persona_id", report.PersonaID, "error", err)
		return
	}
	if _, err := s.EnsureJob(persona); err != nil {
		s.logger.Warn("schedule refresh", "persona", persona.Name, "error", err)
	}
}

func (s *RefreshScheduler) register(persona domain.Persona) error {
	personaID := persona.ID
	key := domain.RefreshJobKey(persona.Slug)
	if err := s.driver.Register(key, "Refresh "+persona.Name, s.spec, func(context.Context) {
		s.fire(personaID)
	}); err != nil {
		return fmt.Errorf("register %s: %w", key, err)
	}
	return nil
}

func (s *RefreshScheduler) fire(personaID int64) {
	err := s.runner.Dispatch(domain.RunIncremental, personaID)
	switch {
	case err == nil:
	case errors.Is(err, ErrRunInProgress):
		s.logger.Warn("scheduled refresh skipped, run in progress", "persona_id", personaID)
	default:
		s.logger.Error("scheduled refresh failed to start", "persona_id", personaID, "error", err)
	}
}
