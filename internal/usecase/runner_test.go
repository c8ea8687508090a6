package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"PersonaPipeline/internal/domain"
)

type reportLog struct {
	mu      sync.Mutex
	reports []domain.RunReport
}

func (l *reportLog) hook(_ context.Context, report domain.RunReport) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reports = append(l.reports, report)
}

func (l *reportLog) kinds() []domain.RunKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.RunKind, 0, len(l.reports))
	for _, r := range l.reports {
		out = append(out, r.Kind)
	}
	return out
}

func TestRunnerRejectsConcurrentTriggers(t *testing.T) {
	h := newHarness(t)
	persona := h.repo.seedPersona(t, "Jane Doe", domain.StatusPending)
	other := h.repo.seedPersona(t, "John Roe", domain.StatusPending)
	h.acquirer.units = videos("u1")
	h.acquirer.gate = make(chan struct{})

	runner := NewRunner(context.Background(), h.pipeline, newFakeGuard(), nil)
	var log reportLog
	runner.OnFinished(log.hook)

	if err := runner.Dispatch(domain.RunFull, persona.ID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := runner.Dispatch(domain.RunIncremental, persona.ID); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress from dispatch, got %v", err)
	}
	if _, err := runner.Run(context.Background(), domain.RunReanalyze, persona.ID); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress from run, got %v", err)
	}
	if err := runner.Dispatch(domain.RunFull, other.ID); err != nil {
		t.Fatalf("other personas must not be blocked: %v", err)
	}

	close(h.acquirer.gate)
	runner.Wait()

	stored, _ := h.repo.PersonaByID(context.Background(), persona.ID)
	if stored.Status != domain.StatusReady {
		t.Fatalf("expected ready after the first run, got %s", stored.Status)
	}
	if got := log.kinds(); len(got) != 2 {
		t.Fatalf("expected two finished runs, got %v", got)
	}

	if err := runner.Dispatch(domain.RunIncremental, persona.ID); err != nil {
		t.Fatalf("token not released after run: %v", err)
	}
	runner.Wait()
	if got := log.kinds(); len(got) != 3 || got[2] != domain.RunIncremental {
		t.Fatalf("unexpected runs %v", got)
	}
}

func TestRunnerRunsInForeground(t *testing.T) {
	h := newHarness(t)
	persona := h.repo.seedPersona(t, "Jane Doe", domain.StatusReady)
	h.repo.seedAnalyzed(t, persona.ID, "u1", "one two")

	runner := NewRunner(context.Background(), h.pipeline, newFakeGuard(), nil)
	report, err := runner.Run(context.Background(), domain.RunReanalyze, persona.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Kind != domain.RunReanalyze || report.Status != domain.StatusReady || report.RunID == "" {
		t.Fatalf("unexpected report %+v", report)
	}

	if _, err := runner.Run(context.Background(), domain.RunKind("bogus"), persona.ID); err == nil {
		t.Fatal("expected error for unknown run kind")
	}
}

func TestRunnerCancelInterruptsDispatchedRuns(t *testing.T) {
	h := newHarness(t)
	persona := h.repo.seedPersona(t, "Jane Doe", domain.StatusPending)
	h.acquirer.gate = make(chan struct{})

	base, cancel := context.WithCancel(context.Background())
	runner := NewRunner(base, h.pipeline, newFakeGuard(), nil)
	if err := runner.Dispatch(domain.RunFull, persona.ID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	cancel()
	runner.Wait()

	stored, _ := h.repo.PersonaByID(context.Background(), persona.ID)
	if stored.Status != domain.StatusError {
		t.Fatalf("expected error after cancellation, got %s", stored.Status)
	}
}
