package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"PersonaPipeline/internal/domain"
	"PersonaPipeline/internal/ports"
)

type serviceFixture struct {
	*harness
	driver    *fakeDriver
	runner    *Runner
	responder *fakeResponder
	service   *PersonaService
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()
	h, driver, _, runner, sched := newScheduled(t)
	responder := &fakeResponder{}
	service := NewPersonaService(PersonaServiceDeps{
		Repository:       h.repo,
		Runner:           runner,
		Scheduler:        sched,
		Responder:        responder,
		DefaultMaxVideos: 7,
	})
	return serviceFixture{harness: h, driver: driver, runner: runner, responder: responder, service: service}
}

func TestCreateDispatchesFullRun(t *testing.T) {
	f := newServiceFixture(t)
	f.acquirer.units = videos("u1", "u2")

	persona, err := f.service.Create(context.Background(), CreateRequest{
		Name:      "  Jane Doe ",
		SourceURL: "https://www.youtube.com/@janedoe",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if persona.Slug != "jane-doe" || persona.Status != domain.StatusPending || persona.MaxVideos != 7 {
		t.Fatalf("unexpected persona %+v", persona)
	}
	if persona.Platform != domain.PlatformYouTube {
		t.Fatalf("platform should default to youtube, got %s", persona.Platform)
	}

	f.runner.Wait()
	stored, _ := f.repo.PersonaByID(context.Background(), persona.ID)
	if stored.Status != domain.StatusReady || stored.Totals.Content != 2 {
		t.Fatalf("full run did not complete: %s %+v", stored.Status, stored.Totals)
	}
	if !f.driver.Has("refresh-jane-doe") {
		t.Fatal("persona not scheduled after creation run")
	}
}

func TestCreateValidation(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.seedPersona(t, "Jane Doe", domain.StatusReady)

	cases := map[string]CreateRequest{
		"missing name":   {SourceURL: "https://x"},
		"missing source": {Name: "Someone"},
		"unusable name":  {Name: "!!!", SourceURL: "https://x"},
		"bad platform":   {Name: "Someone", SourceURL: "https://x", Platform: "tiktok"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := f.service.Create(context.Background(), req); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	_, err := f.service.Create(context.Background(), CreateRequest{Name: "jane doe", SourceURL: "https://x"})
	if !errors.Is(err, ports.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestRefreshPreconditions(t *testing.T) {
	f := newServiceFixture(t)
	pending := f.repo.seedPersona(t, "Pending One", domain.StatusPending)
	ready := f.repo.seedPersona(t, "Ready One", domain.StatusReady)
	failed := f.repo.seedPersona(t, "Failed One", domain.StatusError)

	if _, err := f.service.Refresh(context.Background(), pending.Slug); !errors.Is(err, ErrNotRefreshable) {
		t.Fatalf("expected ErrNotRefreshable, got %v", err)
	}
	if _, err := f.service.Refresh(context.Background(), "missing"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := f.service.Refresh(context.Background(), ready.Slug); err != nil {
		t.Fatalf("refresh ready: %v", err)
	}
	if !f.driver.Has(domain.RefreshJobKey(ready.Slug)) {
		t.Fatal("manual refresh must register a missing job")
	}

	// Accepted, but the incremental run itself only proceeds from ready.
	if _, err := f.service.Refresh(context.Background(), failed.Slug); err != nil {
		t.Fatalf("refresh error persona: %v", err)
	}
	f.runner.Wait()
	stored, _ := f.repo.PersonaByID(context.Background(), failed.ID)
	if stored.Status != domain.StatusError {
		t.Fatalf("error persona changed to %s", stored.Status)
	}
}

func TestReanalyzePreconditions(t *testing.T) {
	f := newServiceFixture(t)
	pending := f.repo.seedPersona(t, "Pending One", domain.StatusPending)
	stuck := f.repo.seedPersona(t, "Stuck One", domain.StatusAnalyzing)
	f.repo.seedAnalyzed(t, stuck.ID, "u1", "one two")

	if _, err := f.service.Reanalyze(context.Background(), pending.Slug); !errors.Is(err, ErrNotReanalyzable) {
		t.Fatalf("expected ErrNotReanalyzable, got %v", err)
	}
	if _, err := f.service.ReanalyzeAndWait(context.Background(), pending.Slug); !errors.Is(err, ErrNotReanalyzable) {
		t.Fatalf("expected ErrNotReanalyzable from foreground run, got %v", err)
	}

	report, err := f.service.ReanalyzeAndWait(context.Background(), stuck.Slug)
	if err != nil {
		t.Fatalf("reanalyze stuck persona: %v", err)
	}
	if report.Skipped || report.Status != domain.StatusReady {
		t.Fatalf("stuck persona not recovered: %+v", report)
	}
}

func TestChatRequiresReadyPersona(t *testing.T) {
	f := newServiceFixture(t)
	pending := f.repo.seedPersona(t, "Pending One", domain.StatusPending)

	if _, _, err := f.service.Chat(context.Background(), pending.Slug, "hi", ""); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if _, _, err := f.service.Chat(context.Background(), pending.Slug, "   ", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestChatUsesProfileAndLogsOutput(t *testing.T) {
	f := newServiceFixture(t)
	persona := f.repo.seedPersona(t, "Jane Doe", domain.StatusReady)
	f.repo.seedAnalyzed(t, persona.ID, "u1", "rebasing keeps history linear")
	if err := f.repo.UpdatePersonaProfile(context.Background(), persona.ID, domain.Profile{SystemPrompt: "You are Jane."}, domain.Totals{}); err != nil {
		t.Fatal(err)
	}

	response, got, err := f.service.Chat(context.Background(), persona.Slug, "How do you rebase?", "tweet")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if response != "in character" || got.ID != persona.ID {
		t.Fatalf("unexpected response %q for %+v", response, got)
	}
	if f.responder.system != "You are Jane." {
		t.Fatalf("system prompt %q", f.responder.system)
	}
	if !strings.Contains(f.responder.prompt, "rebasing keeps history linear") ||
		!strings.Contains(f.responder.prompt, "Reply in the form of a tweet.") ||
		!strings.HasSuffix(f.responder.prompt, "How do you rebase?") {
		t.Fatalf("unexpected prompt %q", f.responder.prompt)
	}

	outputs, _ := f.repo.OutputsForPersona(context.Background(), persona.ID, 0)
	if len(outputs) != 1 || outputs[0].OutputType != "tweet" || outputs[0].Prompt != "How do you rebase?" {
		t.Fatalf("unexpected outputs %+v", outputs)
	}
}

func TestGenerateScript(t *testing.T) {
	f := newServiceFixture(t)
	persona := f.repo.seedPersona(t, "Jane Doe", domain.StatusReady)

	script, _, err := f.service.GenerateScript(context.Background(), persona.Slug, ScriptRequest{Topic: "merge queues"})
	if err != nil {
		t.Fatalf("script: %v", err)
	}
	if script != "in character" {
		t.Fatalf("unexpected script %q", script)
	}
	if !strings.Contains(f.responder.prompt, "10-minute monologue") || !strings.Contains(f.responder.prompt, `"merge queues"`) {
		t.Fatalf("defaults not applied: %q", f.responder.prompt)
	}
	if f.responder.system != "You are Jane Doe. Answer in their voice." {
		t.Fatalf("fallback system prompt %q", f.responder.system)
	}

	outputs, _ := f.repo.OutputsForPersona(context.Background(), persona.ID, 0)
	if len(outputs) != 1 || outputs[0].OutputType != "script" || outputs[0].Prompt != "Script: merge queues" {
		t.Fatalf("unexpected outputs %+v", outputs)
	}

	if _, _, err := f.service.GenerateScript(context.Background(), persona.Slug, ScriptRequest{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestContentPaging(t *testing.T) {
	f := newServiceFixture(t)
	persona := f.repo.seedPersona(t, "Jane Doe", domain.StatusReady)
	for _, url := range []string{"u1", "u2", "u3"} {
		f.repo.seedAnalyzed(t, persona.ID, url, "words")
	}

	page, err := f.service.Content(context.Background(), persona.Slug, 2, 1)
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if page.Total != 3 || len(page.Content) != 2 || page.Content[0].SourceURL != "u2" {
		t.Fatalf("unexpected page %+v", page)
	}

	for _, bad := range [][2]int{{0, 0}, {-1, 0}, {5, -1}} {
		if _, err := f.service.Content(context.Background(), persona.Slug, bad[0], bad[1]); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("limit=%d offset=%d: expected ErrInvalidInput, got %v", bad[0], bad[1], err)
		}
	}

	for i := 0; i < maxContentPage+5; i++ {
		f.repo.seedAnalyzed(t, persona.ID, fmt.Sprintf("bulk-%d", i), "words")
	}
	page, err = f.service.Content(context.Background(), persona.Slug, 10000, 0)
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if len(page.Content) != maxContentPage {
		t.Fatalf("page not capped: got %d items", len(page.Content))
	}
}

func TestDeleteRemovesJob(t *testing.T) {
	f := newServiceFixture(t)
	persona := f.repo.seedPersona(t, "Jane Doe", domain.StatusReady)
	if _, err := f.service.scheduler.EnsureJob(persona); err != nil {
		t.Fatal(err)
	}

	if err := f.service.Delete(context.Background(), persona.Slug); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if f.driver.Has(domain.RefreshJobKey(persona.Slug)) {
		t.Fatal("job left after delete")
	}
	if err := f.service.Delete(context.Background(), persona.Slug); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
