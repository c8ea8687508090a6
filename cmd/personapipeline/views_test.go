package main

import (
	"strings"
	"testing"
	"time"

	"PersonaPipeline/internal/domain"
)

func TestRenderReport(t *testing.T) {
	start := time.Date(2026, 10, 11, 3, 0, 0, 0, time.UTC)
	report := domain.RunReport{
		Kind:        domain.RunIncremental,
		PersonaName: "Jane Doe",
		StartedAt:   start,
		FinishedAt:  start.Add(90 * time.Second),
		Discovered:  8,
		NewItems:    3,
		Status:      domain.StatusReady,
		Totals:      domain.Totals{Content: 6, Words: 1200},
		Items: []domain.ItemResult{
			{ItemID: 1, Title: "first", Outcome: domain.OutcomeAnalyzed, WordCount: 400},
			{ItemID: 2, Title: "second", Outcome: domain.OutcomeFailed, Reason: domain.MsgDownloadFailed},
		},
	}

	out := renderReport(report)
	for _, want := range []string{
		"incremental run for Jane Doe: ready",
		"400 words",
		"Download failed",
		"discovered 8, new 3, analyzed 1, failed 1",
		"profile built from 6 items, 1200 words (took 1m30s)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSkippedReport(t *testing.T) {
	out := renderReport(domain.RunReport{Kind: domain.RunIncremental, PersonaID: 4, Skipped: true, SkipReason: "status=pending"})
	if out != "incremental run for persona 4: skipped (status=pending)\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestBuildContentRows(t *testing.T) {
	words := 12
	rows := buildContentRows([]domain.ContentItem{
		{ID: 1, ContentType: domain.ContentTweet, Status: domain.ContentAnalyzed, WordCount: &words, Title: "hello"},
		{ID: 2, ContentType: domain.ContentYouTubeVideo, Status: domain.ContentError, ErrorMessage: domain.MsgTranscriptionFailed, Title: strings.Repeat("x", 80)},
	})
	if rows[0][3] != "12" || rows[1][3] != "-" {
		t.Fatalf("unexpected word columns %v", rows)
	}
	if rows[1][2] != "error (Transcription failed)" {
		t.Fatalf("unexpected status column %q", rows[1][2])
	}
	if got := len([]rune(rows[1][4])); got != maxTitleWidth {
		t.Fatalf("title not truncated to %d runes: %d", maxTitleWidth, got)
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"1"}}, []columnAlignment{alignRight})
	if !strings.Contains(out, "A") || !strings.Contains(out, "1") {
		t.Fatalf("unexpected table:\n%s", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}
