package domain

import "testing"

func TestWordCount(t *testing.T) {
	cases := map[string]int{
		"":                       0,
		"   ":                    0,
		"one":                    1,
		"one two\tthree\nfour  ": 4,
	}
	for in, want := range cases {
		if got := WordCount(in); got != want {
			t.Fatalf("WordCount(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestHasTranscript(t *testing.T) {
	blank := "  \n"
	text := "hello"
	if (ContentItem{}).HasTranscript() || (ContentItem{Transcript: &blank}).HasTranscript() {
		t.Fatal("nil or blank transcript should not count")
	}
	if !(ContentItem{Transcript: &text}).HasTranscript() {
		t.Fatal("expected transcript")
	}
}

func TestReportCount(t *testing.T) {
	report := RunReport{Items: []ItemResult{
		{Outcome: OutcomeAnalyzed},
		{Outcome: OutcomeFailed},
		{Outcome: OutcomeAnalyzed},
		{Outcome: OutcomeSkipped},
	}}
	if report.Count(OutcomeAnalyzed) != 2 || report.Count(OutcomeFailed) != 1 || report.Count(OutcomeSkipped) != 1 {
		t.Fatalf("unexpected counts for %+v", report.Items)
	}
}
