package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"PersonaPipeline/internal/domain"
)

func TestParseProfileLenient(t *testing.T) {
	t.Parallel()

	text := "Sure! Here is the profile:\n```json\n" + `{
		"system_prompt": "You are Ada. Speak plainly.",
		"personality_summary": "Curious and direct.",
		"speaking_style": {"pace": "fast", "humor": "dry"},
		"topics": ["math", " engines ", ""],
		"catchphrases": "so to speak, in short",
		"vocabulary": ["analytical"],
		"tone_descriptors": []
	}` + "\n```\nHope this helps."

	profile, err := parseProfile(text)
	if err != nil {
		t.Fatalf("parseProfile: %v", err)
	}
	if profile.SystemPrompt != "You are Ada. Speak plainly." {
		t.Fatalf("unexpected system prompt %q", profile.SystemPrompt)
	}
	if len(profile.Topics) != 2 || profile.Topics[1] != "engines" {
		t.Fatalf("unexpected topics %v", profile.Topics)
	}
	if len(profile.Catchphrases) != 2 || profile.Catchphrases[0] != "so to speak" {
		t.Fatalf("unexpected catchphrases %v", profile.Catchphrases)
	}
	if profile.SpeakingStyle["humor"] != "dry" {
		t.Fatalf("unexpected speaking style %v", profile.SpeakingStyle)
	}
	if profile.ToneDescriptors == nil || len(profile.ToneDescriptors) != 0 {
		t.Fatalf("expected empty, non-nil tone descriptors, got %v", profile.ToneDescriptors)
	}
}

func TestParseProfileRejectsMissingPrompt(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"no json here",
		`{"personality_summary": "x"}`,
		`{"system_prompt": `,
	} {
		if _, err := parseProfile(text); !errors.Is(err, errNoProfile) {
			t.Fatalf("parseProfile(%q): expected errNoProfile, got %v", text, err)
		}
	}
}

func TestBuildAnalysisPromptRespectsBudget(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 2000)
	var transcripts []domain.TranscriptInput
	for i := 0; i < 40; i++ {
		transcripts = append(transcripts, domain.TranscriptInput{Title: "Talk", Transcript: long, Type: domain.ContentYouTubeVideo})
	}

	prompt := buildAnalysisPrompt("Ada", transcripts)
	if len(prompt) > promptBudget+len(profileSchema)+200 {
		t.Fatalf("prompt too long: %d", len(prompt))
	}
	if !strings.Contains(prompt, "more transcripts omitted") {
		t.Fatal("expected omitted marker")
	}
}

func TestAPIBase(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"http://ollama:11434":     "http://ollama:11434/v1/",
		"http://ollama:11434/":    "http://ollama:11434/v1/",
		"http://ollama:11434/v1/": "http://ollama:11434/v1/",
	}
	for in, want := range cases {
		if got := apiBase(in); got != want {
			t.Fatalf("apiBase(%q) = %q, want %q", in, got, want)
		}
	}
}

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Model != "llama3.2" || len(req.Messages) != 2 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "llama3.2",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
}

func TestRespond(t *testing.T) {
	t.Parallel()

	server := completionServer(t, "  Hello in character.  ")
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "llama3.2", Timeout: 5 * time.Second}, nil)
	got, err := client.Respond(context.Background(), "You are Ada.", "Hi")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got != "Hello in character." {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	server := completionServer(t, `{"system_prompt":"You are Ada.","topics":["math"]}`)
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "llama3.2", Timeout: 5 * time.Second}, nil)
	profile, err := client.Analyze(context.Background(), "Ada", []domain.TranscriptInput{{Title: "t", Transcript: "numbers", Type: domain.ContentTweet}})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if profile.SystemPrompt != "You are Ada." || len(profile.Topics) != 1 {
		t.Fatalf("unexpected profile %+v", profile)
	}
}
