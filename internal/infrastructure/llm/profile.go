package llm

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"PersonaPipeline/internal/domain"
)

const (
	excerptRunes = 3000
	promptBudget = 48000
)

const analysisSystemPrompt = `You are an expert at analyzing how people talk and think.
You read transcripts of one person and describe their personality and speaking style.
Respond with a single JSON object and nothing else.`

const profileSchema = `{
  "system_prompt": "a second-person system prompt that makes an assistant speak exactly like this person",
  "personality_summary": "two or three sentences",
  "speaking_style": {"pace": "...", "formality": "...", "humor": "...", "structure": "..."},
  "topics": ["recurring subjects"],
  "catchphrases": ["phrases they repeat"],
  "vocabulary": ["distinctive words"],
  "tone_descriptors": ["adjectives for their tone"]
}`

var errNoProfile = errors.New("response holds no profile object")

func buildAnalysisPrompt(name string, transcripts []domain.TranscriptInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze %s from the following %d transcripts.\n\n", name, len(transcripts))

	for i, t := range transcripts {
		excerpt := truncate(t.Transcript, excerptRunes)
		if b.Len()+len(excerpt) > promptBudget {
			fmt.Fprintf(&b, "(%d more transcripts omitted)\n\n", len(transcripts)-i)
			break
		}
		fmt.Fprintf(&b, "### %s (%s)\n%s\n\n", t.Title, t.Type, excerpt)
	}

	b.WriteString("Return JSON with exactly these keys:\n")
	b.WriteString(profileSchema)
	return b.String()
}

// parseProfile reads the first JSON object in text. Models often wrap it in
// prose or code fences, and list fields sometimes arrive as strings.
func parseProfile(text string) (domain.Profile, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return domain.Profile{}, errNoProfile
	}
	raw := text[start : end+1]
	if !gjson.Valid(raw) {
		return domain.Profile{}, fmt.Errorf("%w: invalid json", errNoProfile)
	}

	doc := gjson.Parse(raw)
	profile := domain.Profile{
		SystemPrompt:       strings.TrimSpace(doc.Get("system_prompt").String()),
		PersonalitySummary: strings.TrimSpace(doc.Get("personality_summary").String()),
		SpeakingStyle:      stringMap(doc.Get("speaking_style")),
		Topics:             stringList(doc.Get("topics")),
		Catchphrases:       stringList(doc.Get("catchphrases")),
		Vocabulary:         stringList(doc.Get("vocabulary")),
		ToneDescriptors:    stringList(doc.Get("tone_descriptors")),
	}
	if profile.SystemPrompt == "" {
		return domain.Profile{}, fmt.Errorf("%w: system_prompt missing", errNoProfile)
	}
	return profile, nil
}

func stringList(node gjson.Result) []string {
	out := []string{}
	switch {
	case node.IsArray():
		node.ForEach(func(_, v gjson.Result) bool {
			if s := strings.TrimSpace(v.String()); s != "" {
				out = append(out, s)
			}
			return true
		})
	case node.Type == gjson.String:
		for _, part := range strings.Split(node.String(), ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func stringMap(node gjson.Result) map[string]string {
	out := map[string]string{}
	switch {
	case node.IsObject():
		node.ForEach(func(k, v gjson.Result) bool {
			out[k.String()] = strings.TrimSpace(v.String())
			return true
		})
	case node.Type == gjson.String && strings.TrimSpace(node.String()) != "":
		out["description"] = strings.TrimSpace(node.String())
	}
	return out
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
