package domain

import (
	"strings"
	"time"
)

// ContentType distinguishes videos from short text posts.
type ContentType string

const (
	ContentYouTubeVideo ContentType = "youtube_video"
	ContentTweet        ContentType = "tweet"
)

// ContentStatus tracks one item through download, transcription and analysis.
type ContentStatus string

const (
	ContentPending      ContentStatus = "pending"
	ContentDownloading  ContentStatus = "downloading"
	ContentTranscribing ContentStatus = "transcribing"
	ContentAnalyzed     ContentStatus = "analyzed"
	ContentError        ContentStatus = "error"
)

// Item-level failure messages persisted on content items.
const (
	MsgDownloadFailed      = "Download failed"
	MsgTranscriptionFailed = "Transcription failed"
	MsgEmptyTweet          = "Empty tweet"
	MsgNoTranscripts       = "No transcripts to analyze"
)

// ContentItem is one unit of source material owned by a persona.
type ContentItem struct {
	ID           int64          `json:"id"`
	PersonaID    int64          `json:"persona_id"`
	SourceURL    string         `json:"source_url"`
	ContentType  ContentType    `json:"content_type"`
	Title        string         `json:"title"`
	Transcript   *string        `json:"transcript,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	DurationSecs *int           `json:"duration_secs,omitempty"`
	WordCount    *int           `json:"word_count,omitempty"`
	Status       ContentStatus  `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// HasTranscript reports whether the item carries non-empty transcript text.
func (c ContentItem) HasTranscript() bool {
	return c.Transcript != nil && strings.TrimSpace(*c.Transcript) != ""
}

// NewContent carries the fields of an item about to be recorded.
type NewContent struct {
	PersonaID    int64
	SourceURL    string
	ContentType  ContentType
	Title        string
	Transcript   *string
	Metadata     map[string]any
	DurationSecs *int
	WordCount    *int
	Status       ContentStatus
	ErrorMessage string
}

// ContentUpdate is applied atomically to one item.
// Transcript and WordCount are written only when Transcript is non-nil.
type ContentUpdate struct {
	Status       ContentStatus
	ErrorMessage string
	Transcript   *string
	WordCount    *int
}

// Discovered is one unit returned by an acquisition listing.
type Discovered struct {
	URL          string
	Title        string
	Text         string
	DurationSecs *int
	Metadata     map[string]any
	ContentType  ContentType
}

// TranscriptInput is what the analysis collaborator receives per item.
type TranscriptInput struct {
	Title      string      `json:"title"`
	Transcript string      `json:"transcript"`
	Type       ContentType `json:"type"`
}

// Output is an append-only record of a chat or script interaction.
type Output struct {
	ID         int64     `json:"id"`
	PersonaID  int64     `json:"persona_id"`
	Prompt     string    `json:"prompt"`
	Output     string    `json:"output"`
	OutputType string    `json:"output_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// WordCount counts whitespace-delimited tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
