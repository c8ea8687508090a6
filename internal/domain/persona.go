package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Platform names the source networks a persona is scraped from.
type Platform string

const (
	PlatformYouTube Platform = "youtube"
	PlatformTwitter Platform = "twitter"
	PlatformBoth    Platform = "both"
)

// ParsePlatform validates a platform name; empty input defaults to youtube.
func ParsePlatform(value string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(value))); p {
	case "":
		return PlatformYouTube, nil
	case PlatformYouTube, PlatformTwitter, PlatformBoth:
		return p, nil
	default:
		return "", fmt.Errorf("unknown platform %q", value)
	}
}

// IncludesYouTube reports whether channel videos are acquired.
func (p Platform) IncludesYouTube() bool {
	return p == PlatformYouTube || p == PlatformBoth
}

// IncludesTwitter reports whether profile posts are acquired.
func (p Platform) IncludesTwitter() bool {
	return p == PlatformTwitter || p == PlatformBoth
}

// Status is the externally observable lifecycle state of a persona.
type Status string

const (
	StatusPending      Status = "pending"
	StatusScraping     Status = "scraping"
	StatusTranscribing Status = "transcribing"
	StatusAnalyzing    Status = "analyzing"
	StatusReady        Status = "ready"
	StatusUpdating     Status = "updating"
	StatusError        Status = "error"
)

// ErrInvalidTransition is returned when a status change is not part of the lifecycle.
var ErrInvalidTransition = errors.New("invalid persona status transition")

// Analyzing is reachable from every status but pending so that a reanalyze
// can pick up a persona whose run was interrupted mid-stage.
var transitions = map[Status][]Status{
	StatusPending:      {StatusScraping},
	StatusScraping:     {StatusTranscribing, StatusAnalyzing},
	StatusTranscribing: {StatusAnalyzing},
	StatusAnalyzing:    {StatusReady, StatusAnalyzing},
	StatusReady:        {StatusUpdating, StatusAnalyzing},
	StatusUpdating:     {StatusUpdating, StatusTranscribing, StatusReady, StatusAnalyzing},
	StatusError:        {StatusUpdating, StatusAnalyzing},
}

// CanTransition reports whether a persona may move from one status to another.
// Every state may fall into error.
func CanTransition(from, to Status) bool {
	if to == StatusError {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition wraps ErrInvalidTransition with the offending pair.
func CheckTransition(from, to Status) error {
	if CanTransition(from, to) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Terminal reports whether a run ends in this status.
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusError
}

// Profile is the behavioral profile synthesized by the analysis collaborator.
type Profile struct {
	SystemPrompt       string            `json:"system_prompt"`
	PersonalitySummary string            `json:"personality_summary"`
	SpeakingStyle      map[string]string `json:"speaking_style"`
	Topics             []string          `json:"topics"`
	Catchphrases       []string          `json:"catchphrases"`
	Vocabulary         []string          `json:"vocabulary"`
	ToneDescriptors    []string          `json:"tone_descriptors"`
}

// Totals are the aggregate counters recomputed after each analysis.
type Totals struct {
	Content int `json:"total_content"`
	Words   int `json:"total_words"`
}

// Persona is the entity whose profile is built from scraped content.
type Persona struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	SourceURL    string    `json:"source_url"`
	TwitterURL   string    `json:"twitter_url,omitempty"`
	Platform     Platform  `json:"platform"`
	MaxVideos    int       `json:"max_videos"`
	Status       Status    `json:"status"`
	Profile      Profile   `json:"profile"`
	Totals       Totals    `json:"totals"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewPersona carries the fields supplied when a persona is created.
type NewPersona struct {
	Name       string
	SourceURL  string
	TwitterURL string
	Platform   Platform
	MaxVideos  int
}

var (
	slugStrip   = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	slugSpaces  = regexp.MustCompile(`[\s_]+`)
	slugHyphens = regexp.MustCompile(`-+`)
)

// Slugify derives the stable external identifier of a persona from its name.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(norm.NFC.String(name)))
	slug = slugStrip.ReplaceAllString(slug, "")
	slug = slugSpaces.ReplaceAllString(slug, "-")
	slug = slugHyphens.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// RefreshJobKey is the scheduler key of the persona's recurring refresh.
func RefreshJobKey(slug string) string {
	return "refresh-" + slug
}
