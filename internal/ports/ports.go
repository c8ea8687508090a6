package ports

import (
	"context"
	"errors"

	"PersonaPipeline/internal/domain"
)

var (
	// ErrNotFound is returned when a persona or item does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key (slug, persona+source_url) already exists.
	ErrDuplicate = errors.New("duplicate")
)

// ChannelLister lists the current videos of a channel.
type ChannelLister interface {
	ListChannel(ctx context.Context, sourceURL string, maxItems int) ([]domain.Discovered, error)
}

// ProfileLister lists the current posts of a social profile.
type ProfileLister interface {
	ListProfile(ctx context.Context, profileURL string) ([]domain.Discovered, error)
}

// AudioFetcher downloads the audio track of a video to local disk.
// An empty path with a nil error means the source yielded nothing.
type AudioFetcher interface {
	FetchAudio(ctx context.Context, videoURL string) (string, error)
}

// Transcriber converts a local audio file into text.
// Empty text with a nil error means transcription produced nothing.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Analyzer synthesizes a behavioral profile from transcripts.
type Analyzer interface {
	Analyze(ctx context.Context, name string, transcripts []domain.TranscriptInput) (domain.Profile, error)
}

// Responder answers a prompt in a persona's voice.
type Responder interface {
	Respond(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// PersonaRepository stores persona records.
type PersonaRepository interface {
	CreatePersona(ctx context.Context, p domain.NewPersona) (domain.Persona, error)
	PersonaByID(ctx context.Context, id int64) (domain.Persona, error)
	PersonaBySlug(ctx context.Context, slug string) (domain.Persona, error)
	ListPersonas(ctx context.Context) ([]domain.Persona, error)
	ListPersonasByStatus(ctx context.Context, status domain.Status) ([]domain.Persona, error)
	UpdatePersonaStatus(ctx context.Context, id int64, status domain.Status, errorMessage string) error
	UpdatePersonaProfile(ctx context.Context, id int64, profile domain.Profile, totals domain.Totals) error
	DeletePersona(ctx context.Context, slug string) (bool, error)
}

// ContentFilter narrows content listings.
type ContentFilter struct {
	Type   domain.ContentType
	Limit  int
	Offset int
}

// ContentRepository stores content items.
type ContentRepository interface {
	CreateContent(ctx context.Context, c domain.NewContent) (domain.ContentItem, error)
	ContentForPersona(ctx context.Context, personaID int64, filter ContentFilter) ([]domain.ContentItem, error)
	CountContent(ctx context.Context, personaID int64) (int, error)
	ExistingSourceURLs(ctx context.Context, personaID int64) (map[string]struct{}, error)
	UpdateContentStatus(ctx context.Context, id int64, update domain.ContentUpdate) error
	RelevantContent(ctx context.Context, personaID int64, query string, limit int) ([]domain.ContentItem, error)
}

// OutputRepository appends chat and script outputs.
type OutputRepository interface {
	AppendOutput(ctx context.Context, o domain.Output) error
	OutputsForPersona(ctx context.Context, personaID int64, limit int) ([]domain.Output, error)
}

// Repository is the full persistence collaborator.
type Repository interface {
	PersonaRepository
	ContentRepository
	OutputRepository
}

// JobHandler runs when a scheduled job fires.
type JobHandler func(ctx context.Context)

// JobScheduler registers keyed recurring jobs. Registering an existing key replaces it.
type JobScheduler interface {
	Register(key, name, spec string, handler JobHandler) error
	Has(key string) bool
	Remove(key string) bool
	Clear()
	Jobs() []domain.ScheduledJob
	Running() bool
	Start(ctx context.Context) error
	Stop()
}

// ErrTokenHeld is returned by RunGuard implementations when another run holds the token.
var ErrTokenHeld = errors.New("run token held")

// RunGuard hands out the per-persona exclusive run token.
// Acquire fails with ErrTokenHeld when the token is already taken.
type RunGuard interface {
	Acquire(ctx context.Context, personaID int64) (release func(), err error)
}

// Notifier publishes run reports to an operator channel.
type Notifier interface {
	PublishRunReport(ctx context.Context, report domain.RunReport) error
}
