package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"PersonaPipeline/internal/domain"
	"PersonaPipeline/internal/ports"
)

// Acquirer lists a persona's current content across its platforms.
type Acquirer interface {
	Discover(ctx context.Context, persona domain.Persona) ([]domain.Discovered, error)
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Repository  ports.Repository
	Acquirer    Acquirer
	Fetcher     ports.AudioFetcher
	Transcriber ports.Transcriber
	Analyzer    ports.Analyzer
	Logger      *slog.Logger
	Clock       func() time.Time
}

// Pipeline owns persona and content status transitions. It implements the
// full, incremental and reanalyze runs; callers hold the persona's run token.
type Pipeline struct {
	repo        ports.Repository
	acquirer    Acquirer
	fetcher     ports.AudioFetcher
	transcriber ports.Transcriber
	analyzer    ports.Analyzer
	logger      *slog.Logger
	clock       func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Pipeline{
		repo:        deps.Repository,
		acquirer:    deps.Acquirer,
		fetcher:     deps.Fetcher,
		transcriber: deps.Transcriber,
		analyzer:    deps.Analyzer,
		logger:      logger,
		clock:       clock,
	}
}

// RunFull scrapes, transcribes and analyzes a newly created persona.
func (p *Pipeline) RunFull(ctx context.Context, personaID int64) (domain.RunReport, error) {
	return p.run(ctx, domain.RunFull, personaID, p.fullRun)
}

// RunIncremental processes only content that appeared since the last run and
// then re-analyzes the whole content set.
func (p *Pipeline) RunIncremental(ctx context.Context, personaID int64) (domain.RunReport, error) {
	return p.run(ctx, domain.RunIncremental, personaID, p.incrementalRun)
}

// Reanalyze rebuilds the profile from already stored transcripts.
func (p *Pipeline) Reanalyze(ctx context.Context, personaID int64) (domain.RunReport, error) {
	return p.run(ctx, domain.RunReanalyze, personaID, p.reanalyzeRun)
}

type stageFunc func(ctx context.Context, persona *domain.Persona, report *domain.RunReport, logger *slog.Logger) error

// errSkipped ends a run before any mutation.
type errSkipped struct {
	reason string
}

func (e *errSkipped) Error() string { return e.reason }

func (p *Pipeline) run(ctx context.Context, kind domain.RunKind, personaID int64, stage stageFunc) (domain.RunReport, error) {
	report := domain.RunReport{
		RunID:     uuid.NewString(),
		Kind:      kind,
		PersonaID: personaID,
		StartedAt: p.clock().UTC(),
	}
	logger := p.logger.With("run_id", report.RunID, "run", string(kind), "persona_id", personaID)

	persona, err := p.repo.PersonaByID(ctx, personaID)
	if err != nil {
		report.FinishedAt = p.clock().UTC()
		report.Error = err.Error()
		logger.Error("load persona failed", "error", err)
		return report, fmt.Errorf("load persona %d: %w", personaID, err)
	}
	report.PersonaName = persona.Name

	logger.Info("run started", "name", persona.Name, "status", persona.Status)
	err = stage(ctx, &persona, &report, logger)
	report.Status = persona.Status
	report.FinishedAt = p.clock().UTC()

	var skipped *errSkipped
	switch {
	case err == nil:
		logger.Info("run complete",
			"status", persona.Status,
			"new_items", report.NewItems,
			"analyzed", report.Count(domain.OutcomeAnalyzed),
			"failed", report.Count(domain.OutcomeFailed),
			"total_content", report.Totals.Content,
			"total_words", report.Totals.Words,
		)
		return report, nil
	case errors.As(err, &skipped):
		report.Skipped = true
		report.SkipReason = skipped.reason
		logger.Warn("run skipped", "reason", skipped.reason)
		return report, nil
	case errors.Is(err, ErrNoTranscripts):
		report.Error = domain.MsgNoTranscripts
		logger.Error("run failed", "error", err)
		return report, err
	}

	report.Error = err.Error()
	logger.Error("run failed", "error", err)
	if statusErr := p.setStatus(context.WithoutCancel(ctx), &persona, domain.StatusError, err.Error()); statusErr != nil {
		logger.Error("record failure status", "error", statusErr)
	}
	report.Status = persona.Status
	return report, err
}

func (p *Pipeline) fullRun(ctx context.Context, persona *domain.Persona, report *domain.RunReport, logger *slog.Logger) error {
	if !domain.CanTransition(persona.Status, domain.StatusScraping) {
		return &errSkipped{reason: fmt.Sprintf("full run needs a pending persona, status=%s", persona.Status)}
	}
	if err := p.setStatus(ctx, persona, domain.StatusScraping, ""); err != nil {
		return err
	}

	discovered, err := p.acquirer.Discover(ctx, *persona)
	if err != nil {
		return fmt.Errorf("acquire content: %w", err)
	}
	report.Discovered = len(discovered)

	created, err := p.record(ctx, persona.ID, discovered, logger)
	if err != nil {
		return err
	}
	report.NewItems = len(created)
	logger.Info("content recorded", "discovered", len(discovered), "recorded", len(created))

	if err := p.setStatus(ctx, persona, domain.StatusTranscribing, ""); err != nil {
		return err
	}

	videos, err := p.repo.ContentForPersona(ctx, persona.ID, ports.ContentFilter{Type: domain.ContentYouTubeVideo})
	if err != nil {
		return fmt.Errorf("load videos: %w", err)
	}
	results, err := p.processItems(ctx, videos, logger)
	report.Items = results
	if err != nil {
		return err
	}

	return p.analyze(ctx, persona, report, logger)
}

func (p *Pipeline) incrementalRun(ctx context.Context, persona *domain.Persona, report *domain.RunReport, logger *slog.Logger) error {
	if persona.Status != domain.StatusReady && persona.Status != domain.StatusUpdating {
		return &errSkipped{reason: fmt.Sprintf("incremental update needs ready or updating, status=%s", persona.Status)}
	}
	if err := p.setStatus(ctx, persona, domain.StatusUpdating, ""); err != nil {
		return err
	}

	existing, err := p.repo.ExistingSourceURLs(ctx, persona.ID)
	if err != nil {
		return fmt.Errorf("load existing source urls: %w", err)
	}
	discovered, err := p.acquirer.Discover(ctx, *persona)
	if err != nil {
		return fmt.Errorf("acquire content: %w", err)
	}
	report.Discovered = len(discovered)

	fresh := NewSourceItems(discovered, existing)
	if len(fresh) == 0 {
		logger.Info("no new content, skipping update", "discovered", len(discovered), "existing", len(existing))
		report.Totals = persona.Totals
		return p.setStatus(ctx, persona, domain.StatusReady, "")
	}
	logger.Info("new content found", "new", len(fresh), "discovered", len(discovered))

	if err := p.setStatus(ctx, persona, domain.StatusTranscribing, ""); err != nil {
		return err
	}

	created, err := p.record(ctx, persona.ID, fresh, logger)
	if err != nil {
		return err
	}
	report.NewItems = len(created)

	videos := make([]domain.ContentItem, 0, len(created))
	for _, item := range created {
		if item.ContentType == domain.ContentYouTubeVideo {
			videos = append(videos, item)
		}
	}
	results, err := p.processItems(ctx, videos, logger)
	report.Items = results
	if err != nil {
		return err
	}

	return p.analyze(ctx, persona, report, logger)
}

func (p *Pipeline) reanalyzeRun(ctx context.Context, persona *domain.Persona, report *domain.RunReport, logger *slog.Logger) error {
	if !domain.CanTransition(persona.Status, domain.StatusAnalyzing) {
		return &errSkipped{reason: fmt.Sprintf("cannot reanalyze while status=%s", persona.Status)}
	}
	return p.analyze(ctx, persona, report, logger)
}

// analyze rebuilds the profile from every stored transcript, old and new.
func (p *Pipeline) analyze(ctx context.Context, persona *domain.Persona, report *domain.RunReport, logger *slog.Logger) error {
	if err := p.setStatus(ctx, persona, domain.StatusAnalyzing, ""); err != nil {
		return err
	}

	items, err := p.repo.ContentForPersona(ctx, persona.ID, ports.ContentFilter{})
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}

	inputs := make([]domain.TranscriptInput, 0, len(items))
	words := 0
	for _, item := range items {
		if !item.HasTranscript() {
			continue
		}
		inputs = append(inputs, domain.TranscriptInput{
			Title:      item.Title,
			Transcript: *item.Transcript,
			Type:       item.ContentType,
		})
		words += domain.WordCount(*item.Transcript)
	}

	if len(inputs) == 0 {
		if err := p.setStatus(ctx, persona, domain.StatusError, domain.MsgNoTranscripts); err != nil {
			return err
		}
		return ErrNoTranscripts
	}

	logger.Info("analyzing transcripts", "transcripts", len(inputs), "words", words)
	profile, err := p.analyzer.Analyze(ctx, persona.Name, inputs)
	if err != nil {
		return fmt.Errorf("analyze persona: %w", err)
	}

	totals := domain.Totals{Content: len(inputs), Words: words}
	if err := p.repo.UpdatePersonaProfile(ctx, persona.ID, profile, totals); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	persona.Profile = profile
	persona.Totals = totals
	report.Totals = totals

	return p.setStatus(ctx, persona, domain.StatusReady, "")
}

// record persists discovered units. Units already stored under the same
// source URL are dropped by the dedup key.
func (p *Pipeline) record(ctx context.Context, personaID int64, discovered []domain.Discovered, logger *slog.Logger) ([]domain.ContentItem, error) {
	created := make([]domain.ContentItem, 0, len(discovered))
	for _, unit := range discovered {
		item, err := p.repo.CreateContent(ctx, newContent(personaID, unit))
		if errors.Is(err, ports.ErrDuplicate) {
			logger.Debug("content already recorded", "source_url", unit.URL)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("record content %s: %w", unit.URL, err)
		}
		created = append(created, item)
	}
	return created, nil
}

const tweetTitleLength = 100

func newContent(personaID int64, unit domain.Discovered) domain.NewContent {
	content := domain.NewContent{
		PersonaID:    personaID,
		SourceURL:    unit.URL,
		ContentType:  unit.ContentType,
		Title:        unit.Title,
		Metadata:     unit.Metadata,
		DurationSecs: unit.DurationSecs,
		Status:       domain.ContentPending,
	}
	if content.ContentType == "" {
		content.ContentType = domain.ContentYouTubeVideo
	}
	if content.ContentType != domain.ContentTweet {
		return content
	}

	text := unit.Text
	words := domain.WordCount(text)
	if content.Title == "" {
		content.Title = truncateRunes(text, tweetTitleLength)
	}
	if words == 0 {
		content.Status = domain.ContentError
		content.ErrorMessage = domain.MsgEmptyTweet
		return content
	}
	content.Transcript = &text
	content.WordCount = &words
	content.Status = domain.ContentAnalyzed
	return content
}

func (p *Pipeline) setStatus(ctx context.Context, persona *domain.Persona, status domain.Status, message string) error {
	if err := domain.CheckTransition(persona.Status, status); err != nil {
		return err
	}
	if err := p.repo.UpdatePersonaStatus(ctx, persona.ID, status, message); err != nil {
		return fmt.Errorf("set status %s: %w", status, err)
	}
	persona.Status = status
	persona.ErrorMessage = message
	return nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
