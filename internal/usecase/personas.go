package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"PersonaPipeline/internal/domain"
	"PersonaPipeline/internal/ports"
)

const (
	defaultMaxVideos     = 50
	relevantContentLimit = 3
	excerptLength        = 1500
	maxContentPage       = 100
)

// PersonaService is what triggers (HTTP, CLI) call. It owns no pipeline
// logic; runs go through the Runner.
type PersonaService struct {
	repo      ports.Repository
	runner    *Runner
	scheduler *RefreshScheduler
	responder ports.Responder
	maxVideos int
	logger    *slog.Logger
}

// PersonaServiceDeps groups the service collaborators.
type PersonaServiceDeps struct {
	Repository       ports.Repository
	Runner           *Runner
	Scheduler        *RefreshScheduler
	Responder        ports.Responder
	DefaultMaxVideos int
	Logger           *slog.Logger
}

// NewPersonaService constructs the trigger-facing service.
func NewPersonaService(deps PersonaServiceDeps) *PersonaService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxVideos := deps.DefaultMaxVideos
	if maxVideos <= 0 {
		maxVideos = defaultMaxVideos
	}
	return &PersonaService{
		repo:      deps.Repository,
		runner:    deps.Runner,
		scheduler: deps.Scheduler,
		responder: deps.Responder,
		maxVideos: maxVideos,
		logger:    logger,
	}
}

// CreateRequest is the input of Create.
type CreateRequest struct {
	Name       string
	SourceURL  string
	Platform   string
	MaxVideos  int
	TwitterURL string
}

// Create records a pending persona and dispatches its full run.
func (s *PersonaService) Create(ctx context.Context, req CreateRequest) (domain.Persona, error) {
	persona, err := s.create(ctx, req)
	if err != nil {
		return domain.Persona{}, err
	}
	if err := s.runner.Dispatch(domain.RunFull, persona.ID); err != nil {
		return persona, fmt.Errorf("dispatch full run: %w", err)
	}
	return persona, nil
}

// CreateAndRun records a pending persona and runs its full pipeline in the foreground.
func (s *PersonaService) CreateAndRun(ctx context.Context, req CreateRequest) (domain.RunReport, error) {
	persona, err := s.create(ctx, req)
	if err != nil {
		return domain.RunReport{}, err
	}
	return s.runner.Run(ctx, domain.RunFull, persona.ID)
}

func (s *PersonaService) create(ctx context.Context, req CreateRequest) (domain.Persona, error) {
	name := strings.TrimSpace(req.Name)
	sourceURL := strings.TrimSpace(req.SourceURL)
	if name == "" || sourceURL == "" {
		return domain.Persona{}, fmt.Errorf("%w: name and source_url are required", ErrInvalidInput)
	}
	if domain.Slugify(name) == "" {
		return domain.Persona{}, fmt.Errorf("%w: name %q has no usable characters", ErrInvalidInput, name)
	}
	platform, err := domain.ParsePlatform(req.Platform)
	if err != nil {
		return domain.Persona{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	maxVideos := req.MaxVideos
	if maxVideos <= 0 {
		maxVideos = s.maxVideos
	}

	persona, err := s.repo.CreatePersona(ctx, domain.NewPersona{
		Name:       name,
		SourceURL:  sourceURL,
		TwitterURL: strings.TrimSpace(req.TwitterURL),
		Platform:   platform,
		MaxVideos:  maxVideos,
	})
	if err != nil {
		return domain.Persona{}, fmt.Errorf("create persona: %w", err)
	}
	s.logger.Info("persona created", "persona_id", persona.ID, "slug", persona.Slug, "platform", platform)
	return persona, nil
}

// Get loads a persona by slug.
func (s *PersonaService) Get(ctx context.Context, slug string) (domain.Persona, error) {
	return s.repo.PersonaBySlug(ctx, slug)
}

// List returns every persona, newest first.
func (s *PersonaService) List(ctx context.Context) ([]domain.Persona, error) {
	return s.repo.ListPersonas(ctx)
}

// ContentPage is one page of a persona's items.
type ContentPage struct {
	Content []domain.ContentItem `json:"content"`
	Total   int                  `json:"total"`
}

// Content pages through a persona's items.
func (s *PersonaService) Content(ctx context.Context, slug string, limit, offset int) (ContentPage, error) {
	if limit < 1 || offset < 0 {
		return ContentPage{}, fmt.Errorf("%w: limit must be positive and offset not negative", ErrInvalidInput)
	}
	limit = min(limit, maxContentPage)
	persona, err := s.repo.PersonaBySlug(ctx, slug)
	if err != nil {
		return ContentPage{}, err
	}
	total, err := s.repo.CountContent(ctx, persona.ID)
	if err != nil {
		return ContentPage{}, fmt.Errorf("count content: %w", err)
	}
	items, err := s.repo.ContentForPersona(ctx, persona.ID, ports.ContentFilter{Limit: limit, Offset: offset})
	if err != nil {
		return ContentPage{}, fmt.Errorf("list content: %w", err)
	}
	return ContentPage{Content: items, Total: total}, nil
}

// Refresh dispatches an incremental update and makes sure the persona has a
// recurring job.
func (s *PersonaService) Refresh(ctx context.Context, slug string) (domain.Persona, error) {
	persona, err := s.refreshable(ctx, slug)
	if err != nil {
		return domain.Persona{}, err
	}
	if err := s.runner.Dispatch(domain.RunIncremental, persona.ID); err != nil {
		return persona, err
	}
	s.ensureJob(persona)
	return persona, nil
}

// RefreshAndWait runs the incremental update in the foreground.
func (s *PersonaService) RefreshAndWait(ctx context.Context, slug string) (domain.RunReport, error) {
	persona, err := s.refreshable(ctx, slug)
	if err != nil {
		return domain.RunReport{}, err
	}
	return s.runner.Run(ctx, domain.RunIncremental, persona.ID)
}

func (s *PersonaService) refreshable(ctx context.Context, slug string) (domain.Persona, error) {
	persona, err := s.repo.PersonaBySlug(ctx, slug)
	if err != nil {
		return domain.Persona{}, err
	}
	if !persona.Status.Terminal() {
		return persona, fmt.Errorf("%w: status %s", ErrNotRefreshable, persona.Status)
	}
	return persona, nil
}

func (s *PersonaService) ensureJob(persona domain.Persona) {
	if s.scheduler == nil {
		return
	}
	if _, err := s.scheduler.EnsureJob(persona); err != nil {
		s.logger.Warn("schedule refresh", "persona", persona.Name, "error", err)
	}
}

// Reanalyze dispatches a profile rebuild.
func (s *PersonaService) Reanalyze(ctx context.Context, slug string) (domain.Persona, error) {
	persona, err := s.reanalyzable(ctx, slug)
	if err != nil {
		return domain.Persona{}, err
	}
	if err := s.runner.Dispatch(domain.RunReanalyze, persona.ID); err != nil {
		return persona, err
	}
	return persona, nil
}

// ReanalyzeAndWait rebuilds the profile in the foreground.
func (s *PersonaService) ReanalyzeAndWait(ctx context.Context, slug string) (domain.RunReport, error) {
	persona, err := s.reanalyzable(ctx, slug)
	if err != nil {
		return domain.RunReport{}, err
	}
	return s.runner.Run(ctx, domain.RunReanalyze, persona.ID)
}

func (s *PersonaService) reanalyzable(ctx context.Context, slug string) (domain.Persona, error) {
	persona, err := s.repo.PersonaBySlug(ctx, slug)
	if err != nil {
		return domain.Persona{}, err
	}
	if !domain.CanTransition(persona.Status, domain.StatusAnalyzing) {
		return persona, fmt.Errorf("%w: status %s", ErrNotReanalyzable, persona.Status)
	}
	return persona, nil
}

// Delete removes a persona with its items, outputs and refresh job.
func (s *PersonaService) Delete(ctx context.Context, slug string) error {
	deleted, err := s.repo.DeletePersona(ctx, slug)
	if err != nil {
		return fmt.Errorf("delete persona: %w", err)
	}
	if !deleted {
		return ports.ErrNotFound
	}
	if s.scheduler != nil {
		s.scheduler.Forget(slug)
	}
	s.logger.Info("persona deleted", "slug", slug)
	return nil
}

// Chat answers a message in the persona's voice and logs the exchange.
func (s *PersonaService) Chat(ctx context.Context, slug, message, outputType string) (string, domain.Persona, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", domain.Persona{}, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	if outputType == "" {
		outputType = "chat"
	}

	persona, err := s.repo.PersonaBySlug(ctx, slug)
	if err != nil {
		return "", domain.Persona{}, err
	}
	if persona.Status != domain.StatusReady {
		return "", persona, fmt.Errorf("%w: status %s", ErrNotReady, persona.Status)
	}

	related, err := s.repo.RelevantContent(ctx, persona.ID, message, relevantContentLimit)
	if err != nil {
		return "", persona, fmt.Errorf("load relevant content: %w", err)
	}

	prompt := buildChatPrompt(message, outputType, related)
	response, err := s.respond(ctx, persona, prompt)
	if err != nil {
		return "", persona, err
	}

	if err := s.repo.AppendOutput(ctx, domain.Output{
		PersonaID:  persona.ID,
		Prompt:     message,
		Output:     response,
		OutputType: outputType,
	}); err != nil {
		return "", persona, fmt.Errorf("save output: %w", err)
	}
	return response, persona, nil
}

// ScriptRequest is the input of GenerateScript.
type ScriptRequest struct {
	Topic           string
	DurationMinutes int
	Style           string
}

// GenerateScript writes a script on a topic in the persona's voice.
func (s *PersonaService) GenerateScript(ctx context.Context, slug string, req ScriptRequest) (string, domain.Persona, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return "", domain.Persona{}, fmt.Errorf("%w: topic is required", ErrInvalidInput)
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 10
	}
	if req.Style == "" {
		req.Style = "monologue"
	}

	persona, err := s.repo.PersonaBySlug(ctx, slug)
	if err != nil {
		return "", domain.Persona{}, err
	}

	prompt := fmt.Sprintf(
		"Write a %d-minute %s script about %q. Stay in character, use your usual catchphrases and vocabulary, and write only the spoken words.",
		req.DurationMinutes, req.Style, topic,
	)
	script, err := s.respond(ctx, persona, prompt)
	if err != nil {
		return "", persona, err
	}

	if err := s.repo.AppendOutput(ctx, domain.Output{
		PersonaID:  persona.ID,
		Prompt:     "Script: " + topic,
		Output:     script,
		OutputType: "script",
	}); err != nil {
		return "", persona, fmt.Errorf("save output: %w", err)
	}
	return script, persona, nil
}

func (s *PersonaService) respond(ctx context.Context, persona domain.Persona, prompt string) (string, error) {
	if s.responder == nil {
		return "", fmt.Errorf("no responder configured")
	}
	system := persona.Profile.SystemPrompt
	if strings.TrimSpace(system) == "" {
		system = fmt.Sprintf("You are %s. Answer in their voice.", persona.Name)
	}
	response, err := s.responder.Respond(ctx, system, prompt)
	if err != nil {
		return "", fmt.Errorf("generate response: %w", err)
	}
	return response, nil
}

func buildChatPrompt(message, outputType string, related []domain.ContentItem) string {
	var b strings.Builder
	if len(related) > 0 {
		b.WriteString("Things you have said before that may help:\n\n")
		for _, item := range related {
			if !item.HasTranscript() {
				continue
			}
			fmt.Fprintf(&b, "## %s\n%s\n\n", item.Title, truncateRunes(*item.Transcript, excerptLength))
		}
	}
	if outputType != "chat" {
		fmt.Fprintf(&b, "Reply in the form of a %s.\n\n", outputType)
	}
	b.WriteString(message)
	return b.String()
}
