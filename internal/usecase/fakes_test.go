package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"PersonaPipeline/internal/domain"
	"PersonaPipeline/internal/ports"
)

type memRepo struct {
	mu          sync.Mutex
	nextPersona int64
	nextContent int64
	personas    map[int64]domain.Persona
	content     []domain.ContentItem
	outputs     []domain.Output
	itemLog     map[int64][]domain.ContentStatus
	personaLog  map[int64][]domain.Status
}

var _ ports.Repository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		personas:   map[int64]domain.Persona{},
		itemLog:    map[int64][]domain.ContentStatus{},
		personaLog: map[int64][]domain.Status{},
	}
}

func (r *memRepo) CreatePersona(_ context.Context, p domain.NewPersona) (domain.Persona, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slug := domain.Slugify(p.Name)
	for _, existing := range r.personas {
		if existing.Slug == slug {
			return domain.Persona{}, ports.ErrDuplicate
		}
	}
	r.nextPersona++
	persona := domain.Persona{
		ID:         r.nextPersona,
		Name:       p.Name,
		Slug:       slug,
		SourceURL:  p.SourceURL,
		TwitterURL: p.TwitterURL,
		Platform:   p.Platform,
		MaxVideos:  p.MaxVideos,
		Status:     domain.StatusPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	r.personas[persona.ID] = persona
	return persona, nil
}

func (r *memRepo) PersonaByID(_ context.Context, id int64) (domain.Persona, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.personas[id]
	if !ok {
		return domain.Persona{}, ports.ErrNotFound
	}
	return p, nil
}

func (r *memRepo) PersonaBySlug(_ context.Context, slug string) (domain.Persona, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.personas {
		if p.Slug == slug {
			return p, nil
		}
	}
	return domain.Persona{}, ports.ErrNotFound
}

func (r *memRepo) ListPersonas(_ context.Context) ([]domain.Persona, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Persona, 0, len(r.personas))
	for _, p := range r.personas {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memRepo) ListPersonasByStatus(ctx context.Context, status domain.Status) ([]domain.Persona, error) {
	all, _ := r.ListPersonas(ctx)
	out := all[:0]
	for _, p := range all {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memRepo) UpdatePersonaStatus(_ context.Context, id int64, status domain.Status, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.personas[id]
	if !ok {
		return ports.ErrNotFound
	}
	p.Status = status
	p.ErrorMessage = message
	r.personas[id] = p
	r.personaLog[id] = append(r.personaLog[id], status)
	return nil
}

func (r *memRepo) UpdatePersonaProfile(_ context.Context, id int64, profile domain.Profile, totals domain.Totals) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.personas[id]
	if !ok {
		return ports.ErrNotFound
	}
	p.Profile = profile
	p.Totals = totals
	r.personas[id] = p
	return nil
}

func (r *memRepo) DeletePersona(_ context.Context, slug string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.personas {
		if p.Slug != slug {
			continue
		}
		delete(r.personas, id)
		kept := r.content[:0]
		for _, item := range r.content {
			if item.PersonaID != id {
				kept = append(kept, item)
			}
		}
		r.content = kept
		return true, nil
	}
	return false, nil
}

func (r *memRepo) CreateContent(_ context.Context, c domain.NewContent) (domain.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.content {
		if item.PersonaID == c.PersonaID && item.SourceURL == c.SourceURL {
			return domain.ContentItem{}, ports.ErrDuplicate
		}
	}
	r.nextContent++
	status := c.Status
	if status == "" {
		status = domain.ContentPending
	}
	item := domain.ContentItem{
		ID:           r.nextContent,
		PersonaID:    c.PersonaID,
		SourceURL:    c.SourceURL,
		ContentType:  c.ContentType,
		Title:        c.Title,
		Transcript:   c.Transcript,
		Metadata:     c.Metadata,
		DurationSecs: c.DurationSecs,
		WordCount:    c.WordCount,
		Status:       status,
		ErrorMessage: c.ErrorMessage,
		CreatedAt:    time.Now(),
	}
	r.content = append(r.content, item)
	return item, nil
}

func (r *memRepo) ContentForPersona(_ context.Context, personaID int64, filter ports.ContentFilter) ([]domain.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ContentItem
	for _, item := range r.content {
		if item.PersonaID != personaID {
			continue
		}
		if filter.Type != "" && item.ContentType != filter.Type {
			continue
		}
		out = append(out, item)
	}
	if filter.Limit > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
		if len(out) > filter.Limit {
			out = out[:filter.Limit]
		}
	}
	return out, nil
}

func (r *memRepo) CountContent(_ context.Context, personaID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.content {
		if item.PersonaID == personaID {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) ExistingSourceURLs(_ context.Context, personaID int64) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]struct{}{}
	for _, item := range r.content {
		if item.PersonaID == personaID {
			out[item.SourceURL] = struct{}{}
		}
	}
	return out, nil
}

func (r *memRepo) UpdateContentStatus(_ context.Context, id int64, update domain.ContentUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.content {
		if r.content[i].ID != id {
			continue
		}
		r.content[i].Status = update.Status
		r.content[i].ErrorMessage = update.ErrorMessage
		if update.Transcript != nil {
			r.content[i].Transcript = update.Transcript
			r.content[i].WordCount = update.WordCount
		}
		r.itemLog[id] = append(r.itemLog[id], update.Status)
		return nil
	}
	return ports.ErrNotFound
}

func (r *memRepo) RelevantContent(_ context.Context, personaID int64, _ string, limit int) ([]domain.ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ContentItem
	for _, item := range r.content {
		if item.PersonaID == personaID && item.HasTranscript() && len(out) < limit {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *memRepo) AppendOutput(_ context.Context, o domain.Output) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o.ID = int64(len(r.outputs) + 1)
	r.outputs = append(r.outputs, o)
	return nil
}

func (r *memRepo) OutputsForPersona(_ context.Context, personaID int64, _ int) ([]domain.Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Output
	for _, o := range r.outputs {
		if o.PersonaID == personaID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memRepo) item(t *testing.T, id int64) domain.ContentItem {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.content {
		if item.ID == id {
			return item
		}
	}
	t.Fatalf("item %d not found", id)
	return domain.ContentItem{}
}

// seedPersona stores a persona already in the given status.
func (r *memRepo) seedPersona(t *testing.T, name string, status domain.Status) domain.Persona {
	t.Helper()
	p, err := r.CreatePersona(context.Background(), domain.NewPersona{
		Name:      name,
		SourceURL: "https://www.youtube.com/@" + domain.Slugify(name),
		Platform:  domain.PlatformYouTube,
		MaxVideos: 10,
	})
	if err != nil {
		t.Fatalf("seed persona: %v", err)
	}
	r.mu.Lock()
	p.Status = status
	r.personas[p.ID] = p
	r.mu.Unlock()
	return p
}

// seedAnalyzed stores an analyzed video with the given transcript.
func (r *memRepo) seedAnalyzed(t *testing.T, personaID int64, url, transcript string) domain.ContentItem {
	t.Helper()
	words := domain.WordCount(transcript)
	item, err := r.CreateContent(context.Background(), domain.NewContent{
		PersonaID:   personaID,
		SourceURL:   url,
		ContentType: domain.ContentYouTubeVideo,
		Title:       url,
		Transcript:  &transcript,
		WordCount:   &words,
		Status:      domain.ContentAnalyzed,
	})
	if err != nil {
		t.Fatalf("seed content: %v", err)
	}
	return item
}

type fakeAcquirer struct {
	mu    sync.Mutex
	units []domain.Discovered
	err   error
	calls int
	gate  chan struct{}
}

func (a *fakeAcquirer) Discover(ctx context.Context, _ domain.Persona) ([]domain.Discovered, error) {
	a.mu.Lock()
	a.calls++
	gate := a.gate
	a.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	out := make([]domain.Discovered, len(a.units))
	copy(out, a.units)
	return out, nil
}

func (a *fakeAcquirer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func videos(urls ...string) []domain.Discovered {
	out := make([]domain.Discovered, 0, len(urls))
	for _, url := range urls {
		out = append(out, domain.Discovered{URL: url, Title: "video " + url, ContentType: domain.ContentYouTubeVideo})
	}
	return out
}

type fakeFetcher struct {
	dir     string
	missing map[string]bool
	mu      sync.Mutex
	fetched []string
	paths   []string
}

func newFakeFetcher(t *testing.T) *fakeFetcher {
	return &fakeFetcher{dir: t.TempDir(), missing: map[string]bool{}}
}

func (f *fakeFetcher) FetchAudio(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, url)
	if f.missing[url] {
		return "", nil
	}
	path := filepath.Join(f.dir, fmt.Sprintf("audio-%d", len(f.fetched)))
	if err := os.WriteFile(path, []byte(url), 0o600); err != nil {
		return "", err
	}
	f.paths = append(f.paths, path)
	return path, nil
}

type fakeTranscriber struct {
	transcribe func(url string) (string, error)
}

// Transcribe reads back the URL the fetcher wrote into the audio file.
func (f *fakeTranscriber) Transcribe(_ context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if f.transcribe == nil {
		return "one two three four", nil
	}
	return f.transcribe(string(raw))
}

type fakeAnalyzer struct {
	mu     sync.Mutex
	calls  int
	inputs []domain.TranscriptInput
}

func (a *fakeAnalyzer) Analyze(_ context.Context, name string, transcripts []domain.TranscriptInput) (domain.Profile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.inputs = transcripts
	return domain.Profile{
		SystemPrompt: "You are " + name + ".",
		Topics:       []string{"testing"},
	}, nil
}

func (a *fakeAnalyzer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type fakeResponder struct {
	system string
	prompt string
}

func (r *fakeResponder) Respond(_ context.Context, system, prompt string) (string, error) {
	r.system = system
	r.prompt = prompt
	return "in character", nil
}

type fakeGuard struct {
	mu   sync.Mutex
	held map[int64]bool
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{held: map[int64]bool{}}
}

func (g *fakeGuard) Acquire(_ context.Context, personaID int64) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[personaID] {
		return nil, ports.ErrTokenHeld
	}
	g.held[personaID] = true
	return func() {
		g.mu.Lock()
		delete(g.held, personaID)
		g.mu.Unlock()
	}, nil
}

type fakeJob struct {
	name    string
	spec    string
	handler ports.JobHandler
}

type fakeDriver struct {
	mu       sync.Mutex
	jobs     map[string]fakeJob
	running  bool
	startErr error
}

var _ ports.JobScheduler = (*fakeDriver)(nil)

func newFakeDriver() *fakeDriver {
	return &fakeDriver{jobs: map[string]fakeJob{}}
}

func (d *fakeDriver) Register(key, name, spec string, handler ports.JobHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs[key] = fakeJob{name: name, spec: spec, handler: handler}
	return nil
}

func (d *fakeDriver) Has(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.jobs[key]
	return ok
}

func (d *fakeDriver) Remove(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.jobs[key]
	delete(d.jobs, key)
	return ok
}

func (d *fakeDriver) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = map[string]fakeJob{}
}

func (d *fakeDriver) Jobs() []domain.ScheduledJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.ScheduledJob, 0, len(d.jobs))
	for key, job := range d.jobs {
		out = append(out, domain.ScheduledJob{Key: key, Name: job.name, Spec: job.spec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (d *fakeDriver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *fakeDriver) Start(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return d.startErr
	}
	d.running = true
	return nil
}

func (d *fakeDriver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
}

func (d *fakeDriver) fire(t *testing.T, key string) {
	t.Helper()
	d.mu.Lock()
	job, ok := d.jobs[key]
	d.mu.Unlock()
	if !ok {
		t.Fatalf("no job %s", key)
	}
	job.handler(context.Background())
}

type harness struct {
	repo        *memRepo
	acquirer    *fakeAcquirer
	fetcher     *fakeFetcher
	transcriber *fakeTranscriber
	analyzer    *fakeAnalyzer
	pipeline    *Pipeline
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo:        newMemRepo(),
		acquirer:    &fakeAcquirer{},
		fetcher:     newFakeFetcher(t),
		transcriber: &fakeTranscriber{},
		analyzer:    &fakeAnalyzer{},
	}
	h.pipeline = NewPipeline(PipelineDeps{
		Repository:  h.repo,
		Acquirer:    h.acquirer,
		Fetcher:     h.fetcher,
		Transcriber: h.transcriber,
		Analyzer:    h.analyzer,
	})
	return h
}
