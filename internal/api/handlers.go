package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"PersonaPipeline/internal/domain"
	"PersonaPipeline/internal/ports"
	"PersonaPipeline/internal/usecase"
)

const maxBodyBytes = 1 << 20

type createPersonaRequest struct {
	Name       string `json:"name"`
	SourceURL  string `json:"source_url"`
	Platform   string `json:"platform"`
	MaxVideos  int    `json:"max_videos"`
	TwitterURL string `json:"twitter_url"`
}

type chatRequest struct {
	Message    string `json:"message"`
	OutputType string `json:"output_type"`
}

type scriptRequest struct {
	Topic           string `json:"topic"`
	DurationMinutes int    `json:"duration_minutes"`
	Style           string `json:"style"`
}

type jobResponse struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	NextRun *string `json:"next_run"`
	Trigger string  `json:"trigger"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "persona-pipeline"})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createPersonaRequest
	if !decodeBody(w, r, &req) {
		return
	}
	persona, err := s.personas.Create(r.Context(), usecase.CreateRequest{
		Name:       req.Name,
		SourceURL:  req.SourceURL,
		Platform:   req.Platform,
		MaxVideos:  req.MaxVideos,
		TwitterURL: req.TwitterURL,
	})
	if err != nil && persona.ID == 0 {
		s.writeServiceError(w, err)
		return
	}
	if err != nil {
		s.logger.Error("persona created but full run not dispatched", "slug", persona.Slug, "error", err)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":      persona.ID,
		"name":    persona.Name,
		"slug":    persona.Slug,
		"status":  persona.Status,
		"message": fmt.Sprintf("Pipeline started. Processing up to %d videos.", persona.MaxVideos),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	personas, err := s.personas.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if personas == nil {
		personas = []domain.Persona{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"personas": personas})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	persona, err := s.personas.Get(r.Context(), r.PathValue("slug"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, persona)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if err := s.personas.Delete(r.Context(), slug); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Persona '%s' deleted", slug)})
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 20, 1)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0, 0)
	if !ok {
		return
	}
	page, err := s.personas.Content(r.Context(), r.PathValue("slug"), limit, offset)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if page.Content == nil {
		page.Content = []domain.ContentItem{}
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	response, persona, err := s.personas.Chat(r.Context(), r.PathValue("slug"), req.Message, req.OutputType)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": response, "persona": persona.Name})
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	var req scriptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	script, persona, err := s.personas.GenerateScript(r.Context(), r.PathValue("slug"), usecase.ScriptRequest{
		Topic:           req.Topic,
		DurationMinutes: req.DurationMinutes,
		Style:           req.Style,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"script": script, "persona": persona.Name, "topic": req.Topic})
}

func (s *Server) handleReanalyze(w http.ResponseWriter, r *http.Request) {
	if _, err := s.personas.Reanalyze(r.Context(), r.PathValue("slug")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Re-analysis started"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	persona, err := s.personas.Refresh(r.Context(), r.PathValue("slug"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"message":    fmt.Sprintf("Refresh started for '%s'", persona.Name),
		"persona_id": persona.ID,
	})
}

func (s *Server) handleScheduler(w http.ResponseWriter, _ *http.Request) {
	if s.schedule == nil {
		writeJSON(w, http.StatusOK, map[string]any{"running": false, "cron": "", "jobs": []jobResponse{}})
		return
	}
	jobs := []jobResponse{}
	for _, job := range s.schedule.Jobs() {
		resp := jobResponse{ID: job.Key, Name: job.Name, Trigger: "cron[" + job.Spec + "]"}
		if !job.NextRun.IsZero() {
			next := job.NextRun.Format(time.RFC3339)
			resp.NextRun = &next
		}
		jobs = append(jobs, resp)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"running": s.schedule.Running(),
		"cron":    s.schedule.Spec(),
		"jobs":    jobs,
	})
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		writeError(w, http.StatusNotFound, "Persona not found")
	case errors.Is(err, ports.ErrDuplicate):
		writeError(w, http.StatusConflict, "Persona already exists")
	case errors.Is(err, usecase.ErrRunInProgress):
		writeError(w, http.StatusConflict, "A run is already in progress for this persona")
	case errors.Is(err, usecase.ErrInvalidInput),
		errors.Is(err, usecase.ErrNotReady),
		errors.Is(err, usecase.ErrNotRefreshable),
		errors.Is(err, usecase.ErrNotReanalyzable):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func queryInt(w http.ResponseWriter, r *http.Request, key string, fallback, minimum int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < minimum {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", key))
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
