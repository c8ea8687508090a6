package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"PersonaPipeline/internal/domain"
	"PersonaPipeline/internal/ports"
)

var personaColumns = []string{
	"id", "name", "slug", "source_url", "twitter_url", "platform", "max_videos", "status",
	"system_prompt", "personality_summary", "speaking_style", "topics", "catchphrases",
	"vocabulary", "tone_descriptors", "total_content", "total_words", "error_message",
	"created_at", "updated_at",
}

// CreatePersona inserts a pending persona. A taken slug yields ports.ErrDuplicate.
func (s *Store) CreatePersona(ctx context.Context, p domain.NewPersona) (domain.Persona, error) {
	now := s.timestamp()
	query, args, err := s.sb.Insert("persona_agents").
		Columns("name", "slug", "source_url", "twitter_url", "platform", "max_videos", "status",
			"total_content", "total_words", "created_at", "updated_at").
		Values(p.Name, domain.Slugify(p.Name), p.SourceURL, p.TwitterURL, string(p.Platform), p.MaxVideos,
			string(domain.StatusPending), 0, 0, now, now).
		Suffix("ON CONFLICT (slug) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return domain.Persona{}, fmt.Errorf("build insert persona: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Persona{}, fmt.Errorf("persona slug %q: %w", domain.Slugify(p.Name), ports.ErrDuplicate)
		}
		return domain.Persona{}, fmt.Errorf("insert persona: %w", err)
	}

	return s.PersonaByID(ctx, id)
}

// PersonaByID loads one persona.
func (s *Store) PersonaByID(ctx context.Context, id int64) (domain.Persona, error) {
	return s.getPersona(ctx, sq.Eq{"id": id})
}

// PersonaBySlug loads one persona by its external identifier.
func (s *Store) PersonaBySlug(ctx context.Context, slug string) (domain.Persona, error) {
	return s.getPersona(ctx, sq.Eq{"slug": slug})
}

func (s *Store) getPersona(ctx context.Context, where sq.Eq) (domain.Persona, error) {
	query, args, err := s.sb.Select(personaColumns...).From("persona_agents").Where(where).ToSql()
	if err != nil {
		return domain.Persona{}, fmt.Errorf("build select persona: %w", err)
	}
	persona, err := scanPersona(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Persona{}, ports.ErrNotFound
	}
	if err != nil {
		return domain.Persona{}, fmt.Errorf("select persona: %w", err)
	}
	return persona, nil
}

// ListPersonas returns every persona, newest first.
func (s *Store) ListPersonas(ctx context.Context) ([]domain.Persona, error) {
	return s.listPersonas(ctx, s.sb.Select(personaColumns...).From("persona_agents").OrderBy("id DESC"))
}

// ListPersonasByStatus returns personas currently in one status.
func (s *Store) ListPersonasByStatus(ctx context.Context, status domain.Status) ([]domain.Persona, error) {
	return s.listPersonas(ctx, s.sb.Select(personaColumns...).From("persona_agents").
		Where(sq.Eq{"status": string(status)}).OrderBy("id"))
}

func (s *Store) listPersonas(ctx context.Context, builder sq.SelectBuilder) ([]domain.Persona, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list personas: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query personas: %w", err)
	}
	defer rows.Close()

	var personas []domain.Persona
	for rows.Next() {
		persona, err := scanPersona(rows)
		if err != nil {
			return nil, fmt.Errorf("scan persona: %w", err)
		}
		personas = append(personas, persona)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return personas, nil
}

// UpdatePersonaStatus sets status and error message; an empty message clears it.
func (s *Store) UpdatePersonaStatus(ctx context.Context, id int64, status domain.Status, errorMessage string) error {
	return s.execAffecting(ctx, s.sb.Update("persona_agents").
		Set("status", string(status)).
		Set("error_message", nullString(errorMessage)).
		Set("updated_at", s.timestamp()).
		Where(sq.Eq{"id": id}), "update persona status")
}

// UpdatePersonaProfile overwrites the derived profile and the aggregate counters.
func (s *Store) UpdatePersonaProfile(ctx context.Context, id int64, profile domain.Profile, totals domain.Totals) error {
	style, err := marshalJSON(profile.SpeakingStyle, "{}")
	if err != nil {
		return fmt.Errorf("encode speaking style: %w", err)
	}
	lists := make(map[string]string, 4)
	for column, values := range map[string][]string{
		"topics":           profile.Topics,
		"catchphrases":     profile.Catchphrases,
		"vocabulary":       profile.Vocabulary,
		"tone_descriptors": profile.ToneDescriptors,
	} {
		encoded, err := marshalJSON(values, "[]")
		if err != nil {
			return fmt.Errorf("encode %s: %w", column, err)
		}
		lists[column] = encoded
	}

	return s.execAffecting(ctx, s.sb.Update("persona_agents").
		Set("system_prompt", profile.SystemPrompt).
		Set("personality_summary", profile.PersonalitySummary).
		Set("speaking_style", style).
		Set("topics", lists["topics"]).
		Set("catchphrases", lists["catchphrases"]).
		Set("vocabulary", lists["vocabulary"]).
		Set("tone_descriptors", lists["tone_descriptors"]).
		Set("total_content", totals.Content).
		Set("total_words", totals.Words).
		Set("updated_at", s.timestamp()).
		Where(sq.Eq{"id": id}), "update persona profile")
}

// DeletePersona removes the persona with its items and outputs.
func (s *Store) DeletePersona(ctx context.Context, slug string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := s.sb.Select("id").From("persona_agents").Where(sq.Eq{"slug": slug}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build persona lookup: %w", err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lookup persona: %w", err)
	}

	for _, table := range []string{"persona_outputs", "persona_content"} {
		query, args, err := s.sb.Delete(table).Where(sq.Eq{"persona_id": id}).ToSql()
		if err != nil {
			return false, fmt.Errorf("build delete %s: %w", table, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return false, fmt.Errorf("delete %s: %w", table, err)
		}
	}

	query, args, err = s.sb.Delete("persona_agents").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete persona: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return false, fmt.Errorf("delete persona: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete: %w", err)
	}
	return true, nil
}

func scanPersona(row rowScanner) (domain.Persona, error) {
	var (
		p                                  domain.Persona
		platform, status                   string
		systemPrompt, summary, style       sql.NullString
		topics, catchphrases, vocab, tones sql.NullString
		errorMessage                       sql.NullString
		createdAt, updatedAt               string
	)
	if err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.SourceURL, &p.TwitterURL, &platform, &p.MaxVideos, &status,
		&systemPrompt, &summary, &style, &topics, &catchphrases,
		&vocab, &tones, &p.Totals.Content, &p.Totals.Words, &errorMessage,
		&createdAt, &updatedAt,
	); err != nil {
		return domain.Persona{}, err
	}

	p.Platform = domain.Platform(platform)
	p.Status = domain.Status(status)
	p.Profile.SystemPrompt = systemPrompt.String
	p.Profile.PersonalitySummary = summary.String
	p.ErrorMessage = errorMessage.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)

	decode := []struct {
		raw  sql.NullString
		dest any
	}{
		{style, &p.Profile.SpeakingStyle},
		{topics, &p.Profile.Topics},
		{catchphrases, &p.Profile.Catchphrases},
		{vocab, &p.Profile.Vocabulary},
		{tones, &p.Profile.ToneDescriptors},
	}
	for _, field := range decode {
		if err := unmarshalJSON(field.raw, field.dest); err != nil {
			return domain.Persona{}, fmt.Errorf("decode profile: %w", err)
		}
	}
	return p, nil
}
