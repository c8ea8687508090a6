package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"

	"PersonaPipeline/internal/domain"
	"PersonaPipeline/internal/ports"
)

var contentColumns = []string{
	"id", "persona_id", "source_url", "content_type", "title", "transcript", "metadata",
	"duration_secs", "word_count", "status", "error_message", "created_at",
}

// minKeywordLength filters short words out of relevance queries.
const minKeywordLength = 4

// CreateContent inserts an item. An existing (persona, source_url) pair
// yields ports.ErrDuplicate and leaves the stored row untouched.
func (s *Store) CreateContent(ctx context.Context, c domain.NewContent) (domain.ContentItem, error) {
	metadata, err := marshalJSON(c.Metadata, "{}")
	if err != nil {
		return domain.ContentItem{}, fmt.Errorf("encode metadata: %w", err)
	}
	status := c.Status
	if status == "" {
		status = domain.ContentPending
	}
	created := s.now()

	query, args, err := s.sb.Insert("persona_content").
		Columns("persona_id", "source_url", "content_type", "title", "transcript", "metadata",
			"duration_secs", "word_count", "status", "error_message", "created_at").
		Values(c.PersonaID, c.SourceURL, string(c.ContentType), nullString(c.Title), nullablePtr(c.Transcript), metadata,
			nullableInt(c.DurationSecs), nullableInt(c.WordCount), string(status), nullString(c.ErrorMessage), formatTime(created)).
		Suffix("ON CONFLICT (persona_id, source_url) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return domain.ContentItem{}, fmt.Errorf("build insert content: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ContentItem{}, fmt.Errorf("content %s: %w", c.SourceURL, ports.ErrDuplicate)
		}
		return domain.ContentItem{}, fmt.Errorf("insert content: %w", err)
	}

	return domain.ContentItem{
		ID:           id,
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
		CreatedAt:    created.UTC(),
	}, nil
}

// ContentForPersona lists a persona's items in insertion order.
func (s *Store) ContentForPersona(ctx context.Context, personaID int64, filter ports.ContentFilter) ([]domain.ContentItem, error) {
	builder := s.sb.Select(contentColumns...).From("persona_content").
		Where(sq.Eq{"persona_id": personaID}).
		OrderBy("id")
	if filter.Type != "" {
		builder = builder.Where(sq.Eq{"content_type": string(filter.Type)})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
		if filter.Offset > 0 {
			builder = builder.Offset(uint64(filter.Offset))
		}
	}
	return s.queryContent(ctx, builder)
}

// CountContent counts every item of a persona.
func (s *Store) CountContent(ctx context.Context, personaID int64) (int, error) {
	query, args, err := s.sb.Select("COUNT(*)").From("persona_content").
		Where(sq.Eq{"persona_id": personaID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count content: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count content: %w", err)
	}
	return total, nil
}

// ExistingSourceURLs returns the source URLs already recorded for a persona,
// whatever their status.
func (s *Store) ExistingSourceURLs(ctx context.Context, personaID int64) (map[string]struct{}, error) {
	query, args, err := s.sb.Select("source_url").From("persona_content").
		Where(sq.Eq{"persona_id": personaID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build source urls: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query source urls: %w", err)
	}
	defer rows.Close()

	urls := make(map[string]struct{})
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan source url: %w", err)
		}
		urls[url] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return urls, nil
}

// UpdateContentStatus moves an item along its lifecycle. Transcript and word
// count are only written when set on the update.
func (s *Store) UpdateContentStatus(ctx context.Context, id int64, update domain.ContentUpdate) error {
	builder := s.sb.Update("persona_content").
		Set("status", string(update.Status)).
		Set("error_message", nullString(update.ErrorMessage)).
		Where(sq.Eq{"id": id})
	if update.Transcript != nil {
		builder = builder.Set("transcript", *update.Transcript)
	}
	if update.WordCount != nil {
		builder = builder.Set("word_count", *update.WordCount)
	}
	return s.execAffecting(ctx, builder, "update content status")
}

// RelevantContent picks transcribed items mentioning words of query, falling
// back to the latest transcribed items when nothing matches.
func (s *Store) RelevantContent(ctx context.Context, personaID int64, query string, limit int) ([]domain.ContentItem, error) {
	if limit <= 0 {
		limit = 3
	}
	base := s.sb.Select(contentColumns...).From("persona_content").
		Where(sq.Eq{"persona_id": personaID}).
		Where(sq.NotEq{"transcript": nil}).
		OrderBy("id DESC").
		Limit(uint64(limit))

	if keywords := keywordsOf(query); len(keywords) > 0 {
		match := sq.Or{}
		for _, kw := range keywords {
			match = append(match, sq.Like{"LOWER(transcript)": "%" + kw + "%"})
		}
		items, err := s.queryContent(ctx, base.Where(match))
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			return items, nil
		}
	}
	return s.queryContent(ctx, base)
}

func keywordsOf(query string) []string {
	seen := make(map[string]struct{})
	var keywords []string
	for _, word := range strings.Fields(strings.ToLower(query)) {
		word = strings.Trim(word, ".,;:!?\"'()[]{}")
		if utf8.RuneCountInString(word) < minKeywordLength {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
	}
	return keywords
}

func (s *Store) queryContent(ctx context.Context, builder sq.SelectBuilder) ([]domain.ContentItem, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select content: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query content: %w", err)
	}
	defer rows.Close()

	var items []domain.ContentItem
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return items, nil
}

func scanContent(row rowScanner) (domain.ContentItem, error) {
	var (
		item                   domain.ContentItem
		contentType, status    string
		title, transcript      sql.NullString
		metadata, errorMessage sql.NullString
		duration, words        sql.NullInt64
		createdAt              string
	)
	if err := row.Scan(
		&item.ID, &item.PersonaID, &item.SourceURL, &contentType, &title, &transcript, &metadata,
		&duration, &words, &status, &errorMessage, &createdAt,
	); err != nil {
		return domain.ContentItem{}, err
	}

	item.ContentType = domain.ContentType(contentType)
	item.Status = domain.ContentStatus(status)
	item.Title = title.String
	item.ErrorMessage = errorMessage.String
	item.CreatedAt = parseTime(createdAt)
	if transcript.Valid {
		text := transcript.String
		item.Transcript = &text
	}
	if duration.Valid {
		v := int(duration.Int64)
		item.DurationSecs = &v
	}
	if words.Valid {
		v := int(words.Int64)
		item.WordCount = &v
	}
	if err := unmarshalJSON(metadata, &item.Metadata); err != nil {
		return domain.ContentItem{}, fmt.Errorf("decode metadata: %w", err)
	}
	return item, nil
}

func nullablePtr(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullableInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}
