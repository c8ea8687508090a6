package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"PersonaPipeline/internal/domain"
)

// AppendOutput logs a chat or script exchange.
func (s *Store) AppendOutput(ctx context.Context, o domain.Output) error {
	query, args, err := s.sb.Insert("persona_outputs").
		Columns("persona_id", "prompt", "output", "output_type", "created_at").
		Values(o.PersonaID, o.Prompt, o.Output, o.OutputType, s.timestamp()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert output: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert output: %w", err)
	}
	return nil
}

// OutputsForPersona returns the latest outputs first.
func (s *Store) OutputsForPersona(ctx context.Context, personaID int64, limit int) ([]domain.Output, error) {
	builder := s.sb.Select("id", "persona_id", "prompt", "output", "output_type", "created_at").
		From("persona_outputs").
		Where(sq.Eq{"persona_id": personaID}).
		OrderBy("id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select outputs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outputs: %w", err)
	}
	defer rows.Close()

	var outputs []domain.Output
	for rows.Next() {
		var (
			o         domain.Output
			createdAt string
		)
		if err := rows.Scan(&o.ID, &o.PersonaID, &o.Prompt, &o.Output, &o.OutputType, &createdAt); err != nil {
			return nil, fmt.Errorf("scan output: %w", err)
		}
		o.CreatedAt = parseTime(createdAt)
		outputs = append(outputs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return outputs, nil
}
