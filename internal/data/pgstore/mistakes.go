package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/colonyops/linglenz/internal/core/mistake"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MistakeStore implements mistake.Store on PostgreSQL.
type MistakeStore struct {
	db *DB
}

var _ mistake.Store = (*MistakeStore)(nil)

// NewMistakeStore creates a PostgreSQL-backed mistake store.
func NewMistakeStore(db *DB) *MistakeStore {
	return &MistakeStore{db: db}
}

// Insert persists a resolved entry under a fresh durable id.
func (s *MistakeStore) Insert(ctx context.Context, rec mistake.Record) (mistake.Record, error) {
	rec.ID = uuid.NewString()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Categories == nil {
		rec.Categories = []string{}
	}

	_, err := s.db.pool.Exec(ctx, `
		INSERT INTO mistakes (id, session_id, owner_id, original_text, corrected_text,
			explanation, categories, is_correct, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.SessionID, rec.OwnerID, rec.Original, rec.Corrected,
		rec.Explanation, rec.Categories, rec.IsCorrect, string(rec.Source), rec.CreatedAt)
	if err != nil {
		return mistake.Record{}, fmt.Errorf("failed to insert mistake: %w", err)
	}
	return rec, nil
}

// Delete removes a record. Returns ErrNotFound if not found.
func (s *MistakeStore) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return mistake.ErrNotFound
	}

	tag, err := s.db.pool.Exec(ctx, `DELETE FROM mistakes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete mistake: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return mistake.ErrNotFound
	}
	return nil
}

// ListBySession returns a session's records, newest first.
func (s *MistakeStore) ListBySession(ctx context.Context, sessionID string) ([]mistake.Record, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT id::text, session_id, owner_id, original_text, corrected_text,
			explanation, categories, is_correct, source, created_at
		FROM mistakes WHERE session_id = $1
		ORDER BY created_at DESC, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mistakes: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (mistake.Record, error) {
		var (
			rec    mistake.Record
			source string
		)
		err := row.Scan(&rec.ID, &rec.SessionID, &rec.OwnerID, &rec.Original, &rec.Corrected,
			&rec.Explanation, &rec.Categories, &rec.IsCorrect, &source, &rec.CreatedAt)
		rec.Source = mistake.Source(source)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list mistakes: %w", err)
	}
	return out, nil
}
