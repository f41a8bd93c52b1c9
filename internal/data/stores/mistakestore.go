package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/colonyops/linglenz/internal/core/mistake"
	"github.com/colonyops/linglenz/internal/data/db"
	"github.com/google/uuid"
)

// MistakeStore implements mistake.Store using SQLite.
type MistakeStore struct {
	db *db.DB
}

var _ mistake.Store = (*MistakeStore)(nil)

// NewMistakeStore creates a new SQLite-backed mistake store.
func NewMistakeStore(db *db.DB) *MistakeStore {
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

	categories, err := json.Marshal(rec.Categories)
	if err != nil {
		return mistake.Record{}, fmt.Errorf("failed to marshal categories: %w", err)
	}

	var isCorrect int64
	if rec.IsCorrect {
		isCorrect = 1
	}

	err = s.db.Queries().InsertMistake(ctx, db.Mistake{
		ID:            rec.ID,
		SessionID:     rec.SessionID,
		OwnerID:       rec.OwnerID,
		OriginalText:  rec.Original,
		CorrectedText: rec.Corrected,
		Explanation:   rec.Explanation,
		Categories:    string(categories),
		IsCorrect:     isCorrect,
		Source:        string(rec.Source),
		CreatedAt:     rec.CreatedAt.UnixNano(),
	})
	if err != nil {
		return mistake.Record{}, fmt.Errorf("failed to insert mistake: %w", err)
	}

	return rec, nil
}

// Delete removes a record. Returns ErrNotFound if not found.
func (s *MistakeStore) Delete(ctx context.Context, id string) error {
	n, err := s.db.Queries().DeleteMistake(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete mistake: %w", err)
	}
	if n == 0 {
		return mistake.ErrNotFound
	}
	return nil
}

// ListBySession returns a session's records, newest first.
func (s *MistakeStore) ListBySession(ctx context.Context, sessionID string) ([]mistake.Record, error) {
	rows, err := s.db.Queries().ListMistakesBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mistakes: %w", err)
	}

	out := make([]mistake.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := rowToRecord(row)
		if err != nil {
			return nil, fmt.Errorf("failed to convert mistake %s: %w", row.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// rowToRecord converts a db.Mistake to a mistake.Record.
func rowToRecord(row db.Mistake) (mistake.Record, error) {
	var categories []string
	if row.Categories != "" {
		if err := json.Unmarshal([]byte(row.Categories), &categories); err != nil {
			return mistake.Record{}, fmt.Errorf("failed to unmarshal categories: %w", err)
		}
	}

	return mistake.Record{
		ID:          row.ID,
		SessionID:   row.SessionID,
		OwnerID:     row.OwnerID,
		Original:    row.OriginalText,
		Corrected:   row.CorrectedText,
		Explanation: row.Explanation,
		Categories:  categories,
		IsCorrect:   row.IsCorrect != 0,
		Source:      mistake.Source(row.Source),
		CreatedAt:   time.Unix(0, row.CreatedAt),
	}, nil
}
