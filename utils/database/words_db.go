package database

import (
	"context"
	"fmt"

	"namewatch/model"
)

// ListWords returns every configured forbidden word.
func (s *Store) ListWords(ctx context.Context) ([]model.Word, error) {
	var words []model.Word
	if err := s.db.SelectContext(ctx, &words, `SELECT word, escalate FROM words ORDER BY word`); err != nil {
		return nil, fmt.Errorf("failed to list words: %w", err)
	}
	return words, nil
}

// SeedWords inserts words that are not present yet. Existing rows keep their tier.
func (s *Store) SeedWords(ctx context.Context, words []model.Word) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := tx.Rebind(`INSERT INTO words (word, escalate) VALUES (?, ?) ON CONFLICT (word) DO NOTHING`)
	inserted := 0
	for _, w := range words {
		if w.Word == "" {
			continue
		}
		result, err := tx.ExecContext(ctx, query, w.Word, w.Escalate)
		if err != nil {
			return 0, fmt.Errorf("failed to seed word %q: %w", w.Word, err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit seeded words: %w", err)
	}
	return inserted, nil
}
