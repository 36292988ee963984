package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"namewatch/model"

	"github.com/jmoiron/sqlx"
)

// Store implements the moderation record sets on top of sqlx.
// Every mutation reports failure through its error; nothing is swallowed.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStore wraps an initialized database.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// DB exposes the underlying handle for callers that manage its lifetime.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}

// expectOne maps a conditioned single-row update that touched nothing to model.ErrNotFound.
func expectOne(result sql.Result, what string, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for %s %d: %w", what, id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no active %s with id %d: %w", what, id, model.ErrNotFound)
	}
	return nil
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
