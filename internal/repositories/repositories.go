package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/song-migrations/internal/shared"
)

// scanner is satisfied by [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

func persistenceErr(action string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", action, shared.ErrPersistence, err)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
