package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/shared"
)

// TransferRepository persists [models.TransferRecord] documents.
//
// Counters live in INTEGER columns and the playlist entries in a JSON column,
// so integer values read back exactly as written.
type TransferRepository struct {
	db  *sql.DB
	now shared.Clock
}

// NewTransferRepository creates a new [TransferRepository].
func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db, now: time.Now}
}

// WithClock overrides the time source used for updated_at.
func (r *TransferRepository) WithClock(c shared.Clock) *TransferRepository {
	r.now = c
	return r
}

const transferColumns = `
	transfer_id, user_id, status, timestamp_started,
	total_playlists, total_tracks, completed_playlists, completed_tracks,
	failed_playlists, failed_tracks, not_found_tracks, playlists, error_details, updated_at
`

// Save upserts the full record keyed by transfer id. Every column is replaced.
func (r *TransferRepository) Save(ctx context.Context, rec *models.TransferRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	playlists := rec.Playlists
	if playlists == nil {
		playlists = []models.PlaylistTransferInfo{}
	}
	encoded, err := json.Marshal(playlists)
	if err != nil {
		return fmt.Errorf("failed to encode playlists: %w", err)
	}

	var errorDetails sql.NullString
	if rec.ErrorDetails != "" {
		errorDetails = sql.NullString{String: rec.ErrorDetails, Valid: true}
	}

	rec.LastUpdated = r.now.Unix()

	query := `INSERT INTO transfers (` + transferColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (transfer_id) DO UPDATE SET
			user_id = excluded.user_id,
			status = excluded.status,
			timestamp_started = excluded.timestamp_started,
			total_playlists = excluded.total_playlists,
			total_tracks = excluded.total_tracks,
			completed_playlists = excluded.completed_playlists,
			completed_tracks = excluded.completed_tracks,
			failed_playlists = excluded.failed_playlists,
			failed_tracks = excluded.failed_tracks,
			not_found_tracks = excluded.not_found_tracks,
			playlists = excluded.playlists,
			error_details = excluded.error_details,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		rec.TransferID, rec.UserID, string(rec.Status), rec.TimestampStarted,
		rec.TotalPlaylists, rec.TotalTracks, rec.CompletedPlaylists, rec.CompletedTracks,
		rec.FailedPlaylists, rec.FailedTracks, rec.NotFoundTracks, string(encoded), errorDetails, rec.LastUpdated,
	)
	if err != nil {
		return persistenceErr("save transfer", err)
	}

	return nil
}

// Get loads a record. An unknown id yields (nil, nil): callers treat a nil record as not found.
func (r *TransferRepository) Get(ctx context.Context, transferID string) (*models.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE transfer_id = ?`

	rec, err := scanTransfer(r.db.QueryRowContext(ctx, query, transferID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceErr("get transfer", err)
	}
	return rec, nil
}

// ListByUser returns a user's transfers, newest first. A limit of zero or less returns all of them.
func (r *TransferRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE user_id = ? ORDER BY timestamp_started DESC, transfer_id ASC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistenceErr("query transfers", err)
	}
	defer rows.Close()

	records := []*models.TransferRecord{}
	for rows.Next() {
		rec, err := scanTransfer(rows)
		if err != nil {
			return nil, persistenceErr("scan transfer", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate transfers", err)
	}

	return records, nil
}

func scanTransfer(s scanner) (*models.TransferRecord, error) {
	var (
		rec          models.TransferRecord
		status       string
		playlists    string
		errorDetails sql.NullString
	)

	err := s.Scan(
		&rec.TransferID, &rec.UserID, &status, &rec.TimestampStarted,
		&rec.TotalPlaylists, &rec.TotalTracks, &rec.CompletedPlaylists, &rec.CompletedTracks,
		&rec.FailedPlaylists, &rec.FailedTracks, &rec.NotFoundTracks, &playlists, &errorDetails, &rec.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = models.TransferStatus(status)
	rec.ErrorDetails = errorDetails.String
	rec.Playlists = []models.PlaylistTransferInfo{}
	if err := json.Unmarshal([]byte(playlists), &rec.Playlists); err != nil {
		return nil, fmt.Errorf("failed to decode playlists: %w", err)
	}

	return &rec, nil
}
