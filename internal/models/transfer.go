package models

import (
	"fmt"
	"time"
)

// TransferStatus is the lifecycle state of a transfer job or one of its playlists.
type TransferStatus string

const (
	StatusInProgress TransferStatus = "in_progress"
	StatusCompleted  TransferStatus = "completed"
	StatusFailed     TransferStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s TransferStatus) Valid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// PlaylistTransferInfo records the outcome of moving one source playlist.
type PlaylistTransferInfo struct {
	SourcePlaylistID      string         `json:"source_playlist_id"`
	DestinationPlaylistID string         `json:"destination_playlist_id,omitempty"`
	PlaylistName          string         `json:"playlist_name"`
	Status                TransferStatus `json:"status"`
	TotalTracks           int            `json:"total_tracks"`
	CompletedTracks       int            `json:"completed_tracks"`
	FailedTracks          int            `json:"failed_tracks"`
	NotFoundTracks        int            `json:"not_found_tracks"`
	ErrorDetails          string         `json:"error_details,omitempty"`
}

// TransferRecord tracks one transfer job end to end.
type TransferRecord struct {
	TransferID         string                 `json:"transfer_id"`
	UserID             string                 `json:"user_id"`
	Status             TransferStatus         `json:"status"`
	TimestampStarted   int64                  `json:"timestamp_started"`
	TotalPlaylists     int                    `json:"total_playlists"`
	TotalTracks        int                    `json:"total_tracks"`
	CompletedPlaylists int                    `json:"completed_playlists"`
	CompletedTracks    int                    `json:"completed_tracks"`
	FailedPlaylists    int                    `json:"failed_playlists"`
	FailedTracks       int                    `json:"failed_tracks"`
	NotFoundTracks     int                    `json:"not_found_tracks"`
	Playlists          []PlaylistTransferInfo `json:"playlists"`
	ErrorDetails       string                 `json:"error_details,omitempty"`
	LastUpdated        int64                  `json:"updated_at"`
}

// NewTransferRecord returns the initial in-progress record written at dispatch.
func NewTransferRecord(transferID, userID string, totalPlaylists int, started time.Time) *TransferRecord {
	return &TransferRecord{
		TransferID:       transferID,
		UserID:           userID,
		Status:           StatusInProgress,
		TimestampStarted: started.Unix(),
		TotalPlaylists:   totalPlaylists,
		Playlists:        []PlaylistTransferInfo{},
	}
}

func (r *TransferRecord) ID() string { return r.TransferID }
func (r *TransferRecord) CreatedAt() time.Time { return time.Unix(r.TimestampStarted, 0) }
func (r *TransferRecord) UpdatedAt() time.Time { return time.Unix(r.LastUpdated, 0) }

// AddPlaylist appends info and folds its counters into the record totals.
func (r *TransferRecord) AddPlaylist(info PlaylistTransferInfo) {
	switch info.Status {
	case StatusCompleted:
		r.CompletedPlaylists++
	case StatusFailed:
		r.FailedPlaylists++
	}
	r.CompletedTracks += info.CompletedTracks
	r.FailedTracks += info.FailedTracks
	r.NotFoundTracks += info.NotFoundTracks
	r.Playlists = append(r.Playlists, info)
}

// Fail marks the whole record failed with the given reason.
func (r *TransferRecord) Fail(reason string) {
	r.Status = StatusFailed
	r.ErrorDetails = reason
}

// Finished reports whether the record has left the in-progress state.
func (r *TransferRecord) Finished() bool {
	return r.Status != StatusInProgress
}

// Validate checks the counter invariants.
func (r *TransferRecord) Validate() error {
	if r.TransferID == "" {
		return fmt.Errorf("transfer id is required")
	}
	if !r.Status.Valid() {
		return fmt.Errorf("invalid status %q", r.Status)
	}

	for _, n := range []int{
		r.TotalPlaylists, r.TotalTracks, r.CompletedPlaylists, r.CompletedTracks,
		r.FailedPlaylists, r.FailedTracks, r.NotFoundTracks,
	} {
		if n < 0 {
			return fmt.Errorf("counters must not be negative")
		}
	}

	if r.CompletedPlaylists+r.FailedPlaylists > r.TotalPlaylists {
		return fmt.Errorf("playlist counters exceed total: %d+%d > %d",
			r.CompletedPlaylists, r.FailedPlaylists, r.TotalPlaylists)
	}
	if r.TotalTracks > 0 && r.CompletedTracks+r.FailedTracks > r.TotalTracks {
		return fmt.Errorf("track counters exceed total: %d+%d > %d",
			r.CompletedTracks, r.FailedTracks, r.TotalTracks)
	}
	return nil
}
