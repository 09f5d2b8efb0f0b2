package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/song-migrations/internal/bus"
	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/services"
	"github.com/desertthunder/song-migrations/internal/shared"
)

// Dispatcher is phase one of a transfer: record intent, collect source tracks, publish the job.
type Dispatcher struct {
	store  TransferStore
	tokens TokenSource
	source services.SourceCatalog
	pub    bus.Publisher
	topic  string
	logger *log.Logger
	now    shared.Clock
	newID  func() string
}

// NewDispatcher wires a [Dispatcher]. tokens is the source service's token source.
func NewDispatcher(
	store TransferStore,
	tokens TokenSource,
	source services.SourceCatalog,
	pub bus.Publisher,
	topic string,
	logger *log.Logger,
) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	if topic == "" {
		topic = DefaultTopic
	}
	return &Dispatcher{
		store:  store,
		tokens: tokens,
		source: source,
		pub:    pub,
		topic:  topic,
		logger: shared.WithLogger(logger, "component", "dispatcher"),
		now:    time.Now,
		newID:  shared.GenerateID,
	}
}

// Topic is the bus topic jobs are published to.
func (d *Dispatcher) Topic() string { return d.topic }

func (d *Dispatcher) WithClock(c shared.Clock) *Dispatcher {
	d.now = c
	return d
}

// Dispatch starts a transfer of playlistIDs for userID and returns its id.
//
// Once the initial record is saved, later failures (token, fetch, publish) leave it
// in progress; the caller gets the error and no job runs.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, playlistIDs []string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: userId", shared.ErrMissingArgument)
	}
	if len(playlistIDs) == 0 {
		return "", fmt.Errorf("%w: playlistIds", shared.ErrMissingArgument)
	}

	transferID := d.newID()
	logger := d.logger.With("transfer_id", transferID, "user_id", userID)

	rec := models.NewTransferRecord(transferID, userID, len(playlistIDs), time.Unix(d.now.Unix(), 0))
	if err := d.store.Save(ctx, rec); err != nil {
		logger.Error("failed to create transfer record", "error", err)
		return "", err
	}

	token, err := d.tokens.AccessToken(ctx, userID)
	if err != nil {
		logger.Warn("source token unavailable", "error", err)
		return "", err
	}

	job := models.TransferJob{TransferID: transferID, UserID: userID}
	for _, id := range playlistIDs {
		name, tracks, err := d.source.PlaylistTracks(ctx, token, id)
		if err != nil {
			logger.Error("failed to fetch playlist", "playlist_id", id, "error", err)
			return "", fmt.Errorf("failed to fetch playlist %s: %w", id, err)
		}
		job.PlaylistsData = append(job.PlaylistsData, models.PlaylistData{
			PlaylistID:   id,
			PlaylistName: name,
			Tracks:       tracks,
		})
	}

	if job.TotalTracks() == 0 {
		logger.Info("no tracks to transfer, closing record")
		return transferID, d.closeEmpty(ctx, rec, job)
	}

	payload, err := shared.MarshalJSON(job, false)
	if err != nil {
		return "", fmt.Errorf("failed to encode transfer job: %w", err)
	}
	if err := d.pub.Publish(ctx, d.topic, payload); err != nil {
		logger.Error("failed to publish transfer job", "topic", d.topic, "error", err)
		return "", err
	}

	logger.Info("transfer dispatched", "playlists", len(job.PlaylistsData), "tracks", job.TotalTracks())
	return transferID, nil
}

// closeEmpty completes a record whose playlists hold no tracks, one zero-track entry per playlist.
func (d *Dispatcher) closeEmpty(ctx context.Context, rec *models.TransferRecord, job models.TransferJob) error {
	for _, p := range job.PlaylistsData {
		rec.AddPlaylist(models.PlaylistTransferInfo{
			SourcePlaylistID: p.PlaylistID,
			PlaylistName:     p.PlaylistName,
			Status:           models.StatusCompleted,
		})
	}
	rec.Status = models.StatusCompleted
	return d.store.Save(ctx, rec)
}
