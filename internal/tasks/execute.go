package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/services"
	"github.com/desertthunder/song-migrations/internal/shared"
)

// TokenRefreshFailed is the error_details written when no destination token can be obtained.
const TokenRefreshFailed = "Token refresh failed"

const playlistDescription = "Transferred from Spotify"

// Executor is phase two of a transfer: it consumes one job message and migrates its playlists.
type Executor struct {
	store      TransferStore
	tokens     TokenSource
	dest       services.DestinationCatalog
	matcher    *Matcher
	checkpoint bool
	logger     *log.Logger
	now        shared.Clock
}

// NewExecutor wires an [Executor]. tokens is the destination service's token source.
func NewExecutor(
	store TransferStore,
	tokens TokenSource,
	dest services.DestinationCatalog,
	matcher *Matcher,
	logger *log.Logger,
) *Executor {
	if logger == nil {
		logger = log.Default()
	}
	if matcher == nil {
		matcher = NewMatcher(dest, logger)
	}
	return &Executor{
		store:   store,
		tokens:  tokens,
		dest:    dest,
		matcher: matcher,
		logger:  shared.WithLogger(logger, "component", "executor"),
		now:     time.Now,
	}
}

// WithCheckpoint makes the executor persist the record after every playlist, not only at the end.
func (e *Executor) WithCheckpoint(on bool) *Executor {
	e.checkpoint = on
	return e
}

func (e *Executor) WithClock(c shared.Clock) *Executor {
	e.now = c
	return e
}

// HandleMessage decodes a bus payload and executes it. It is a [bus.Handler].
func (e *Executor) HandleMessage(ctx context.Context, payload []byte) error {
	var job models.TransferJob
	if err := json.Unmarshal(payload, &job); err != nil {
		e.logger.Error("dropping malformed transfer job", "error", err)
		return fmt.Errorf("%w: malformed transfer job: %v", shared.ErrInvalidArgument, err)
	}
	if job.TransferID == "" || job.UserID == "" {
		e.logger.Error("dropping transfer job without ids")
		return fmt.Errorf("%w: transfer job requires transfer_id and user_id", shared.ErrMissingArgument)
	}

	_, err := e.Execute(ctx, job, nil)
	return err
}

// Execute migrates every playlist in job and returns the final record.
//
// A playlist failure is recorded on its entry and processing moves on. Failing to
// obtain a destination token fails the whole record before any playlist is touched.
func (e *Executor) Execute(ctx context.Context, job models.TransferJob, progress chan<- ProgressUpdate) (*models.TransferRecord, error) {
	logger := e.logger.With("transfer_id", job.TransferID, "user_id", job.UserID)
	sendProgress(progress, loadingUpdate(job))

	rec, err := e.load(ctx, job, logger)
	if err != nil {
		sendProgress(progress, failedUpdate(err.Error()))
		return nil, err
	}
	if rec.Finished() {
		logger.Warn("transfer already finished, ignoring redelivered job", "status", rec.Status)
		return rec, nil
	}
	resetProgress(rec, job, logger)

	rec.Status = models.StatusInProgress
	rec.TotalTracks = job.TotalTracks()

	sendProgress(progress, validatingTokenUpdate())
	token, err := e.tokens.AccessToken(ctx, job.UserID)
	if err != nil {
		logger.Error("destination token unavailable", "error", err)
		reason := TokenRefreshFailed
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			reason = err.Error()
		}
		rec.Fail(reason)
		sendProgress(progress, failedUpdate(reason))
		if saveErr := e.store.Save(ctx, rec); saveErr != nil {
			return rec, saveErr
		}
		return rec, err
	}

	total := len(job.PlaylistsData)
	for i, p := range job.PlaylistsData {
		info := e.transferPlaylist(ctx, token, p, i+1, total, progress)
		rec.AddPlaylist(info)
		sendProgress(progress, playlistDoneUpdate(i+1, total, info))

		if e.checkpoint && i+1 < total {
			if err := e.store.Save(ctx, rec); err != nil {
				logger.Warn("checkpoint failed", "playlist_id", p.PlaylistID, "error", err)
			}
		}
	}

	rec.Status = models.StatusCompleted
	if err := e.store.Save(ctx, rec); err != nil {
		logger.Error("failed to persist transfer record", "error", err)
		sendProgress(progress, failedUpdate(err.Error()))
		return rec, err
	}

	logger.Info("transfer completed",
		"completed_playlists", rec.CompletedPlaylists, "failed_playlists", rec.FailedPlaylists,
		"completed_tracks", rec.CompletedTracks, "failed_tracks", rec.FailedTracks, "not_found_tracks", rec.NotFoundTracks)
	sendProgress(progress, completeUpdate(rec))
	return rec, nil
}

func (e *Executor) load(ctx context.Context, job models.TransferJob, logger *log.Logger) (*models.TransferRecord, error) {
	rec, err := e.store.Get(ctx, job.TransferID)
	if err != nil {
		logger.Error("failed to load transfer record", "error", err)
		return nil, err
	}
	if rec == nil {
		logger.Warn("transfer record not found, starting a new one")
		rec = models.NewTransferRecord(job.TransferID, job.UserID, len(job.PlaylistsData), time.Unix(e.now.Unix(), 0))
	}
	return rec, nil
}

// resetProgress drops playlist entries left by an interrupted attempt so the rerun recounts from zero.
func resetProgress(rec *models.TransferRecord, job models.TransferJob, logger *log.Logger) {
	if len(rec.Playlists) > 0 {
		logger.Warn("discarding partial progress from an earlier attempt", "playlists", len(rec.Playlists))
		rec.Playlists = []models.PlaylistTransferInfo{}
		rec.CompletedPlaylists, rec.FailedPlaylists = 0, 0
		rec.CompletedTracks, rec.FailedTracks, rec.NotFoundTracks = 0, 0, 0
	}
	if rec.TotalPlaylists < len(job.PlaylistsData) {
		rec.TotalPlaylists = len(job.PlaylistsData)
	}
}

func (e *Executor) transferPlaylist(
	ctx context.Context,
	token string,
	p models.PlaylistData,
	step, total int,
	progress chan<- ProgressUpdate,
) models.PlaylistTransferInfo {
	info := models.PlaylistTransferInfo{
		SourcePlaylistID: p.PlaylistID,
		PlaylistName:     p.PlaylistName,
		Status:           models.StatusInProgress,
		TotalTracks:      len(p.Tracks),
	}
	logger := e.logger.With("playlist_id", p.PlaylistID)

	sendProgress(progress, creatingPlaylistUpdate(step, total, p.PlaylistName))
	destID, err := e.dest.CreatePlaylist(ctx, token, p.PlaylistName, playlistDescription)
	if err != nil {
		logger.Error("failed to create destination playlist", "error", err)
		info.Status = models.StatusFailed
		info.ErrorDetails = err.Error()
		return info
	}
	info.DestinationPlaylistID = destID

	res, err := e.matcher.MatchAndAdd(ctx, token, destID, p.Tracks, progress)
	info.CompletedTracks = res.Successful
	info.FailedTracks = res.Failed
	info.NotFoundTracks = res.NotFound
	if err != nil {
		info.Status = models.StatusFailed
		info.ErrorDetails = err.Error()
		return info
	}

	info.Status = models.StatusCompleted
	return info
}
