package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/services"
	"github.com/desertthunder/song-migrations/internal/shared"
)

const (
	DefaultBatchSize  = 50
	DefaultTrackDelay = 500 * time.Millisecond

	searchFilter = "songs"
	searchLimit  = 1
)

// MatchResult counts per-track outcomes. NotFound is a semantic miss, Failed an error.
type MatchResult struct {
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	NotFound   int `json:"not_found"`
}

// Matcher searches the destination catalog for each source track and adds the top hit to a playlist.
//
// Tracks are processed one at a time with a fixed delay after each; batches only group log output.
type Matcher struct {
	dest      services.DestinationCatalog
	batchSize int
	delay     time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
	logger    *log.Logger
}

func NewMatcher(dest services.DestinationCatalog, logger *log.Logger) *Matcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Matcher{
		dest:      dest,
		batchSize: DefaultBatchSize,
		delay:     DefaultTrackDelay,
		sleep:     sleepCtx,
		logger:    shared.WithLogger(logger, "component", "track_matcher"),
	}
}

// WithBatchSize sets the logical batch size. Non-positive values keep the default.
func (m *Matcher) WithBatchSize(n int) *Matcher {
	if n > 0 {
		m.batchSize = n
	}
	return m
}

// WithDelay sets the pause taken after every track.
func (m *Matcher) WithDelay(d time.Duration) *Matcher {
	if d >= 0 {
		m.delay = d
	}
	return m
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// MatchAndAdd runs every track through search-then-add against playlistID.
//
// Per-track errors are counted, never returned. The only error is ctx ending early,
// in which case the tracks not yet attempted are counted as failed.
func (m *Matcher) MatchAndAdd(
	ctx context.Context,
	token, playlistID string,
	tracks []models.TrackDescriptor,
	progress chan<- ProgressUpdate,
) (MatchResult, error) {
	var res MatchResult
	total := len(tracks)
	batches := (total + m.batchSize - 1) / m.batchSize

	for b := 0; b < batches; b++ {
		start := b * m.batchSize
		end := min(start+m.batchSize, total)
		m.logger.Debug("processing batch", "playlist_id", playlistID, "batch", b+1, "of", batches, "tracks", end-start)

		for i := start; i < end; i++ {
			sendProgress(progress, matchingTrackUpdate(i+1, total, tracks[i]))
			m.matchOne(ctx, token, playlistID, tracks[i], &res)

			if err := m.sleep(ctx, m.delay); err != nil {
				res.Failed += total - (i + 1)
				m.logger.Warn("matching interrupted", "playlist_id", playlistID, "remaining", total-(i+1))
				return res, err
			}
		}
	}

	m.logger.Info("matching finished", "playlist_id", playlistID,
		"successful", res.Successful, "failed", res.Failed, "not_found", res.NotFound)
	return res, nil
}

func (m *Matcher) matchOne(ctx context.Context, token, playlistID string, track models.TrackDescriptor, res *MatchResult) {
	query := track.SearchQuery()

	results, err := m.dest.Search(ctx, token, query, searchFilter, searchLimit)
	if err != nil {
		m.logger.Warn("search failed", "query", query, "error", err)
		res.Failed++
		return
	}
	if len(results) == 0 {
		m.logger.Debug("no match", "query", query)
		res.NotFound++
		return
	}

	if err := m.dest.AddItems(ctx, token, playlistID, []string{results[0].VideoID}); err != nil {
		m.logger.Warn("add to playlist failed", "query", query, "video_id", results[0].VideoID, "error", err)
		res.Failed++
		return
	}
	res.Successful++
}
