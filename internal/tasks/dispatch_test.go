package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/song-migrations/internal/bus"
	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/shared"
	tu "github.com/desertthunder/song-migrations/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	f.calls++
	return shared.ErrPublishFailed
}

type dispatchFixture struct {
	store  *tu.MemoryTransferStore
	tokens *stubTokens
	source *tu.MockSourceCatalog
	bus    *bus.MemoryBus
	d      *Dispatcher
}

func newDispatchFixture() *dispatchFixture {
	f := &dispatchFixture{
		store:  tu.NewMemoryTransferStore(),
		tokens: &stubTokens{token: "sp-token"},
		source: &tu.MockSourceCatalog{Tracks: map[string]models.PlaylistData{
			"pl-1": {PlaylistName: "Road Trip", Tracks: tracks("One", "Two")},
			"pl-2": {PlaylistName: "Focus", Tracks: tracks("Three")},
			"pl-e": {PlaylistName: "Empty"},
		}},
		bus: bus.NewMemoryBus(quietLogger()),
	}
	f.d = NewDispatcher(f.store, f.tokens, f.source, f.bus, "", quietLogger()).
		WithClock(func() time.Time { return time.Unix(1700000000, 0) })
	f.d.newID = func() string { return "t-1" }
	return f
}

func (f *dispatchFixture) job(t *testing.T) models.TransferJob {
	t.Helper()
	var job models.TransferJob
	n := f.bus.Drain(context.Background(), DefaultTopic, func(ctx context.Context, p []byte) error {
		return json.Unmarshal(p, &job)
	})
	require.Equal(t, 1, n)
	return job
}

func TestDispatcher_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("records intent and publishes job", func(t *testing.T) {
		f := newDispatchFixture()

		id, err := f.d.Dispatch(ctx, "u-1", []string{"pl-1", "pl-2"})
		require.NoError(t, err)
		assert.Equal(t, "t-1", id)

		rec, err := f.store.Get(ctx, "t-1")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, models.StatusInProgress, rec.Status)
		assert.Equal(t, 2, rec.TotalPlaylists)
		assert.Equal(t, int64(1700000000), rec.TimestampStarted)
		assert.Empty(t, rec.Playlists)

		job := f.job(t)
		assert.Equal(t, "t-1", job.TransferID)
		assert.Equal(t, "u-1", job.UserID)
		require.Len(t, job.PlaylistsData, 2)
		assert.Equal(t, "Road Trip", job.PlaylistsData[0].PlaylistName)
		assert.Equal(t, "pl-2", job.PlaylistsData[1].PlaylistID)
		assert.Equal(t, 3, job.TotalTracks())
		assert.Equal(t, []string{"u-1"}, f.tokens.users)
	})

	t.Run("invalid input writes nothing", func(t *testing.T) {
		for _, tc := range []struct {
			user string
			ids  []string
		}{
			{"", []string{"pl-1"}},
			{"u-1", nil},
			{"u-1", []string{}},
		} {
			f := newDispatchFixture()
			_, err := f.d.Dispatch(ctx, tc.user, tc.ids)
			assert.True(t, errors.Is(err, shared.ErrValidation))
			assert.Zero(t, f.store.Len())
			assert.Zero(t, f.bus.Pending(DefaultTopic))
		}
	})

	t.Run("record save failure aborts", func(t *testing.T) {
		f := newDispatchFixture()
		f.store.SaveErr = shared.ErrPersistence

		_, err := f.d.Dispatch(ctx, "u-1", []string{"pl-1"})
		assert.True(t, errors.Is(err, shared.ErrPersistence))
		assert.Empty(t, f.tokens.users)
		assert.Zero(t, f.bus.Pending(DefaultTopic))
	})

	t.Run("invalid source token leaves orphaned record", func(t *testing.T) {
		f := newDispatchFixture()
		f.tokens.err = shared.ErrNotAuthenticated

		_, err := f.d.Dispatch(ctx, "u-1", []string{"pl-1"})
		assert.True(t, errors.Is(err, shared.ErrNotAuthenticated))

		rec, _ := f.store.Get(ctx, "t-1")
		require.NotNil(t, rec)
		assert.Equal(t, models.StatusInProgress, rec.Status)
		assert.Empty(t, f.source.Fetched)
		assert.Zero(t, f.bus.Pending(DefaultTopic))
	})

	t.Run("playlist fetch failure aborts the whole dispatch", func(t *testing.T) {
		f := newDispatchFixture()
		f.source.TrackErrs = map[string]error{"pl-2": shared.ErrAPIRequest}

		_, err := f.d.Dispatch(ctx, "u-1", []string{"pl-1", "pl-2", "pl-e"})
		assert.True(t, errors.Is(err, shared.ErrAPIRequest))
		assert.Equal(t, []string{"pl-1", "pl-2"}, f.source.Fetched)
		assert.Zero(t, f.bus.Pending(DefaultTopic))
	})

	t.Run("publish failure leaves record in progress", func(t *testing.T) {
		f := newDispatchFixture()
		pub := &failingPublisher{}
		f.d.pub = pub

		_, err := f.d.Dispatch(ctx, "u-1", []string{"pl-1"})
		assert.True(t, errors.Is(err, shared.ErrPublishFailed))
		assert.Equal(t, 1, pub.calls)

		rec, _ := f.store.Get(ctx, "t-1")
		assert.Equal(t, models.StatusInProgress, rec.Status)
	})

	t.Run("no tracks completes without publishing", func(t *testing.T) {
		f := newDispatchFixture()

		id, err := f.d.Dispatch(ctx, "u-1", []string{"pl-e"})
		require.NoError(t, err)
		assert.Zero(t, f.bus.Pending(DefaultTopic))

		rec, _ := f.store.Get(ctx, id)
		assert.Equal(t, models.StatusCompleted, rec.Status)
		assert.Equal(t, 1, rec.CompletedPlaylists)
		assert.Equal(t, rec.TotalPlaylists, rec.CompletedPlaylists+rec.FailedPlaylists)
		require.Len(t, rec.Playlists, 1)
		assert.Equal(t, "Empty", rec.Playlists[0].PlaylistName)
	})

	t.Run("custom topic", func(t *testing.T) {
		f := newDispatchFixture()
		f.d.topic = "jobs"
		_, err := f.d.Dispatch(ctx, "u-1", []string{"pl-1"})
		require.NoError(t, err)
		assert.Equal(t, 1, f.bus.Pending("jobs"))
	})
}
