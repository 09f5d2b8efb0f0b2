package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/shared"
	tu "github.com/desertthunder/song-migrations/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type executeFixture struct {
	store  *tu.MemoryTransferStore
	tokens *stubTokens
	dest   *tu.MockDestinationCatalog
	e      *Executor
}

func newExecuteFixture(t *testing.T) *executeFixture {
	t.Helper()
	f := &executeFixture{
		store:  tu.NewMemoryTransferStore(),
		tokens: &stubTokens{token: "yt-token"},
		dest:   &tu.MockDestinationCatalog{Results: hits("One Artist", "Two Artist", "Three Artist")},
	}
	m, _ := fastMatcher(f.dest)
	f.e = NewExecutor(f.store, f.tokens, f.dest, m, quietLogger()).
		WithClock(func() time.Time { return time.Unix(1700000000, 0) })

	require.NoError(t, f.store.Save(context.Background(),
		models.NewTransferRecord("t-1", "u-1", 2, time.Unix(1700000000, 0))))
	f.store.Saves = 0
	return f
}

func twoPlaylistJob() models.TransferJob {
	return models.TransferJob{
		TransferID: "t-1",
		UserID:     "u-1",
		PlaylistsData: []models.PlaylistData{
			{PlaylistID: "pl-1", PlaylistName: "Good", Tracks: tracks("One", "Two", "Three")},
			{PlaylistID: "pl-2", PlaylistName: "Bad", Tracks: tracks("Four")},
		},
	}
}

func TestExecutor_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("one playlist succeeds and one fails", func(t *testing.T) {
		f := newExecuteFixture(t)
		f.dest.CreateErrs = map[string]error{"Bad": errors.New("playlist create rejected")}

		rec, err := f.e.Execute(ctx, twoPlaylistJob(), nil)
		require.NoError(t, err)

		assert.Equal(t, models.StatusCompleted, rec.Status)
		assert.Equal(t, 1, rec.CompletedPlaylists)
		assert.Equal(t, 1, rec.FailedPlaylists)
		assert.Equal(t, 3, rec.CompletedTracks)
		assert.Equal(t, 4, rec.TotalTracks)
		assert.Equal(t, rec.TotalPlaylists, rec.CompletedPlaylists+rec.FailedPlaylists)

		require.Len(t, rec.Playlists, 2)
		assert.Equal(t, models.StatusCompleted, rec.Playlists[0].Status)
		assert.Equal(t, "dest-1", rec.Playlists[0].DestinationPlaylistID)
		assert.Equal(t, 3, rec.Playlists[0].CompletedTracks)
		assert.Equal(t, models.StatusFailed, rec.Playlists[1].Status)
		assert.Equal(t, "playlist create rejected", rec.Playlists[1].ErrorDetails)

		assert.Equal(t, 1, f.store.Saves, "persisted once at the end")
		stored, _ := f.store.Get(ctx, "t-1")
		assert.Equal(t, rec.Playlists, stored.Playlists)
	})

	t.Run("destination playlist named verbatim and created private by the catalog", func(t *testing.T) {
		f := newExecuteFixture(t)
		_, err := f.e.Execute(ctx, twoPlaylistJob(), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Good", "Bad"}, f.dest.Created)
		assert.Equal(t, "yt-token", f.dest.Tokens[0])
	})

	t.Run("token failure fails the record and skips every playlist", func(t *testing.T) {
		f := newExecuteFixture(t)
		f.tokens.err = shared.ErrNotAuthenticated

		rec, err := f.e.Execute(ctx, twoPlaylistJob(), nil)
		assert.True(t, errors.Is(err, shared.ErrNotAuthenticated))

		assert.Equal(t, models.StatusFailed, rec.Status)
		assert.Equal(t, TokenRefreshFailed, rec.ErrorDetails)
		assert.Empty(t, rec.Playlists)
		assert.Empty(t, f.dest.Created)

		stored, _ := f.store.Get(ctx, "t-1")
		assert.Equal(t, models.StatusFailed, stored.Status)
		assert.Equal(t, "Token refresh failed", stored.ErrorDetails)
	})

	t.Run("not found tracks are separate from failures", func(t *testing.T) {
		f := newExecuteFixture(t)
		f.dest.Results = hits("One Artist")
		f.dest.SearchErrs = map[string]error{"Three Artist": errors.New("timeout")}

		job := twoPlaylistJob()
		job.PlaylistsData = job.PlaylistsData[:1]
		rec, err := f.e.Execute(ctx, job, nil)
		require.NoError(t, err)

		assert.Equal(t, 1, rec.CompletedTracks)
		assert.Equal(t, 1, rec.FailedTracks)
		assert.Equal(t, 1, rec.NotFoundTracks)
		assert.Equal(t, models.StatusCompleted, rec.Playlists[0].Status)
	})

	t.Run("unknown transfer starts a fresh record", func(t *testing.T) {
		f := newExecuteFixture(t)
		job := twoPlaylistJob()
		job.TransferID = "t-new"

		rec, err := f.e.Execute(ctx, job, nil)
		require.NoError(t, err)
		assert.Equal(t, "t-new", rec.TransferID)
		assert.Equal(t, 2, rec.TotalPlaylists)
		assert.Equal(t, int64(1700000000), rec.TimestampStarted)
		assert.Equal(t, 2, f.store.Len())
	})

	t.Run("load failure", func(t *testing.T) {
		f := newExecuteFixture(t)
		f.store.GetErr = shared.ErrPersistence
		_, err := f.e.Execute(ctx, twoPlaylistJob(), nil)
		assert.True(t, errors.Is(err, shared.ErrPersistence))
		assert.Empty(t, f.tokens.users)
	})

	t.Run("final save failure is returned", func(t *testing.T) {
		f := newExecuteFixture(t)
		f.store.SaveErr = shared.ErrPersistence
		_, err := f.e.Execute(ctx, twoPlaylistJob(), nil)
		assert.True(t, errors.Is(err, shared.ErrPersistence))
	})

	t.Run("checkpoint persists after each playlist", func(t *testing.T) {
		f := newExecuteFixture(t)
		f.e.WithCheckpoint(true)
		_, err := f.e.Execute(ctx, twoPlaylistJob(), nil)
		require.NoError(t, err)
		assert.Equal(t, 2, f.store.Saves)
	})

	t.Run("redelivered finished job is ignored", func(t *testing.T) {
		f := newExecuteFixture(t)
		_, err := f.e.Execute(ctx, twoPlaylistJob(), nil)
		require.NoError(t, err)
		created := len(f.dest.Created)

		rec, err := f.e.Execute(ctx, twoPlaylistJob(), nil)
		require.NoError(t, err)
		assert.Equal(t, created, len(f.dest.Created))
		assert.Len(t, rec.Playlists, 2)
		assert.Equal(t, 2, rec.CompletedPlaylists+rec.FailedPlaylists)
		assert.Equal(t, models.StatusCompleted, rec.Status)

		stored, _ := f.store.Get(ctx, "t-1")
		assert.Equal(t, stored.CompletedPlaylists, rec.CompletedPlaylists)
		assert.Equal(t, stored.CompletedTracks, rec.CompletedTracks)
		assert.Len(t, stored.Playlists, 2)
	})

	t.Run("interrupted attempt is rerun from zero", func(t *testing.T) {
		f := newExecuteFixture(t)
		partial, _ := f.store.Get(ctx, "t-1")
		partial.AddPlaylist(models.PlaylistTransferInfo{
			SourcePlaylistID: "pl-1",
			PlaylistName:     "Good",
			Status:           models.StatusCompleted,
			TotalTracks:      3,
			CompletedTracks:  3,
		})
		require.NoError(t, f.store.Save(ctx, partial))

		rec, err := f.e.Execute(ctx, twoPlaylistJob(), nil)
		require.NoError(t, err)
		assert.Len(t, rec.Playlists, 2)
		assert.Equal(t, 2, rec.CompletedPlaylists+rec.FailedPlaylists)
		assert.Equal(t, []string{"Good", "Bad"}, f.dest.Created)
	})

	t.Run("token store failure records the error text", func(t *testing.T) {
		f := newExecuteFixture(t)
		f.tokens.err = fmt.Errorf("%w: disk I/O error", shared.ErrPersistence)

		rec, err := f.e.Execute(ctx, twoPlaylistJob(), nil)
		assert.True(t, errors.Is(err, shared.ErrPersistence))
		assert.Equal(t, models.StatusFailed, rec.Status)
		assert.Contains(t, rec.ErrorDetails, "disk I/O error")
		assert.NotEqual(t, TokenRefreshFailed, rec.ErrorDetails)
		assert.Empty(t, f.dest.Created)
	})

	t.Run("progress phases", func(t *testing.T) {
		f := newExecuteFixture(t)
		progress := make(chan ProgressUpdate, 100)
		_, err := f.e.Execute(ctx, twoPlaylistJob(), progress)
		require.NoError(t, err)
		close(progress)

		var phases []Phase
		for u := range progress {
			if len(phases) == 0 || phases[len(phases)-1] != u.Phase {
				phases = append(phases, u.Phase)
			}
		}
		assert.Equal(t, Loading, phases[0])
		assert.Equal(t, ValidatingToken, phases[1])
		assert.Contains(t, phases, MatchingTracks)
		assert.Equal(t, Complete, phases[len(phases)-1])
	})
}

func TestExecutor_HandleMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("executes decoded job", func(t *testing.T) {
		f := newExecuteFixture(t)
		payload, err := shared.MarshalJSON(twoPlaylistJob(), false)
		require.NoError(t, err)

		require.NoError(t, f.e.HandleMessage(ctx, payload))
		rec, _ := f.store.Get(ctx, "t-1")
		assert.Equal(t, models.StatusCompleted, rec.Status)
	})

	t.Run("malformed payload", func(t *testing.T) {
		f := newExecuteFixture(t)
		err := f.e.HandleMessage(ctx, []byte("{not json"))
		assert.True(t, errors.Is(err, shared.ErrValidation))

		err = f.e.HandleMessage(ctx, []byte(`{"playlists_data":[]}`))
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("dispatch then execute through the memory bus", func(t *testing.T) {
		df := newDispatchFixture()
		ef := newExecuteFixture(t)
		ef.store = df.store
		m, _ := fastMatcher(ef.dest)
		ef.e = NewExecutor(df.store, ef.tokens, ef.dest, m, quietLogger())

		id, err := df.d.Dispatch(ctx, "u-1", []string{"pl-1", "pl-2"})
		require.NoError(t, err)
		assert.Equal(t, 1, df.bus.Drain(ctx, DefaultTopic, ef.e.HandleMessage))

		rec, err := Status(ctx, df.store, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, rec.Status)
		assert.Equal(t, 2, rec.CompletedPlaylists)
		assert.Equal(t, 3, rec.CompletedTracks)
	})
}
