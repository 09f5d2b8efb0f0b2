package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/song-migrations/internal/auth"
	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/shared"
	tu "github.com/desertthunder/song-migrations/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	loggedIn map[string]bool
	token    string
	tokenErr error
	start    *auth.LoginStart
	startErr error
	callback func(userID, code string) error
	poll     *models.DevicePollResult
	pollErr  error
}

func (f *fakeSession) IsLoggedIn(ctx context.Context, userID string) (bool, error) {
	return f.loggedIn[userID], nil
}

func (f *fakeSession) StartLogin(ctx context.Context, userID string) (*auth.LoginStart, error) {
	return f.start, f.startErr
}

func (f *fakeSession) AccessToken(ctx context.Context, userID string) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return f.token, nil
}

func (f *fakeSession) Callback(ctx context.Context, userID, code string) error {
	if f.callback == nil {
		return nil
	}
	return f.callback(userID, code)
}

func (f *fakeSession) Poll(ctx context.Context, userID, deviceCode string) (*models.DevicePollResult, error) {
	return f.poll, f.pollErr
}

type fakeDispatcher struct {
	id    string
	err   error
	users []string
	ids   [][]string
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, userID string, playlistIDs []string) (string, error) {
	f.users = append(f.users, userID)
	f.ids = append(f.ids, playlistIDs)
	return f.id, f.err
}

type apiFixture struct {
	spotify    *fakeSession
	ytmusic    *fakeSession
	source     *tu.MockSourceCatalog
	dispatcher *fakeDispatcher
	transfers  *tu.MemoryTransferStore
	users      *tu.MemoryUserStore
	router     *MuxRouter
}

func quietLogger() *log.Logger { return shared.NewLogger(&bytes.Buffer{}) }

func newAPIFixture(mw ...Middleware) *apiFixture {
	f := &apiFixture{
		spotify:    &fakeSession{loggedIn: map[string]bool{}, token: "sp-token"},
		ytmusic:    &fakeSession{loggedIn: map[string]bool{}, token: "yt-token"},
		source:     &tu.MockSourceCatalog{},
		dispatcher: &fakeDispatcher{id: "t-1"},
		transfers:  tu.NewMemoryTransferStore(),
		users:      tu.NewMemoryUserStore(),
		router:     NewMuxRouter(),
	}
	f.router.Use(mw...)
	f.router.Handler(NewAPI(f.spotify, f.ytmusic, f.source, f.dispatcher, f.transfers, quietLogger()))
	f.router.Handler(NewUsersAPI(f.users, quietLogger()))
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, body string, header ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestAPI_Login(t *testing.T) {
	t.Run("isLoggedIn", func(t *testing.T) {
		f := newAPIFixture()
		f.spotify.loggedIn["u-1"] = true

		rec, body := f.do(t, http.MethodGet, "/spotify/isLoggedIn/u-1", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["isLoggedIn"])
		assert.Equal(t, "User is logged in", body["message"])

		rec, body = f.do(t, http.MethodGet, "/ytmusic/isLoggedIn/u-1", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, body["isLoggedIn"])
	})

	t.Run("spotify login returns authorize url", func(t *testing.T) {
		f := newAPIFixture()
		f.spotify.start = &auth.LoginStart{AuthorizeURL: "https://accounts.spotify.com/authorize?state=u-1"}

		rec, body := f.do(t, http.MethodGet, "/spotify/login/u-1", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Redirecting to Spotify for authentication.", body["message"])
		assert.Contains(t, body["url"], "state=u-1")
	})

	t.Run("spotify login without credentials", func(t *testing.T) {
		f := newAPIFixture()
		f.spotify.startErr = shared.ErrServiceUnavailable
		rec, _ := f.do(t, http.MethodGet, "/spotify/login/u-1", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("spotify callback", func(t *testing.T) {
		f := newAPIFixture()
		var got []string
		f.spotify.callback = func(userID, code string) error {
			got = []string{userID, code}
			return nil
		}

		rec, body := f.do(t, http.MethodPost, "/spotify/callback", `{"code":"abc","userId":"u-1"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["isLoggedIn"])
		assert.Equal(t, []string{"u-1", "abc"}, got)

		rec, _ = f.do(t, http.MethodPost, "/spotify/callback", `{"userId":"u-1"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec, _ = f.do(t, http.MethodPost, "/spotify/callback", `{bad`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		f.spotify.callback = func(string, string) error { return shared.ErrUserNotFound }
		rec, _ = f.do(t, http.MethodPost, "/spotify/callback", `{"code":"abc","userId":"ghost"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("ytmusic login returns device data", func(t *testing.T) {
		f := newAPIFixture()
		f.ytmusic.start = &auth.LoginStart{Device: &models.DeviceCode{
			VerificationURL: "https://www.google.com/device?user_code=ABCD",
			UserCode:        "ABCD",
			DeviceCode:      "dev",
			Interval:        5,
			ExpiresIn:       1800,
		}}

		rec, body := f.do(t, http.MethodGet, "/ytmusic/login/u-1", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		data := body["data"].(map[string]any)
		assert.Equal(t, "ABCD", data["user_code"])
		assert.Equal(t, float64(1800), data["expires_in"])
	})

	t.Run("ytmusic poll statuses", func(t *testing.T) {
		tests := []struct {
			status models.DevicePollStatus
			want   int
		}{
			{models.DevicePollCompleted, http.StatusOK},
			{models.DevicePollPending, http.StatusAccepted},
			{models.DevicePollExpired, http.StatusBadRequest},
			{models.DevicePollError, http.StatusBadRequest},
		}
		for _, tt := range tests {
			f := newAPIFixture()
			f.ytmusic.poll = &models.DevicePollResult{Status: tt.status}
			rec, body := f.do(t, http.MethodPost, "/ytmusic/poll-token", `{"device_code":"dev","userId":"u-1"}`)
			assert.Equal(t, tt.want, rec.Code, string(tt.status))
			assert.Equal(t, string(tt.status), body["status"])
		}

		f := newAPIFixture()
		rec, body := f.do(t, http.MethodPost, "/ytmusic/poll-token", `{"userId":"u-1"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "device_code and userId are required", body["message"])
	})
}

func TestAPI_Playlists(t *testing.T) {
	t.Run("lists playlists", func(t *testing.T) {
		f := newAPIFixture()
		f.source.Playlists = []models.Playlist{{ID: "pl-1", Name: "Road Trip", TrackCount: 12}}

		rec, body := f.do(t, http.MethodGet, "/spotify/playlists/u-1", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, body["playlists"], 1)
	})

	t.Run("invalid token", func(t *testing.T) {
		f := newAPIFixture()
		f.spotify.tokenErr = shared.ErrNotAuthenticated
		rec, body := f.do(t, http.MethodGet, "/spotify/playlists/u-1", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid or expired token", body["message"])
	})

	t.Run("no playlists is an empty list", func(t *testing.T) {
		f := newAPIFixture()
		rec, body := f.do(t, http.MethodGet, "/spotify/playlists/u-1", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []any{}, body["playlists"])
	})

	t.Run("upstream failure", func(t *testing.T) {
		f := newAPIFixture()
		f.source.ListErr = shared.ErrAPIRequest
		rec, body := f.do(t, http.MethodGet, "/spotify/playlists/u-1", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Error accessing Spotify API", body["message"])
	})
}

func TestAPI_Transfers(t *testing.T) {
	ctx := context.Background()

	t.Run("start", func(t *testing.T) {
		f := newAPIFixture()
		rec, body := f.do(t, http.MethodPost, "/transfers", `{"userId":"u-1","playlistIds":["a","b"]}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "t-1", body["transfer_id"])
		assert.Equal(t, [][]string{{"a", "b"}}, f.dispatcher.ids)
	})

	t.Run("start maps errors", func(t *testing.T) {
		tests := []struct {
			err  error
			want int
		}{
			{shared.ErrMissingArgument, http.StatusBadRequest},
			{shared.ErrNotAuthenticated, http.StatusUnauthorized},
			{shared.ErrPublishFailed, http.StatusInternalServerError},
		}
		for _, tt := range tests {
			f := newAPIFixture()
			f.dispatcher.err = tt.err
			rec, _ := f.do(t, http.MethodPost, "/transfers", `{"userId":"u-1","playlistIds":["a"]}`)
			assert.Equal(t, tt.want, rec.Code, tt.err.Error())
		}
	})

	t.Run("status", func(t *testing.T) {
		f := newAPIFixture()
		rec := models.NewTransferRecord("t-9", "u-1", 1, time.Unix(1700000000, 0))
		rec.TotalTracks = 3
		require.NoError(t, f.transfers.Save(ctx, rec))

		resp, body := f.do(t, http.MethodGet, "/transfers/t-9", "")
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, "in_progress", body["status"])
		assert.Equal(t, float64(3), body["total_tracks"])

		resp, _ = f.do(t, http.MethodGet, "/transfers/missing", "")
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("list by user", func(t *testing.T) {
		f := newAPIFixture()
		require.NoError(t, f.transfers.Save(ctx, models.NewTransferRecord("t-1", "u-1", 1, time.Unix(1, 0))))
		require.NoError(t, f.transfers.Save(ctx, models.NewTransferRecord("t-2", "u-2", 1, time.Unix(1, 0))))

		resp, body := f.do(t, http.MethodGet, "/users/u-1/transfers", "")
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Len(t, body["transfers"], 1)
	})

	t.Run("method not allowed", func(t *testing.T) {
		f := newAPIFixture()
		resp, _ := f.do(t, http.MethodDelete, "/transfers/t-1", "")
		assert.Equal(t, http.StatusMethodNotAllowed, resp.Code)
	})
}

func TestUsersAPI(t *testing.T) {
	ctx := context.Background()

	t.Run("create assigns id", func(t *testing.T) {
		f := newAPIFixture()
		rec, body := f.do(t, http.MethodPost, "/users", `{"email":"a@example.com","name":"Ann"}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "user-1", body["userid"])
		assert.Equal(t, "Ann", body["name"])

		u, err := f.users.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "a@example.com", u.Email())
	})

	t.Run("create keeps given id and rejects bad email", func(t *testing.T) {
		f := newAPIFixture()
		rec, body := f.do(t, http.MethodPost, "/users", `{"userid":"u-9","email":"b@example.com"}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "u-9", body["userid"])

		rec, _ = f.do(t, http.MethodPost, "/users", `{"email":"nope"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get and missing", func(t *testing.T) {
		f := newAPIFixture()
		require.NoError(t, f.users.Create(ctx, models.NewUser("c@example.com", "Cy")))

		rec, body := f.do(t, http.MethodGet, "/users/user-1", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "c@example.com", body["email"])

		rec, _ = f.do(t, http.MethodGet, "/users/ghost", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("list filters by email", func(t *testing.T) {
		f := newAPIFixture()
		require.NoError(t, f.users.Create(ctx, models.NewUser("a@example.com", "A")))
		require.NoError(t, f.users.Create(ctx, models.NewUser("b@example.com", "B")))

		rec, body := f.do(t, http.MethodGet, "/users", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, body["users"], 2)

		_, body = f.do(t, http.MethodGet, "/users?email=b@example.com", "")
		require.Len(t, body["users"], 1)
		assert.Equal(t, "user-2", body["users"].([]any)[0].(map[string]any)["userid"])
	})

	t.Run("put updates or creates", func(t *testing.T) {
		f := newAPIFixture()
		require.NoError(t, f.users.Create(ctx, models.NewUser("a@example.com", "A")))

		rec, body := f.do(t, http.MethodPut, "/users/user-1", `{"email":"new@example.com","name":"Renamed"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Renamed", body["name"])
		u, _ := f.users.Get(ctx, "user-1")
		assert.Equal(t, "new@example.com", u.Email())

		rec, _ = f.do(t, http.MethodPut, "/users/u-new", `{"email":"n@example.com"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		_, err := f.users.Get(ctx, "u-new")
		assert.NoError(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		f := newAPIFixture()
		require.NoError(t, f.users.Create(ctx, models.NewUser("a@example.com", "A")))

		rec, _ := f.do(t, http.MethodDelete, "/users/user-1", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		_, err := f.users.Get(ctx, "user-1")
		assert.True(t, errors.Is(err, shared.ErrUserNotFound))

		rec, _ = f.do(t, http.MethodDelete, "/users/user-1", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("transfers route still matches", func(t *testing.T) {
		f := newAPIFixture()
		rec, body := f.do(t, http.MethodGet, "/users/u-1/transfers", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, body, "transfers")
	})
}

func TestMiddleware(t *testing.T) {
	secret := []byte("test-secret")

	t.Run("jwt required except health", func(t *testing.T) {
		f := newAPIFixture(JWTMiddleware(secret, "/health"))

		rec, _ := f.do(t, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, rec.Code)

		rec, _ = f.do(t, http.MethodGet, "/spotify/isLoggedIn/u-1", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec, _ = f.do(t, http.MethodGet, "/spotify/isLoggedIn/u-1", "", "Authorization", "Bearer garbage")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		token, err := GenerateToken("u-1", secret, time.Hour)
		require.NoError(t, err)
		rec, _ = f.do(t, http.MethodGet, "/spotify/isLoggedIn/u-1", "", "Authorization", "Bearer "+token)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec, _ = f.do(t, http.MethodGet, "/spotify/isLoggedIn/u-2", "", "Authorization", "Bearer "+token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("expired and foreign tokens rejected", func(t *testing.T) {
		expired, err := GenerateToken("u-1", secret, -time.Minute)
		require.NoError(t, err)
		_, err = ParseToken(expired, secret)
		assert.Error(t, err)

		foreign, err := GenerateToken("u-1", []byte("other"), time.Hour)
		require.NoError(t, err)
		_, err = ParseToken(foreign, secret)
		assert.Error(t, err)

		claims, err := ParseToken(mustToken(t, secret), secret)
		require.NoError(t, err)
		assert.Equal(t, "u-1", claims.UserID)
	})

	t.Run("cors preflight", func(t *testing.T) {
		f := newAPIFixture(CORS("https://app.example.com"))
		rec, _ := f.do(t, http.MethodOptions, "/transfers", "",
			"Origin", "https://app.example.com",
			"Access-Control-Request-Method", "POST",
			"Access-Control-Request-Headers", "Content-Type")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("recovery", func(t *testing.T) {
		r := NewMuxRouter()
		r.Use(Recovery(quietLogger()))
		r.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("logging records status", func(t *testing.T) {
		var buf bytes.Buffer
		f := newAPIFixture(Logging(shared.NewLogger(&buf)))
		f.do(t, http.MethodGet, "/transfers/missing", "")
		assert.Contains(t, buf.String(), "status=404")
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mk := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}
		f := newAPIFixture(mk("first"), mk("second"))
		f.do(t, http.MethodGet, "/health", "")
		assert.Equal(t, []string{"first", "second"}, order)
	})
}

func mustToken(t *testing.T, secret []byte) string {
	t.Helper()
	token, err := GenerateToken("u-1", secret, time.Hour)
	require.NoError(t, err)
	return token
}

func TestWriteErr(t *testing.T) {
	t.Run("internal error keeps message and detail", func(t *testing.T) {
		rec := httptest.NewRecorder()
		writeErr(rec, errors.New("disk full"), "Failed to load transfer")

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Failed to load transfer", body["message"])
		assert.Equal(t, "disk full", body["error"])
	})

	t.Run("mapped error uses its text as message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		writeErr(rec, shared.ErrUserNotFound, "ignored")

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, shared.ErrUserNotFound.Error(), body["message"])
		assert.NotContains(t, body, "error")
	})
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusFor(nil))
	assert.Equal(t, http.StatusBadRequest, StatusFor(shared.ErrInvalidArgument))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(shared.ErrNotAuthenticated))
	assert.Equal(t, http.StatusNotFound, StatusFor(shared.ErrTransferNotFound))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("x")))
}

type stubCompleter struct {
	err   error
	calls [][2]string
}

func (s *stubCompleter) Callback(ctx context.Context, userID, code string) error {
	s.calls = append(s.calls, [2]string{userID, code})
	return s.err
}

func TestOAuthHandler(t *testing.T) {
	serve := func(h *OAuthHandler, query string) *httptest.ResponseRecorder {
		r := NewMuxRouter()
		r.Handler(h)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?"+query, nil))
		return rec
	}

	t.Run("success", func(t *testing.T) {
		s := &stubCompleter{}
		h := NewOAuthHandler(s, "", "u-1")
		rec := serve(h, "state=u-1&code=abc")

		assert.Equal(t, http.StatusOK, rec.Code)
		res := <-h.Result()
		assert.NoError(t, res.Error())
		assert.Equal(t, "u-1", res.UserID)
		assert.Equal(t, [][2]string{{"u-1", "abc"}}, s.calls)
	})

	t.Run("invalid state", func(t *testing.T) {
		s := &stubCompleter{}
		h := NewOAuthHandler(s, "/callback", "u-1")
		rec := serve(h, "state=evil&code=abc")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		res := <-h.Result()
		assert.Error(t, res.Error())
		assert.Empty(t, s.calls)
	})

	t.Run("provider error", func(t *testing.T) {
		h := NewOAuthHandler(&stubCompleter{}, "", "u-1")
		rec := serve(h, "state=u-1&error=access_denied")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		res := <-h.Result()
		assert.Contains(t, res.Error().Error(), "access_denied")
	})

	t.Run("exchange failure", func(t *testing.T) {
		h := NewOAuthHandler(&stubCompleter{err: errors.New("bad code")}, "", "u-1")
		rec := serve(h, "state=u-1&code=abc")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("second callback rejected", func(t *testing.T) {
		h := NewOAuthHandler(&stubCompleter{}, "", "u-1")
		r := NewMuxRouter()
		r.Handler(h)
		for i, want := range []int{http.StatusOK, http.StatusBadRequest} {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=u-1&code=abc", nil))
			assert.Equal(t, want, rec.Code, "call %d", i)
		}
	})
}
