package server

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/song-migrations/internal/auth"
	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/services"
	"github.com/desertthunder/song-migrations/internal/shared"
	"github.com/gorilla/mux"
)

// LoginSession is the per-service login surface the API drives.
type LoginSession interface {
	IsLoggedIn(ctx context.Context, userID string) (bool, error)
	StartLogin(ctx context.Context, userID string) (*auth.LoginStart, error)
	AccessToken(ctx context.Context, userID string) (string, error)
	Callback(ctx context.Context, userID, code string) error
	Poll(ctx context.Context, userID, deviceCode string) (*models.DevicePollResult, error)
}

// TransferDispatcher starts a transfer and returns its id.
type TransferDispatcher interface {
	Dispatch(ctx context.Context, userID string, playlistIDs []string) (string, error)
}

// TransferReader reads transfer records. Get returns (nil, nil) for an unknown id.
type TransferReader interface {
	Get(ctx context.Context, transferID string) (*models.TransferRecord, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.TransferRecord, error)
}

const listTransfersLimit = 50

// API serves the transfer backend's HTTP endpoints.
type API struct {
	spotify    LoginSession
	ytmusic    LoginSession
	source     services.SourceCatalog
	dispatcher TransferDispatcher
	transfers  TransferReader
	logger     *log.Logger
}

func NewAPI(
	spotify, ytmusic LoginSession,
	source services.SourceCatalog,
	dispatcher TransferDispatcher,
	transfers TransferReader,
	logger *log.Logger,
) *API {
	if logger == nil {
		logger = log.Default()
	}
	return &API{
		spotify:    spotify,
		ytmusic:    ytmusic,
		source:     source,
		dispatcher: dispatcher,
		transfers:  transfers,
		logger:     shared.WithLogger(logger, "component", "api"),
	}
}

func (a *API) Routes() []Route {
	return []Route{
		{http.MethodGet, "/health", a.health},
		{http.MethodGet, "/spotify/isLoggedIn/{userId}", a.isLoggedIn(a.spotify)},
		{http.MethodGet, "/spotify/login/{userId}", a.spotifyLogin},
		{http.MethodPost, "/spotify/callback", a.spotifyCallback},
		{http.MethodGet, "/spotify/playlists/{userId}", a.spotifyPlaylists},
		{http.MethodGet, "/ytmusic/isLoggedIn/{userId}", a.isLoggedIn(a.ytmusic)},
		{http.MethodGet, "/ytmusic/login/{userId}", a.ytmusicLogin},
		{http.MethodPost, "/ytmusic/poll-token", a.ytmusicPoll},
		{http.MethodPost, "/transfers", a.startTransfer},
		{http.MethodGet, "/transfers/{transferId}", a.transferStatus},
		{http.MethodGet, "/users/{userId}/transfers", a.listTransfers},
	}
}

// pathUser reads {userId} and checks it against the bearer token's user, when there is one.
func pathUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required in path parameters")
		return "", false
	}
	return userID, authorizedFor(w, r, userID)
}

func authorizedFor(w http.ResponseWriter, r *http.Request, userID string) bool {
	if c, ok := ClaimsFrom(r.Context()); ok && c.UserID != "" && c.UserID != userID {
		writeError(w, http.StatusForbidden, "Token does not belong to this user")
		return false
	}
	return true
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{"status": "ok"})
}

func (a *API) isLoggedIn(s LoginSession) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathUser(w, r)
		if !ok {
			return
		}

		loggedIn, err := s.IsLoggedIn(r.Context(), userID)
		if err != nil {
			writeErr(w, err, "Internal server error")
			return
		}

		msg := "User is not logged in"
		if loggedIn {
			msg = "User is logged in"
		}
		writeJSON(w, http.StatusOK, envelope{"message": msg, "isLoggedIn": loggedIn})
	}
}

func (a *API) spotifyLogin(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUser(w, r)
	if !ok {
		return
	}

	start, err := a.spotify.StartLogin(r.Context(), userID)
	if err != nil {
		writeErr(w, err, "Error generating authorization URL")
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": "Redirecting to Spotify for authentication.",
		"url":     start.AuthorizeURL,
	})
}

func (a *API) spotifyCallback(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code   string `json:"code"`
		UserID string `json:"userId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeErr(w, err, "")
		return
	}
	if body.Code == "" {
		writeError(w, http.StatusBadRequest, "Authorization code not found in request body")
		return
	}
	if !authorizedFor(w, r, body.UserID) {
		return
	}

	if err := a.spotify.Callback(r.Context(), body.UserID, body.Code); err != nil {
		a.logger.Error("failed to exchange authorization code", "user_id", body.UserID, "error", err)
		writeErr(w, err, "Failed to exchange authorization code")
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Authentication successful", "isLoggedIn": true})
}

func (a *API) spotifyPlaylists(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUser(w, r)
	if !ok {
		return
	}

	token, err := a.spotify.AccessToken(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	playlists, err := a.source.ListPlaylists(r.Context(), token)
	if err != nil {
		a.logger.Error("spotify API error", "user_id", userID, "error", err)
		writeErr(w, err, "Error accessing Spotify API")
		return
	}
	if playlists == nil {
		playlists = []models.Playlist{}
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Successfully retrieved playlists", "playlists": playlists})
}

func (a *API) ytmusicLogin(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUser(w, r)
	if !ok {
		return
	}

	start, err := a.ytmusic.StartLogin(r.Context(), userID)
	if err != nil {
		a.logger.Error("device code request failed", "user_id", userID, "error", err)
		writeErr(w, err, "Error generating OAuth URL")
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": "Redirecting to Google for authentication.",
		"data":    start.Device,
	})
}

func (a *API) ytmusicPoll(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DeviceCode string `json:"device_code"`
		UserID     string `json:"userId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeErr(w, err, "")
		return
	}
	if body.DeviceCode == "" || body.UserID == "" {
		writeError(w, http.StatusBadRequest, "device_code and userId are required")
		return
	}
	if !authorizedFor(w, r, body.UserID) {
		return
	}

	res, err := a.ytmusic.Poll(r.Context(), body.UserID, body.DeviceCode)
	if err != nil {
		a.logger.Error("device poll failed", "user_id", body.UserID, "error", err)
		writeErr(w, err, "Error polling for token")
		return
	}

	switch res.Status {
	case models.DevicePollCompleted:
		writeJSON(w, http.StatusOK, envelope{"message": "Authentication successful", "status": res.Status})
	case models.DevicePollPending:
		writeJSON(w, http.StatusAccepted, envelope{"message": "Waiting for user authorization", "status": res.Status})
	case models.DevicePollExpired:
		writeJSON(w, http.StatusBadRequest, envelope{"message": "Device code has expired", "status": res.Status})
	default:
		writeJSON(w, http.StatusBadRequest, envelope{
			"message": "Invalid token response",
			"status":  models.DevicePollError,
			"details": res.Details,
		})
	}
}

func (a *API) startTransfer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID      string   `json:"userId"`
		PlaylistIDs []string `json:"playlistIds"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeErr(w, err, "")
		return
	}
	if !authorizedFor(w, r, body.UserID) {
		return
	}

	id, err := a.dispatcher.Dispatch(r.Context(), body.UserID, body.PlaylistIDs)
	if err != nil {
		writeErr(w, err, "Failed to start transfer")
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "Transfer started", "transfer_id": id})
}

func (a *API) transferStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["transferId"]

	rec, err := a.transfers.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err, "Failed to load transfer")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Transfer not found")
		return
	}
	if !authorizedFor(w, r, rec.UserID) {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) listTransfers(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUser(w, r)
	if !ok {
		return
	}

	recs, err := a.transfers.ListByUser(r.Context(), userID, listTransfersLimit)
	if err != nil {
		writeErr(w, err, "Failed to list transfers")
		return
	}
	writeJSON(w, http.StatusOK, envelope{"transfers": recs})
}
