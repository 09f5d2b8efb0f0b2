// YouTube Music implementation of [DeviceCodeProvider] and [DestinationCatalog]
//
// OAuth goes straight to Google's device-code endpoints. Catalog calls go to the
// FastAPI proxy wrapping ytmusicapi, which receives the user's access token as a bearer token.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultYTBaseURL = "http://localhost:8080"

	googleAuthURL       = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL      = "https://oauth2.googleapis.com/token"
	googleDeviceAuthURL = "https://oauth2.googleapis.com/device/code"
	youtubeScope        = "https://www.googleapis.com/auth/youtube"

	deviceGrantType         = "urn:ietf:params:oauth:grant-type:device_code"
	defaultDeviceInterval   = 5
	defaultDeviceExpiration = 1800
)

// YouTubeArtist represents an artist in YouTube Music responses.
type YouTubeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeTrack represents a search hit in YouTube Music responses.
type YouTubeTrack struct {
	VideoID  string          `json:"videoId"`
	Title    string          `json:"title"`
	Artists  []YouTubeArtist `json:"artists"`
	Duration string          `json:"duration"`
}

// YouTubeService implements [DeviceCodeProvider] and [DestinationCatalog] for YouTube Music.
type YouTubeService struct {
	config *oauth2.Config
	api    *apiClient
}

// NewYouTubeService creates a YouTube Music service.
//
// Recognised credential keys: client_id, client_secret. baseURL is the catalog proxy
// and defaults to http://localhost:8080. A positive requestsPerSecond throttles proxy calls.
func NewYouTubeService(credentials map[string]string, baseURL string, requestsPerSecond float64) (*YouTubeService, error) {
	clientID, err := credential(credentials, "client_id")
	if err != nil {
		return nil, err
	}

	clientSecret, err := credential(credentials, "client_secret")
	if err != nil {
		return nil, err
	}

	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}

	api := newAPIClient("youtube music", baseURL)
	if requestsPerSecond > 0 {
		api.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}

	return &YouTubeService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{youtubeScope},
			Endpoint: oauth2.Endpoint{
				AuthURL:       googleAuthURL,
				TokenURL:      googleTokenURL,
				DeviceAuthURL: googleDeviceAuthURL,
			},
		},
		api: api,
	}, nil
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube Music"
}

// SetOAuthEndpoints points token and device-code requests at other URLs.
func (y *YouTubeService) SetOAuthEndpoints(tokenURL, deviceAuthURL string) {
	y.config.Endpoint.TokenURL = tokenURL
	y.config.Endpoint.DeviceAuthURL = deviceAuthURL
}

// SetHTTPClient replaces the client used for proxy and token requests.
func (y *YouTubeService) SetHTTPClient(c *http.Client) { y.api.httpClient = c }

func (y *YouTubeService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, y.api.httpClient)
}

// DeviceCode starts a device-code login.
func (y *YouTubeService) DeviceCode(ctx context.Context) (*models.DeviceCode, error) {
	resp, err := y.config.DeviceAuth(y.oauthContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrDeviceCodeFlow, err)
	}

	interval := resp.Interval
	if interval <= 0 {
		interval = defaultDeviceInterval
	}

	expiresIn := int64(defaultDeviceExpiration)
	if !resp.Expiry.IsZero() {
		expiresIn = int64(time.Until(resp.Expiry).Round(time.Second).Seconds())
	}

	return &models.DeviceCode{
		VerificationURL: resp.VerificationURI + "?user_code=" + url.QueryEscape(resp.UserCode),
		UserCode:        resp.UserCode,
		DeviceCode:      resp.DeviceCode,
		Interval:        interval,
		ExpiresIn:       expiresIn,
	}, nil
}

type deviceTokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// PollDeviceCode makes one token request for the device code and classifies the answer.
func (y *YouTubeService) PollDeviceCode(ctx context.Context, deviceCode string) (*models.DevicePollResult, error) {
	if deviceCode == "" {
		return nil, fmt.Errorf("%w: device_code", shared.ErrMissingArgument)
	}

	form := url.Values{
		"client_id":     {y.config.ClientID},
		"client_secret": {y.config.ClientSecret},
		"device_code":   {deviceCode},
		"grant_type":    {deviceGrantType},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.config.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := y.api.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: token request failed: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	var body deviceTokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: failed to decode token response: %v", shared.ErrAPIRequest, err)
	}

	switch {
	case body.AccessToken != "":
		info := models.TokenInfo{AccessToken: body.AccessToken, TokenType: body.TokenType, ExpiresIn: body.ExpiresIn}
		if body.RefreshToken != "" {
			rt := body.RefreshToken
			info.RefreshToken = &rt
		}
		return &models.DevicePollResult{Status: models.DevicePollCompleted, Token: &info}, nil
	case body.Error == "authorization_pending" || body.Error == "slow_down":
		return &models.DevicePollResult{Status: models.DevicePollPending, Details: body.Error}, nil
	case body.Error == "expired_token":
		return &models.DevicePollResult{Status: models.DevicePollExpired, Details: body.ErrorDescription}, nil
	default:
		details := body.ErrorDescription
		if details == "" {
			details = body.Error
		}
		if details == "" {
			details = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return &models.DevicePollResult{Status: models.DevicePollError, Details: details}, nil
	}
}

// Refresh mints a new access token from a refresh token.
func (y *YouTubeService) Refresh(ctx context.Context, refreshToken string) (*models.TokenInfo, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	tok, err := y.config.TokenSource(y.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	info := models.TokenInfoFromOAuth2(tok)
	return &info, nil
}

// CreatePlaylist creates a private playlist and returns its id.
//
// Calls POST /api/playlists on the proxy.
func (y *YouTubeService) CreatePlaylist(ctx context.Context, token, name, description string) (string, error) {
	req := struct {
		Title         string `json:"title"`
		Description   string `json:"description"`
		PrivacyStatus string `json:"privacy_status"`
	}{
		Title:         name,
		Description:   description,
		PrivacyStatus: "PRIVATE",
	}

	var resp struct {
		PlaylistID string `json:"playlist_id"`
	}
	if err := y.api.do(ctx, token, http.MethodPost, "/api/playlists", req, &resp); err != nil {
		return "", fmt.Errorf("failed to create playlist: %w", err)
	}
	if resp.PlaylistID == "" {
		return "", fmt.Errorf("%w: create playlist returned no id", shared.ErrAPIRequest)
	}

	return resp.PlaylistID, nil
}

// Search queries the catalog.
//
// Calls GET /api/search?q={query}&filter={filter}&limit={limit} on the proxy.
func (y *YouTubeService) Search(ctx context.Context, token, query, filter string, limit int) ([]models.SearchResult, error) {
	params := url.Values{"q": {query}}
	if filter != "" {
		params.Set("filter", filter)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprint(limit))
	}

	var hits []YouTubeTrack
	if err := y.api.do(ctx, token, http.MethodGet, "/api/search?"+params.Encode(), nil, &hits); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		artists := make([]string, 0, len(h.Artists))
		for _, a := range h.Artists {
			artists = append(artists, a.Name)
		}
		results = append(results, models.SearchResult{VideoID: h.VideoID, Title: h.Title, Artists: artists})
	}

	return results, nil
}

// AddItems appends videos to a playlist.
//
// Calls POST /api/playlists/{id}/items on the proxy.
func (y *YouTubeService) AddItems(ctx context.Context, token, playlistID string, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}

	req := struct {
		VideoIDs []string `json:"video_ids"`
	}{VideoIDs: itemIDs}

	endpoint := fmt.Sprintf("/api/playlists/%s/items", url.PathEscape(playlistID))
	if err := y.api.do(ctx, token, http.MethodPost, endpoint, req, nil); err != nil {
		return fmt.Errorf("failed to add items to playlist %s: %w", playlistID, err)
	}

	return nil
}
