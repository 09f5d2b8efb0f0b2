// package services defines the provider capabilities the transfer core consumes
//
// Spotify (source), YouTube Music (destination, via proxy)
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/shared"
	"golang.org/x/time/rate"
)

// OAuthProvider mints fresh access tokens from a refresh token.
type OAuthProvider interface {
	// Name returns the display name of the provider (e.g., "Spotify")
	Name() string

	// Refresh exchanges a refresh token for a new token bundle.
	Refresh(ctx context.Context, refreshToken string) (*models.TokenInfo, error)
}

// AuthCodeProvider is an [OAuthProvider] using the authorization-code flow.
type AuthCodeProvider interface {
	OAuthProvider
	AuthorizeURL(state string) string
	Exchange(ctx context.Context, code string) (*models.TokenInfo, error)
}

// DeviceCodeProvider is an [OAuthProvider] using the device-code flow.
type DeviceCodeProvider interface {
	OAuthProvider
	DeviceCode(ctx context.Context) (*models.DeviceCode, error)

	// PollDeviceCode makes a single token request for a pending device code.
	PollDeviceCode(ctx context.Context, deviceCode string) (*models.DevicePollResult, error)
}

// SourceCatalog lists a user's playlists and their tracks.
type SourceCatalog interface {
	ListPlaylists(ctx context.Context, token string) ([]models.Playlist, error)

	// PlaylistTracks returns the playlist name and every track, following pagination to the end.
	PlaylistTracks(ctx context.Context, token, playlistID string) (string, []models.TrackDescriptor, error)
}

// DestinationCatalog creates playlists, searches the catalog and adds items.
type DestinationCatalog interface {
	CreatePlaylist(ctx context.Context, token, name, description string) (string, error)
	Search(ctx context.Context, token, query, filter string, limit int) ([]models.SearchResult, error)
	AddItems(ctx context.Context, token, playlistID string, itemIDs []string) error
}

// apiClient performs bearer-authenticated JSON requests against a provider API.
type apiClient struct {
	name       string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func newAPIClient(name, baseURL string) *apiClient {
	return &apiClient{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// url resolves endpoint against the base URL; absolute URLs (pagination cursors) pass through.
func (c *apiClient) url(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return c.baseURL + endpoint
}

func (c *apiClient) do(ctx context.Context, token, method, endpoint string, body, result any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s request failed: %v", shared.ErrAPIRequest, c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode %s response: %v", shared.ErrAPIRequest, c.name, err)
		}
	}

	return nil
}

// statusError reads FastAPI-style {"detail": ...} and Spotify-style {"error": {"message": ...}} bodies.
func (c *apiClient) statusError(resp *http.Response) error {
	var errResp struct {
		Detail any `json:"detail"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	msg := ""
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&errResp); err == nil {
		switch {
		case errResp.Error.Message != "":
			msg = errResp.Error.Message
		case errResp.Detail != nil:
			msg = fmt.Sprint(errResp.Detail)
		}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w: %s rejected the token", shared.ErrAPIRequest, shared.ErrNotAuthenticated, c.name)
	}
	if msg != "" {
		return fmt.Errorf("%w: %s error (status %d): %s", shared.ErrAPIRequest, c.name, resp.StatusCode, msg)
	}
	return fmt.Errorf("%w: %s error: status %d", shared.ErrAPIRequest, c.name, resp.StatusCode)
}

func credential(credentials map[string]string, key string) (string, error) {
	v, ok := credentials[key]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: missing %s in credentials", shared.ErrMissingCredentials, key)
	}
	return v, nil
}
