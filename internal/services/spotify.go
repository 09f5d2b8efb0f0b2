// Spotify implementation of [AuthCodeProvider] and [SourceCatalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	spotifyPlaylistPageSize = 50
	spotifyTrackPageSize    = 100
)

// DefaultSpotifyScopes are requested when the credentials do not name any.
var DefaultSpotifyScopes = []string{"playlist-read-private", "playlist-read-collaborative", "user-library-read"}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	DurationMS int             `json:"duration_ms"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type simplePlaylistTracks struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Owner       Owner                `json:"owner"`
	Public      bool                 `json:"public"`
	Tracks      simplePlaylistTracks `json:"tracks"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items  []SpotifySimplePlaylist `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
	Next   *string                 `json:"next"`
}

// SpotifyPlaylistItem is one entry of a playlist's track listing.
// Track is nil for removed or unavailable items.
type SpotifyPlaylistItem struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedItems represents a page of playlist items.
type SpotifyPaginatedItems struct {
	Items  []SpotifyPlaylistItem `json:"items"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
	Next   *string               `json:"next"`
}

// SpotifyService implements [AuthCodeProvider] and [SourceCatalog] for Spotify.
// Uses [oauth2] for the code exchange and refresh; catalog calls take the caller's access token.
type SpotifyService struct {
	config *oauth2.Config
	api    *apiClient
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
//
// Recognised keys: client_id, client_secret, redirect_uri, scopes (comma separated).
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, err := credential(credentials, "client_id")
	if err != nil {
		return nil, err
	}

	clientSecret, err := credential(credentials, "client_secret")
	if err != nil {
		return nil, err
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:3000/callback"
	}

	scopes := DefaultSpotifyScopes
	if raw := credentials["scopes"]; raw != "" {
		scopes = nil
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				scopes = append(scopes, s)
			}
		}
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{config: config, api: newAPIClient("spotify", spotifyBaseURL)}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// SetBaseURL points catalog requests at another API root.
func (s *SpotifyService) SetBaseURL(baseURL string) { s.api.baseURL = strings.TrimRight(baseURL, "/") }

// SetTokenURL points the code exchange and refresh at another token endpoint.
func (s *SpotifyService) SetTokenURL(tokenURL string) { s.config.Endpoint.TokenURL = tokenURL }

// SetHTTPClient replaces the client used for catalog and token requests.
func (s *SpotifyService) SetHTTPClient(c *http.Client) { s.api.httpClient = c }

// AuthorizeURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthorizeURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.api.httpClient)
}

// Exchange trades an authorization code for a token bundle.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*models.TokenInfo, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code", shared.ErrMissingArgument)
	}

	tok, err := s.config.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}

	info := models.TokenInfoFromOAuth2(tok)
	return &info, nil
}

// Refresh mints a new access token. The previous refresh token is kept when Spotify does not rotate it.
func (s *SpotifyService) Refresh(ctx context.Context, refreshToken string) (*models.TokenInfo, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	src := s.config.TokenSource(s.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	info := models.TokenInfoFromOAuth2(tok)
	return &info, nil
}

// ListPlaylists retrieves every playlist of the token's owner, 50 per page.
func (s *SpotifyService) ListPlaylists(ctx context.Context, token string) ([]models.Playlist, error) {
	playlists := []models.Playlist{}
	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=0", spotifyPlaylistPageSize)

	for endpoint != "" {
		var page SpotifyPaginatedPlaylists
		if err := s.api.do(ctx, token, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list playlists: %w", err)
		}

		for _, p := range page.Items {
			playlists = append(playlists, models.Playlist{
				ID:          p.ID,
				Name:        p.Name,
				Description: p.Description,
				TrackCount:  p.Tracks.Total,
				Public:      p.Public,
				Owner:       p.Owner.DisplayName,
			})
		}

		endpoint = nextPage(page.Next)
	}

	return playlists, nil
}

// PlaylistTracks retrieves a playlist's name and every track, 100 per page, following the next cursor.
// Items without a track (removed or local files with no metadata) are skipped.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, token, playlistID string) (string, []models.TrackDescriptor, error) {
	var meta struct {
		Name string `json:"name"`
	}
	metaEndpoint := fmt.Sprintf("/playlists/%s?fields=name", url.PathEscape(playlistID))
	if err := s.api.do(ctx, token, http.MethodGet, metaEndpoint, nil, &meta); err != nil {
		return "", nil, fmt.Errorf("failed to get playlist %s: %w", playlistID, err)
	}

	tracks := []models.TrackDescriptor{}
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=0", url.PathEscape(playlistID), spotifyTrackPageSize)

	for endpoint != "" {
		var page SpotifyPaginatedItems
		if err := s.api.do(ctx, token, http.MethodGet, endpoint, nil, &page); err != nil {
			return "", nil, fmt.Errorf("failed to get tracks for playlist %s: %w", playlistID, err)
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.Name == "" {
				continue
			}
			tracks = append(tracks, toTrackDescriptor(*item.Track))
		}

		endpoint = nextPage(page.Next)
	}

	return meta.Name, tracks, nil
}

func toTrackDescriptor(t SpotifyTrack) models.TrackDescriptor {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return models.TrackDescriptor{Name: t.Name, Artists: artists, DurationMS: t.DurationMS}
}

func nextPage(cursor *string) string {
	if cursor == nil {
		return ""
	}
	return *cursor
}
