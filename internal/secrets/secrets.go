// package secrets resolves provider client credentials from a secrets vault
package secrets

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/song-migrations/internal/shared"
)

// Vault keys holding each provider's OAuth client pair.
const (
	SpotifyClientIDKey     = "SPOTIPY_CLIENT_ID"
	SpotifyClientSecretKey = "SPOTIPY_CLIENT_SECRET"
	YTMusicClientIDKey     = "YTMUSIC_CLIENT_ID"
	YTMusicClientSecretKey = "YTMUSIC_CLIENT_SECRET"
)

// Provider returns the key/value pairs stored under a secret name.
//
// An unknown name fails with [shared.ErrSecretNotFound].
type Provider interface {
	GetSecret(ctx context.Context, region, name string) (map[string]string, error)
}

// StaticProvider serves secrets from memory, keyed by secret name.
type StaticProvider map[string]map[string]string

func (p StaticProvider) GetSecret(ctx context.Context, region, name string) (map[string]string, error) {
	s, ok := p[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrSecretNotFound, name)
	}
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}

// NewStaticProvider exposes the client pairs in cfg under their configured secret names.
func NewStaticProvider(cfg *shared.Config) StaticProvider {
	p := StaticProvider{}
	sp := cfg.Credentials.Spotify
	if sp.ClientID != "" || sp.ClientSecret != "" {
		p[sp.SecretName] = map[string]string{
			SpotifyClientIDKey:     sp.ClientID,
			SpotifyClientSecretKey: sp.ClientSecret,
		}
	}
	yt := cfg.Credentials.YouTube
	if yt.ClientID != "" || yt.ClientSecret != "" {
		p[yt.SecretName] = map[string]string{
			YTMusicClientIDKey:     yt.ClientID,
			YTMusicClientSecretKey: yt.ClientSecret,
		}
	}
	return p
}

// SpotifyCredentials builds the credential map [services.NewSpotifyService] expects.
func SpotifyCredentials(ctx context.Context, p Provider, cfg *shared.Config) (map[string]string, error) {
	sp := cfg.Credentials.Spotify
	secret, err := p.GetSecret(ctx, cfg.Secrets.Region, sp.SecretName)
	if err != nil {
		return nil, err
	}
	if err := requireKeys(sp.SecretName, secret, SpotifyClientIDKey, SpotifyClientSecretKey); err != nil {
		return nil, err
	}

	creds := map[string]string{
		"client_id":     secret[SpotifyClientIDKey],
		"client_secret": secret[SpotifyClientSecretKey],
		"redirect_uri":  sp.RedirectURI,
	}
	if len(sp.Scopes) > 0 {
		creds["scopes"] = strings.Join(sp.Scopes, ",")
	}
	return creds, nil
}

// YouTubeCredentials builds the credential map [services.NewYouTubeService] expects.
func YouTubeCredentials(ctx context.Context, p Provider, cfg *shared.Config) (map[string]string, error) {
	yt := cfg.Credentials.YouTube
	secret, err := p.GetSecret(ctx, cfg.Secrets.Region, yt.SecretName)
	if err != nil {
		return nil, err
	}
	if err := requireKeys(yt.SecretName, secret, YTMusicClientIDKey, YTMusicClientSecretKey); err != nil {
		return nil, err
	}

	return map[string]string{
		"client_id":     secret[YTMusicClientIDKey],
		"client_secret": secret[YTMusicClientSecretKey],
	}, nil
}

func requireKeys(name string, secret map[string]string, keys ...string) error {
	for _, k := range keys {
		if secret[k] == "" {
			return fmt.Errorf("%w: secret %s has no %s", shared.ErrMissingCredentials, name, k)
		}
	}
	return nil
}
