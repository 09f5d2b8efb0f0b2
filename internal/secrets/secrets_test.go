package secrets

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/desertthunder/song-migrations/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets struct {
	values map[string]*string
	err    error
	calls  int
}

func (f *fakeSecrets) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.values[aws.ToString(in.SecretId)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: v}, nil
}

func newTestProvider(f *fakeSecrets) (*AWSProvider, *[]string) {
	var regions []string
	p := NewAWSProvider(shared.NewLogger(&bytes.Buffer{}))
	p.newClient = func(ctx context.Context, region string) (secretsAPI, error) {
		regions = append(regions, region)
		return f, nil
	}
	return p, &regions
}

func TestAWSProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes JSON secret", func(t *testing.T) {
		f := &fakeSecrets{values: map[string]*string{
			"Spotify": aws.String(`{"SPOTIPY_CLIENT_ID":"id","SPOTIPY_CLIENT_SECRET":"secret"}`),
		}}
		p, regions := newTestProvider(f)

		s, err := p.GetSecret(ctx, "eu-west-1", "Spotify")
		require.NoError(t, err)
		assert.Equal(t, "id", s[SpotifyClientIDKey])

		_, err = p.GetSecret(ctx, "eu-west-1", "Spotify")
		require.NoError(t, err)
		assert.Equal(t, []string{"eu-west-1"}, *regions, "client reused per region")
		assert.Equal(t, 2, f.calls)
	})

	t.Run("missing secret is not found", func(t *testing.T) {
		p, _ := newTestProvider(&fakeSecrets{})
		_, err := p.GetSecret(ctx, "eu-west-1", "Nope")
		assert.True(t, errors.Is(err, shared.ErrSecretNotFound))
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("binary secret is not found", func(t *testing.T) {
		p, _ := newTestProvider(&fakeSecrets{values: map[string]*string{"Bin": nil}})
		_, err := p.GetSecret(ctx, "eu-west-1", "Bin")
		assert.True(t, errors.Is(err, shared.ErrSecretNotFound))
	})

	t.Run("malformed JSON", func(t *testing.T) {
		p, _ := newTestProvider(&fakeSecrets{values: map[string]*string{"Bad": aws.String("plain")}})
		_, err := p.GetSecret(ctx, "eu-west-1", "Bad")
		assert.True(t, errors.Is(err, shared.ErrInvalidConfig))
	})

	t.Run("service error is upstream", func(t *testing.T) {
		p, _ := newTestProvider(&fakeSecrets{err: errors.New("throttled")})
		_, err := p.GetSecret(ctx, "eu-west-1", "Spotify")
		assert.True(t, errors.Is(err, shared.ErrUpstream))
	})
}

func TestCredentials(t *testing.T) {
	ctx := context.Background()
	cfg := shared.DefaultConfig()
	cfg.Credentials.Spotify.ClientID = "sp-id"
	cfg.Credentials.Spotify.ClientSecret = "sp-secret"
	cfg.Credentials.Spotify.RedirectURI = "http://localhost:3000/spotify/callback"
	cfg.Credentials.Spotify.Scopes = []string{"playlist-read-private", "user-library-read"}
	cfg.Credentials.YouTube.ClientID = "yt-id"
	cfg.Credentials.YouTube.ClientSecret = "yt-secret"

	p := NewStaticProvider(cfg)

	t.Run("spotify", func(t *testing.T) {
		creds, err := SpotifyCredentials(ctx, p, cfg)
		require.NoError(t, err)
		assert.Equal(t, "sp-id", creds["client_id"])
		assert.Equal(t, "sp-secret", creds["client_secret"])
		assert.Equal(t, "http://localhost:3000/spotify/callback", creds["redirect_uri"])
		assert.Equal(t, "playlist-read-private,user-library-read", creds["scopes"])
	})

	t.Run("youtube", func(t *testing.T) {
		creds, err := YouTubeCredentials(ctx, p, cfg)
		require.NoError(t, err)
		assert.Equal(t, "yt-id", creds["client_id"])
		assert.Equal(t, "yt-secret", creds["client_secret"])
	})

	t.Run("unconfigured service", func(t *testing.T) {
		bare := shared.DefaultConfig()
		bare.Credentials.YouTube.ClientID = ""
		bare.Credentials.YouTube.ClientSecret = ""
		_, err := YouTubeCredentials(ctx, NewStaticProvider(bare), bare)
		assert.True(t, errors.Is(err, shared.ErrSecretNotFound))
	})

	t.Run("incomplete secret", func(t *testing.T) {
		partial := StaticProvider{cfg.Credentials.Spotify.SecretName: {SpotifyClientIDKey: "id"}}
		_, err := SpotifyCredentials(ctx, partial, cfg)
		assert.True(t, errors.Is(err, shared.ErrMissingCredentials))
	})

	t.Run("static provider returns copies", func(t *testing.T) {
		s, err := p.GetSecret(ctx, "", cfg.Credentials.Spotify.SecretName)
		require.NoError(t, err)
		s[SpotifyClientIDKey] = "changed"
		again, _ := p.GetSecret(ctx, "", cfg.Credentials.Spotify.SecretName)
		assert.Equal(t, "sp-id", again[SpotifyClientIDKey])
	})
}
