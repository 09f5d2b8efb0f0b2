package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/song-migrations/internal/auth"
	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/server"
	"github.com/desertthunder/song-migrations/internal/shared"
	"github.com/urfave/cli/v3"
)

const (
	defaultTokenTTL   = 24 * time.Hour
	loginTimeout      = 2 * time.Minute
	defaultPollPeriod = 5 * time.Second

	defaultDeviceExpiry = 30 * time.Minute
)

// AuthStatus reports whether the user holds a usable token, refreshing it when needed.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	service := cmd.String("service")
	session, err := r.session(service)
	if err != nil {
		return err
	}

	userID := cmd.String("user")
	ok, err := session.IsLoggedIn(ctx, userID)
	if err != nil {
		return err
	}

	if ok {
		return r.writePlain("✓ %s: logged in as %s\n", service, userID)
	}
	return r.writePlain("✗ %s: not logged in as %s\n", service, userID)
}

// AuthLogin runs the service's interactive login: a browser redirect caught by a
// local callback server for Spotify, a polled device code for YouTube Music.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	service := cmd.String("service")
	session, err := r.session(service)
	if err != nil {
		return err
	}

	userID := cmd.String("user")
	start, err := session.StartLogin(ctx, userID)
	if err != nil {
		return err
	}

	if start.Device != nil {
		return r.pollDeviceLogin(ctx, session, userID, start.Device)
	}
	return r.redirectLogin(ctx, session, userID, start, cmd.Bool("open"))
}

// AuthCallback completes a Spotify login with a code copied from the redirect URL.
func (r *Runner) AuthCallback(ctx context.Context, cmd *cli.Command) error {
	session, err := r.session(models.ServiceSpotify)
	if err != nil {
		return err
	}

	userID := cmd.String("user")
	if err := session.Callback(ctx, userID, cmd.String("code")); err != nil {
		return err
	}
	return r.writePlain("✓ Authentication successful\n")
}

// AuthToken issues an HS256 bearer token for the HTTP API.
func (r *Runner) AuthToken(ctx context.Context, cmd *cli.Command) error {
	secret := r.config.Server.JWTSecret
	if secret == "" {
		return fmt.Errorf("%w: server.jwt_secret is not set", shared.ErrMissingConfig)
	}

	token, err := server.GenerateToken(cmd.String("user"), []byte(secret), cmd.Duration("ttl"))
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", token)
}

// redirectLogin serves the redirect URI locally until the provider calls back.
func (r *Runner) redirectLogin(ctx context.Context, session server.LoginSession, userID string, start *auth.LoginStart, open bool) error {
	redirect, err := url.Parse(r.config.Credentials.Spotify.RedirectURI)
	if err != nil || redirect.Host == "" {
		return fmt.Errorf("%w: invalid redirect_uri %q", shared.ErrInvalidConfig, r.config.Credentials.Spotify.RedirectURI)
	}

	oauthHandler := server.NewOAuthHandler(session, redirect.Path, userID)
	router := server.NewMuxRouter()
	router.Handler(oauthHandler)

	httpServer := &http.Server{Addr: redirect.Host, Handler: router}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("starting OAuth callback server", "addr", redirect.Host)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	r.writePlain("→ Redirecting to Spotify for authentication.\n")
	if !open || shared.OpenBrowser(start.AuthorizeURL) != nil {
		r.writePlain("Please open this URL in your browser:\n%s\n\n", start.AuthorizeURL)
	}
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", loginTimeout)

	timeout := time.NewTimer(loginTimeout)
	defer timeout.Stop()

	select {
	case result := <-oauthHandler.Result():
		if err := result.Error(); err != nil {
			return fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
		}
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return fmt.Errorf("%w: authorization timed out after %s", shared.ErrAuthFailed, loginTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	return r.writePlainln("✓ Authentication successful")
}

// pollDeviceLogin shows the device code and polls at the provider's interval until
// the login completes, fails or the code expires.
func (r *Runner) pollDeviceLogin(ctx context.Context, session server.LoginSession, userID string, code *models.DeviceCode) error {
	r.writePlain("→ Redirecting to Google for authentication.\n")
	r.writePlain("Visit %s and enter code %s\n", code.VerificationURL, code.UserCode)

	interval := time.Duration(code.Interval) * time.Second
	if interval <= 0 {
		interval = defaultPollPeriod
	}
	expires := time.Duration(code.ExpiresIn) * time.Second
	if expires <= 0 {
		expires = defaultDeviceExpiry
	}
	ctx, cancel := context.WithTimeout(ctx, expires)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: device code expired", shared.ErrAuthFailed)
		case <-ticker.C:
		}

		result, err := session.Poll(ctx, userID, code.DeviceCode)
		if err != nil {
			return err
		}

		switch result.Status {
		case models.DevicePollCompleted:
			return r.writePlainln("✓ Authentication successful")
		case models.DevicePollPending:
			r.logger.Debug("authorization pending", "details", result.Details)
		case models.DevicePollExpired:
			return fmt.Errorf("%w: device code expired", shared.ErrAuthFailed)
		default:
			return fmt.Errorf("%w: %s", shared.ErrDeviceCodeFlow, result.Details)
		}
	}
}
