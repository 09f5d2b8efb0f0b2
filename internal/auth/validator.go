package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/shared"
)

// TokenReader reads the validity projection of a user's token set.
type TokenReader interface {
	GetTokens(ctx context.Context, userID, service string) (*models.TokenFields, error)
}

// RefreshFunc mints and persists a new access token. It reports false when no token could be obtained.
type RefreshFunc func(ctx context.Context, userID, refreshToken string) (string, bool)

// Validator returns usable access tokens, refreshing at most once per call.
type Validator struct {
	store  TokenReader
	logger *log.Logger
	now    shared.Clock
}

// NewValidator creates a [Validator] reading from store.
func NewValidator(store TokenReader, logger *log.Logger) *Validator {
	if logger == nil {
		logger = log.Default()
	}
	return &Validator{store: store, logger: shared.WithLogger(logger, "component", "token_validator"), now: time.Now}
}

// WithClock overrides the time source used for expiry checks.
func (v *Validator) WithClock(c shared.Clock) *Validator {
	v.now = c
	return v
}

// Validate returns the access token for userID and service, or false when the user is not logged in.
//
// A malformed expiry is treated as unrecoverable and never triggers a refresh.
// A record missing its access token or expiry goes straight to refresh when it has a refresh token.
func (v *Validator) Validate(ctx context.Context, userID, service string, refresh RefreshFunc) (string, bool) {
	token, ok, _ := v.validate(ctx, userID, service, refresh)
	return token, ok
}

// validate is [Validator.Validate] with a failed token read reported as [shared.ErrPersistence].
func (v *Validator) validate(ctx context.Context, userID, service string, refresh RefreshFunc) (string, bool, error) {
	logger := v.logger.With("user_id", userID, "service", service)

	fields, err := v.store.GetTokens(ctx, userID, service)
	if err != nil {
		logger.Error("failed to read tokens", "error", err)
		if errors.Is(err, shared.ErrPersistence) {
			return "", false, err
		}
		return "", false, fmt.Errorf("%w: read tokens: %w", shared.ErrPersistence, err)
	}
	if fields == nil {
		logger.Info("no tokens found for user")
		return "", false, nil
	}

	if fields.AccessToken != nil && fields.ExpiresAt != nil {
		expiresAt, err := fields.Expiry()
		if err != nil {
			logger.Error("stored expires_at is not a unix timestamp", "expires_at", *fields.ExpiresAt)
			return "", false, nil
		}

		if expiresAt > v.now.Unix() {
			logger.Debug("valid token found")
			return *fields.AccessToken, true, nil
		}
		logger.Info("token expired", "expires_at", expiresAt)
	}

	if fields.RefreshToken == nil || refresh == nil {
		logger.Info("no refresh token found")
		return "", false, nil
	}

	logger.Info("attempting to refresh token")
	token, ok := refresh(ctx, userID, *fields.RefreshToken)
	return token, ok, nil
}
