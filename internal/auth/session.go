package auth

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/services"
	"github.com/desertthunder/song-migrations/internal/shared"
)

// TokenStore is the token persistence a [Session] needs.
type TokenStore interface {
	TokenReader
	StoreTokens(ctx context.Context, userID string, info models.TokenInfo, service string) error
	UpdateToken(ctx context.Context, userID string, info models.TokenInfo, service string) bool
}

// LoginStart is what a caller shows the user to begin a login: an authorize URL
// for authorization-code providers or a device code for device-code providers.
type LoginStart struct {
	AuthorizeURL string             `json:"url,omitempty"`
	Device       *models.DeviceCode `json:"data,omitempty"`
}

// Session ties one service prefix to its OAuth provider and the token store.
type Session struct {
	service   string
	provider  services.OAuthProvider
	store     TokenStore
	validator *Validator
	logger    *log.Logger
}

// NewSession creates a [Session]. provider may be nil when the service has no
// client credentials; login and refresh then fail with [shared.ErrServiceUnavailable].
func NewSession(service string, provider services.OAuthProvider, store TokenStore, validator *Validator, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	return &Session{
		service:   service,
		provider:  provider,
		store:     store,
		validator: validator,
		logger:    shared.WithLogger(logger, "component", "session", "service", service),
	}
}

// Service returns the service prefix.
func (s *Session) Service() string { return s.service }

// Refresh is the [RefreshFunc] for this service: refresh through the provider, then
// persist with a partial update. Either step failing yields false.
func (s *Session) Refresh(ctx context.Context, userID, refreshToken string) (string, bool) {
	if s.provider == nil {
		s.logger.Warn("cannot refresh without provider credentials", "user_id", userID)
		return "", false
	}

	info, err := s.provider.Refresh(ctx, refreshToken)
	if err != nil {
		s.logger.Error("token refresh failed", "user_id", userID, "error", err)
		return "", false
	}

	if !s.store.UpdateToken(ctx, userID, *info, s.service) {
		s.logger.Error("failed to persist refreshed token", "user_id", userID)
		return "", false
	}

	s.logger.Info("token refreshed", "user_id", userID)
	return info.AccessToken, true
}

// AccessToken returns a usable access token or [shared.ErrNotAuthenticated].
// A failed token read is returned as [shared.ErrPersistence].
func (s *Session) AccessToken(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	token, ok, err := s.validator.validate(ctx, userID, s.service, s.Refresh)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", shared.ErrNotAuthenticated, s.service)
	}
	return token, nil
}

// IsLoggedIn reports whether userID holds a usable token, refreshing when needed.
func (s *Session) IsLoggedIn(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}
	_, ok := s.validator.Validate(ctx, userID, s.service, s.Refresh)
	return ok, nil
}

// StartLogin begins the provider's login flow for userID. The user id doubles as the OAuth state.
func (s *Session) StartLogin(ctx context.Context, userID string) (*LoginStart, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	switch p := s.provider.(type) {
	case services.AuthCodeProvider:
		return &LoginStart{AuthorizeURL: p.AuthorizeURL(userID)}, nil
	case services.DeviceCodeProvider:
		code, err := p.DeviceCode(ctx)
		if err != nil {
			return nil, err
		}
		return &LoginStart{Device: code}, nil
	case nil:
		return nil, fmt.Errorf("%w: %s has no client credentials", shared.ErrServiceUnavailable, s.service)
	default:
		return nil, fmt.Errorf("%w: %s login", shared.ErrNotImplemented, s.service)
	}
}

// Callback completes an authorization-code login and stores the full token set.
func (s *Session) Callback(ctx context.Context, userID, code string) error {
	if userID == "" || code == "" {
		return fmt.Errorf("%w: userId and code are required", shared.ErrMissingArgument)
	}

	p, ok := s.provider.(services.AuthCodeProvider)
	if !ok {
		return fmt.Errorf("%w: %s does not use authorization codes", shared.ErrServiceUnavailable, s.service)
	}

	info, err := p.Exchange(ctx, code)
	if err != nil {
		return err
	}

	if err := s.store.StoreTokens(ctx, userID, *info, s.service); err != nil {
		return err
	}

	s.logger.Info("login completed", "user_id", userID)
	return nil
}

// Poll checks a device-code login once. A completed poll stores the full token set.
func (s *Session) Poll(ctx context.Context, userID, deviceCode string) (*models.DevicePollResult, error) {
	if userID == "" || deviceCode == "" {
		return nil, fmt.Errorf("%w: userId and device_code are required", shared.ErrMissingArgument)
	}

	p, ok := s.provider.(services.DeviceCodeProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not use device codes", shared.ErrServiceUnavailable, s.service)
	}

	result, err := p.PollDeviceCode(ctx, deviceCode)
	if err != nil {
		return nil, err
	}

	if result.Status == models.DevicePollCompleted && result.Token != nil {
		if err := s.store.StoreTokens(ctx, userID, *result.Token, s.service); err != nil {
			return nil, err
		}
		s.logger.Info("login completed", "user_id", userID)
	}

	return result, nil
}
