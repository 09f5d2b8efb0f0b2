package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrSecretNotFound     = fmt.Errorf("%w: secret not found", ErrNotFound)

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrDeviceCodeFlow   = fmt.Errorf("device code flow failed")

	// Upstream (provider) errors
	ErrUpstream           = fmt.Errorf("upstream request failed")
	ErrAPIRequest         = fmt.Errorf("%w: API request failed", ErrUpstream)
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPublishFailed      = fmt.Errorf("%w: publish failed", ErrUpstream)

	// Persistence errors
	ErrPersistence = fmt.Errorf("persistence failure")

	// Lookup errors
	ErrNotFound         = fmt.Errorf("not found")
	ErrUserNotFound     = fmt.Errorf("%w: user", ErrNotFound)
	ErrTransferNotFound = fmt.Errorf("%w: transfer", ErrNotFound)

	// Input validation errors
	ErrValidation      = fmt.Errorf("validation failed")
	ErrMissingArgument = fmt.Errorf("%w: missing required argument", ErrValidation)
	ErrInvalidArgument = fmt.Errorf("%w: invalid argument", ErrValidation)
)
