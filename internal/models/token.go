package models

import (
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// Service prefixes namespace token rows for each provider on a shared user.
const (
	ServiceSpotify = "spotify"
	ServiceYTMusic = "ytmusic"
)

// TokenInfo is the token bundle produced by a code exchange, a device poll or a refresh.
//
// RefreshToken and ExpiresAt are optional: nil means the provider did not supply one.
// When ExpiresAt is nil the store derives it from ExpiresIn at call time.
type TokenInfo struct {
	AccessToken  string
	RefreshToken *string
	TokenType    string
	ExpiresIn    int64
	ExpiresAt    *int64
}

// HasRefreshToken reports whether a non-empty refresh token is present.
func (t TokenInfo) HasRefreshToken() bool {
	return t.RefreshToken != nil && *t.RefreshToken != ""
}

// ResolveExpiresAt returns the absolute expiry, anchoring ExpiresIn to now when no explicit value was supplied.
func (t TokenInfo) ResolveExpiresAt(now time.Time) int64 {
	if t.ExpiresAt != nil {
		return *t.ExpiresAt
	}
	return now.Unix() + t.ExpiresIn
}

// TokenInfoFromOAuth2 converts an [oauth2.Token] into a [TokenInfo].
func TokenInfoFromOAuth2(tok *oauth2.Token) TokenInfo {
	info := TokenInfo{
		AccessToken: tok.AccessToken,
		TokenType:   tok.Type(),
		ExpiresIn:   tok.ExpiresIn,
	}
	if tok.RefreshToken != "" {
		rt := tok.RefreshToken
		info.RefreshToken = &rt
	}
	if !tok.Expiry.IsZero() {
		at := tok.Expiry.Unix()
		info.ExpiresAt = &at
	}
	return info
}

// TokenFields is the validity projection of a stored token set: access token, expiry and refresh token.
// A nil field is absent from the stored record.
//
// ExpiresAt is kept in its stored textual form so malformed values can be told apart from missing ones.
type TokenFields struct {
	AccessToken  *string
	ExpiresAt    *string
	RefreshToken *string
}

// Expiry parses ExpiresAt as unix seconds.
func (f TokenFields) Expiry() (int64, error) {
	if f.ExpiresAt == nil {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(*f.ExpiresAt, 10, 64)
}

// DeviceCode is what a user needs to complete a device-code login out of band.
type DeviceCode struct {
	VerificationURL string `json:"verification_url"`
	UserCode        string `json:"user_code"`
	DeviceCode      string `json:"device_code"`
	Interval        int64  `json:"interval"`
	ExpiresIn       int64  `json:"expires_in"`
}

// DevicePollStatus is the outcome of a single device-code poll.
type DevicePollStatus string

const (
	DevicePollCompleted DevicePollStatus = "completed"
	DevicePollPending   DevicePollStatus = "pending"
	DevicePollExpired   DevicePollStatus = "expired"
	DevicePollError     DevicePollStatus = "error"
)

// DevicePollResult carries the token when Status is completed and the provider's reason otherwise.
type DevicePollResult struct {
	Status  DevicePollStatus `json:"status"`
	Token   *TokenInfo       `json:"-"`
	Details string           `json:"details,omitempty"`
}
