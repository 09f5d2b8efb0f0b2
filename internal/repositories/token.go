package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/shared"
)

// TokenRepository stores OAuth token sets per (user, service prefix).
type TokenRepository struct {
	db     *sql.DB
	logger *log.Logger
	now    shared.Clock
}

// NewTokenRepository creates a [TokenRepository]. A nil logger falls back to [log.Default].
func NewTokenRepository(db *sql.DB, logger *log.Logger) *TokenRepository {
	if logger == nil {
		logger = log.Default()
	}
	return &TokenRepository{db: db, logger: shared.WithLogger(logger, "component", "token_store"), now: time.Now}
}

// WithClock overrides the time source used for expires_at and updated_at.
func (r *TokenRepository) WithClock(c shared.Clock) *TokenRepository {
	r.now = c
	return r
}

// GetTokens projects the access token, expiry and refresh token for a user and service.
//
// It returns nil when the user does not exist and a [models.TokenFields] with nil
// fields when the user exists but has no (or a partial) token row.
func (r *TokenRepository) GetTokens(ctx context.Context, userID, service string) (*models.TokenFields, error) {
	query := `
		SELECT t.access_token, CAST(t.expires_at AS TEXT), t.refresh_token
		FROM users u
		LEFT JOIN tokens t ON t.user_id = u.id AND t.service = ?
		WHERE u.id = ?
	`

	var access, expiresAt, refresh sql.NullString
	err := r.db.QueryRowContext(ctx, query, service, userID).Scan(&access, &expiresAt, &refresh)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceErr("get tokens", err)
	}

	return &models.TokenFields{
		AccessToken:  stringPtr(access),
		ExpiresAt:    stringPtr(expiresAt),
		RefreshToken: stringPtr(refresh),
	}, nil
}

// StoreTokens writes a full token set for an existing user, replacing every token field for the service.
func (r *TokenRepository) StoreTokens(ctx context.Context, userID string, info models.TokenInfo, service string) error {
	now := r.now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistenceErr("begin transaction", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, userID).Scan(&exists); err != nil {
		return persistenceErr("check user", err)
	}
	if !exists {
		return fmt.Errorf("%w: user %s does not exist", shared.ErrUserNotFound, userID)
	}

	query := `
		INSERT INTO tokens (user_id, service, access_token, refresh_token, token_type, expires_in, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, service) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			expires_in = excluded.expires_in,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	_, err = tx.ExecContext(ctx, query,
		userID, service, info.AccessToken, nullString(info.RefreshToken), info.TokenType,
		info.ExpiresIn, info.ResolveExpiresAt(now), now.Unix(),
	)
	if err != nil {
		return persistenceErr("store tokens", err)
	}

	if err := tx.Commit(); err != nil {
		return persistenceErr("commit tokens", err)
	}

	r.logger.Debug("stored tokens", "user_id", userID, "service", service)
	return nil
}

// UpdateToken applies a refresh result: access token, expiry and updated_at always,
// the refresh token only when info carries one. Failures are logged and reported as false.
func (r *TokenRepository) UpdateToken(ctx context.Context, userID string, info models.TokenInfo, service string) bool {
	now := r.now()

	set := `access_token = excluded.access_token, expires_at = excluded.expires_at, updated_at = excluded.updated_at`
	if info.HasRefreshToken() {
		set += `, refresh_token = excluded.refresh_token`
	}

	query := `
		INSERT INTO tokens (user_id, service, access_token, refresh_token, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, service) DO UPDATE SET ` + set

	_, err := r.db.ExecContext(ctx, query,
		userID, service, info.AccessToken, nullString(info.RefreshToken), info.ResolveExpiresAt(now), now.Unix(),
	)
	if err != nil {
		r.logger.Error("failed to update token", "user_id", userID, "service", service, "error", err)
		return false
	}

	return true
}
