package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/shared"
)

// UserRepository implements [models.Repository] for user [models.User] persistence.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user, generating an id when none is set
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID() == "" {
		user.SetID(shared.GenerateID())
	}

	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	query := `INSERT INTO users (id, email, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, user.ID(), user.Email(), user.Name(), user.CreatedAt().Unix(), user.UpdatedAt().Unix())
	if err != nil {
		return persistenceErr("insert user", err)
	}

	return nil
}

// Get retrieves a user by ID
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, email, name, created_at, updated_at FROM users WHERE id = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, id)
	}
	if err != nil {
		return nil, persistenceErr("query user", err)
	}

	return user, nil
}

// Exists reports whether a user row is present.
func (r *UserRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, persistenceErr("check user", err)
	}
	return exists, nil
}

// Update modifies an existing user in the database
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	user.SetUpdatedAt(now)

	query := `UPDATE users SET email = ?, name = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, user.Email(), user.Name(), now.Unix(), user.ID())
	if err != nil {
		return persistenceErr("update user", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return persistenceErr("get affected rows", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, user.ID())
	}

	return nil
}

// Delete removes a user; token rows cascade with it.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return persistenceErr("delete user", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return persistenceErr("get affected rows", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, id)
	}

	return nil
}

// List retrieves all users matching the given criteria. Supported keys: "email".
func (r *UserRepository) List(ctx context.Context, criteria map[string]any) ([]*models.User, error) {
	query := `SELECT id, email, name, created_at, updated_at FROM users WHERE 1 = 1`
	args := []any{}

	if email, ok := criteria["email"].(string); ok && email != "" {
		query += " AND email = ?"
		args = append(args, email)
	}

	query += " ORDER BY created_at ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistenceErr("query users", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, persistenceErr("scan user", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate users", err)
	}

	return users, nil
}

func scanUser(s scanner) (*models.User, error) {
	var (
		id, email, name      string
		createdAt, updatedAt int64
	)
	if err := s.Scan(&id, &email, &name, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return models.RestoreUser(id, email, name, time.Unix(createdAt, 0).UTC(), time.Unix(updatedAt, 0).UTC()), nil
}
