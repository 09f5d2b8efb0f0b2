package models

import (
	"fmt"
	"strings"
	"time"
)

// User is the account record that per-service token sets belong to.
type User struct {
	id        string
	email     string
	name      string
	createdAt time.Time
	updatedAt time.Time
}

// NewUser creates a [User] stamped with the current time. The id is assigned on create.
func NewUser(email, name string) *User {
	now := time.Now().UTC().Truncate(time.Second)
	return &User{email: email, name: name, createdAt: now, updatedAt: now}
}

// RestoreUser rebuilds a [User] read from storage.
func RestoreUser(id, email, name string, createdAt, updatedAt time.Time) *User {
	return &User{id: id, email: email, name: name, createdAt: createdAt, updatedAt: updatedAt}
}

func (u *User) ID() string { return u.id }
func (u *User) Email() string { return u.email }
func (u *User) Name() string { return u.name }
func (u *User) CreatedAt() time.Time { return u.createdAt }
func (u *User) UpdatedAt() time.Time { return u.updatedAt }

func (u *User) SetID(id string) { u.id = id }
func (u *User) SetEmail(email string) { u.email = email }
func (u *User) SetName(name string) { u.name = name }
func (u *User) SetUpdatedAt(t time.Time) { u.updatedAt = t }

// Validate checks that the user has an id and a plausible email when one is set.
func (u *User) Validate() error {
	if strings.TrimSpace(u.id) == "" {
		return fmt.Errorf("user id is required")
	}
	if u.email != "" && !strings.Contains(u.email, "@") {
		return fmt.Errorf("invalid email: %s", u.email)
	}
	return nil
}
