package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/shared"
)

// UserStore is the user persistence behind the /users routes.
// Get, Update and Delete report [shared.ErrUserNotFound] for an unknown id.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, criteria map[string]any) ([]*models.User, error)
}

// UserView is the wire shape of a [models.User].
type UserView struct {
	UserID    string    `json:"userid"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func viewUser(u *models.User) UserView {
	return UserView{
		UserID:    u.ID(),
		Email:     u.Email(),
		Name:      u.Name(),
		CreatedAt: u.CreatedAt(),
		UpdatedAt: u.UpdatedAt(),
	}
}

type userBody struct {
	UserID string `json:"userid"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// UsersAPI serves user CRUD.
type UsersAPI struct {
	users  UserStore
	logger *log.Logger
}

func NewUsersAPI(users UserStore, logger *log.Logger) *UsersAPI {
	if logger == nil {
		logger = log.Default()
	}
	return &UsersAPI{users: users, logger: shared.WithLogger(logger, "component", "users_api")}
}

func (a *UsersAPI) Routes() []Route {
	return []Route{
		{http.MethodGet, "/users", a.list},
		{http.MethodPost, "/users", a.create},
		{http.MethodGet, "/users/{userId}", a.get},
		{http.MethodPut, "/users/{userId}", a.put},
		{http.MethodDelete, "/users/{userId}", a.delete},
	}
}

func (a *UsersAPI) list(w http.ResponseWriter, r *http.Request) {
	criteria := map[string]any{}
	if email := r.URL.Query().Get("email"); email != "" {
		criteria["email"] = email
	}

	users, err := a.users.List(r.Context(), criteria)
	if err != nil {
		writeErr(w, err, "Failed to list users")
		return
	}

	views := make([]UserView, 0, len(users))
	for _, u := range users {
		if c, ok := ClaimsFrom(r.Context()); ok && c.UserID != "" && c.UserID != u.ID() {
			continue
		}
		views = append(views, viewUser(u))
	}
	writeJSON(w, http.StatusOK, envelope{"users": views})
}

func (a *UsersAPI) create(w http.ResponseWriter, r *http.Request) {
	var body userBody
	if err := decodeBody(r, &body); err != nil {
		writeErr(w, err, "")
		return
	}
	if body.UserID != "" && !authorizedFor(w, r, body.UserID) {
		return
	}

	user := models.NewUser(body.Email, body.Name)
	user.SetID(body.UserID)
	if err := a.users.Create(r.Context(), user); err != nil {
		a.logger.Error("failed to create user", "error", err)
		writeErr(w, err, "Failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, viewUser(user))
}

func (a *UsersAPI) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUser(w, r)
	if !ok {
		return
	}

	user, err := a.users.Get(r.Context(), userID)
	if err != nil {
		writeErr(w, err, "Failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, viewUser(user))
}

// put replaces the user's email and name, creating the user when the id is new.
func (a *UsersAPI) put(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUser(w, r)
	if !ok {
		return
	}

	var body userBody
	if err := decodeBody(r, &body); err != nil {
		writeErr(w, err, "")
		return
	}

	user, err := a.users.Get(r.Context(), userID)
	switch {
	case errors.Is(err, shared.ErrUserNotFound):
		user = models.NewUser(body.Email, body.Name)
		user.SetID(userID)
		err = a.users.Create(r.Context(), user)
	case err == nil:
		user.SetEmail(body.Email)
		user.SetName(body.Name)
		err = a.users.Update(r.Context(), user)
	}
	if err != nil {
		a.logger.Error("failed to save user", "user_id", userID, "error", err)
		writeErr(w, err, "Failed to save user")
		return
	}
	writeJSON(w, http.StatusOK, viewUser(user))
}

func (a *UsersAPI) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUser(w, r)
	if !ok {
		return
	}

	if err := a.users.Delete(r.Context(), userID); err != nil {
		writeErr(w, err, "Failed to delete user")
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "User deleted"})
}
