package handlers

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/Togather-Foundation/checkin/internal/api/middleware"
	"github.com/Togather-Foundation/checkin/internal/api/problem"
	"github.com/Togather-Foundation/checkin/internal/domain/access"
	"github.com/Togather-Foundation/checkin/internal/domain/checkins"
	"github.com/Togather-Foundation/checkin/internal/domain/errs"
	"github.com/Togather-Foundation/checkin/internal/domain/users"
)

// AccountService is the self-service side of the users domain.
type AccountService interface {
	Register(ctx context.Context, params users.RegisterParams) (*users.User, error)
	Login(ctx context.Context, email, password string) (*users.Token, error)
}

// UserCheckins lists one user's check-ins with their events.
type UserCheckins interface {
	ListByUser(ctx context.Context, userID int64) ([]checkins.Checkin, error)
}

// UsersHandler serves registration, login and the caller's own data.
type UsersHandler struct {
	accounts AccountService
	checkins UserCheckins
	env      string
}

func NewUsersHandler(accounts AccountService, checkins UserCheckins, env string) *UsersHandler {
	return &UsersHandler{accounts: accounts, checkins: checkins, env: env}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// LoginRequest is the JSON login body. Username is accepted as an alias for
// Email so OAuth2-style clients can post JSON too.
type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register handles POST /users/register.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}

	user, err := h.accounts.Register(r.Context(), users.RegisterParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Login handles POST /users/login. Form posts carry the email in the
// username field.
func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) {
	email, password, err := loginCredentials(r)
	if err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}

	token, err := h.accounts.Login(r.Context(), email, password)
	if err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   int64(token.ExpiresIn.Seconds()),
	})
}

const maxMultipartMemory = 64 << 10

func loginCredentials(r *http.Request) (email, password string, err error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		parse := r.ParseForm
		if mediaType == "multipart/form-data" {
			parse = func() error { return r.ParseMultipartForm(maxMultipartMemory) }
		}
		if err := parse(); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return "", "", err
			}
			return "", "", errs.Validation("malformed form body")
		}
		return r.PostForm.Get("username"), r.PostForm.Get("password"), nil
	default:
		var req LoginRequest
		if err := decodeJSON(r, &req); err != nil {
			return "", "", err
		}
		email = req.Email
		if strings.TrimSpace(email) == "" {
			email = req.Username
		}
		return email, req.Password, nil
	}
}

// Me handles GET /users/me.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		problem.FromError(w, r, access.ErrUnauthorized, h.env)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// MyCheckins handles GET /users/me/checkins.
func (h *UsersHandler) MyCheckins(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		problem.FromError(w, r, access.ErrUnauthorized, h.env)
		return
	}

	list, err := h.checkins.ListByUser(r.Context(), user.ID)
	if err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, toCheckinList(list))
}
