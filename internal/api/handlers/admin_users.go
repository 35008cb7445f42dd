package handlers

import (
	"context"
	"net/http"

	"github.com/Togather-Foundation/checkin/internal/api/problem"
	"github.com/Togather-Foundation/checkin/internal/domain/users"
)

// UserService defines the admin user management operations.
type UserService interface {
	ListUsers(ctx context.Context) ([]users.User, error)
	CreateUser(ctx context.Context, params users.CreateUserParams) (*users.User, error)
	UpdateUser(ctx context.Context, id int64, params users.UpdateUserParams) (*users.User, error)
	DeleteUser(ctx context.Context, id int64) (*users.User, error)
}

// AdminUsersHandler handles user CRUD under /admin/users.
type AdminUsersHandler struct {
	userService UserService
	env         string
}

func NewAdminUsersHandler(userService UserService, env string) *AdminUsersHandler {
	return &AdminUsersHandler{userService: userService, env: env}
}

// UserRequest is the body for both create and full update.
type UserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// ListUsers handles GET /admin/users.
func (h *AdminUsersHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.userService.ListUsers(r.Context())
	if err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, toUserList(list))
}

// CreateUser handles POST /admin/users.
func (h *AdminUsersHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := decodeJSON(r, &req); err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}

	user, err := h.userService.CreateUser(r.Context(), users.CreateUserParams{
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

// UpdateUser handles PUT /admin/users/{id}. Every field is overwritten.
func (h *AdminUsersHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}

	var req UserRequest
	if err := decodeJSON(r, &req); err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}

	user, err := h.userService.UpdateUser(r.Context(), id, users.UpdateUserParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// DeleteUser handles DELETE /admin/users/{id} and returns the removed user.
func (h *AdminUsersHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}

	user, err := h.userService.DeleteUser(r.Context(), id)
	if err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
