package users

import (
	"time"

	"github.com/Togather-Foundation/checkin/internal/auth"
	"github.com/Togather-Foundation/checkin/internal/domain/errs"
)

// Error types for user domain operations
var (
	ErrUserNotFound       = errs.New(errs.ErrNotFound, "user not found")
	ErrEmailTaken         = errs.New(errs.ErrConflict, "email already registered")
	ErrUsernameTaken      = errs.New(errs.ErrConflict, "username already taken")
	ErrDuplicateUser      = errs.New(errs.ErrConflict, "user already exists")
	ErrInvalidEmail       = errs.New(errs.ErrValidation, "invalid email")
	ErrInvalidRole        = errs.New(errs.ErrValidation, "invalid role")
	ErrPasswordTooLong    = errs.New(errs.ErrValidation, "password must be at most 72 bytes")
	ErrInvalidCredentials = errs.New(errs.ErrUnauthorized, "invalid credentials")
	ErrAdminSelfAssign    = errs.New(errs.ErrForbidden, "admin role cannot be requested at registration")
)

// User is a registered account. PasswordHash never leaves the service layer.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         auth.Role
	CreatedOn    *time.Time
}

func (u *User) IsAdmin() bool {
	return u != nil && auth.IsAdmin(u.Role)
}

// Token is the result of a successful login.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration
}
