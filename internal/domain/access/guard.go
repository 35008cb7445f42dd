// Package access resolves bearer tokens to users and enforces role gates.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/checkin/internal/auth"
	"github.com/Togather-Foundation/checkin/internal/domain/errs"
	"github.com/Togather-Foundation/checkin/internal/domain/users"
	"github.com/Togather-Foundation/checkin/internal/metrics"
)

var (
	ErrUnauthorized = errs.New(errs.ErrUnauthorized, "could not validate credentials")
	ErrForbidden    = errs.New(errs.ErrForbidden, "not enough permissions")
)

// TokenValidator decodes and verifies a bearer token.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// UserLookup resolves a user id from a token to a stored user.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*users.User, error)
}

type Guard struct {
	tokens TokenValidator
	users  UserLookup
	logger zerolog.Logger
}

func NewGuard(tokens TokenValidator, lookup UserLookup, logger zerolog.Logger) *Guard {
	return &Guard{
		tokens: tokens,
		users:  lookup,
		logger: logger.With().Str("component", "access").Logger(),
	}
}

// Authenticate returns the user a token belongs to. Missing, malformed,
// expired or forged tokens and tokens for deleted users all yield
// ErrUnauthorized.
func (g *Guard) Authenticate(ctx context.Context, token string) (*users.User, error) {
	claims, err := g.tokens.Validate(token)
	if err != nil {
		metrics.AuthFailuresTotal.WithLabelValues("invalid_token").Inc()
		return nil, ErrUnauthorized
	}

	user, err := g.users.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			metrics.AuthFailuresTotal.WithLabelValues("unknown_user").Inc()
			g.logger.Debug().Int64("user_id", claims.UserID).Msg("token subject no longer exists")
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("resolve token subject: %w", err)
	}
	return user, nil
}

// AuthenticateHeader extracts a bearer token from an Authorization header
// value and authenticates it.
func (g *Guard) AuthenticateHeader(ctx context.Context, header string) (*users.User, error) {
	token, err := auth.TokenFromHeader(header)
	if err != nil {
		metrics.AuthFailuresTotal.WithLabelValues("invalid_token").Inc()
		return nil, ErrUnauthorized
	}
	return g.Authenticate(ctx, token)
}

// RequireAdmin authenticates the token and requires the admin role.
func (g *Guard) RequireAdmin(ctx context.Context, token string) (*users.User, error) {
	user, err := g.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := Authorize(user, auth.RoleAdmin); err != nil {
		return nil, err
	}
	return user, nil
}

// RequireAdminHeader is RequireAdmin for an Authorization header value.
func (g *Guard) RequireAdminHeader(ctx context.Context, header string) (*users.User, error) {
	token, err := auth.TokenFromHeader(header)
	if err != nil {
		metrics.AuthFailuresTotal.WithLabelValues("invalid_token").Inc()
		return nil, ErrUnauthorized
	}
	return g.RequireAdmin(ctx, token)
}

// Authorize fails with ErrForbidden unless user holds one of the roles.
func Authorize(user *users.User, allowed ...auth.Role) error {
	if user == nil {
		return ErrUnauthorized
	}
	if !auth.HasRole(user.Role, allowed...) {
		metrics.AuthFailuresTotal.WithLabelValues("forbidden").Inc()
		return ErrForbidden
	}
	return nil
}
