package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/Togather-Foundation/checkin/internal/api/problem"
	"github.com/Togather-Foundation/checkin/internal/audit"
	"github.com/Togather-Foundation/checkin/internal/auth"
	"github.com/Togather-Foundation/checkin/internal/domain/access"
	"github.com/Togather-Foundation/checkin/internal/domain/users"
)

const userKey contextKey = "user"

// Authenticator resolves an Authorization header to a stored user.
type Authenticator interface {
	AuthenticateHeader(ctx context.Context, header string) (*users.User, error)
	RequireAdminHeader(ctx context.Context, header string) (*users.User, error)
}

type resolveFunc func(ctx context.Context, header string) (*users.User, error)

// RequireUser rejects requests without a valid bearer token and stores the
// resolved user in the context. With roles given, the user must also hold
// one of them.
func RequireUser(authn Authenticator, env string, roles ...auth.Role) func(http.Handler) http.Handler {
	return withUser(func(ctx context.Context, header string) (*users.User, error) {
		user, err := authn.AuthenticateHeader(ctx, header)
		if err != nil {
			return nil, err
		}
		if len(roles) > 0 {
			if err := access.Authorize(user, roles...); err != nil {
				return nil, err
			}
		}
		return user, nil
	}, env)
}

// RequireAdmin admits only admins, as decided by the guard.
func RequireAdmin(authn Authenticator, env string) func(http.Handler) http.Handler {
	return withUser(authn.RequireAdminHeader, env)
}

func withUser(resolve resolveFunc, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolve(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				problem.FromError(w, r, err, env)
				return
			}

			ctx := ContextWithUser(r.Context(), user)
			ctx = audit.WithActor(ctx, audit.Actor{Username: user.Username, IPAddress: remoteIP(r)})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ContextWithUser(ctx context.Context, user *users.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user, or nil outside RequireUser.
func UserFromContext(ctx context.Context) *users.User {
	if ctx == nil {
		return nil
	}
	user, _ := ctx.Value(userKey).(*users.User)
	return user
}

func remoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
