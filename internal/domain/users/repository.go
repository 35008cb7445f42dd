package users

import (
	"context"
	"time"

	"github.com/Togather-Foundation/checkin/internal/auth"
	"github.com/Togather-Foundation/checkin/internal/storage"
)

// Repository is the identity store. Lookups return ErrUserNotFound when no row
// matches; unique violations on username or email surface as ErrDuplicateUser.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, params CreateParams) (*User, error)
	Update(ctx context.Context, id int64, params UpdateParams) (*User, error)
	// Delete removes the user and its check-ins, returning the removed row.
	Delete(ctx context.Context, id int64) (*User, error)

	BeginTx(ctx context.Context) (Repository, storage.TxCommitter, error)
}

type CreateParams struct {
	Username     string
	Email        string
	PasswordHash string
	Role         auth.Role
	CreatedOn    time.Time
}

type UpdateParams struct {
	Username     string
	Email        string
	PasswordHash string
	Role         auth.Role
}
