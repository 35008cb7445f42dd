package events

import (
	"context"
	"time"

	"github.com/Togather-Foundation/checkin/internal/domain/errs"
)

var (
	ErrNotFound     = errs.New(errs.ErrNotFound, "event not found")
	ErrInvalidRange = errs.New(errs.ErrValidation, "end_time must not be before start_time")
)

type Event struct {
	ID          int64
	Name        string
	Description *string
	StartTime   time.Time
	EndTime     time.Time
}

// Repository is the event store. Lookups return ErrNotFound when no row
// matches. Deleting an event removes its check-ins in the same statement.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Event, error)
	List(ctx context.Context) ([]Event, error)
	GetByID(ctx context.Context, id int64) (*Event, error)
	Delete(ctx context.Context, id int64) (*Event, error)
}

type CreateParams struct {
	Name        string
	Description *string
	StartTime   time.Time
	EndTime     time.Time
}
