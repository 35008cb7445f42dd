package checkins

import (
	"context"
	"time"

	"github.com/Togather-Foundation/checkin/internal/domain/errs"
	"github.com/Togather-Foundation/checkin/internal/domain/events"
	"github.com/Togather-Foundation/checkin/internal/domain/users"
	"github.com/Togather-Foundation/checkin/internal/storage"
)

var (
	ErrAlreadyCheckedIn = errs.New(errs.ErrConflict, "user has already checked in for this event")
	ErrNotFound         = errs.New(errs.ErrNotFound, "check-in not found")
)

// Checkin records that a user attended an event. CheckinTime is a UTC wall
// clock value. User and Event are populated only by the loaders that say so.
type Checkin struct {
	ID          int64
	UserID      int64
	EventID     int64
	CheckinTime time.Time
	User        *users.User
	Event       *events.Event
}

// Repository is the check-in ledger store.
//
// GetUser and GetEvent return users.ErrUserNotFound and events.ErrNotFound.
// Insert maps a (user_id, event_id) unique violation to ErrAlreadyCheckedIn and
// a foreign key violation to the not-found error of the missing parent.
type Repository interface {
	GetUser(ctx context.Context, id int64) (*users.User, error)
	GetEvent(ctx context.Context, id int64) (*events.Event, error)
	Exists(ctx context.Context, userID, eventID int64) (bool, error)
	Insert(ctx context.Context, userID, eventID int64, at time.Time) (int64, error)

	// GetWithRelations loads one check-in with User and Event.
	GetWithRelations(ctx context.Context, id int64) (*Checkin, error)
	// ListByEventWithUser loads check-ins for an event with User populated.
	ListByEventWithUser(ctx context.Context, eventID int64) ([]Checkin, error)
	// ListByUserWithEvent loads check-ins for a user with Event populated.
	ListByUserWithEvent(ctx context.Context, userID int64) ([]Checkin, error)
	// ListAllWithRelations loads every check-in with User and Event.
	ListAllWithRelations(ctx context.Context) ([]Checkin, error)

	BeginTx(ctx context.Context) (Repository, storage.TxCommitter, error)
}
