package postgres

import (
	"time"

	"github.com/Togather-Foundation/checkin/internal/auth"
	"github.com/Togather-Foundation/checkin/internal/domain/events"
	"github.com/Togather-Foundation/checkin/internal/domain/users"
)

// userScan holds the scan targets for userColumns.
type userScan struct {
	u         users.User
	role      string
	createdOn *time.Time
}

func (s *userScan) dest() []any {
	return []any{&s.u.ID, &s.u.Username, &s.u.Email, &s.u.PasswordHash, &s.role, &s.createdOn}
}

func (s *userScan) user() *users.User {
	out := s.u
	out.Role = auth.Role(s.role)
	if s.createdOn != nil {
		utc := s.createdOn.UTC()
		out.CreatedOn = &utc
	}
	return &out
}

// eventScan holds the scan targets for eventColumns.
type eventScan struct {
	e          events.Event
	start, end time.Time
}

func (s *eventScan) dest() []any {
	return []any{&s.e.ID, &s.e.Name, &s.e.Description, &s.start, &s.end}
}

func (s *eventScan) event() *events.Event {
	out := s.e
	out.StartTime = s.start.UTC()
	out.EndTime = s.end.UTC()
	return &out
}

func scanUser(row rowScanner) (*users.User, error) {
	var s userScan
	if err := row.Scan(s.dest()...); err != nil {
		return nil, err
	}
	return s.user(), nil
}

func scanEvent(row rowScanner) (*events.Event, error) {
	var s eventScan
	if err := row.Scan(s.dest()...); err != nil {
		return nil, err
	}
	return s.event(), nil
}
