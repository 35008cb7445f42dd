package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Togather-Foundation/checkin/internal/domain/checkins"
	"github.com/Togather-Foundation/checkin/internal/domain/events"
	"github.com/Togather-Foundation/checkin/internal/domain/users"
	"github.com/Togather-Foundation/checkin/internal/metrics"
	"github.com/Togather-Foundation/checkin/internal/storage"
)

const (
	checkinColumns = `c.id, c.user_id, c.event_id, c.checkin_time`

	checkinUserColumns  = `u.id, u.username, u.email, u.password_hash, u.role, u.created_on`
	checkinEventColumns = `e.id, e.name, e.description, e.start_time, e.end_time`
)

type CheckinRepository struct {
	conn
}

func (r *CheckinRepository) BeginTx(ctx context.Context) (checkins.Repository, storage.TxCommitter, error) {
	txConn, committer, err := r.begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	return &CheckinRepository{conn: txConn}, committer, nil
}

func (r *CheckinRepository) GetUser(ctx context.Context, id int64) (*users.User, error) {
	return (&UserRepository{conn: r.conn}).GetByID(ctx, id)
}

func (r *CheckinRepository) GetEvent(ctx context.Context, id int64) (*events.Event, error) {
	return (&EventRepository{conn: r.conn}).GetByID(ctx, id)
}

func (r *CheckinRepository) Exists(ctx context.Context, userID, eventID int64) (bool, error) {
	var exists bool
	err := r.queryer().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM checkins WHERE user_id = $1 AND event_id = $2)`,
		userID, eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check existing check-in: %w", err)
	}
	return exists, nil
}

// Insert stores a check-in. at is written as a timestamp without time zone
// and must already be in UTC.
func (r *CheckinRepository) Insert(ctx context.Context, userID, eventID int64, at time.Time) (id int64, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, checkins.ErrAlreadyCheckedIn) || errors.Is(err, users.ErrUserNotFound) || errors.Is(err, events.ErrNotFound) {
			metrics.RecordQuery("checkins_insert", start, nil)
			return
		}
		metrics.RecordQuery("checkins_insert", start, err)
	}()

	err = r.queryer().QueryRow(ctx,
		`INSERT INTO checkins (user_id, event_id, checkin_time) VALUES ($1, $2, $3) RETURNING id`,
		userID, eventID, at.UTC(),
	).Scan(&id)
	if err == nil {
		return id, nil
	}

	switch code, constraint := pgErrorCode(err); code {
	case pgUniqueViolation:
		return 0, checkins.ErrAlreadyCheckedIn
	case pgForeignKeyViolation:
		if constraint == "checkins_user_id_fkey" {
			return 0, users.ErrUserNotFound
		}
		return 0, events.ErrNotFound
	}
	return 0, fmt.Errorf("insert check-in: %w", err)
}

func (r *CheckinRepository) GetWithRelations(ctx context.Context, id int64) (*checkins.Checkin, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT `+checkinColumns+`, `+checkinUserColumns+`, `+checkinEventColumns+`
  FROM checkins c
  JOIN users u ON u.id = c.user_id
  JOIN events e ON e.id = c.event_id
 WHERE c.id = $1`, id)

	checkin, err := scanCheckin(row, true, true)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkins.ErrNotFound
		}
		return nil, fmt.Errorf("query check-in: %w", err)
	}
	return checkin, nil
}

func (r *CheckinRepository) ListByEventWithUser(ctx context.Context, eventID int64) ([]checkins.Checkin, error) {
	return r.list(ctx, "checkins_list_by_event", `
SELECT `+checkinColumns+`, `+checkinUserColumns+`
  FROM checkins c
  JOIN users u ON u.id = c.user_id
 WHERE c.event_id = $1
 ORDER BY c.checkin_time, c.id`, true, false, eventID)
}

func (r *CheckinRepository) ListByUserWithEvent(ctx context.Context, userID int64) ([]checkins.Checkin, error) {
	return r.list(ctx, "checkins_list_by_user", `
SELECT `+checkinColumns+`, `+checkinEventColumns+`
  FROM checkins c
  JOIN events e ON e.id = c.event_id
 WHERE c.user_id = $1
 ORDER BY c.checkin_time, c.id`, false, true, userID)
}

func (r *CheckinRepository) ListAllWithRelations(ctx context.Context) ([]checkins.Checkin, error) {
	return r.list(ctx, "checkins_list_all", `
SELECT `+checkinColumns+`, `+checkinUserColumns+`, `+checkinEventColumns+`
  FROM checkins c
  JOIN users u ON u.id = c.user_id
  JOIN events e ON e.id = c.event_id
 ORDER BY c.checkin_time, c.id`, true, true)
}

func (r *CheckinRepository) list(ctx context.Context, op, sql string, withUser, withEvent bool, args ...any) (list []checkins.Checkin, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery(op, start, err) }()

	rows, err := r.queryer().Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list check-ins: %w", err)
	}
	defer rows.Close()

	list = []checkins.Checkin{}
	for rows.Next() {
		checkin, err := scanCheckin(rows, withUser, withEvent)
		if err != nil {
			return nil, fmt.Errorf("scan check-in: %w", err)
		}
		list = append(list, *checkin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate check-ins: %w", err)
	}
	return list, nil
}

// scanCheckin reads the check-in columns followed by the user and event
// columns in that order, for whichever relations were selected.
func scanCheckin(row rowScanner, withUser, withEvent bool) (*checkins.Checkin, error) {
	var (
		checkin   checkins.Checkin
		user      userScan
		event     eventScan
		checkedAt time.Time
	)
	dest := []any{&checkin.ID, &checkin.UserID, &checkin.EventID, &checkedAt}
	if withUser {
		dest = append(dest, user.dest()...)
	}
	if withEvent {
		dest = append(dest, event.dest()...)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	checkin.CheckinTime = checkedAt.UTC()
	if withUser {
		checkin.User = user.user()
	}
	if withEvent {
		checkin.Event = event.event()
	}
	return &checkin, nil
}
