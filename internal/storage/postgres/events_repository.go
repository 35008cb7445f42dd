package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Togather-Foundation/checkin/internal/domain/events"
	"github.com/Togather-Foundation/checkin/internal/metrics"
)

const eventColumns = `id, name, description, start_time, end_time`

type EventRepository struct {
	conn
}

func (r *EventRepository) Create(ctx context.Context, params events.CreateParams) (event *events.Event, err error) {
	defer recordEventQuery("events_insert", time.Now(), &err)

	row := r.queryer().QueryRow(ctx, `
INSERT INTO events (name, description, start_time, end_time)
VALUES ($1, $2, $3, $4)
RETURNING `+eventColumns,
		params.Name, params.Description, params.StartTime, params.EndTime,
	)
	event, err = scanEvent(row)
	if err != nil {
		if code, _ := pgErrorCode(err); code == pgCheckViolation {
			return nil, events.ErrInvalidRange
		}
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

func (r *EventRepository) List(ctx context.Context) (list []events.Event, err error) {
	defer recordEventQuery("events_list", time.Now(), &err)

	rows, err := r.queryer().Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY start_time, id`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	list = []events.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		list = append(list, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return list, nil
}

func (r *EventRepository) GetByID(ctx context.Context, id int64) (event *events.Event, err error) {
	defer recordEventQuery("events_get_by_id", time.Now(), &err)

	row := r.queryer().QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	return scanEventRow(row)
}

// Delete removes the event; its check-ins go with it through ON DELETE CASCADE.
func (r *EventRepository) Delete(ctx context.Context, id int64) (event *events.Event, err error) {
	defer recordEventQuery("events_delete", time.Now(), &err)

	row := r.queryer().QueryRow(ctx, `DELETE FROM events WHERE id = $1 RETURNING `+eventColumns, id)
	return scanEventRow(row)
}

func scanEventRow(row pgx.Row) (*events.Event, error) {
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("query event: %w", err)
	}
	return event, nil
}

func recordEventQuery(op string, start time.Time, errp *error) {
	err := *errp
	if errors.Is(err, events.ErrNotFound) || errors.Is(err, events.ErrInvalidRange) {
		err = nil
	}
	metrics.RecordQuery(op, start, err)
}
