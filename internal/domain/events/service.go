package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/checkin/internal/audit"
	"github.com/Togather-Foundation/checkin/internal/sanitize"
	"github.com/Togather-Foundation/checkin/internal/validation"
)

type Service struct {
	repo        Repository
	auditLogger *audit.Logger
	logger      zerolog.Logger
}

func NewService(repo Repository, auditLogger *audit.Logger, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		auditLogger: auditLogger,
		logger:      logger.With().Str("component", "events").Logger(),
	}
}

// CreateEventParams is the admin input for a new event.
type CreateEventParams struct {
	Name        string    `json:"name" validate:"required,max=200"`
	Description *string   `json:"description" validate:"omitempty,max=5000"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required"`
}

func (s *Service) CreateEvent(ctx context.Context, params CreateEventParams) (*Event, error) {
	params.Name = sanitize.Text(params.Name)
	params.Description = sanitize.OptionalText(params.Description)

	if err := validation.Struct(params); err != nil {
		return nil, err
	}
	if params.EndTime.Before(params.StartTime) {
		return nil, ErrInvalidRange
	}

	event, err := s.repo.Create(ctx, CreateParams{
		Name:        params.Name,
		Description: params.Description,
		StartTime:   params.StartTime.UTC(),
		EndTime:     params.EndTime.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.auditLogger.Record(ctx, "admin.event.create", "event", strconv.FormatInt(event.ID, 10), audit.StatusSuccess, map[string]string{
		"name": event.Name,
	})
	return event, nil
}

func (s *Service) ListEvents(ctx context.Context) ([]Event, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return list, nil
}

func (s *Service) GetEvent(ctx context.Context, id int64) (*Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// DeleteEvent removes an event and every check-in recorded for it.
func (s *Service) DeleteEvent(ctx context.Context, id int64) (*Event, error) {
	event, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete event: %w", err)
	}

	s.auditLogger.Record(ctx, "admin.event.delete", "event", strconv.FormatInt(id, 10), audit.StatusSuccess, map[string]string{
		"name": event.Name,
	})
	s.logger.Info().Int64("event_id", id).Msg("event deleted with its check-ins")
	return event, nil
}
