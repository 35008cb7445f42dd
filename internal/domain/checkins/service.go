package checkins

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Togather-Foundation/checkin/internal/audit"
	"github.com/Togather-Foundation/checkin/internal/domain/errs"
	"github.com/Togather-Foundation/checkin/internal/domain/events"
	"github.com/Togather-Foundation/checkin/internal/domain/users"
	"github.com/Togather-Foundation/checkin/internal/metrics"
)

const tracerName = "github.com/Togather-Foundation/checkin/internal/domain/checkins"

// Service is the check-in ledger.
type Service struct {
	repo        Repository
	auditLogger *audit.Logger
	now         func() time.Time
	logger      zerolog.Logger
}

func NewService(repo Repository, auditLogger *audit.Logger, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		auditLogger: auditLogger,
		now:         time.Now,
		logger:      logger.With().Str("component", "checkins").Logger(),
	}
}

// Create records that userID attended eventID. The lookups, duplicate check,
// insert and reload share one transaction; the store's unique constraint on
// (user_id, event_id) decides races between concurrent calls.
func (s *Service) Create(ctx context.Context, userID, eventID int64) (*Checkin, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "checkins.Create")
	defer span.End()
	span.SetAttributes(attribute.Int64("checkin.user_id", userID), attribute.Int64("checkin.event_id", eventID))

	checkin, err := s.create(ctx, userID, eventID)
	result := outcome(err)
	metrics.CheckinsTotal.WithLabelValues(result).Inc()
	span.SetAttributes(attribute.String("checkin.result", result))

	details := map[string]string{
		"user_id":  strconv.FormatInt(userID, 10),
		"event_id": strconv.FormatInt(eventID, 10),
	}
	if err != nil {
		if result == "error" {
			span.RecordError(err)
			span.SetStatus(codes.Error, "check-in failed")
		}
		details["error"] = err.Error()
		s.auditLogger.Record(ctx, "admin.checkin.create", "checkin", "", audit.StatusFailure, details)
		return nil, err
	}

	s.auditLogger.Record(ctx, "admin.checkin.create", "checkin", strconv.FormatInt(checkin.ID, 10), audit.StatusSuccess, details)
	s.logger.Info().
		Int64("checkin_id", checkin.ID).
		Int64("user_id", userID).
		Int64("event_id", eventID).
		Msg("check-in recorded")
	return checkin, nil
}

func (s *Service) create(ctx context.Context, userID, eventID int64) (*Checkin, error) {
	at := s.now().UTC()

	txRepo, txCommitter, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = txCommitter.Rollback(ctx) }()

	if _, err := txRepo.GetUser(ctx, userID); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, users.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if _, err := txRepo.GetEvent(ctx, eventID); err != nil {
		if errors.Is(err, events.ErrNotFound) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	exists, err := txRepo.Exists(ctx, userID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing check-in: %w", err)
	}
	if exists {
		return nil, ErrAlreadyCheckedIn
	}

	id, err := txRepo.Insert(ctx, userID, eventID, at)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyCheckedIn):
			return nil, ErrAlreadyCheckedIn
		case errors.Is(err, users.ErrUserNotFound):
			return nil, users.ErrUserNotFound
		case errors.Is(err, events.ErrNotFound):
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("failed to insert check-in: %w", err)
	}

	checkin, err := txRepo.GetWithRelations(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload check-in: %w", err)
	}

	if err := txCommitter.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return checkin, nil
}

// ListByEvent returns the check-ins of an event with users populated. An
// unknown event yields an empty list.
func (s *Service) ListByEvent(ctx context.Context, eventID int64) ([]Checkin, error) {
	list, err := s.repo.ListByEventWithUser(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins for event: %w", err)
	}
	return list, nil
}

// ListByUser returns the check-ins of a user with events populated.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]Checkin, error) {
	list, err := s.repo.ListByUserWithEvent(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins for user: %w", err)
	}
	return list, nil
}

// ListAll returns every check-in with users and events populated.
func (s *Service) ListAll(ctx context.Context) ([]Checkin, error) {
	list, err := s.repo.ListAllWithRelations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	return list, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, errs.ErrConflict):
		return "conflict"
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
