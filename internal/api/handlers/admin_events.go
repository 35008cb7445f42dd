package handlers

import (
	"context"
	"net/http"

	"github.com/Togather-Foundation/checkin/internal/api/problem"
	"github.com/Togather-Foundation/checkin/internal/domain/checkins"
	"github.com/Togather-Foundation/checkin/internal/domain/errs"
	"github.com/Togather-Foundation/checkin/internal/domain/events"
)

type EventService interface {
	CreateEvent(ctx context.Context, params events.CreateEventParams) (*events.Event, error)
	ListEvents(ctx context.Context) ([]events.Event, error)
	GetEvent(ctx context.Context, id int64) (*events.Event, error)
	DeleteEvent(ctx context.Context, id int64) (*events.Event, error)
}

// EventCheckins lists an event's check-ins with their users.
type EventCheckins interface {
	ListByEvent(ctx context.Context, eventID int64) ([]checkins.Checkin, error)
}

// AdminEventsHandler handles /admin/events.
type AdminEventsHandler struct {
	events   EventService
	checkins EventCheckins
	env      string
}

func NewAdminEventsHandler(events EventService, checkins EventCheckins, env string) *AdminEventsHandler {
	return &AdminEventsHandler{events: events, checkins: checkins, env: env}
}

type EventRequest struct {
	Name        string        `json:"name"`
	Description *string       `json:"description"`
	StartTime   *FlexibleTime `json:"start_time"`
	EndTime     *FlexibleTime `json:"end_time"`
}

// CreateEvent handles POST /admin/events.
func (h *AdminEventsHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := decodeJSON(r, &req); err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}
	if req.StartTime == nil || req.EndTime == nil {
		problem.FromError(w, r, errs.Validation("start_time and end_time are required"), h.env)
		return
	}

	event, err := h.events.CreateEvent(r.Context(), events.CreateEventParams{
		Name:        req.Name,
		Description: req.Description,
		StartTime:   req.StartTime.Time,
		EndTime:     req.EndTime.Time,
	})
	if err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusCreated, toEventResponse(event))
}

// ListEvents handles GET /admin/events.
func (h *AdminEventsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.events.ListEvents(r.Context())
	if err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, toEventList(list))
}

// GetEvent handles GET /admin/events/{id}.
func (h *AdminEventsHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}

	event, err := h.events.GetEvent(r.Context(), id)
	if err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(event))
}

// DeleteEvent handles DELETE /admin/events/{id}. The event's check-ins go
// with it.
func (h *AdminEventsHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}

	event, err := h.events.DeleteEvent(r.Context(), id)
	if err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(event))
}

// EventCheckins handles GET /admin/events/{id}/checkins. An unknown event
// yields an empty list.
func (h *AdminEventsHandler) EventCheckins(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}

	list, err := h.checkins.ListByEvent(r.Context(), id)
	if err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, toCheckinList(list))
}
