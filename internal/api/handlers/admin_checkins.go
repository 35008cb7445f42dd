package handlers

import (
	"context"
	"net/http"

	"github.com/Togather-Foundation/checkin/internal/api/problem"
	"github.com/Togather-Foundation/checkin/internal/domain/checkins"
	"github.com/Togather-Foundation/checkin/internal/domain/errs"
)

type CheckinService interface {
	Create(ctx context.Context, userID, eventID int64) (*checkins.Checkin, error)
	ListAll(ctx context.Context) ([]checkins.Checkin, error)
}

// AdminCheckinsHandler records and lists check-ins.
type AdminCheckinsHandler struct {
	checkins CheckinService
	env      string
}

func NewAdminCheckinsHandler(checkins CheckinService, env string) *AdminCheckinsHandler {
	return &AdminCheckinsHandler{checkins: checkins, env: env}
}

type CheckinRequest struct {
	UserID  int64 `json:"user_id"`
	EventID int64 `json:"event_id"`
}

// CreateCheckin handles POST /admin/checkins.
func (h *AdminCheckinsHandler) CreateCheckin(w http.ResponseWriter, r *http.Request) {
	var req CheckinRequest
	if err := decodeJSON(r, &req); err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}
	if req.UserID <= 0 || req.EventID <= 0 {
		problem.FromError(w, r, errs.Validation("user_id and event_id are required"), h.env)
		return
	}

	checkin, err := h.checkins.Create(r.Context(), req.UserID, req.EventID)
	if err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusCreated, toCheckinResponse(checkin))
}

// ListCheckins handles GET /admin/checkins and its legacy alias.
func (h *AdminCheckinsHandler) ListCheckins(w http.ResponseWriter, r *http.Request) {
	list, err := h.checkins.ListAll(r.Context())
	if err != nil {
		problem.FromError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, toCheckinList(list))
}
