package handlers

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Togather-Foundation/checkin/internal/domain/checkins"
	"github.com/Togather-Foundation/checkin/internal/domain/errs"
	"github.com/Togather-Foundation/checkin/internal/domain/events"
	"github.com/Togather-Foundation/checkin/internal/domain/users"
)

// naiveLayout renders UTC instants without an offset, the way check-in times
// have always been exposed.
const naiveLayout = "2006-01-02T15:04:05.999999"

// NaiveTime is a UTC instant serialised without a zone designator.
type NaiveTime time.Time

func (t NaiveTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(naiveLayout))
}

// FlexibleTime accepts RFC 3339 timestamps and also offset-less ones, which
// are read as UTC.
type FlexibleTime struct {
	time.Time
}

var flexibleLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

func (t *FlexibleTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return errs.Validation("timestamps must be strings")
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range flexibleLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return errs.Validation("invalid timestamp " + raw)
}

type UserResponse struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	CreatedOn *time.Time `json:"created_on"`
}

type EventResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

// CheckinResponse carries whichever relations the query loaded.
type CheckinResponse struct {
	ID          int64          `json:"id"`
	UserID      int64          `json:"user_id"`
	EventID     int64          `json:"event_id"`
	CheckinTime NaiveTime      `json:"checkin_time"`
	User        *UserResponse  `json:"user,omitempty"`
	Event       *EventResponse `json:"event,omitempty"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func toUserResponse(u *users.User) *UserResponse {
	if u == nil {
		return nil
	}
	resp := &UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     string(u.Role),
	}
	if u.CreatedOn != nil {
		created := u.CreatedOn.UTC()
		resp.CreatedOn = &created
	}
	return resp
}

func toUserList(list []users.User) []UserResponse {
	out := make([]UserResponse, 0, len(list))
	for i := range list {
		out = append(out, *toUserResponse(&list[i]))
	}
	return out
}

func toEventResponse(e *events.Event) *EventResponse {
	if e == nil {
		return nil
	}
	return &EventResponse{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		StartTime:   e.StartTime.UTC(),
		EndTime:     e.EndTime.UTC(),
	}
}

func toEventList(list []events.Event) []EventResponse {
	out := make([]EventResponse, 0, len(list))
	for i := range list {
		out = append(out, *toEventResponse(&list[i]))
	}
	return out
}

func toCheckinResponse(c *checkins.Checkin) CheckinResponse {
	return CheckinResponse{
		ID:          c.ID,
		UserID:      c.UserID,
		EventID:     c.EventID,
		CheckinTime: NaiveTime(c.CheckinTime),
		User:        toUserResponse(c.User),
		Event:       toEventResponse(c.Event),
	}
}

func toCheckinList(list []checkins.Checkin) []CheckinResponse {
	out := make([]CheckinResponse, 0, len(list))
	for i := range list {
		out = append(out, toCheckinResponse(&list[i]))
	}
	return out
}
