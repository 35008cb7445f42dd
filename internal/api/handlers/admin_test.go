package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/checkin/internal/auth"
	"github.com/Togather-Foundation/checkin/internal/domain/checkins"
	"github.com/Togather-Foundation/checkin/internal/domain/errs"
	"github.com/Togather-Foundation/checkin/internal/domain/events"
	"github.com/Togather-Foundation/checkin/internal/domain/users"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) ListUsers(ctx context.Context) ([]users.User, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]users.User)
	return list, args.Error(1)
}

func (m *MockUserService) CreateUser(ctx context.Context, params users.CreateUserParams) (*users.User, error) {
	args := m.Called(ctx, params)
	user, _ := args.Get(0).(*users.User)
	return user, args.Error(1)
}

func (m *MockUserService) UpdateUser(ctx context.Context, id int64, params users.UpdateUserParams) (*users.User, error) {
	args := m.Called(ctx, id, params)
	user, _ := args.Get(0).(*users.User)
	return user, args.Error(1)
}

func (m *MockUserService) DeleteUser(ctx context.Context, id int64) (*users.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*users.User)
	return user, args.Error(1)
}

type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) CreateEvent(ctx context.Context, params events.CreateEventParams) (*events.Event, error) {
	args := m.Called(ctx, params)
	event, _ := args.Get(0).(*events.Event)
	return event, args.Error(1)
}

func (m *MockEventService) ListEvents(ctx context.Context) ([]events.Event, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]events.Event)
	return list, args.Error(1)
}

func (m *MockEventService) GetEvent(ctx context.Context, id int64) (*events.Event, error) {
	args := m.Called(ctx, id)
	event, _ := args.Get(0).(*events.Event)
	return event, args.Error(1)
}

func (m *MockEventService) DeleteEvent(ctx context.Context, id int64) (*events.Event, error) {
	args := m.Called(ctx, id)
	event, _ := args.Get(0).(*events.Event)
	return event, args.Error(1)
}

// serve routes req through a mux so path values are populated.
func serve(pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAdminUsers_List(t *testing.T) {
	svc := new(MockUserService)
	svc.On("ListUsers", mock.Anything).Return([]users.User{*alice(), {ID: 2, Username: "root", Email: "r@x.com", Role: auth.RoleAdmin}}, nil)
	handler := NewAdminUsersHandler(svc, "test")

	rec := serve("GET /admin/users", handler.ListUsers, httptest.NewRequest(http.MethodGet, "/admin/users", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body []UserResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body, 2)
	assert.Nil(t, body[1].CreatedOn)
	assert.Equal(t, "admin", body[1].Role)
}

func TestAdminUsers_Create(t *testing.T) {
	svc := new(MockUserService)
	svc.On("CreateUser", mock.Anything, users.CreateUserParams{Username: "bob", Email: "b@x.com", Password: "p", Role: "admin"}).
		Return(&users.User{ID: 3, Username: "bob", Email: "b@x.com", Role: auth.RoleAdmin, CreatedOn: &createdOn}, nil)
	handler := NewAdminUsersHandler(svc, "test")

	req := httptest.NewRequest(http.MethodPost, "/admin/users", strings.NewReader(`{"username":"bob","email":"b@x.com","password":"p","role":"admin"}`))
	rec := serve("POST /admin/users", handler.CreateUser, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestAdminUsers_Update(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("UpdateUser", mock.Anything, int64(1), users.UpdateUserParams{Username: "al", Email: "al@x.com", Password: "n", Role: "hacker"}).
			Return(&users.User{ID: 1, Username: "al", Email: "al@x.com", Role: auth.RoleHacker}, nil)
		handler := NewAdminUsersHandler(svc, "test")

		req := httptest.NewRequest(http.MethodPut, "/admin/users/1", strings.NewReader(`{"username":"al","email":"al@x.com","password":"n","role":"hacker"}`))
		rec := serve("PUT /admin/users/{id}", handler.UpdateUser, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("missing user", func(t *testing.T) {
		svc := new(MockUserService)
		svc.On("UpdateUser", mock.Anything, int64(99), mock.Anything).Return(nil, users.ErrUserNotFound)
		handler := NewAdminUsersHandler(svc, "test")

		req := httptest.NewRequest(http.MethodPut, "/admin/users/99", strings.NewReader(`{"username":"al","email":"al@x.com","password":"n"}`))
		rec := serve("PUT /admin/users/{id}", handler.UpdateUser, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "user not found", decodeProblem(t, rec).Detail)
	})

	t.Run("bad id", func(t *testing.T) {
		svc := new(MockUserService)
		handler := NewAdminUsersHandler(svc, "test")

		req := httptest.NewRequest(http.MethodPut, "/admin/users/abc", strings.NewReader(`{}`))
		rec := serve("PUT /admin/users/{id}", handler.UpdateUser, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAdminUsers_Delete(t *testing.T) {
	svc := new(MockUserService)
	svc.On("DeleteUser", mock.Anything, int64(1)).Return(alice(), nil)
	svc.On("DeleteUser", mock.Anything, int64(2)).Return(nil, users.ErrUserNotFound)
	handler := NewAdminUsersHandler(svc, "test")

	rec := serve("DELETE /admin/users/{id}", handler.DeleteUser, httptest.NewRequest(http.MethodDelete, "/admin/users/1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)

	rec = serve("DELETE /admin/users/{id}", handler.DeleteUser, httptest.NewRequest(http.MethodDelete, "/admin/users/2", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminEvents_Create(t *testing.T) {
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	t.Run("naive timestamps read as utc", func(t *testing.T) {
		svc := new(MockEventService)
		svc.On("CreateEvent", mock.Anything, mock.MatchedBy(func(p events.CreateEventParams) bool {
			return p.Name == "Kickoff" && p.StartTime.Equal(start) && p.EndTime.Equal(start.Add(time.Hour)) && p.Description == nil
		})).Return(&events.Event{ID: 10, Name: "Kickoff", StartTime: start, EndTime: start.Add(time.Hour)}, nil)
		handler := NewAdminEventsHandler(svc, nil, "test")

		req := httptest.NewRequest(http.MethodPost, "/admin/events", strings.NewReader(`{"name":"Kickoff","start_time":"2026-06-01T09:00:00","end_time":"2026-06-01T11:00:00+01:00"}`))
		rec := serve("POST /admin/events", handler.CreateEvent, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("missing times", func(t *testing.T) {
		svc := new(MockEventService)
		handler := NewAdminEventsHandler(svc, nil, "test")

		req := httptest.NewRequest(http.MethodPost, "/admin/events", strings.NewReader(`{"name":"Kickoff"}`))
		rec := serve("POST /admin/events", handler.CreateEvent, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unparseable time", func(t *testing.T) {
		handler := NewAdminEventsHandler(new(MockEventService), nil, "test")

		req := httptest.NewRequest(http.MethodPost, "/admin/events", strings.NewReader(`{"name":"K","start_time":"tomorrow","end_time":"2026-06-01T09:00:00Z"}`))
		rec := serve("POST /admin/events", handler.CreateEvent, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid timestamp tomorrow", decodeProblem(t, rec).Detail)
	})

	t.Run("range rejected by service", func(t *testing.T) {
		svc := new(MockEventService)
		svc.On("CreateEvent", mock.Anything, mock.Anything).Return(nil, events.ErrInvalidRange)
		handler := NewAdminEventsHandler(svc, nil, "test")

		req := httptest.NewRequest(http.MethodPost, "/admin/events", strings.NewReader(`{"name":"K","start_time":"2026-06-02T09:00:00Z","end_time":"2026-06-01T09:00:00Z"}`))
		rec := serve("POST /admin/events", handler.CreateEvent, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAdminEvents_GetDeleteList(t *testing.T) {
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	kickoff := &events.Event{ID: 10, Name: "Kickoff", StartTime: start, EndTime: start.Add(time.Hour)}

	svc := new(MockEventService)
	svc.On("GetEvent", mock.Anything, int64(10)).Return(kickoff, nil)
	svc.On("GetEvent", mock.Anything, int64(11)).Return(nil, events.ErrNotFound)
	svc.On("DeleteEvent", mock.Anything, int64(10)).Return(kickoff, nil)
	svc.On("ListEvents", mock.Anything).Return([]events.Event{}, nil)
	handler := NewAdminEventsHandler(svc, nil, "test")

	rec := serve("GET /admin/events/{id}", handler.GetEvent, httptest.NewRequest(http.MethodGet, "/admin/events/10", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve("GET /admin/events/{id}", handler.GetEvent, httptest.NewRequest(http.MethodGet, "/admin/events/11", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve("DELETE /admin/events/{id}", handler.DeleteEvent, httptest.NewRequest(http.MethodDelete, "/admin/events/10", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Kickoff"`)

	rec = serve("GET /admin/events", handler.ListEvents, httptest.NewRequest(http.MethodGet, "/admin/events", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAdminEvents_Checkins(t *testing.T) {
	checkinSvc := new(MockCheckinService)
	at := time.Date(2026, 6, 1, 16, 0, 0, 0, time.UTC)
	checkinSvc.On("ListByEvent", mock.Anything, int64(10)).Return([]checkins.Checkin{
		{ID: 1, UserID: 1, EventID: 10, CheckinTime: at, User: alice()},
	}, nil)
	handler := NewAdminEventsHandler(new(MockEventService), checkinSvc, "test")

	rec := serve("GET /admin/events/{id}/checkins", handler.EventCheckins, httptest.NewRequest(http.MethodGet, "/admin/events/10/checkins", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body, 1)
	assert.Equal(t, "2026-06-01T16:00:00", body[0]["checkin_time"])
	assert.Contains(t, body[0], "user")
	assert.NotContains(t, body[0], "event")
}

func TestAdminCheckins_Create(t *testing.T) {
	at := time.Date(2026, 6, 1, 16, 0, 0, 0, time.UTC)
	start := at.Add(-time.Hour)

	tests := []struct {
		name   string
		body   string
		result *checkins.Checkin
		err    error
		status int
	}{
		{
			name: "created",
			body: `{"user_id":1,"event_id":10}`,
			result: &checkins.Checkin{ID: 5, UserID: 1, EventID: 10, CheckinTime: at, User: alice(),
				Event: &events.Event{ID: 10, Name: "Kickoff", StartTime: start, EndTime: at}},
			status: http.StatusCreated,
		},
		{name: "duplicate", body: `{"user_id":1,"event_id":10}`, err: checkins.ErrAlreadyCheckedIn, status: http.StatusConflict},
		{name: "unknown user", body: `{"user_id":1,"event_id":10}`, err: users.ErrUserNotFound, status: http.StatusNotFound},
		{name: "unknown event", body: `{"user_id":1,"event_id":10}`, err: events.ErrNotFound, status: http.StatusNotFound},
		{name: "store failure", body: `{"user_id":1,"event_id":10}`, err: errors.New("conn reset"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockCheckinService)
			svc.On("Create", mock.Anything, int64(1), int64(10)).Return(tt.result, tt.err)
			handler := NewAdminCheckinsHandler(svc, "production")

			req := httptest.NewRequest(http.MethodPost, "/admin/checkins", strings.NewReader(tt.body))
			rec := serve("POST /admin/checkins", handler.CreateCheckin, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.err == nil {
				var body CheckinResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				require.NotNil(t, body.User)
				require.NotNil(t, body.Event)
				assert.Equal(t, "alice", body.User.Username)
			} else if errs.Kind(tt.err) == nil {
				assert.NotContains(t, decodeProblem(t, rec).Detail, "conn reset")
			}
		})
	}
}

func TestAdminCheckins_CreateRequiresIDs(t *testing.T) {
	svc := new(MockCheckinService)
	handler := NewAdminCheckinsHandler(svc, "test")

	req := httptest.NewRequest(http.MethodPost, "/admin/checkins", strings.NewReader(`{"user_id":1}`))
	rec := serve("POST /admin/checkins", handler.CreateCheckin, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestAdminCheckins_List(t *testing.T) {
	svc := new(MockCheckinService)
	svc.On("ListAll", mock.Anything).Return([]checkins.Checkin{}, nil)
	handler := NewAdminCheckinsHandler(svc, "test")

	rec := serve("GET /admin/checkins", handler.ListCheckins, httptest.NewRequest(http.MethodGet, "/admin/checkins", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
