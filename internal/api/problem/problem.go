package problem

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/checkin/internal/domain/errs"
)

const contentType = "application/problem+json"

const (
	TypeValidation   = "https://checkin.togather.foundation/problems/validation-error"
	TypeUnauthorized = "https://checkin.togather.foundation/problems/unauthorized"
	TypeForbidden    = "https://checkin.togather.foundation/problems/forbidden"
	TypeNotFound     = "https://checkin.togather.foundation/problems/not-found"
	TypeConflict     = "https://checkin.togather.foundation/problems/conflict"
	TypeTooLarge     = "https://checkin.togather.foundation/problems/payload-too-large"
	TypeServerError  = "https://checkin.togather.foundation/problems/server-error"
)

type ProblemDetails struct {
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Status   int                    `json:"status"`
	Detail   string                 `json:"detail,omitempty"`
	Instance string                 `json:"instance,omitempty"`
	Errors   map[string]interface{} `json:"errors,omitempty"`
}

type Option func(*ProblemDetails)

func WithDetail(detail string) Option {
	return func(p *ProblemDetails) {
		p.Detail = detail
	}
}

func WithErrors(errs map[string]interface{}) Option {
	return func(p *ProblemDetails) {
		p.Errors = errs
	}
}

func Write(w http.ResponseWriter, r *http.Request, status int, typ, title string, err error, env string, opts ...Option) {
	problem := ProblemDetails{
		Type:   typ,
		Title:  title,
		Status: status,
	}

	for _, opt := range opts {
		opt(&problem)
	}

	if problem.Detail == "" && err != nil {
		if env == "development" || env == "test" {
			problem.Detail = err.Error()
		} else {
			problem.Detail = http.StatusText(status)
		}
	}

	if problem.Instance == "" && r != nil {
		problem.Instance = r.URL.Path
	}

	if err != nil && r != nil {
		logger := zerolog.Ctx(r.Context())
		event := logger.Warn()
		if status >= 500 {
			event = logger.Error()
		}
		event.
			Err(err).
			Int("status", status).
			Str("type", typ).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg(title)
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}

	WriteProblem(w, problem)
}

// FromError renders err according to its domain kind. Domain errors carry a
// caller-safe message that is always used as the detail; anything without a
// kind becomes a 500.
func FromError(w http.ResponseWriter, r *http.Request, err error, env string) {
	status, typ, title := Classify(err)
	var opts []Option
	if msg := errs.Message(err); msg != "" && status < 500 {
		opts = append(opts, WithDetail(msg))
	}
	Write(w, r, status, typ, title, err, env, opts...)
}

// Classify maps an error to its HTTP status, problem type and title.
func Classify(err error) (status int, typ, title string) {
	var maxBytes *http.MaxBytesError
	switch kind := errs.Kind(err); {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, TypeTooLarge, "Request body too large"
	case kind == errs.ErrValidation:
		return http.StatusBadRequest, TypeValidation, "Invalid request"
	case kind == errs.ErrUnauthorized:
		return http.StatusUnauthorized, TypeUnauthorized, "Unauthorized"
	case kind == errs.ErrForbidden:
		return http.StatusForbidden, TypeForbidden, "Forbidden"
	case kind == errs.ErrNotFound:
		return http.StatusNotFound, TypeNotFound, "Not found"
	case kind == errs.ErrConflict:
		return http.StatusConflict, TypeConflict, "Conflict"
	default:
		return http.StatusInternalServerError, TypeServerError, "Server error"
	}
}

func WriteProblem(w http.ResponseWriter, problem ProblemDetails) {
	payload, err := json.Marshal(problem)
	if err != nil {
		fallback := fmt.Sprintf("{\"type\":\"about:blank\",\"title\":\"%s\",\"status\":500}", http.StatusText(http.StatusInternalServerError))
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(fallback))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(problem.Status)
	_, _ = w.Write(payload)
}
