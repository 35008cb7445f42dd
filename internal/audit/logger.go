package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Entry represents a single audit log entry with structured fields
type Entry struct {
	Timestamp    time.Time
	Action       string
	Actor        string
	ResourceType string
	ResourceID   string
	IPAddress    string
	Status       string
	Details      map[string]string
}

// Actor identifies who performed an audited operation.
type Actor struct {
	Username  string
	IPAddress string
}

// Logger writes audit entries for admin mutations.
type Logger struct {
	output zerolog.Logger
}

// NewLoggerWithZerolog creates an audit logger writing through the given logger.
func NewLoggerWithZerolog(logger zerolog.Logger) *Logger {
	return &Logger{
		output: logger.With().Str("log_type", "audit").Logger(),
	}
}

// Nop returns a logger that discards every entry.
func Nop() *Logger {
	return &Logger{output: zerolog.Nop()}
}

func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	evt := l.output.Info()
	if entry.Status == StatusFailure {
		evt = l.output.Warn()
	}
	evt = evt.
		Time("audit_time", entry.Timestamp).
		Str("action", entry.Action).
		Str("actor", entry.Actor).
		Str("status", entry.Status)
	if entry.ResourceType != "" {
		evt = evt.Str("resource_type", entry.ResourceType)
	}
	if entry.ResourceID != "" {
		evt = evt.Str("resource_id", entry.ResourceID)
	}
	if entry.IPAddress != "" {
		evt = evt.Str("ip_address", entry.IPAddress)
	}
	if len(entry.Details) > 0 {
		details := zerolog.Dict()
		for k, v := range entry.Details {
			details = details.Str(k, v)
		}
		evt = evt.Dict("details", details)
	}
	evt.Msg("audit")
}

// Record logs an operation performed by the actor stored in ctx.
func (l *Logger) Record(ctx context.Context, action, resourceType, resourceID, status string, details map[string]string) {
	actor := ActorFromContext(ctx)
	l.Log(Entry{
		Action:       action,
		Actor:        actor.Username,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    actor.IPAddress,
		Status:       status,
		Details:      details,
	})
}

type contextKey string

const actorKey contextKey = "auditActor"

// WithActor stores the acting user on the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFromContext(ctx context.Context) Actor {
	if actor, ok := ctx.Value(actorKey).(Actor); ok {
		return actor
	}
	return Actor{Username: "unknown"}
}
