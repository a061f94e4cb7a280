// Package telemetry publishes audit records of user-visible chat actions.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Audited actions.
const (
	ActionMessageSent    = "message.sent"
	ActionGroupMessage   = "group.message_sent"
	ActionGroupCreated   = "group.created"
	ActionGroupUpdated   = "group.updated"
	ActionGroupJoined    = "group.joined"
	ActionMessageFlagged = "message.flagged"
	ActionRequestFailed  = "request.failed"
	ActionAuditTest      = "audit.test"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// AuditEmitter turns Entries into envelopes on the audit routing key. A nil
// emitter drops everything.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	log         *slog.Logger
}

// Entry is one audited action.
type Entry struct {
	Action    string
	Level     string
	Text      string
	Resource  string
	RequestID string
	UserID    *string
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	Action        string       `json:"action"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id,omitempty"`
	TraceID       string       `json:"trace_id,omitempty"`
	UserID        *string      `json:"user_id,omitempty"`
	Resource      string       `json:"resource,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, log *slog.Logger) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		log:         log,
	}
}

// Record publishes entry. Publish failures are logged and swallowed.
func (e *AuditEmitter) Record(ctx context.Context, entry Entry) {
	if e == nil || e.publisher == nil {
		return
	}
	if entry.Level == "" {
		entry.Level = "INFO"
	}

	envelope := AuditEnvelope{
		SchemaVersion: 2,
		EventType:     "audit_log",
		Action:        entry.Action,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     entry.RequestID,
		UserID:        entry.UserID,
		Resource:      entry.Resource,
		Payload:       AuditPayload{Level: entry.Level, Text: entry.Text},
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		envelope.TraceID = sc.TraceID().String()
	}

	e.log.Debug("audit", "action", entry.Action, "resource", entry.Resource, "request_id", entry.RequestID)
	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		e.log.Warn("audit publish failed", "action", entry.Action, "error", err)
	}
}
