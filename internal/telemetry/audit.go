package telemetry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"chat-client/internal/observability"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
	Close() error
}

// AuditEmitter publishes one envelope per mutation or session transition.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	logger      logrus.FieldLogger
	now         func() time.Time
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string `json:"level"`
	Action string `json:"action"`
	Text   string `json:"text"`
	Key    string `json:"key,omitempty"`
}

// Audit is what callers hand to Emit.
type Audit struct {
	Level     string
	Action    string
	Text      string
	Key       string
	RequestID string
	UserID    string
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, logger logrus.FieldLogger) *AuditEmitter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		logger:      logger,
		now:         time.Now,
	}
}

func (e *AuditEmitter) Emit(ctx context.Context, audit Audit) {
	if e == nil || e.publisher == nil {
		return
	}
	if audit.Level == "" {
		audit.Level = LevelInfo
	}

	var userID *string
	if audit.UserID != "" {
		userID = &audit.UserID
	}

	e.logger.WithFields(logrus.Fields{
		"action":     audit.Action,
		"level":      audit.Level,
		"request_id": audit.RequestID,
		"key":        audit.Key,
	}).Debug("audit emit")

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     audit.RequestID,
		UserID:        userID,
		Payload: AuditPayload{
			Level:  audit.Level,
			Action: audit.Action,
			Text:   audit.Text,
			Key:    audit.Key,
		},
	}

	headers := observability.BuildHeaders(audit.RequestID, TraceIDFromContext(ctx))
	if err := e.publisher.Publish(ctx, e.routingKey, envelope, headers); err != nil {
		observability.IncAMQPPublishError()
		e.logger.WithError(err).WithField("action", audit.Action).Warn("audit publish failed")
	}
}
