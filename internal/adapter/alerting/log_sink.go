package alerting

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

// LogSink writes alerts to a zerolog logger. It never fails.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "alerts").Logger()}
}

func (s *LogSink) Publish(_ context.Context, alert domain.Alert) error {
	event := s.log.Warn()
	if alert.Severity == domain.SeverityCritical {
		event = s.log.Error()
	}

	event.
		Str("alert_id", alert.ID).
		Str("severity", string(alert.Severity)).
		Str("operation", alert.Operation).
		Str("operation_key", alert.OperationKey).
		Interface("items", alert.Items).
		Time("occurred_at", alert.OccurredAt).
		Msg(alert.Reason)
	return nil
}
