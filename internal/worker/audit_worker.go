package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/session-gate/internal/events"
)

// StartAuditWorker writes every auth event to the "audit" logger. Refused
// renewals are logged at warn level.
func StartAuditWorker(dispatcher events.Dispatcher, logger *zap.Logger) {
	if dispatcher == nil || logger == nil {
		return
	}
	audit := logger.Named("audit")
	dispatcher.SubscribeAll(func(_ context.Context, e events.Event) error {
		fields := []zap.Field{
			zap.String("event_id", e.ID),
			zap.String("subject_id", e.SubjectID),
			zap.Time("at", e.Timestamp),
		}
		if e.Payload != nil {
			fields = append(fields, zap.Any("payload", e.Payload))
		}
		if e.Type == events.EventRenewalRefused {
			audit.Warn(string(e.Type), fields...)
			return nil
		}
		audit.Info(string(e.Type), fields...)
		return nil
	})
}
