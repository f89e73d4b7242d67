package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/inspection-audit/internal/events"
)

// DropRecorder counts realtime events lost to full subscriber queues.
type DropRecorder interface {
	RecordDropped()
}

// StartDropMonitor reports events the in-process dispatcher had to drop.
// Affected sessions catch up on their next refresh.
func StartDropMonitor(dispatcher *events.Dispatcher, recorder DropRecorder, logger *zap.Logger) {
	if dispatcher == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher.OnDropped(func(event events.Event) {
		if recorder != nil {
			recorder.RecordDropped()
		}
		logger.Debug("realtime event dropped",
			zap.String("entity_id", event.EntityID),
			zap.String("event_type", string(event.Type)))
	})
}
