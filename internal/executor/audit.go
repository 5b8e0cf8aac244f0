package executor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/brazilquant/swapbot/internal/domain"
)

// AuditLog collects structured audit events for all executions. Events are
// also mirrored to the structured logger so operators see them live.
type AuditLog struct {
	mu     sync.Mutex
	events []domain.AuditEvent
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditLog creates an empty audit log.
func NewAuditLog(logger *slog.Logger) *AuditLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLog{
		logger: logger.With(slog.String("component", "audit")),
		now:    time.Now,
	}
}

// Record appends one event tagged with the execution it belongs to.
func (a *AuditLog) Record(executionID, event string, fields map[string]any) {
	a.mu.Lock()
	a.events = append(a.events, domain.AuditEvent{
		Timestamp:   a.now(),
		Event:       event,
		ExecutionID: executionID,
		Fields:      fields,
	})
	a.mu.Unlock()

	attrs := make([]any, 0, 2+len(fields))
	attrs = append(attrs, slog.String("execution_id", executionID))
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	a.logger.Info(event, attrs...)
}

// TrailFor returns a copy of the events recorded for one execution, in order.
func (a *AuditLog) TrailFor(executionID string) []domain.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	var trail []domain.AuditEvent
	for _, ev := range a.events {
		if ev.ExecutionID == executionID {
			trail = append(trail, ev)
		}
	}
	return trail
}

// Len returns the total number of recorded events.
func (a *AuditLog) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}
