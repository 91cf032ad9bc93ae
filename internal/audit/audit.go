// Package audit provides the append-only trace trail for the orchestration
// pipeline and its best-effort persistence sink.
//
// Recording and flushing are fire-and-forget from the pipeline's
// perspective: a failing sink is logged, never propagated.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/VeerkrachtLab/veerkracht/internal/models"
	"github.com/VeerkrachtLab/veerkracht/internal/store"
)

// Sink receives audit events for persistence.
type Sink interface {
	Flush(ctx context.Context, events []models.AuditEvent) error
}

// StoreSink persists audit events through the knowledge store.
type StoreSink struct {
	store store.Store
}

// NewStoreSink creates a store-backed sink.
func NewStoreSink(st store.Store) *StoreSink {
	return &StoreSink{store: st}
}

// Flush writes the events to the store.
func (s *StoreSink) Flush(ctx context.Context, events []models.AuditEvent) error {
	return s.store.AddAuditEvents(ctx, events)
}

// Trail is the append-only audit trail for one request.
type Trail struct {
	requestID string
	sessionID string
	entries   []models.AuditEntry
	sink      Sink
}

// NewTrail creates a trail for one request. The sink may be nil, in which
// case Flush is a no-op.
func NewTrail(requestID, sessionID string, sink Sink) *Trail {
	return &Trail{requestID: requestID, sessionID: sessionID, sink: sink}
}

// Record appends one entry. It never fails; a nil trail is a no-op so
// callers do not need nil checks on error paths.
func (t *Trail) Record(stage models.Stage, status models.AuditStatus, duration time.Duration, metadata map[string]any) {
	if t == nil {
		return
	}
	t.entries = append(t.entries, models.AuditEntry{
		Stage:      stage,
		Status:     status,
		DurationMs: duration.Milliseconds(),
		Timestamp:  time.Now(),
		Metadata:   metadata,
	})
}

// Entries returns a copy of the recorded entries in order.
func (t *Trail) Entries() []models.AuditEntry {
	if t == nil {
		return nil
	}
	out := make([]models.AuditEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Flush pushes the trail to the sink, best effort. Sink failures are logged
// and swallowed: audit unavailability must never fail a request.
func (t *Trail) Flush(ctx context.Context) {
	if t == nil || t.sink == nil || len(t.entries) == 0 {
		return
	}
	events := make([]models.AuditEvent, 0, len(t.entries))
	for _, entry := range t.entries {
		events = append(events, models.AuditEvent{RequestID: t.requestID, SessionID: t.sessionID, Entry: entry})
	}
	if err := t.sink.Flush(ctx, events); err != nil {
		slog.Warn("audit.Trail.Flush: sink flush failed", "requestID", t.requestID, "events", len(events), "error", err)
	}
}
