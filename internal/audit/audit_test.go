package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/VeerkrachtLab/veerkracht/internal/models"
	"github.com/VeerkrachtLab/veerkracht/internal/store"
)

func TestTrail_RecordAppendsInOrder(t *testing.T) {
	trail := NewTrail("req_1", "s_1", nil)
	trail.Record(models.StageSafety, models.AuditStatusCompleted, 5*time.Millisecond, nil)
	trail.Record(models.StagePolicy, models.AuditStatusCompleted, 2*time.Millisecond, map[string]any{"rule": "R3"})

	entries := trail.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Stage != models.StageSafety || entries[1].Stage != models.StagePolicy {
		t.Errorf("entries out of order: %+v", entries)
	}
	if entries[0].DurationMs != 5 {
		t.Errorf("expected duration 5ms, got %d", entries[0].DurationMs)
	}
}

func TestTrail_NilSafe(t *testing.T) {
	var trail *Trail
	trail.Record(models.StageSafety, models.AuditStatusCompleted, 0, nil)
	trail.Flush(context.Background())
	if trail.Entries() != nil {
		t.Error("nil trail must return nil entries")
	}
}

func TestTrail_FlushToStoreSink(t *testing.T) {
	st := store.NewInMemoryStore()
	trail := NewTrail("req_1", "s_1", NewStoreSink(st))
	trail.Record(models.StageGeneration, models.AuditStatusDegraded, time.Millisecond, nil)
	trail.Flush(context.Background())

	events, err := st.ListAuditEvents(context.Background(), "s_1", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(events) != 1 || events[0].Entry.Stage != models.StageGeneration {
		t.Errorf("expected flushed generation event, got %+v", events)
	}
}

// failingSink always errors.
type failingSink struct{ calls int }

func (s *failingSink) Flush(ctx context.Context, events []models.AuditEvent) error {
	s.calls++
	return errors.New("sink unavailable")
}

func TestTrail_FlushSwallowsSinkFailure(t *testing.T) {
	sink := &failingSink{}
	trail := NewTrail("req_1", "s_1", sink)
	trail.Record(models.StageSafety, models.AuditStatusCompleted, 0, nil)
	// Must not panic or propagate.
	trail.Flush(context.Background())
	if sink.calls != 1 {
		t.Errorf("expected one flush attempt, got %d", sink.calls)
	}
}
