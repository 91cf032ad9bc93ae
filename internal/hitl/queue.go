package hitl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/VeerkrachtLab/veerkracht/internal/models"
	"github.com/VeerkrachtLab/veerkracht/internal/store"
	"github.com/google/uuid"
)

// Queue receives escalation tickets. The pipeline only needs submission to
// be acknowledged; it never waits for a reviewer's reply.
type Queue interface {
	Submit(ctx context.Context, ticket models.EscalationTicket) error
}

// StoreQueue persists tickets in the knowledge store and pages the on-call
// reviewer through an optional notifier.
type StoreQueue struct {
	store    store.Store
	notifier Notifier
}

// NewStoreQueue creates a store-backed queue. The notifier may be nil.
func NewStoreQueue(st store.Store, notifier Notifier) *StoreQueue {
	return &StoreQueue{store: st, notifier: notifier}
}

// Submit persists the ticket and notifies the reviewer. Notification is
// fire-and-forget: a paging failure never fails the submission.
func (q *StoreQueue) Submit(ctx context.Context, ticket models.EscalationTicket) error {
	if ticket.ID == "" {
		ticket.ID = "tk_" + uuid.NewString()
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	if err := q.store.SubmitTicket(ctx, ticket); err != nil {
		return fmt.Errorf("submit escalation ticket failed: %w", err)
	}
	slog.Info("hitl.StoreQueue.Submit: escalation ticket submitted", "ticketID", ticket.ID, "severity", ticket.Severity)
	if q.notifier != nil {
		if err := q.notifier.NotifyEscalation(ctx, ticket); err != nil {
			slog.Warn("hitl.StoreQueue.Submit: reviewer notification failed", "ticketID", ticket.ID, "error", err)
		}
	}
	return nil
}
