// Package store provides storage backends for Veerkracht.
//
// It defines the seed repository consumed by the matcher together with the
// audit and escalation-ticket sinks, and implements in-memory, SQLite, and
// PostgreSQL backends behind one interface.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/VeerkrachtLab/veerkracht/internal/models"
)

// Error variables for store operations
var (
	ErrSeedNotFound  = errors.New("seed not found")
	ErrDuplicateSeed = errors.New("seed with this id already exists")
)

// SeedFilter narrows ListActiveSeeds results. Zero values match everything.
type SeedFilter struct {
	Emotion string
	Type    models.SeedType
	Tag     string
}

// Store is the persistence boundary for the orchestration core.
//
// The matcher reads seeds through ListActiveSeeds; usage bookkeeping goes
// through IncrementUsage, which must be a single atomic update so concurrent
// requests never lose counts. UpdateWeight exists for the out-of-band
// learning collaborator and is never called on the request path.
type Store interface {
	ListActiveSeeds(ctx context.Context, filter SeedFilter) ([]models.Seed, error)
	IncrementUsage(ctx context.Context, seedID string, usedAt time.Time) error
	UpdateWeight(ctx context.Context, seedID string, weight float64) error
	InsertSeed(ctx context.Context, seed models.Seed) error
	DeactivateSeed(ctx context.Context, seedID string) error

	AddAuditEvents(ctx context.Context, events []models.AuditEvent) error
	ListAuditEvents(ctx context.Context, sessionID string, limit int) ([]models.AuditEvent, error)

	SubmitTicket(ctx context.Context, ticket models.EscalationTicket) error

	Close() error
}

// InMemoryStore is a mutex-guarded in-memory store, used in tests and as a
// fallback when no DSN is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	seeds   map[string]models.Seed
	events  []models.AuditEvent
	tickets []models.EscalationTicket
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{seeds: make(map[string]models.Seed)}
}

func matchesFilter(s models.Seed, f SeedFilter) bool {
	if f.Emotion != "" && !strings.EqualFold(s.Emotion, f.Emotion) {
		return false
	}
	if f.Type != "" && s.Type != f.Type {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, tag := range s.Tags {
			if strings.EqualFold(tag, f.Tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ListActiveSeeds returns active seeds matching the filter, ordered by ID for
// deterministic iteration.
func (s *InMemoryStore) ListActiveSeeds(ctx context.Context, filter SeedFilter) ([]models.Seed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Seed
	for _, seed := range s.seeds {
		if seed.Active && matchesFilter(seed, filter) {
			out = append(out, seed)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// IncrementUsage atomically bumps the usage count and last-used timestamp.
func (s *InMemoryStore) IncrementUsage(ctx context.Context, seedID string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seed, ok := s.seeds[seedID]
	if !ok {
		return ErrSeedNotFound
	}
	seed.Metadata.UsageCount++
	seed.Metadata.LastUsedAt = &usedAt
	seed.UpdatedAt = usedAt
	s.seeds[seedID] = seed
	return nil
}

// UpdateWeight sets the seed's selection weight. Called by the external
// learning process, not by the request path.
func (s *InMemoryStore) UpdateWeight(ctx context.Context, seedID string, weight float64) error {
	if weight < 0 {
		return models.ErrNegativeWeight
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seed, ok := s.seeds[seedID]
	if !ok {
		return ErrSeedNotFound
	}
	seed.Metadata.Weight = weight
	seed.UpdatedAt = time.Now()
	s.seeds[seedID] = seed
	return nil
}

// InsertSeed validates and stores a new seed.
func (s *InMemoryStore) InsertSeed(ctx context.Context, seed models.Seed) error {
	if err := seed.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.seeds[seed.ID]; exists {
		return ErrDuplicateSeed
	}
	s.seeds[seed.ID] = seed
	return nil
}

// DeactivateSeed marks a seed inactive. Eventually consistent with readers.
func (s *InMemoryStore) DeactivateSeed(ctx context.Context, seedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seed, ok := s.seeds[seedID]
	if !ok {
		return ErrSeedNotFound
	}
	seed.Active = false
	seed.UpdatedAt = time.Now()
	s.seeds[seedID] = seed
	return nil
}

// AddAuditEvents appends audit events.
func (s *InMemoryStore) AddAuditEvents(ctx context.Context, events []models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// ListAuditEvents returns the most recent audit events for a session.
func (s *InMemoryStore) ListAuditEvents(ctx context.Context, sessionID string, limit int) ([]models.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AuditEvent
	for _, ev := range s.events {
		if sessionID == "" || ev.SessionID == sessionID {
			out = append(out, ev)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// SubmitTicket records an escalation ticket.
func (s *InMemoryStore) SubmitTicket(ctx context.Context, ticket models.EscalationTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = append(s.tickets, ticket)
	return nil
}

// Tickets returns a copy of all submitted tickets, for tests and diagnostics.
func (s *InMemoryStore) Tickets() []models.EscalationTicket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.EscalationTicket, len(s.tickets))
	copy(out, s.tickets)
	return out
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
