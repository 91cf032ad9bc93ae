// Package models defines the core data structures for Veerkracht.
//
// It includes the seed knowledge-base entry, the per-request policy context,
// decisions, EAA profiles, and the orchestration result shared across modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// SeedType classifies the therapeutic role of a seed.
type SeedType string

const (
	// SeedTypeValidation acknowledges and normalizes the user's feeling.
	SeedTypeValidation SeedType = "validation"
	// SeedTypeReflection mirrors the user's statement back as a question.
	SeedTypeReflection SeedType = "reflection"
	// SeedTypeSuggestion offers a concrete coping step.
	SeedTypeSuggestion SeedType = "suggestion"
	// SeedTypeIntervention is a safety-first referral seed.
	SeedTypeIntervention SeedType = "intervention"
)

// Validation constants for seed input validation
const (
	// MaxSeedResponseLength defines the maximum allowed length for seed response text
	MaxSeedResponseLength = 4096
	// MaxTriggerLength defines the maximum allowed length for a single trigger phrase
	MaxTriggerLength = 100
	// MaxTriggersCount defines the maximum number of trigger phrases per seed
	MaxTriggersCount = 32
	// SeedSchemaVersion is the current seed schema version
	SeedSchemaVersion = 2
)

// Error variables for better error handling and testability
var (
	ErrEmptySeedID          = errors.New("seed id cannot be empty")
	ErrInvalidSeedType      = errors.New("invalid seed type")
	ErrEmptyEmotion         = errors.New("seed emotion cannot be empty")
	ErrNoTriggers           = errors.New("seed requires at least one trigger phrase")
	ErrTooManyTriggers      = errors.New("seed exceeds maximum trigger count")
	ErrTriggerTooLong       = errors.New("trigger phrase exceeds maximum length")
	ErrEmptyResponse        = errors.New("seed response text is required")
	ErrResponseTooLong      = errors.New("seed response exceeds maximum length")
	ErrNegativeWeight       = errors.New("seed weight must be >= 0")
	ErrConfidenceOutOfRange = errors.New("seed confidence must be between 0 and 1")
)

// IsValidSeedType checks if the given seed type is supported.
func IsValidSeedType(st SeedType) bool {
	switch st {
	case SeedTypeValidation, SeedTypeReflection, SeedTypeSuggestion, SeedTypeIntervention:
		return true
	default:
		return false
	}
}

// SeedConstraints restricts the contexts in which a seed may be selected.
type SeedConstraints struct {
	SeverityTier string `json:"severity_tier,omitempty"` // e.g. "low", "moderate", "high"
	AgeBand      string `json:"age_band,omitempty"`      // e.g. "18-24"
	TimeOfDay    string `json:"time_of_day,omitempty"`   // e.g. "evening"
	Situation    string `json:"situation,omitempty"`     // e.g. "work", "relationship"
}

// SeedMetadata carries the mutable selection bookkeeping for a seed.
//
// Weight is adjusted by an out-of-band learning process and is eventually
// consistent with the matcher's view. UsageCount and LastUsedAt mutate on
// every selection via the store, never inside the matcher.
type SeedMetadata struct {
	Priority   int        `json:"priority"`
	Weight     float64    `json:"weight"`     // selection influence, >= 0
	Confidence float64    `json:"confidence"` // 0..1
	TTLMinutes int        `json:"ttl_minutes"`
	UsageCount int        `json:"usage_count"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// Seed is a symbolic, pre-authored response template tagged with trigger
// phrases and contextual metadata.
type Seed struct {
	ID            string            `json:"id"`
	Emotion       string            `json:"emotion"`
	Type          SeedType          `json:"type"`
	Label         Label             `json:"label"`
	Triggers      []string          `json:"triggers"`
	Response      string            `json:"response"`
	Responses     map[string]string `json:"responses,omitempty"` // per-locale overrides
	Constraints   SeedConstraints   `json:"constraints,omitempty"`
	Metadata      SeedMetadata      `json:"metadata"`
	Tags          []string          `json:"tags,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	Active        bool              `json:"active"`
	SchemaVersion int               `json:"schema_version"`
}

// ResponseFor returns the seed response for the given locale, falling back to
// the default response text.
func (s *Seed) ResponseFor(locale string) string {
	if s.Responses != nil {
		if r, ok := s.Responses[locale]; ok && r != "" {
			return r
		}
	}
	return s.Response
}

// Validate checks the seed against schema invariants.
func (s *Seed) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return ErrEmptySeedID
	}
	if !IsValidSeedType(s.Type) {
		return ErrInvalidSeedType
	}
	if strings.TrimSpace(s.Emotion) == "" {
		return ErrEmptyEmotion
	}
	if len(s.Triggers) == 0 {
		return ErrNoTriggers
	}
	if len(s.Triggers) > MaxTriggersCount {
		return ErrTooManyTriggers
	}
	for _, trig := range s.Triggers {
		if len(trig) > MaxTriggerLength {
			return ErrTriggerTooLong
		}
	}
	if strings.TrimSpace(s.Response) == "" {
		return ErrEmptyResponse
	}
	if len(s.Response) > MaxSeedResponseLength {
		return ErrResponseTooLong
	}
	if s.Metadata.Weight < 0 {
		return ErrNegativeWeight
	}
	if s.Metadata.Confidence < 0 || s.Metadata.Confidence > 1 {
		return ErrConfidenceOutOfRange
	}
	return nil
}

// InCooldown reports whether the seed was used more recently than its TTL.
func (s *Seed) InCooldown(now time.Time) bool {
	if s.Metadata.LastUsedAt == nil || s.Metadata.TTLMinutes <= 0 {
		return false
	}
	ttl := time.Duration(s.Metadata.TTLMinutes) * time.Minute
	return now.Sub(*s.Metadata.LastUsedAt) < ttl
}
