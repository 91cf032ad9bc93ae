// Package match implements the seed pattern matcher.
//
// Matching is a pure function over the utterance, the candidate seeds, the
// request context, and an injected random source: usage bookkeeping happens
// at the store boundary after selection, never in here.
package match

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/VeerkrachtLab/veerkracht/internal/models"
)

// Scoring constants. The trigger term dominates; context and recency bonuses
// break ties between seeds with equal trigger coverage.
const (
	triggerPoints    = 10.0
	ageBandBonus     = 5.0
	timeOfDayBonus   = 3.0
	situationBonus   = 5.0
	neverUsedBonus   = 3.0
	staleUseBonus    = 2.0
	cooldownPenalty  = 0.5
	decayPerUse      = 0.1
	decayFloor       = 0.3
	decayThreshold   = 5
	topCandidates    = 3
	staleUseInterval = 24 * time.Hour
)

// Context carries the request-side attributes that earn context bonuses.
type Context struct {
	AgeBand   string
	TimeOfDay string
	Situation string
}

// Score pairs a candidate seed with its computed selection score.
type Score struct {
	Seed        models.Seed
	Value       float64
	TriggerHits int
}

// Normalize lowercases the utterance and folds whitespace.
func Normalize(utterance string) string {
	return strings.Join(strings.Fields(strings.ToLower(utterance)), " ")
}

// TriggerHits counts how many of the seed's trigger phrases occur in the
// normalized utterance.
func TriggerHits(normalized string, seed *models.Seed) int {
	hits := 0
	for _, trig := range seed.Triggers {
		t := strings.ToLower(strings.TrimSpace(trig))
		if t != "" && strings.Contains(normalized, t) {
			hits++
		}
	}
	return hits
}

// ScoreSeed computes the selection score for a seed with the given trigger
// hit count. A seed with zero hits is never a candidate and scores zero.
func ScoreSeed(seed *models.Seed, hits int, mctx Context, now time.Time) float64 {
	if hits == 0 {
		return 0
	}
	score := float64(hits) * triggerPoints * seed.Metadata.Weight

	if mctx.AgeBand != "" && strings.EqualFold(seed.Constraints.AgeBand, mctx.AgeBand) {
		score += ageBandBonus
	}
	if mctx.TimeOfDay != "" && strings.EqualFold(seed.Constraints.TimeOfDay, mctx.TimeOfDay) {
		score += timeOfDayBonus
	}
	if mctx.Situation != "" && strings.EqualFold(seed.Constraints.Situation, mctx.Situation) {
		score += situationBonus
	}

	switch {
	case seed.Metadata.LastUsedAt == nil:
		score += neverUsedBonus
	case now.Sub(*seed.Metadata.LastUsedAt) > staleUseInterval:
		score += staleUseBonus
	}

	if seed.InCooldown(now) {
		score *= cooldownPenalty
	}
	if seed.Metadata.UsageCount > decayThreshold {
		score *= DecayMultiplier(seed.Metadata.UsageCount)
	}
	return score
}

// DecayMultiplier is the usage-decay factor: 1.0 until usage exceeds the
// threshold, then non-increasing with a floor of 0.3.
func DecayMultiplier(usageCount int) float64 {
	if usageCount <= decayThreshold {
		return 1.0
	}
	m := 1.0 - float64(usageCount)*decayPerUse
	if m < decayFloor {
		return decayFloor
	}
	return m
}

// Match scores the candidate seeds against the utterance and draws one of the
// top three by score-weighted probability, so repeated identical inputs do
// not always yield the identical seed while higher scores stay favored.
//
// Returns nil when no seed has a single trigger hit. The returned scores list
// covers every surviving candidate, ordered best-first, for the audit trail.
func Match(utterance string, seeds []models.Seed, mctx Context, rng *rand.Rand, now time.Time) (*models.Seed, []Score) {
	normalized := Normalize(utterance)
	if normalized == "" || len(seeds) == 0 {
		return nil, nil
	}

	var scored []Score
	for i := range seeds {
		seed := &seeds[i]
		hits := TriggerHits(normalized, seed)
		if hits == 0 {
			continue
		}
		scored = append(scored, Score{Seed: *seed, Value: ScoreSeed(seed, hits, mctx, now), TriggerHits: hits})
	}
	if len(scored) == 0 {
		return nil, nil
	}

	// Stable best-first order; ties resolve by ID so scoring stays deterministic.
	for i := 1; i < len(scored); i++ {
		for j := i; j > 0 && less(scored[j-1], scored[j]); j-- {
			scored[j-1], scored[j] = scored[j], scored[j-1]
		}
	}

	top := scored
	if len(top) > topCandidates {
		top = top[:topCandidates]
	}
	chosen := weightedDraw(top, rng)
	return &chosen.Seed, scored
}

func less(a, b Score) bool {
	if a.Value != b.Value {
		return a.Value < b.Value
	}
	return a.Seed.ID > b.Seed.ID
}

// weightedDraw picks one candidate with probability proportional to its
// score. When all scores are zero the best-ranked candidate wins outright.
func weightedDraw(top []Score, rng *rand.Rand) *Score {
	total := 0.0
	for i := range top {
		if top[i].Value > 0 {
			total += top[i].Value
		}
	}
	if total <= 0 || rng == nil {
		return &top[0]
	}
	r := rng.Float64() * total
	for i := range top {
		if top[i].Value <= 0 {
			continue
		}
		r -= top[i].Value
		if r < 0 {
			return &top[i]
		}
	}
	return &top[len(top)-1]
}
