// Package eaa derives the Ownership/Autonomy/Agency profile for a request.
//
// The shipped scorer is a lexicon heuristic; deployments with a calibrated
// external scorer inject their own implementation through the Scorer
// interface. The profile is derived once per request and read-only afterwards.
package eaa

import (
	"strings"

	"github.com/VeerkrachtLab/veerkracht/internal/models"
)

// Scorer produces an EAA profile from an utterance and its rubric context.
type Scorer interface {
	Score(utterance string, rubrics models.RubricScores) models.EAAProfile
}

// Marker phrase tables. Dutch-first, mirroring the seed corpus.
var (
	ownershipMarkers = []string{
		"ik heb besloten", "mijn keuze", "ik kies", "ik neem", "dit is mijn",
		"ik ben verantwoordelijk", "ik wil",
	}
	disownmentMarkers = []string{
		"het overkomt me", "ik kan er niets aan doen", "door hen", "niet mijn schuld",
		"het gebeurt gewoon",
	}
	autonomyMarkers = []string{
		"zelf", "op mijn manier", "ik bepaal", "mijn eigen", "ik regel",
	}
	dependencyMarkers = []string{
		"zeg me wat", "wat moet ik doen", "vertel me wat", "ik weet het niet meer",
		"beslis jij",
	}
	agencyMarkers = []string{
		"ik ga", "ik probeer", "ik kan", "stap voor stap", "ik begin",
	}
	helplessnessMarkers = []string{
		"het lukt niet", "ik kan het niet", "geen uitweg", "machteloos", "opgegeven",
		"geen zin meer", "zinloos",
	}
)

// Tuning constants for the heuristic.
const (
	baseline     = 0.5
	markerStep   = 0.1
	copingWeight = 0.2
	crisisDrag   = 0.25
)

// HeuristicScorer is the default lexicon-based EAA scorer.
type HeuristicScorer struct{}

// NewHeuristicScorer returns the default scorer.
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

// Score derives the profile. Each score starts at the baseline, moves per
// marker hit, blends in the coping rubric, and is clamped to [0,1].
func (s *HeuristicScorer) Score(utterance string, rubrics models.RubricScores) models.EAAProfile {
	text := strings.ToLower(utterance)

	ownership := baseline + markerDelta(text, ownershipMarkers, disownmentMarkers)
	autonomy := baseline + markerDelta(text, autonomyMarkers, dependencyMarkers)
	agency := baseline + markerDelta(text, agencyMarkers, helplessnessMarkers)

	// Coping capacity lifts agency; acute crisis drags all three.
	agency += copingWeight * (rubrics.Coping - baseline)
	ownership -= crisisDrag * rubrics.Crisis
	autonomy -= crisisDrag * rubrics.Crisis
	agency -= crisisDrag * rubrics.Crisis

	return models.EAAProfile{
		Ownership: clamp01(ownership),
		Autonomy:  clamp01(autonomy),
		Agency:    clamp01(agency),
	}
}

func markerDelta(text string, positive, negative []string) float64 {
	delta := 0.0
	for _, m := range positive {
		if strings.Contains(text, m) {
			delta += markerStep
		}
	}
	for _, m := range negative {
		if strings.Contains(text, m) {
			delta -= markerStep
		}
	}
	return delta
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
