// Package semgraph implements the semantic intervention graph: a static
// association table from emotions to ranked intervention categories, plus a
// risk filter over the current rubric scores.
//
// Pure and deterministic given the static table and its inputs.
package semgraph

import "strings"

// Intervention categories, strongest-claim first in each ranking.
const (
	InterventionValidation = "validation"
	InterventionReflection = "reflection"
	InterventionSuggestion = "suggestion"
	InterventionGrounding  = "grounding"
	InterventionReferral   = "referral"
)

// associations maps an emotion to its candidate interventions, ranked by
// association strength.
var associations = map[string][]string{
	"verdriet":    {InterventionValidation, InterventionReflection, InterventionSuggestion},
	"angst":       {InterventionGrounding, InterventionValidation, InterventionReflection, InterventionSuggestion},
	"boosheid":    {InterventionValidation, InterventionReflection, InterventionGrounding},
	"eenzaamheid": {InterventionValidation, InterventionSuggestion, InterventionReflection},
	"schaamte":    {InterventionValidation, InterventionReflection},
	"stress":      {InterventionGrounding, InterventionSuggestion, InterventionReflection},
	"wanhoop":     {InterventionReferral, InterventionValidation, InterventionGrounding},
	"paniek":      {InterventionGrounding, InterventionReferral, InterventionValidation},
}

// defaultRanking is used for emotions without a table entry.
var defaultRanking = []string{InterventionValidation, InterventionReflection}

// RiskProfile carries the rubric scores the filter uses.
type RiskProfile struct {
	Crisis   float64
	Coping   float64
	Distress float64
}

// Graph holds the filter cutoffs. Cutoffs are externally calibrated; zero
// values fall back to the package defaults.
type Graph struct {
	CrisisCutoff   float64 // directive suggestions excluded at or above this crisis score
	DistressCutoff float64 // grounding forced to the front at or above this distress score
}

// Default cutoffs
const (
	DefaultCrisisCutoff   = 0.5
	DefaultDistressCutoff = 0.8
)

// New returns a graph with default cutoffs.
func New() *Graph {
	return &Graph{CrisisCutoff: DefaultCrisisCutoff, DistressCutoff: DefaultDistressCutoff}
}

// Suggest returns the ranked intervention candidates for an emotion.
func (g *Graph) Suggest(emotion string) []string {
	ranked, ok := associations[strings.ToLower(strings.TrimSpace(emotion))]
	if !ok {
		ranked = defaultRanking
	}
	out := make([]string, len(ranked))
	copy(out, ranked)
	return out
}

// Allowed returns the suggested interventions with risk-disallowed categories
// removed. Elevated crisis risk excludes directive suggestions and forces a
// referral to the front of the ranking.
func (g *Graph) Allowed(emotion string, risk RiskProfile) []string {
	crisisCutoff := g.CrisisCutoff
	if crisisCutoff == 0 {
		crisisCutoff = DefaultCrisisCutoff
	}
	distressCutoff := g.DistressCutoff
	if distressCutoff == 0 {
		distressCutoff = DefaultDistressCutoff
	}

	ranked := g.Suggest(emotion)
	elevated := risk.Crisis >= crisisCutoff

	var out []string
	for _, iv := range ranked {
		if elevated && iv == InterventionSuggestion {
			continue
		}
		out = append(out, iv)
	}

	if elevated && !contains(out, InterventionReferral) {
		out = append([]string{InterventionReferral}, out...)
	}
	if risk.Distress >= distressCutoff && contains(out, InterventionGrounding) && out[0] != InterventionGrounding {
		out = moveToFront(out, InterventionGrounding)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func moveToFront(list []string, v string) []string {
	out := []string{v}
	for _, item := range list {
		if item != v {
			out = append(out, item)
		}
	}
	return out
}
