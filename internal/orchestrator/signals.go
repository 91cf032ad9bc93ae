package orchestrator

import (
	"strings"

	"github.com/VeerkrachtLab/veerkracht/internal/fusion"
	"github.com/VeerkrachtLab/veerkracht/internal/models"
)

// Lexicon tables for the shipped signal heuristics. Deployments with an
// external classifier pass pre-computed rubric scores on the request and
// bypass these entirely.
var (
	crisisMarkers = []string{
		"zelfmoord", "suïcide", "er niet meer zijn", "niet meer verder", "geen uitweg",
		"dood willen", "er een einde aan", "mezelf iets aandoen", "afscheid nemen",
	}
	distressMarkers = []string{
		"verdrietig", "bang", "angstig", "paniek", "wanhopig", "overweldigd", "huilen",
		"kapot", "uitgeput", "somber", "eenzaam", "alleen",
	}
	supportMarkers = []string{
		"help me", "ik heb hulp nodig", "kan iemand", "ik weet niet wat", "steun",
	}
	copingMarkers = []string{
		"ik probeer", "ik ga", "gelukt", "wandelen", "ademhalen", "gepland", "stap",
	}
	greetingPhrases = []string{
		"hoi", "hallo", "hey", "hi", "goedemorgen", "goedemiddag", "goedenavond", "yo",
	}
)

// emotionLexicon resolves the dominant emotion when no seed supplies one.
var emotionLexicon = []struct {
	emotion string
	markers []string
}{
	{"wanhoop", []string{"geen uitweg", "wanhopig", "zinloos", "uitzichtloos", "niet meer verder"}},
	{"paniek", []string{"paniek", "hyperventileer", "het wordt me te veel"}},
	{"angst", []string{"bang", "angstig", "zenuwachtig", "eng"}},
	{"verdriet", []string{"verdrietig", "huilen", "somber", "gemis", "verdriet"}},
	{"boosheid", []string{"boos", "woedend", "kwaad", "gefrustreerd"}},
	{"eenzaamheid", []string{"eenzaam", "alleen", "niemand"}},
	{"stress", []string{"stress", "druk", "deadline", "overwerkt"}},
}

// Complexity cutoffs.
const (
	greetingMaxLength = 25
	complexMinLength  = 240
	complexMinClauses = 3
	markerRubricStep  = 0.3
	markerRubricBase  = 0.1
)

// scoreRubrics derives rubric scores from the utterance lexicons.
func scoreRubrics(utterance string) models.RubricScores {
	text := strings.ToLower(utterance)
	return models.RubricScores{
		Crisis:   markerScore(text, crisisMarkers),
		Distress: markerScore(text, distressMarkers),
		Support:  markerScore(text, supportMarkers),
		Coping:   markerScore(text, copingMarkers),
	}
}

func markerScore(text string, markers []string) float64 {
	hits := 0
	for _, m := range markers {
		if strings.Contains(text, m) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	score := markerRubricBase + markerRubricStep*float64(hits)
	if score > 1 {
		return 1
	}
	return score
}

// inputComplexity derives the surface descriptor for the policy context.
func inputComplexity(utterance string) models.InputComplexity {
	trimmed := strings.TrimSpace(utterance)
	ic := models.InputComplexity{Length: len(trimmed)}

	lower := strings.ToLower(strings.Trim(trimmed, "!?. "))
	if len(trimmed) <= greetingMaxLength {
		for _, g := range greetingPhrases {
			if lower == g || strings.HasPrefix(lower, g+" ") {
				ic.IsGreeting = true
				break
			}
		}
	}

	clauses := 1 + strings.Count(trimmed, ",") + strings.Count(trimmed, " en ") + strings.Count(trimmed, " maar ")
	if len(trimmed) >= complexMinLength || clauses >= complexMinClauses {
		ic.IsComplex = true
	}
	return ic
}

// resolveEmotion returns the seed's emotion when one was matched, otherwise
// the first lexicon hit, otherwise empty.
func resolveEmotion(utterance string, seed *models.Seed) string {
	if seed != nil && seed.Emotion != "" {
		return seed.Emotion
	}
	text := strings.ToLower(utterance)
	for _, entry := range emotionLexicon {
		for _, m := range entry.markers {
			if strings.Contains(text, m) {
				return entry.emotion
			}
		}
	}
	return ""
}

// generatedShare estimates the provider-generated proportion of an answer
// from its fusion strategy, feeding the TD balance formula.
func generatedShare(strategy string) float64 {
	switch strategy {
	case fusion.StrategyNeuralEnhanced:
		return 0.7
	case fusion.StrategyWeightedBlend:
		return 0.3
	case fusion.StrategyGenerative:
		return 0.9
	case fusion.StrategySymbolicOnly, fusion.StrategyScripted:
		return 0.05
	case fusion.StrategyTemplate, fusion.StrategyCanned:
		return 0.1
	default:
		return 0.5
	}
}
