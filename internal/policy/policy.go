// Package policy implements the priority-ordered rule cascade that selects a
// response strategy for one request.
//
// The cascade is total: rule R5 always matches, so the engine never fails to
// produce a decision. Every evaluated condition is emitted for the audit
// trail, fired or not.
package policy

import (
	"fmt"

	"github.com/VeerkrachtLab/veerkracht/internal/models"
)

// Thresholds holds the externally calibrated cutoffs for the rule cascade.
type Thresholds struct {
	// Crisis is the crisis-score cutoff for the safety override.
	Crisis float64
	// SeedAcceptance is the minimum seed-match score for USE_SEED.
	SeedAcceptance float64
	// ModerateFloor and ModerateCeil bound the distress/support band in which
	// template composition suffices.
	ModerateFloor float64
	ModerateCeil  float64
}

// DefaultThresholds are the shipped calibration values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Crisis:         0.7,
		SeedAcceptance: 30.0,
		ModerateFloor:  0.4,
		ModerateCeil:   0.75,
	}
}

// Rule identifiers, in cascade order.
const (
	RuleCrisisOverride = "R1_CRISIS_OVERRIDE"
	RuleFastPath       = "R2_FAST_PATH"
	RuleUseSeed        = "R3_USE_SEED"
	RuleTemplateOnly   = "R4_TEMPLATE_ONLY"
	RuleLLMPlanning    = "R5_LLM_PLANNING"
)

// Per-rule decision confidences.
const (
	confidenceCrisis   = 0.95
	confidenceFastPath = 0.80
	confidenceUseSeed  = 0.85
	confidenceTemplate = 0.70
	confidencePlanning = 0.60
)

// Engine evaluates the rule cascade.
type Engine struct {
	thresholds Thresholds
}

// NewEngine creates a policy engine with the given thresholds.
func NewEngine(thresholds Thresholds) *Engine {
	return &Engine{thresholds: thresholds}
}

// Decide runs the cascade in fixed priority order, first match wins.
//
// The crisis override ignores consent and seed-match score: safety beats
// every other signal.
func (e *Engine) Decide(pc models.PolicyContext) models.Decision {
	t := e.thresholds
	var evaluated []string

	crisisHit := pc.Rubrics.Crisis > t.Crisis
	evaluated = append(evaluated, fmt.Sprintf("%s: crisis %.2f > %.2f = %t", RuleCrisisOverride, pc.Rubrics.Crisis, t.Crisis, crisisHit))
	if crisisHit {
		return models.Decision{
			Action:        models.ActionEscalateIntervention,
			RuleID:        RuleCrisisOverride,
			Confidence:    confidenceCrisis,
			Justification: fmt.Sprintf("crisissignaal %.2f boven drempel %.2f; veiligheidsoverride", pc.Rubrics.Crisis, t.Crisis),
			Evaluated:     evaluated,
		}
	}

	fastPathHit := pc.Input.IsGreeting && pc.SeedMatchScore < t.SeedAcceptance
	evaluated = append(evaluated, fmt.Sprintf("%s: greeting %t && seed score %.1f < %.1f = %t", RuleFastPath, pc.Input.IsGreeting, pc.SeedMatchScore, t.SeedAcceptance, fastPathHit))
	if fastPathHit {
		return models.Decision{
			Action:        models.ActionFastPath,
			RuleID:        RuleFastPath,
			Confidence:    confidenceFastPath,
			Justification: "triviale begroeting zonder bruikbare seed-match",
			Evaluated:     evaluated,
		}
	}

	// Personalized seed use requires consent; without it the cascade falls
	// through to the non-personalized strategies.
	seedHit := pc.Consent && pc.SeedMatchScore >= t.SeedAcceptance
	evaluated = append(evaluated, fmt.Sprintf("%s: consent %t && seed score %.1f >= %.1f = %t", RuleUseSeed, pc.Consent, pc.SeedMatchScore, t.SeedAcceptance, seedHit))
	if seedHit {
		return models.Decision{
			Action:        models.ActionUseSeed,
			RuleID:        RuleUseSeed,
			Confidence:    confidenceUseSeed,
			Justification: fmt.Sprintf("seed-match score %.1f boven acceptatiedrempel", pc.SeedMatchScore),
			Evaluated:     evaluated,
		}
	}

	signal := pc.Rubrics.Distress
	if pc.Rubrics.Support > signal {
		signal = pc.Rubrics.Support
	}
	moderate := signal >= t.ModerateFloor && signal <= t.ModerateCeil
	templateHit := moderate && !pc.Input.IsComplex
	evaluated = append(evaluated, fmt.Sprintf("%s: signal %.2f in [%.2f,%.2f] %t && not complex %t = %t", RuleTemplateOnly, signal, t.ModerateFloor, t.ModerateCeil, moderate, !pc.Input.IsComplex, templateHit))
	if templateHit {
		return models.Decision{
			Action:        models.ActionTemplateOnly,
			RuleID:        RuleTemplateOnly,
			Confidence:    confidenceTemplate,
			Justification: "gematigde signalen met voldoende sjabloondekking",
			Evaluated:     evaluated,
		}
	}

	evaluated = append(evaluated, fmt.Sprintf("%s: fallback = true", RuleLLMPlanning))
	return models.Decision{
		Action:        models.ActionLLMPlanning,
		RuleID:        RuleLLMPlanning,
		Confidence:    confidencePlanning,
		Justification: "geen eerdere regel van toepassing; generatieve planning",
		Evaluated:     evaluated,
	}
}
