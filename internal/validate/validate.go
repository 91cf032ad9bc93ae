// Package validate implements the post-hoc compliance layer: plan checks,
// response constraint checks, risk/benefit balance scoring, the declarative
// rule set, and the label/EAA compatibility check. Each step can force a
// downgrade; none of them raises an error to the pipeline.
package validate

import (
	"log/slog"
	"strings"

	"github.com/VeerkrachtLab/veerkracht/internal/models"
)

// Config holds the externally calibrated validation parameters.
type Config struct {
	// BlockThreshold blocks an answer whose balance score reaches it.
	BlockThreshold float64
	// LowConfidenceFloor is the confidence assigned to replaced answers.
	LowConfidenceFloor float64
	// LowAutonomyCutoff disallows directive phrasing below it.
	LowAutonomyCutoff float64
	// VeryLowAutonomyCutoff downgrades a directive label below it.
	VeryLowAutonomyCutoff float64
	// LowAgencyCutoff switches the fallback phrasing style.
	LowAgencyCutoff float64
	// AgencyWeight is the agency share of the balance formula.
	AgencyWeight float64
}

// DefaultConfig returns the shipped calibration values.
func DefaultConfig() Config {
	return Config{
		BlockThreshold:        0.65,
		LowConfidenceFloor:    0.2,
		LowAutonomyCutoff:     0.35,
		VeryLowAutonomyCutoff: 0.25,
		LowAgencyCutoff:       0.4,
		AgencyWeight:          0.4,
	}
}

// Plan is a structured action plan attached to some strategies, e.g. a
// crisis-response plan. Plans are validated only when present.
type Plan struct {
	Kind    string   `json:"kind"`
	Steps   []string `json:"steps"`
	Contact string   `json:"contact,omitempty"` // required for crisis plans
}

// PlanKindCrisis marks a crisis-response plan.
const PlanKindCrisis = "crisis_response"

// Context carries the request state the validator needs.
type Context struct {
	Rubrics models.RubricScores
	Label   models.Label
	// Confidence is the pre-validation confidence of the answer.
	Confidence float64
	Source     models.ResponseSource
	// GeneratedShare estimates the provider-generated proportion of the answer.
	GeneratedShare float64
}

// Result is the validated (possibly downgraded) answer state.
type Result struct {
	Answer        string
	Label         models.Label
	Confidence    float64
	Validated     bool
	ConstraintsOK bool
	TD            models.TDScore
	BlockedBy     string
	ErrorKind     models.ErrorKind
}

// Validator runs the compliance steps.
type Validator struct {
	cfg   Config
	rules []Rule
}

// NewValidator creates a validator with the given config and the built-in
// declarative rule set.
func NewValidator(cfg Config) *Validator {
	if cfg.BlockThreshold == 0 {
		cfg = DefaultConfig()
	}
	return &Validator{cfg: cfg, rules: builtinRules()}
}

// directiveMarkers flag phrasing that pushes the user toward an action.
var directiveMarkers = []string{
	"je moet", "moet je", "je zou moeten", "doe dit", "doe nu", "ga nu", "stop met",
}

// Validate runs all steps in order. A failing step replaces the answer with
// an EAA-aware fallback and downgrades label and confidence; later steps run
// regardless so the audit trail records every verdict.
func (v *Validator) Validate(plan *Plan, answer string, vctx Context, profile models.EAAProfile) Result {
	res := Result{
		Answer:        answer,
		Label:         vctx.Label,
		Confidence:    vctx.Confidence,
		Validated:     true,
		ConstraintsOK: true,
	}

	// Plan validation, only when a structured plan exists.
	if plan != nil && !validPlan(plan) {
		slog.Warn("validate: plan validation failed", "kind", plan.Kind, "steps", len(plan.Steps))
		res.Validated = false
	}

	// Response validation: directive phrasing is disallowed at low autonomy.
	if v.directiveDisallowed(res.Answer, res.Label, profile) {
		slog.Info("validate: directive response blocked at low autonomy", "autonomy", profile.Autonomy)
		v.block(&res, "RESPONSE_DIRECTIVE_LOW_AUTONOMY", profile)
	}

	// Risk/benefit balance scoring.
	res.TD = v.BalanceScore(vctx.GeneratedShare, profile)
	if res.TD.Block && res.BlockedBy == "" {
		slog.Info("validate: balance score blocked answer", "balance", res.TD.Balance, "flag", res.TD.Flag)
		v.block(&res, "TD_BALANCE_BLOCK", profile)
	}

	// Declarative rule-set evaluation.
	for _, rule := range v.rules {
		if rule.Matches(profile, res.TD, vctx) {
			slog.Info("validate: rule matched", "rule", rule.ID, "blocks", rule.Block)
			if rule.Block && res.BlockedBy == "" {
				v.block(&res, rule.ID, profile)
			} else if !rule.Block {
				res.ConstraintsOK = false
			}
		}
	}

	// Label/EAA compatibility: a directive label is incompatible with very
	// low autonomy. Downgrade without touching confidence further.
	if res.Label == models.LabelSuggestie && profile.Autonomy < v.cfg.VeryLowAutonomyCutoff {
		slog.Info("validate: downgrading directive label at very low autonomy", "autonomy", profile.Autonomy)
		res.Label = models.LabelReflecteren
	}

	return res
}

// BalanceScore computes the TD score: generated share blended with inverse
// agency. The formula weights are calibrated parameters.
func (v *Validator) BalanceScore(generatedShare float64, profile models.EAAProfile) models.TDScore {
	w := v.cfg.AgencyWeight
	balance := generatedShare*(1-w) + (1-profile.Agency)*w
	td := models.TDScore{Balance: balance}
	switch {
	case balance < 0.35:
		td.Flag = "grounded"
	case balance < v.cfg.BlockThreshold:
		td.Flag = "drifting"
	default:
		td.Flag = "dominated"
		td.Block = true
	}
	return td
}

// FallbackAnswer is the EAA-aware replacement phrasing: a reflective question
// when agency is low, a validating statement when agency is high.
func (v *Validator) FallbackAnswer(profile models.EAAProfile) string {
	if profile.Agency < v.cfg.LowAgencyCutoff {
		return "Wat zou jou op dit moment een heel klein beetje lucht kunnen geven?"
	}
	return "Je draagt op dit moment veel, en wat je voelt is volkomen begrijpelijk."
}

func (v *Validator) block(res *Result, ruleID string, profile models.EAAProfile) {
	res.Answer = v.FallbackAnswer(profile)
	res.Label = models.LabelFout
	res.Confidence = v.cfg.LowConfidenceFloor
	res.ConstraintsOK = false
	res.BlockedBy = ruleID
	res.ErrorKind = models.ErrorKindConstraintViolation
}

func (v *Validator) directiveDisallowed(answer string, label models.Label, profile models.EAAProfile) bool {
	if profile.Autonomy >= v.cfg.LowAutonomyCutoff {
		return false
	}
	if label == models.LabelSuggestie {
		return true
	}
	lower := strings.ToLower(answer)
	for _, marker := range directiveMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func validPlan(plan *Plan) bool {
	if strings.TrimSpace(plan.Kind) == "" || len(plan.Steps) == 0 {
		return false
	}
	for _, step := range plan.Steps {
		if strings.TrimSpace(step) == "" {
			return false
		}
	}
	if plan.Kind == PlanKindCrisis && strings.TrimSpace(plan.Contact) == "" {
		return false
	}
	return true
}
