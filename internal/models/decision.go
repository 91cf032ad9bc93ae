// Package models defines decision and policy structures shared across the
// orchestration pipeline.
package models

// DecisionAction is one of the five response strategies the policy engine
// can choose.
type DecisionAction string

const (
	// ActionEscalateIntervention is the safety override: scripted referral, human review.
	ActionEscalateIntervention DecisionAction = "ESCALATE_INTERVENTION"
	// ActionFastPath answers trivial greetings from a canned pool.
	ActionFastPath DecisionAction = "FAST_PATH"
	// ActionUseSeed fuses a matched seed with generated context.
	ActionUseSeed DecisionAction = "USE_SEED"
	// ActionTemplateOnly composes the answer from fixed phrase templates.
	ActionTemplateOnly DecisionAction = "TEMPLATE_ONLY"
	// ActionLLMPlanning is the generative fallback with full context.
	ActionLLMPlanning DecisionAction = "LLM_PLANNING"
)

// IsValidDecisionAction checks if the given action is supported.
func IsValidDecisionAction(a DecisionAction) bool {
	switch a {
	case ActionEscalateIntervention, ActionFastPath, ActionUseSeed, ActionTemplateOnly, ActionLLMPlanning:
		return true
	default:
		return false
	}
}

// Label is the user-facing strategy label on an orchestration result.
type Label string

const (
	// LabelValideren validates the user's feeling.
	LabelValideren Label = "Valideren"
	// LabelReflecteren mirrors with a reflective question.
	LabelReflecteren Label = "Reflecteren"
	// LabelSuggestie offers a directive coping suggestion.
	LabelSuggestie Label = "Suggestie"
	// LabelInterventie is the safety/referral class.
	LabelInterventie Label = "Interventie"
	// LabelFout marks an error or blocked response.
	LabelFout Label = "Fout"
)

// LabelForSeedType maps a seed type to its result label.
func LabelForSeedType(st SeedType) Label {
	switch st {
	case SeedTypeValidation:
		return LabelValideren
	case SeedTypeReflection:
		return LabelReflecteren
	case SeedTypeSuggestion:
		return LabelSuggestie
	case SeedTypeIntervention:
		return LabelInterventie
	default:
		return LabelValideren
	}
}

// RubricScores holds the externally calibrated risk rubrics, each 0..1.
type RubricScores struct {
	Crisis   float64 `json:"crisis"`
	Distress float64 `json:"distress"`
	Support  float64 `json:"support"`
	Coping   float64 `json:"coping"`
}

// InputComplexity describes surface features of the utterance.
type InputComplexity struct {
	Length     int  `json:"length"`
	IsGreeting bool `json:"is_greeting"`
	IsComplex  bool `json:"is_complex"`
}

// PolicyContext is the ephemeral per-request aggregate fed to the policy
// decision engine.
type PolicyContext struct {
	Rubrics        RubricScores    `json:"rubrics"`
	SeedMatchScore float64         `json:"seed_match_score"` // best available seed-match score
	Consent        bool            `json:"consent"`
	Input          InputComplexity `json:"input"`
}

// Decision is the outcome of the policy rule cascade.
type Decision struct {
	Action        DecisionAction `json:"action"`
	RuleID        string         `json:"rule_id"`
	Confidence    float64        `json:"confidence"`
	Justification string         `json:"justification"`
	// Evaluated lists every rule condition the cascade looked at, in order,
	// for the audit trail.
	Evaluated []string `json:"evaluated,omitempty"`
}

// EAAProfile holds the Ownership/Autonomy/Agency scores describing the
// user's expressed self-efficacy. Derived once per request, read-only within
// the pipeline.
type EAAProfile struct {
	Ownership float64 `json:"ownership"` // 0..1
	Autonomy  float64 `json:"autonomy"`  // 0..1
	Agency    float64 `json:"agency"`    // 0..1
}

// TDScore is the risk/benefit balance outcome: how much of a candidate
// response is provider-generated versus user-grounded, combined with agency.
type TDScore struct {
	Balance float64 `json:"balance"`
	Flag    string  `json:"flag"` // qualitative band, e.g. "grounded", "drifting", "dominated"
	Block   bool    `json:"block"`
}

// SourceKind discriminates where a candidate answer came from.
type SourceKind string

const (
	// SourceSeed marks an answer rooted in a knowledge-base seed.
	SourceSeed SourceKind = "seed"
	// SourceGenerated marks a provider-generated answer.
	SourceGenerated SourceKind = "generated"
)

// ResponseSource is an explicit tagged union identifying the origin of a
// candidate answer. SeedID is set only when Kind == SourceSeed.
type ResponseSource struct {
	Kind   SourceKind `json:"kind"`
	SeedID string     `json:"seed_id,omitempty"`
}
