// Package hitl implements the human-in-the-loop escalation path: the
// escalation trigger, the ticket queue, and the on-call reviewer notifier.
package hitl

import (
	"github.com/VeerkrachtLab/veerkracht/internal/models"
)

// Escalation types recorded on an assessment.
const (
	TypeCrisis        = "crisis"
	TypeBalance       = "balance"
	TypeLowConfidence = "low_confidence"
	TypeBlindspot     = "blindspot"
)

// ReviewPendingMessage replaces the answer when escalation blocks output.
const ReviewPendingMessage = "Ik wil hier zorgvuldig mee omgaan, dus een begeleider kijkt even mee voordat we verdergaan. " +
	"Als het nu niet gaat, bel dan 113 (113 Zelfmoordpreventie) of 112 bij acuut gevaar."

// Thresholds holds the externally calibrated escalation cutoffs.
type Thresholds struct {
	// Crisis triggers a blocking crisis escalation.
	Crisis float64
	// Balance triggers a review when the TD balance reaches it.
	Balance float64
	// Confidence triggers a review when the final confidence falls below it.
	Confidence float64
	// Blindspots triggers a review at this many findings.
	Blindspots int
}

// DefaultThresholds returns the shipped calibration values.
func DefaultThresholds() Thresholds {
	return Thresholds{Crisis: 0.7, Balance: 0.8, Confidence: 0.15, Blindspots: 3}
}

// Signals is the input to the escalation trigger.
type Signals struct {
	CrisisScore  float64
	BalanceValue float64
	Confidence   float64
	Emotion      string
	Rubrics      models.RubricScores
	Blindspots   int
}

// Assessment is the trigger verdict. Every assessment is recorded in the
// audit trail whether or not output is blocked.
type Assessment struct {
	Trigger     bool                      `json:"trigger"`
	Type        string                    `json:"type,omitempty"`
	Severity    models.EscalationSeverity `json:"severity,omitempty"`
	BlockOutput bool                      `json:"block_output"`
}

// Trigger evaluates the escalation signals.
type Trigger struct {
	thresholds Thresholds
}

// NewTrigger creates a trigger with the given thresholds.
func NewTrigger(thresholds Thresholds) *Trigger {
	if thresholds.Crisis == 0 {
		thresholds = DefaultThresholds()
	}
	return &Trigger{thresholds: thresholds}
}

// ShouldEscalate checks the signals in severity order. Crisis blocks output;
// the softer signals open a review ticket without blocking.
func (t *Trigger) ShouldEscalate(s Signals) Assessment {
	th := t.thresholds
	switch {
	case s.CrisisScore > th.Crisis:
		return Assessment{Trigger: true, Type: TypeCrisis, Severity: models.EscalationSeverityCritical, BlockOutput: true}
	case s.BalanceValue >= th.Balance:
		return Assessment{Trigger: true, Type: TypeBalance, Severity: models.EscalationSeverityHigh, BlockOutput: true}
	case s.Blindspots >= th.Blindspots:
		return Assessment{Trigger: true, Type: TypeBlindspot, Severity: models.EscalationSeverityModerate, BlockOutput: false}
	case s.Confidence < th.Confidence:
		return Assessment{Trigger: true, Type: TypeLowConfidence, Severity: models.EscalationSeverityLow, BlockOutput: false}
	default:
		return Assessment{}
	}
}
