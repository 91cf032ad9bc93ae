// Package models defines the orchestration result, audit trail, and error
// taxonomy shared across pipeline stages.
package models

import "time"

// Stage names the fixed pipeline stages, in execution order.
type Stage string

const (
	StageSafety     Stage = "safety_check"
	StageEAA        Stage = "eaa_evaluation"
	StageBriefing   Stage = "strategic_briefing"
	StagePolicy     Stage = "policy_decision"
	StageSemantic   Stage = "semantic_graph"
	StageGeneration Stage = "generation"
	StageValidation Stage = "validation_fusion"
	StageBlindspot  Stage = "blindspot_check"
	StageEscalation Stage = "escalation_check"
)

// PipelineStages lists the stages in their fixed execution order. No stage
// may be skipped except via the top-level exception path.
var PipelineStages = []Stage{
	StageSafety, StageEAA, StageBriefing, StagePolicy, StageSemantic,
	StageGeneration, StageValidation, StageBlindspot, StageEscalation,
}

// ErrorKind classifies pipeline failures per the propagation policy.
type ErrorKind string

const (
	// ErrorKindSafetyBlocked: safety constraint replaced the answer; recovered locally.
	ErrorKindSafetyBlocked ErrorKind = "safety_blocked"
	// ErrorKindGenerationFailed: provider error, timeout, or empty result; template fallback.
	ErrorKindGenerationFailed ErrorKind = "generation_failed"
	// ErrorKindConstraintViolation: EAA/balance/rule-based block; recovered locally.
	ErrorKindConstraintViolation ErrorKind = "constraint_violation"
	// ErrorKindBlindspotLowConfidence: blindspot count reduced confidence below the floor.
	ErrorKindBlindspotLowConfidence ErrorKind = "blindspot_low_confidence"
	// ErrorKindEscalationRequired: output blocked pending human review.
	ErrorKindEscalationRequired ErrorKind = "escalation_required"
	// ErrorKindPipeline: unexpected internal failure; the only kind that reaches
	// the top-level handler and triggers auto-healing.
	ErrorKindPipeline ErrorKind = "pipeline_exception"
)

// AuditStatus is the outcome recorded for a stage.
type AuditStatus string

const (
	AuditStatusStarted   AuditStatus = "started"
	AuditStatusCompleted AuditStatus = "completed"
	AuditStatusDegraded  AuditStatus = "degraded"
	AuditStatusFailed    AuditStatus = "failed"
)

// AuditEntry is one append-only trace record for a pipeline stage.
type AuditEntry struct {
	Stage      Stage          `json:"stage"`
	Status     AuditStatus    `json:"status"`
	DurationMs int64          `json:"duration_ms"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ResultMetadata is the diagnostic bundle attached to an orchestration result.
type ResultMetadata struct {
	Action               DecisionAction `json:"action"`
	RuleID               string         `json:"rule_id"`
	AllowedInterventions []string       `json:"allowed_interventions,omitempty"`
	Validated            bool           `json:"validated"`
	ConstraintsOK        bool           `json:"constraints_ok"`
	ProcessingPath       string         `json:"processing_path"`
	Source               ResponseSource `json:"source"`
	FusionStrategy       string         `json:"fusion_strategy,omitempty"`
	FusionDeviation      float64        `json:"fusion_deviation,omitempty"`
	AuditTrail           []AuditEntry   `json:"audit_trail,omitempty"`
}

// OrchestrationResult is the pipeline's final, immutable answer for one
// request. The pipeline always resolves to a well-formed result; it never
// raises an error to its caller.
type OrchestrationResult struct {
	RequestID     string         `json:"request_id"`
	SessionID     string         `json:"session_id"`
	Answer        string         `json:"answer"`
	Emotion       string         `json:"emotion"`
	Confidence    float64        `json:"confidence"`
	Label         Label          `json:"label"`
	Justification string         `json:"justification"`
	Metadata      ResultMetadata `json:"metadata"`
	CreatedAt     time.Time      `json:"created_at"`
}

// EscalationSeverity grades a human-review ticket.
type EscalationSeverity string

const (
	EscalationSeverityLow      EscalationSeverity = "low"
	EscalationSeverityModerate EscalationSeverity = "moderate"
	EscalationSeverityHigh     EscalationSeverity = "high"
	EscalationSeverityCritical EscalationSeverity = "critical"
)

// EscalationTicket is submitted to the human-in-the-loop queue. The pipeline
// only needs an acknowledgment of submission, never a reply payload.
type EscalationTicket struct {
	ID              string             `json:"id"`
	SessionID       string             `json:"session_id"`
	Input           string             `json:"input"`
	CandidateAnswer string             `json:"candidate_answer"`
	Severity        EscalationSeverity `json:"severity"`
	Reason          string             `json:"reason,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

// AuditEvent is a persisted audit record, tagged with its request and session.
type AuditEvent struct {
	RequestID string     `json:"request_id"`
	SessionID string     `json:"session_id"`
	Entry     AuditEntry `json:"entry"`
}
