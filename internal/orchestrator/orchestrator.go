// Package orchestrator runs the fixed decision pipeline: safety signals,
// EAA profiling, seed briefing, the policy cascade, the semantic graph
// filter, generation/fusion, validation, blindspot adjustment, and the
// escalation check. Every stage is recorded in the audit trail, and the
// pipeline always resolves to a well-formed result: unexpected failures are
// healed with one bounded retry and a generic fallback.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/VeerkrachtLab/veerkracht/internal/audit"
	"github.com/VeerkrachtLab/veerkracht/internal/blindspot"
	"github.com/VeerkrachtLab/veerkracht/internal/eaa"
	"github.com/VeerkrachtLab/veerkracht/internal/fusion"
	"github.com/VeerkrachtLab/veerkracht/internal/genai"
	"github.com/VeerkrachtLab/veerkracht/internal/hitl"
	"github.com/VeerkrachtLab/veerkracht/internal/match"
	"github.com/VeerkrachtLab/veerkracht/internal/models"
	"github.com/VeerkrachtLab/veerkracht/internal/policy"
	"github.com/VeerkrachtLab/veerkracht/internal/semgraph"
	"github.com/VeerkrachtLab/veerkracht/internal/store"
	"github.com/VeerkrachtLab/veerkracht/internal/util"
	"github.com/VeerkrachtLab/veerkracht/internal/validate"
)

// healingApology is the last-resort answer after a failed retry.
const healingApology = "Het spijt me, er ging net iets mis aan onze kant. " +
	"Wil je het nog een keer in je eigen woorden vertellen?"

// StageAutoHeal tags the synthetic audit records of the recovery path.
const StageAutoHeal = models.Stage("auto_heal")

// Config collects the externally calibrated knobs of every stage.
type Config struct {
	Policy     policy.Thresholds
	Fusion     fusion.Config
	Validation validate.Config
	Escalation hitl.Thresholds
	// ConfidenceFloor is the minimum confidence a shipped answer may carry.
	ConfidenceFloor float64
	// Locale is the default answer locale when a request does not set one.
	Locale string
	// RandSeed fixes the per-request random stream for reproducible seed
	// draws. Zero seeds from entropy.
	RandSeed uint64
}

// DefaultConfig returns the shipped calibration values.
func DefaultConfig() Config {
	return Config{
		Policy:          policy.DefaultThresholds(),
		Fusion:          fusion.DefaultConfig(),
		Validation:      validate.DefaultConfig(),
		Escalation:      hitl.DefaultThresholds(),
		ConfidenceFloor: 0.2,
		Locale:          "nl",
	}
}

// Request is one user turn plus its session context.
type Request struct {
	SessionID string
	Utterance string
	Locale    string
	// Consent gates personalized seed use in the policy cascade.
	Consent bool
	History []models.ConversationMessage
	// Match carries the attributes that earn seed context bonuses.
	Match match.Context
	// Rubrics overrides the built-in lexicon scorer with externally
	// computed rubric scores.
	Rubrics *models.RubricScores
	// Blindspots are findings from the upstream blindspot detector.
	Blindspots []blindspot.Finding
}

// Orchestrator wires the stages together. Safe for concurrent use.
type Orchestrator struct {
	store     store.Store
	generator *fusion.Generator
	policy    *policy.Engine
	validator *validate.Validator
	graph     *semgraph.Graph
	scorer    eaa.Scorer
	trigger   *hitl.Trigger
	queue     hitl.Queue
	sink      audit.Sink
	cfg       Config
}

// New builds an orchestrator. The genai client, queue, and sink may be nil:
// a nil client degrades generative branches to their symbolic fallbacks, a
// nil queue drops escalation tickets, and a nil sink keeps the audit trail
// in-memory only.
func New(st store.Store, client genai.ClientInterface, queue hitl.Queue, sink audit.Sink, cfg Config) *Orchestrator {
	def := DefaultConfig()
	if cfg.Policy.Crisis == 0 {
		cfg.Policy = def.Policy
	}
	if cfg.ConfidenceFloor == 0 {
		cfg.ConfidenceFloor = def.ConfidenceFloor
	}
	if cfg.Locale == "" {
		cfg.Locale = def.Locale
	}
	return &Orchestrator{
		store:     st,
		generator: fusion.NewGenerator(client, fusion.LexicalSimilarity{}, cfg.Fusion),
		policy:    policy.NewEngine(cfg.Policy),
		validator: validate.NewValidator(cfg.Validation),
		graph:     semgraph.New(),
		scorer:    eaa.NewHeuristicScorer(),
		trigger:   hitl.NewTrigger(cfg.Escalation),
		queue:     queue,
		sink:      sink,
		cfg:       cfg,
	}
}

// Orchestrate runs the pipeline for one turn. It never returns an error and
// never panics: an unexpected stage failure is retried once, and a second
// failure resolves to a generic low-confidence apology.
func (o *Orchestrator) Orchestrate(ctx context.Context, req Request) *models.OrchestrationResult {
	requestID := util.GenerateRequestID()
	if req.SessionID == "" {
		req.SessionID = util.GenerateSessionID()
	}
	if req.Locale == "" {
		req.Locale = o.cfg.Locale
	}
	trail := audit.NewTrail(requestID, req.SessionID, o.sink)

	res, err := o.run(ctx, req, requestID, trail)
	if err != nil {
		slog.Error("Orchestrator.Orchestrate: pipeline failed, retrying once",
			"requestID", requestID, "error", err)
		trail.Record(StageAutoHeal, models.AuditStatusFailed, 0, map[string]any{
			"error":            err.Error(),
			"utterance_length": len(req.Utterance),
			"attempt":          1,
		})
		res, err = o.run(ctx, req, requestID, trail)
		if err != nil {
			slog.Error("Orchestrator.Orchestrate: retry failed, serving fallback",
				"requestID", requestID, "error", err)
			trail.Record(StageAutoHeal, models.AuditStatusFailed, 0, map[string]any{
				"error":   err.Error(),
				"attempt": 2,
			})
			res = o.fallbackResult(ctx, requestID, req)
		} else {
			trail.Record(StageAutoHeal, models.AuditStatusCompleted, 0, map[string]any{"attempt": 2})
		}
	}

	res.Metadata.AuditTrail = trail.Entries()
	trail.Flush(ctx)
	return res
}

// run executes the stages in their fixed order. Every stage is recorded at
// entry and exit, so a panicked stage is still named in the trail: the
// recover marks the in-flight stage failed and turns the panic into the
// pipeline-exception error the auto-healer acts on.
func (o *Orchestrator) run(ctx context.Context, req Request, requestID string, trail *audit.Trail) (res *models.OrchestrationResult, err error) {
	var current models.Stage
	begin := func(stage models.Stage) time.Time {
		current = stage
		trail.Record(stage, models.AuditStatusStarted, 0, nil)
		return time.Now()
	}
	defer func() {
		if r := recover(); r != nil {
			trail.Record(current, models.AuditStatusFailed, 0, map[string]any{"panic": fmt.Sprint(r)})
			err = fmt.Errorf("%s: %v", models.ErrorKindPipeline, r)
		}
	}()

	now := time.Now()
	rng := o.newRNG()

	// SAFETY: rubric scores plus input complexity.
	start := begin(models.StageSafety)
	rubrics := scoreRubrics(req.Utterance)
	if req.Rubrics != nil {
		rubrics = *req.Rubrics
	}
	complexity := inputComplexity(req.Utterance)
	trail.Record(models.StageSafety, models.AuditStatusCompleted, time.Since(start), map[string]any{
		"crisis":      rubrics.Crisis,
		"distress":    rubrics.Distress,
		"coping":      rubrics.Coping,
		"is_greeting": complexity.IsGreeting,
		"is_complex":  complexity.IsComplex,
	})

	// EAA: the self-efficacy profile, derived once and read-only after.
	start = begin(models.StageEAA)
	profile := o.scorer.Score(req.Utterance, rubrics)
	trail.Record(models.StageEAA, models.AuditStatusCompleted, time.Since(start), map[string]any{
		"ownership": profile.Ownership,
		"autonomy":  profile.Autonomy,
		"agency":    profile.Agency,
	})

	// BRIEFING: seed matching. A store failure degrades to no seed rather
	// than failing the turn.
	start = begin(models.StageBriefing)
	var best *models.Seed
	var matchScore float64
	seeds, serr := o.store.ListActiveSeeds(ctx, store.SeedFilter{})
	if serr != nil {
		slog.Warn("Orchestrator.run: seed listing failed, continuing without seeds",
			"requestID", requestID, "error", serr)
		trail.Record(models.StageBriefing, models.AuditStatusDegraded, time.Since(start), map[string]any{
			"error": serr.Error(),
		})
	} else {
		var scores []match.Score
		best, scores = match.Match(req.Utterance, seeds, req.Match, rng, now)
		if len(scores) > 0 {
			matchScore = scores[0].Value
		}
		meta := map[string]any{"candidates": len(scores), "best_score": matchScore}
		if best != nil {
			meta["seed_id"] = best.ID
		}
		trail.Record(models.StageBriefing, models.AuditStatusCompleted, time.Since(start), meta)
	}

	// POLICY: the total rule cascade.
	start = begin(models.StagePolicy)
	decision := o.policy.Decide(models.PolicyContext{
		Rubrics:        rubrics,
		SeedMatchScore: matchScore,
		Consent:        req.Consent,
		Input:          complexity,
	})
	trail.Record(models.StagePolicy, models.AuditStatusCompleted, time.Since(start), map[string]any{
		"action":    string(decision.Action),
		"rule_id":   decision.RuleID,
		"evaluated": decision.Evaluated,
	})

	// SEMANTIC: allowed intervention categories for the detected emotion.
	start = begin(models.StageSemantic)
	emotion := resolveEmotion(req.Utterance, best)
	allowed := o.graph.Allowed(emotion, semgraph.RiskProfile{
		Crisis:   rubrics.Crisis,
		Coping:   rubrics.Coping,
		Distress: rubrics.Distress,
	})
	trail.Record(models.StageSemantic, models.AuditStatusCompleted, time.Since(start), map[string]any{
		"emotion": emotion,
		"allowed": allowed,
	})

	// GENERATION: execute the decision. Usage bookkeeping happens at the
	// moment a seed is committed to, before the provider round-trip.
	start = begin(models.StageGeneration)
	if decision.Action == models.ActionUseSeed && best != nil {
		if uerr := o.store.IncrementUsage(ctx, best.ID, now); uerr != nil {
			slog.Warn("Orchestrator.run: usage increment failed",
				"seedID", best.ID, "error", uerr)
		}
	}
	outcome, gerr := o.generator.Generate(ctx, decision, fusion.Request{
		Utterance: req.Utterance,
		Emotion:   emotion,
		Locale:    req.Locale,
		History:   req.History,
		Seed:      best,
		Allowed:   allowed,
		Profile:   profile,
		RNG:       rng,
	})
	if gerr != nil {
		trail.Record(models.StageGeneration, models.AuditStatusFailed, time.Since(start), map[string]any{
			"error": gerr.Error(),
		})
		return nil, fmt.Errorf("generation: %w", gerr)
	}
	strategy := ""
	var deviation float64
	if outcome.Fusion != nil {
		strategy = outcome.Fusion.Strategy
		deviation = outcome.Fusion.Deviation
	}
	genStatus := models.AuditStatusCompleted
	genMeta := map[string]any{
		"strategy":    strategy,
		"source_kind": string(outcome.Source.Kind),
	}
	if outcome.Degraded != "" {
		genStatus = models.AuditStatusDegraded
		genMeta["error_kind"] = string(outcome.Degraded)
	}
	trail.Record(models.StageGeneration, genStatus, time.Since(start), genMeta)

	// VALIDATION: compliance rules, TD balance, label compatibility.
	start = begin(models.StageValidation)
	var plan *validate.Plan
	if decision.Action == models.ActionEscalateIntervention {
		plan = &validate.Plan{
			Kind: validate.PlanKindCrisis,
			Steps: []string{
				"erken het gevoel zonder oordeel",
				"deel de verwijzing naar professionele hulp",
				"moedig direct contact aan",
			},
			Contact: "113",
		}
	}
	share := generatedShare(strategy)
	vres := o.validator.Validate(plan, outcome.Answer, validate.Context{
		Rubrics:        rubrics,
		Label:          outcome.Label,
		Confidence:     outcome.Confidence,
		Source:         outcome.Source,
		GeneratedShare: share,
	}, profile)
	valStatus := models.AuditStatusCompleted
	valMeta := map[string]any{
		"validated":       vres.Validated,
		"constraints_ok":  vres.ConstraintsOK,
		"balance":         vres.TD.Balance,
		"balance_flag":    vres.TD.Flag,
		"generated_share": share,
	}
	if vres.BlockedBy != "" {
		valStatus = models.AuditStatusDegraded
		valMeta["blocked_by"] = vres.BlockedBy
		valMeta["error_kind"] = string(vres.ErrorKind)
	}
	trail.Record(models.StageValidation, valStatus, time.Since(start), valMeta)

	// BLINDSPOT: external findings only ever lower confidence.
	start = begin(models.StageBlindspot)
	adjusted := blindspot.Adjust(vres.Confidence, req.Blindspots)
	lowKind, isLow := blindspot.LowConfidence(adjusted, o.cfg.ConfidenceFloor)
	bsStatus := models.AuditStatusCompleted
	bsMeta := map[string]any{
		"findings":   len(req.Blindspots),
		"confidence": adjusted,
	}
	if isLow {
		bsStatus = models.AuditStatusDegraded
		bsMeta["error_kind"] = string(lowKind)
	}
	trail.Record(models.StageBlindspot, bsStatus, time.Since(start), bsMeta)

	// ESCALATION: assess, ticket, and possibly hold the answer for review.
	// The scripted crisis referral is never replaced: it already is the safe
	// answer, and its ticket carries it verbatim for the reviewer.
	start = begin(models.StageEscalation)
	answer := vres.Answer
	label := vres.Label
	confidence := adjusted
	justification := decision.Justification
	if vres.BlockedBy != "" {
		justification = fmt.Sprintf("%s (geblokkeerd door %s)", decision.Justification, vres.BlockedBy)
	}
	path := processingPath(decision.Action)

	assessment := o.trigger.ShouldEscalate(hitl.Signals{
		CrisisScore:  rubrics.Crisis,
		BalanceValue: vres.TD.Balance,
		Confidence:   adjusted,
		Emotion:      emotion,
		Rubrics:      rubrics,
		Blindspots:   len(req.Blindspots),
	})
	escStatus := models.AuditStatusCompleted
	escMeta := map[string]any{"trigger": assessment.Trigger}
	if assessment.Trigger {
		escMeta["type"] = assessment.Type
		escMeta["severity"] = string(assessment.Severity)
		escMeta["block_output"] = assessment.BlockOutput
		o.submitTicket(ctx, models.EscalationTicket{
			SessionID:       req.SessionID,
			Input:           req.Utterance,
			CandidateAnswer: answer,
			Severity:        assessment.Severity,
			Reason:          assessment.Type,
			CreatedAt:       now,
		})
		if assessment.BlockOutput && decision.Action != models.ActionEscalateIntervention {
			escStatus = models.AuditStatusDegraded
			escMeta["error_kind"] = string(models.ErrorKindEscalationRequired)
			answer = hitl.ReviewPendingMessage
			label = models.LabelReflecteren
			confidence = o.cfg.ConfidenceFloor
			justification = "Uitkomst vastgehouden in afwachting van menselijke beoordeling."
			path = "escalation_review"
		}
	}
	trail.Record(models.StageEscalation, escStatus, time.Since(start), escMeta)

	return &models.OrchestrationResult{
		RequestID:     requestID,
		SessionID:     req.SessionID,
		Answer:        answer,
		Emotion:       emotion,
		Confidence:    confidence,
		Label:         label,
		Justification: justification,
		Metadata: models.ResultMetadata{
			Action:               decision.Action,
			RuleID:               decision.RuleID,
			AllowedInterventions: allowed,
			Validated:            vres.Validated,
			ConstraintsOK:        vres.ConstraintsOK,
			ProcessingPath:       path,
			Source:               outcome.Source,
			FusionStrategy:       strategy,
			FusionDeviation:      deviation,
		},
		CreatedAt: now,
	}, nil
}

// fallbackResult is served when the retry also failed. The turn is always
// flagged for human review because the user got no real help.
func (o *Orchestrator) fallbackResult(ctx context.Context, requestID string, req Request) *models.OrchestrationResult {
	o.submitTicket(ctx, models.EscalationTicket{
		SessionID:       req.SessionID,
		Input:           req.Utterance,
		CandidateAnswer: healingApology,
		Severity:        models.EscalationSeverityModerate,
		Reason:          string(models.ErrorKindPipeline),
		CreatedAt:       time.Now(),
	})
	return &models.OrchestrationResult{
		RequestID:     requestID,
		SessionID:     req.SessionID,
		Answer:        healingApology,
		Confidence:    o.cfg.ConfidenceFloor,
		Label:         models.LabelFout,
		Justification: "Automatisch herstel na een interne fout.",
		Metadata: models.ResultMetadata{
			ProcessingPath: "auto_heal_fallback",
			Source:         models.ResponseSource{Kind: models.SourceGenerated},
		},
		CreatedAt: time.Now(),
	}
}

func (o *Orchestrator) submitTicket(ctx context.Context, ticket models.EscalationTicket) {
	if o.queue == nil {
		return
	}
	if err := o.queue.Submit(ctx, ticket); err != nil {
		slog.Warn("Orchestrator.submitTicket: submission failed",
			"sessionID", ticket.SessionID, "error", err)
	}
}

// newRNG returns the per-request random stream.
func (o *Orchestrator) newRNG() *rand.Rand {
	if o.cfg.RandSeed != 0 {
		return rand.New(rand.NewPCG(o.cfg.RandSeed, 0))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func processingPath(action models.DecisionAction) string {
	switch action {
	case models.ActionEscalateIntervention:
		return "crisis_script"
	case models.ActionFastPath:
		return "fast_path"
	case models.ActionUseSeed:
		return "seed_fusion"
	case models.ActionTemplateOnly:
		return "template"
	case models.ActionLLMPlanning:
		return "llm_planning"
	default:
		return "unknown"
	}
}
