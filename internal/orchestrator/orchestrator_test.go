package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/VeerkrachtLab/veerkracht/internal/blindspot"
	"github.com/VeerkrachtLab/veerkracht/internal/fusion"
	"github.com/VeerkrachtLab/veerkracht/internal/models"
	"github.com/VeerkrachtLab/veerkracht/internal/store"
)

// panicStore simulates an internal fault in the seed path.
type panicStore struct {
	*store.InMemoryStore
}

func (p *panicStore) ListActiveSeeds(ctx context.Context, filter store.SeedFilter) ([]models.Seed, error) {
	panic("seed index corrupted")
}

func newTestOrchestrator(st store.Store) *Orchestrator {
	cfg := DefaultConfig()
	cfg.RandSeed = 42
	return New(st, nil, nil, nil, cfg)
}

func suggestionSeed() models.Seed {
	return models.Seed{
		ID:       "seed_wandelen",
		Emotion:  "stress",
		Type:     models.SeedTypeSuggestion,
		Triggers: []string{"weet het niet"},
		Response: "Je moet nu even naar buiten gaan om te wandelen.",
		Metadata: models.SeedMetadata{Weight: 3.0, Confidence: 0.85},
		Active:   true,
	}
}

func TestOrchestrateCrisisServesScriptedReferral(t *testing.T) {
	st := store.NewInMemoryStore()
	o := newTestOrchestrator(st)

	res := o.Orchestrate(context.Background(), Request{
		SessionID: "s_crisis",
		Utterance: "Ik kan niet meer verder, ik zie geen uitweg en wil er niet meer zijn.",
	})

	if res.Label != models.LabelInterventie {
		t.Fatalf("Label = %q, want %q", res.Label, models.LabelInterventie)
	}
	if !strings.Contains(res.Answer, "113") {
		t.Errorf("crisis answer missing referral number: %q", res.Answer)
	}
	if res.Confidence < 0.9 {
		t.Errorf("Confidence = %.2f, want >= 0.9", res.Confidence)
	}
	if res.Metadata.Action != models.ActionEscalateIntervention {
		t.Errorf("Action = %q, want %q", res.Metadata.Action, models.ActionEscalateIntervention)
	}
	if res.Metadata.ProcessingPath != "crisis_script" {
		t.Errorf("ProcessingPath = %q", res.Metadata.ProcessingPath)
	}
}

func TestOrchestrateCrisisSubmitsCriticalTicket(t *testing.T) {
	st := store.NewInMemoryStore()
	o := New(st, nil, &storeBackedQueue{st: st}, nil, DefaultConfig())

	res := o.Orchestrate(context.Background(), Request{
		SessionID: "s_crisis",
		Utterance: "Ik wil er een einde aan maken, ik zie geen uitweg, het is zinloos, ik kan niet meer verder.",
	})
	if res.Label != models.LabelInterventie {
		t.Fatalf("Label = %q, want Interventie", res.Label)
	}

	tickets := st.Tickets()
	if len(tickets) != 1 {
		t.Fatalf("len(tickets) = %d, want 1", len(tickets))
	}
	if tickets[0].Severity != models.EscalationSeverityCritical {
		t.Errorf("Severity = %q, want critical", tickets[0].Severity)
	}
	// The scripted referral is never replaced by the review hold.
	if res.Answer != fusion.EscalationScript() {
		t.Errorf("crisis answer was replaced: %q", res.Answer)
	}
}

func TestOrchestrateGreetingFastPath(t *testing.T) {
	st := store.NewInMemoryStore()
	o := newTestOrchestrator(st)

	res := o.Orchestrate(context.Background(), Request{SessionID: "s_greet", Utterance: "Hoi!"})

	if res.Label != models.LabelValideren {
		t.Fatalf("Label = %q, want %q", res.Label, models.LabelValideren)
	}
	if res.Metadata.Action != models.ActionFastPath {
		t.Fatalf("Action = %q, want FAST_PATH", res.Metadata.Action)
	}
	found := false
	for _, g := range fusion.GreetingPool() {
		if res.Answer == g {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("answer %q not drawn from the greeting pool", res.Answer)
	}
	if len(res.Metadata.AuditTrail) < len(models.PipelineStages) {
		t.Errorf("audit trail has %d entries, want >= %d", len(res.Metadata.AuditTrail), len(models.PipelineStages))
	}
}

func TestOrchestrateBlocksDirectiveSeedAtLowAutonomy(t *testing.T) {
	st := store.NewInMemoryStore()
	if err := st.InsertSeed(context.Background(), suggestionSeed()); err != nil {
		t.Fatalf("InsertSeed() error = %v", err)
	}
	o := newTestOrchestrator(st)

	res := o.Orchestrate(context.Background(), Request{
		SessionID: "s_directive",
		Utterance: "Ik weet het niet meer, zeg me wat ik moet doen.",
		Consent:   true,
	})

	if res.Metadata.Action != models.ActionUseSeed {
		t.Fatalf("Action = %q, want USE_SEED", res.Metadata.Action)
	}
	if res.Label != models.LabelFout {
		t.Errorf("Label = %q, want %q", res.Label, models.LabelFout)
	}
	if res.Confidence != 0.2 {
		t.Errorf("Confidence = %.2f, want floored to 0.2", res.Confidence)
	}
	if strings.Contains(strings.ToLower(res.Answer), "je moet") {
		t.Errorf("directive phrasing leaked through the block: %q", res.Answer)
	}
	if res.Metadata.ConstraintsOK {
		t.Error("ConstraintsOK = true after a validation block")
	}

	// The seed was committed to before validation, so usage bookkeeping ran.
	seeds, err := st.ListActiveSeeds(context.Background(), store.SeedFilter{})
	if err != nil {
		t.Fatalf("ListActiveSeeds() error = %v", err)
	}
	if len(seeds) != 1 || seeds[0].Metadata.UsageCount != 1 {
		t.Errorf("seed usage count = %d, want 1", seeds[0].Metadata.UsageCount)
	}
}

func TestOrchestrateDeterministicWithFixedSeed(t *testing.T) {
	st := store.NewInMemoryStore()
	o := newTestOrchestrator(st)
	req := Request{SessionID: "s_det", Utterance: "Hallo"}

	first := o.Orchestrate(context.Background(), req)
	second := o.Orchestrate(context.Background(), req)

	if first.Answer != second.Answer {
		t.Errorf("answers differ under a fixed random seed: %q vs %q", first.Answer, second.Answer)
	}
	if first.Label != second.Label || first.Metadata.Action != second.Metadata.Action {
		t.Errorf("labels or actions differ: %v/%v vs %v/%v",
			first.Label, first.Metadata.Action, second.Label, second.Metadata.Action)
	}
}

func TestOrchestrateBlindspotFindingsLowerConfidence(t *testing.T) {
	st := store.NewInMemoryStore()
	o := newTestOrchestrator(st)
	req := Request{SessionID: "s_blind", Utterance: "Hoi"}

	clean := o.Orchestrate(context.Background(), req)

	req.Blindspots = []blindspot.Finding{
		{Kind: "age_band_untested", Severity: 0.8},
		{Kind: "locale_variant", Severity: 0.3},
	}
	flagged := o.Orchestrate(context.Background(), req)

	if flagged.Confidence >= clean.Confidence {
		t.Errorf("Confidence = %.2f with findings, want below %.2f", flagged.Confidence, clean.Confidence)
	}
}

func TestOrchestrateAutoHealServesFallback(t *testing.T) {
	st := &panicStore{InMemoryStore: store.NewInMemoryStore()}
	o := New(st, nil, &storeBackedQueue{st: st.InMemoryStore}, nil, DefaultConfig())

	res := o.Orchestrate(context.Background(), Request{
		SessionID: "s_heal",
		Utterance: "Ik voel me verdrietig vandaag.",
	})

	if res.Label != models.LabelFout {
		t.Fatalf("Label = %q, want %q", res.Label, models.LabelFout)
	}
	if res.Answer != healingApology {
		t.Errorf("Answer = %q, want the healing apology", res.Answer)
	}
	if res.Metadata.ProcessingPath != "auto_heal_fallback" {
		t.Errorf("ProcessingPath = %q", res.Metadata.ProcessingPath)
	}

	failures := 0
	for _, entry := range res.Metadata.AuditTrail {
		if entry.Stage == StageAutoHeal && entry.Status == models.AuditStatusFailed {
			failures++
		}
	}
	if failures != 2 {
		t.Errorf("auto_heal failure records = %d, want 2 (initial + retry)", failures)
	}

	tickets := st.InMemoryStore.Tickets()
	if len(tickets) != 1 {
		t.Fatalf("len(tickets) = %d, want 1", len(tickets))
	}
	if tickets[0].Reason != string(models.ErrorKindPipeline) {
		t.Errorf("ticket reason = %q, want %q", tickets[0].Reason, models.ErrorKindPipeline)
	}
}

func TestOrchestratePanickedStageNamedInTrail(t *testing.T) {
	st := &panicStore{InMemoryStore: store.NewInMemoryStore()}
	o := newTestOrchestrator(st)

	res := o.Orchestrate(context.Background(), Request{
		SessionID: "s_crash",
		Utterance: "Ik voel me verdrietig vandaag.",
	})

	var started, failed bool
	for _, entry := range res.Metadata.AuditTrail {
		if entry.Stage != models.StageBriefing {
			continue
		}
		switch entry.Status {
		case models.AuditStatusStarted:
			started = true
		case models.AuditStatusFailed:
			failed = true
		}
	}
	if !started {
		t.Error("no started record for the briefing stage")
	}
	if !failed {
		t.Error("briefing stage panicked but no failed record names it")
	}
}

func TestOrchestrateStagesRecordedAtEntryAndExit(t *testing.T) {
	st := store.NewInMemoryStore()
	o := newTestOrchestrator(st)

	res := o.Orchestrate(context.Background(), Request{SessionID: "s_trail", Utterance: "Hoi!"})

	for _, stage := range models.PipelineStages {
		var started, done bool
		for _, entry := range res.Metadata.AuditTrail {
			if entry.Stage != stage {
				continue
			}
			switch entry.Status {
			case models.AuditStatusStarted:
				started = true
			case models.AuditStatusCompleted, models.AuditStatusDegraded:
				done = true
			}
		}
		if !started || !done {
			t.Errorf("stage %s: started=%t completed=%t, want both recorded", stage, started, done)
		}
	}
}

func TestOrchestrateSessionAndRequestIDsAssigned(t *testing.T) {
	st := store.NewInMemoryStore()
	o := newTestOrchestrator(st)

	res := o.Orchestrate(context.Background(), Request{Utterance: "Hoi"})

	if res.RequestID == "" || !strings.HasPrefix(res.RequestID, "req_") {
		t.Errorf("RequestID = %q, want req_ prefix", res.RequestID)
	}
	if res.SessionID == "" {
		t.Error("SessionID not assigned")
	}
}

// storeBackedQueue submits straight to the store, without a notifier.
type storeBackedQueue struct {
	st store.Store
}

func (q *storeBackedQueue) Submit(ctx context.Context, ticket models.EscalationTicket) error {
	return q.st.SubmitTicket(ctx, ticket)
}
