package match

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/VeerkrachtLab/veerkracht/internal/models"
)

func seed(id string, weight float64, triggers ...string) models.Seed {
	return models.Seed{
		ID:       id,
		Emotion:  "verdriet",
		Type:     models.SeedTypeValidation,
		Label:    models.LabelValideren,
		Triggers: triggers,
		Response: "Dat klinkt zwaar.",
		Metadata: models.SeedMetadata{Weight: weight, Confidence: 0.8, TTLMinutes: 60},
		Active:   true,
	}
}

func fixedRNG() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestMatch_TriggerGate(t *testing.T) {
	seeds := []models.Seed{seed("sd_sad", 1.0, "verdrietig")}
	now := time.Now()

	got, _ := Match("Ik voel me heel verdrietig vandaag.", seeds, Context{}, fixedRNG(), now)
	if got == nil || got.ID != "sd_sad" {
		t.Fatalf("expected sadness seed, got %+v", got)
	}

	none, scores := Match("Ik voel me geweldig!", seeds, Context{}, fixedRNG(), now)
	if none != nil {
		t.Errorf("expected no match without trigger hit, got %+v", none)
	}
	if scores != nil {
		t.Errorf("expected no scored candidates, got %d", len(scores))
	}
}

func TestMatch_EmptyInputs(t *testing.T) {
	if got, _ := Match("   ", []models.Seed{seed("sd_a", 1, "x")}, Context{}, fixedRNG(), time.Now()); got != nil {
		t.Errorf("expected nil for blank utterance, got %+v", got)
	}
	if got, _ := Match("hallo", nil, Context{}, fixedRNG(), time.Now()); got != nil {
		t.Errorf("expected nil for empty seed set, got %+v", got)
	}
}

func TestScoreSeed_ContextBonuses(t *testing.T) {
	now := time.Now()
	base := seed("sd_a", 1.0, "verdrietig")
	plain := ScoreSeed(&base, 1, Context{}, now)

	withCtx := base
	withCtx.Constraints = models.SeedConstraints{AgeBand: "18-24", TimeOfDay: "evening", Situation: "werk"}
	full := ScoreSeed(&withCtx, 1, Context{AgeBand: "18-24", TimeOfDay: "evening", Situation: "werk"}, now)

	if full-plain != ageBandBonus+timeOfDayBonus+situationBonus {
		t.Errorf("expected bonus sum %v, got %v", ageBandBonus+timeOfDayBonus+situationBonus, full-plain)
	}
}

func TestScoreSeed_CooldownHalvesScore(t *testing.T) {
	now := time.Now()
	inCooldown := seed("sd_a", 1.0, "verdrietig")
	recent := now.Add(-10 * time.Minute)
	inCooldown.Metadata.LastUsedAt = &recent

	outOfCooldown := seed("sd_b", 1.0, "verdrietig")
	// Same recency band (used within 24h, no bonus), only cooldown differs.
	old := now.Add(-2 * time.Hour)
	outOfCooldown.Metadata.LastUsedAt = &old

	in := ScoreSeed(&inCooldown, 1, Context{}, now)
	out := ScoreSeed(&outOfCooldown, 1, Context{}, now)
	if in != out*0.5 {
		t.Errorf("cooldown score %v must equal exactly half of %v", in, out)
	}
}

func TestDecayMultiplier(t *testing.T) {
	if m := DecayMultiplier(0); m != 1.0 {
		t.Errorf("expected 1.0 at usage 0, got %v", m)
	}
	if m := DecayMultiplier(5); m != 1.0 {
		t.Errorf("expected 1.0 at threshold, got %v", m)
	}
	prev := 1.0
	for usage := 6; usage <= 20; usage++ {
		m := DecayMultiplier(usage)
		if m > prev {
			t.Errorf("decay multiplier increased at usage %d: %v > %v", usage, m, prev)
		}
		if m < decayFloor {
			t.Errorf("decay multiplier below floor at usage %d: %v", usage, m)
		}
		prev = m
	}
	if m := DecayMultiplier(100); m != decayFloor {
		t.Errorf("expected floor %v at high usage, got %v", decayFloor, m)
	}
}

func TestScoreSeed_RecencyBonuses(t *testing.T) {
	now := time.Now()
	never := seed("sd_a", 1.0, "verdrietig")
	stale := seed("sd_b", 1.0, "verdrietig")
	staleAt := now.Add(-48 * time.Hour)
	stale.Metadata.LastUsedAt = &staleAt

	if got := ScoreSeed(&never, 1, Context{}, now); got != triggerPoints+neverUsedBonus {
		t.Errorf("never-used score = %v, want %v", got, triggerPoints+neverUsedBonus)
	}
	if got := ScoreSeed(&stale, 1, Context{}, now); got != triggerPoints+staleUseBonus {
		t.Errorf("stale-use score = %v, want %v", got, triggerPoints+staleUseBonus)
	}
}

func TestMatch_TopThreeContainment(t *testing.T) {
	now := time.Now()
	seeds := []models.Seed{
		seed("sd_1", 5.0, "verdrietig"),
		seed("sd_2", 4.0, "verdrietig"),
		seed("sd_3", 3.0, "verdrietig"),
		seed("sd_4", 0.1, "verdrietig"),
		seed("sd_5", 0.1, "verdrietig"),
	}
	rng := rand.New(rand.NewPCG(7, 7))
	for i := 0; i < 200; i++ {
		got, scores := Match("ik ben zo verdrietig", seeds, Context{}, rng, now)
		if got == nil {
			t.Fatal("expected a match")
		}
		if got.ID == "sd_4" || got.ID == "sd_5" {
			t.Fatalf("draw %d selected seed %s outside the top three", i, got.ID)
		}
		if len(scores) != 5 {
			t.Fatalf("expected all 5 candidates scored, got %d", len(scores))
		}
	}
}

func TestMatch_DeterministicWithFixedSeed(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	seeds := []models.Seed{
		seed("sd_1", 2.0, "verdrietig"),
		seed("sd_2", 1.5, "verdrietig"),
		seed("sd_3", 1.0, "verdrietig"),
	}
	a, _ := Match("ik ben verdrietig", seeds, Context{}, rand.New(rand.NewPCG(42, 0)), now)
	b, _ := Match("ik ben verdrietig", seeds, Context{}, rand.New(rand.NewPCG(42, 0)), now)
	if a.ID != b.ID {
		t.Errorf("identical inputs with identical rng must match identically: %s vs %s", a.ID, b.ID)
	}
}

func TestMatch_MultiTriggerOutranksSingle(t *testing.T) {
	now := time.Now()
	seeds := []models.Seed{
		seed("sd_single", 1.0, "verdrietig"),
		seed("sd_double", 1.0, "verdrietig", "alleen"),
	}
	_, scores := Match("ik ben verdrietig en zo alleen", seeds, Context{}, fixedRNG(), now)
	if len(scores) != 2 {
		t.Fatalf("expected two candidates, got %d", len(scores))
	}
	if scores[0].Seed.ID != "sd_double" || scores[0].TriggerHits != 2 {
		t.Errorf("expected double-trigger seed ranked first, got %+v", scores[0])
	}
}
