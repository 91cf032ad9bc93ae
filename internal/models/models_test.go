package models

import (
	"testing"
	"time"
)

func validSeed() Seed {
	return Seed{
		ID:       "sd_1",
		Emotion:  "verdriet",
		Type:     SeedTypeValidation,
		Label:    LabelValideren,
		Triggers: []string{"verdrietig"},
		Response: "Het klinkt alsof je het zwaar hebt. Dat mag er zijn.",
		Metadata: SeedMetadata{Weight: 1.0, Confidence: 0.8, TTLMinutes: 60},
		Active:   true,
	}
}

func TestSeedValidate_Valid(t *testing.T) {
	s := validSeed()
	if err := s.Validate(); err != nil {
		t.Fatalf("expected valid seed, got %v", err)
	}
}

func TestSeedValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Seed)
		want   error
	}{
		{"empty id", func(s *Seed) { s.ID = " " }, ErrEmptySeedID},
		{"bad type", func(s *Seed) { s.Type = "poetry" }, ErrInvalidSeedType},
		{"no emotion", func(s *Seed) { s.Emotion = "" }, ErrEmptyEmotion},
		{"no triggers", func(s *Seed) { s.Triggers = nil }, ErrNoTriggers},
		{"empty response", func(s *Seed) { s.Response = "  " }, ErrEmptyResponse},
		{"negative weight", func(s *Seed) { s.Metadata.Weight = -0.1 }, ErrNegativeWeight},
		{"confidence too high", func(s *Seed) { s.Metadata.Confidence = 1.2 }, ErrConfidenceOutOfRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := validSeed()
			tc.mutate(&s)
			if err := s.Validate(); err != tc.want {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSeedResponseFor_LocaleFallback(t *testing.T) {
	s := validSeed()
	s.Responses = map[string]string{"en": "That sounds heavy."}
	if got := s.ResponseFor("en"); got != "That sounds heavy." {
		t.Errorf("expected locale override, got %q", got)
	}
	if got := s.ResponseFor("de"); got != s.Response {
		t.Errorf("expected default response fallback, got %q", got)
	}
}

func TestSeedInCooldown(t *testing.T) {
	now := time.Now()
	s := validSeed()
	if s.InCooldown(now) {
		t.Error("seed without last-used timestamp must not be in cooldown")
	}
	recent := now.Add(-10 * time.Minute)
	s.Metadata.LastUsedAt = &recent
	if !s.InCooldown(now) {
		t.Error("seed used 10m ago with 60m TTL must be in cooldown")
	}
	old := now.Add(-2 * time.Hour)
	s.Metadata.LastUsedAt = &old
	if s.InCooldown(now) {
		t.Error("seed used 2h ago with 60m TTL must not be in cooldown")
	}
}

func TestIsValidDecisionAction(t *testing.T) {
	for _, a := range []DecisionAction{ActionEscalateIntervention, ActionFastPath, ActionUseSeed, ActionTemplateOnly, ActionLLMPlanning} {
		if !IsValidDecisionAction(a) {
			t.Errorf("expected %s to be valid", a)
		}
	}
	if IsValidDecisionAction("PANIC") {
		t.Error("unknown action must be invalid")
	}
}

func TestLabelForSeedType(t *testing.T) {
	cases := map[SeedType]Label{
		SeedTypeValidation:   LabelValideren,
		SeedTypeReflection:   LabelReflecteren,
		SeedTypeSuggestion:   LabelSuggestie,
		SeedTypeIntervention: LabelInterventie,
	}
	for st, want := range cases {
		if got := LabelForSeedType(st); got != want {
			t.Errorf("LabelForSeedType(%s) = %s, want %s", st, got, want)
		}
	}
}
