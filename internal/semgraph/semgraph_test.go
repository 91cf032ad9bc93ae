package semgraph

import (
	"reflect"
	"testing"
)

func TestSuggest_KnownEmotion(t *testing.T) {
	g := New()
	got := g.Suggest("verdriet")
	want := []string{InterventionValidation, InterventionReflection, InterventionSuggestion}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Suggest(verdriet) = %v, want %v", got, want)
	}
}

func TestSuggest_UnknownEmotionFallsBack(t *testing.T) {
	g := New()
	got := g.Suggest("verveling")
	if !reflect.DeepEqual(got, defaultRanking) {
		t.Errorf("expected default ranking for unknown emotion, got %v", got)
	}
}

func TestSuggest_CaseInsensitive(t *testing.T) {
	g := New()
	if !reflect.DeepEqual(g.Suggest(" Angst "), g.Suggest("angst")) {
		t.Error("expected case/whitespace-insensitive lookup")
	}
}

func TestAllowed_CrisisExcludesSuggestions(t *testing.T) {
	g := New()
	got := g.Allowed("verdriet", RiskProfile{Crisis: 0.9})
	for _, iv := range got {
		if iv == InterventionSuggestion {
			t.Errorf("directive suggestion must be excluded under elevated crisis, got %v", got)
		}
	}
	if got[0] != InterventionReferral {
		t.Errorf("expected referral forced to front under crisis, got %v", got)
	}
}

func TestAllowed_LowRiskKeepsRanking(t *testing.T) {
	g := New()
	got := g.Allowed("verdriet", RiskProfile{Crisis: 0.1, Coping: 0.7})
	want := g.Suggest("verdriet")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("low risk must keep the full ranking: got %v, want %v", got, want)
	}
}

func TestAllowed_HighDistressFrontsGrounding(t *testing.T) {
	g := New()
	got := g.Allowed("stress", RiskProfile{Distress: 0.9})
	if got[0] != InterventionGrounding {
		t.Errorf("expected grounding first under high distress, got %v", got)
	}
}

func TestAllowed_Deterministic(t *testing.T) {
	g := New()
	risk := RiskProfile{Crisis: 0.6, Distress: 0.4}
	a := g.Allowed("angst", risk)
	b := g.Allowed("angst", risk)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Allowed must be deterministic: %v vs %v", a, b)
	}
}
