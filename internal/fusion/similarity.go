package fusion

import (
	"context"
	"strings"
)

// SimilarityProvider supplies the similarity score between a generated text
// and the preserved seed core. Production deployments back this with the
// external embedding service; the core never computes embeddings itself.
type SimilarityProvider interface {
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// LexicalSimilarity is the local fallback provider: token-set overlap
// (Jaccard). Used only when no embedding provider is configured, and in
// tests, because it is cheap and deterministic.
type LexicalSimilarity struct{}

// Similarity returns |A ∩ B| / |A ∪ B| over lowercased token sets.
func (LexicalSimilarity) Similarity(ctx context.Context, a, b string) (float64, error) {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0, nil
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0, nil
	}
	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union), nil
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,!?;:'\"()")
		if tok != "" {
			set[tok] = true
		}
	}
	return set
}
