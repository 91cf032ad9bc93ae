// Package blindspot adjusts result confidence for externally detected
// analytic blind spots. Detection itself is an external collaborator; this
// package only consumes its findings.
package blindspot

import "github.com/VeerkrachtLab/veerkracht/internal/models"

// Finding is one detected blind spot, as reported by the external detector.
type Finding struct {
	Kind        string  `json:"kind"`
	Description string  `json:"description,omitempty"`
	Severity    float64 `json:"severity"` // 0..1
}

// Adjustment parameters.
const (
	// penaltyPerFinding is the confidence reduction per blind spot.
	penaltyPerFinding = 0.08
	// severityWeight adds extra reduction for severe findings.
	severityWeight = 0.05
	// minConfidence keeps the adjusted value non-negative.
	minConfidence = 0.0
)

// Adjust returns the confidence reduced for the given findings. The result
// is monotonically non-increasing in the number of findings and never
// exceeds the input confidence.
func Adjust(confidence float64, findings []Finding) float64 {
	adjusted := confidence
	for _, f := range findings {
		adjusted -= penaltyPerFinding + severityWeight*clamp01(f.Severity)
	}
	if adjusted < minConfidence {
		return minConfidence
	}
	return adjusted
}

// LowConfidence reports whether the adjustment dropped the confidence below
// the given floor, which maps to the blindspot error kind.
func LowConfidence(adjusted, floor float64) (models.ErrorKind, bool) {
	if adjusted < floor {
		return models.ErrorKindBlindspotLowConfidence, true
	}
	return "", false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
