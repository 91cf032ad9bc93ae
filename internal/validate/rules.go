package validate

import "github.com/VeerkrachtLab/veerkracht/internal/models"

// Rule is one declarative compliance rule over the EAA profile, balance
// score, and rubric scores. Blocking rules replace the answer; non-blocking
// rules only clear the constraints flag.
type Rule struct {
	ID      string
	Block   bool
	Matches func(profile models.EAAProfile, td models.TDScore, vctx Context) bool
}

// builtinRules returns the shipped rule set, evaluated in order.
func builtinRules() []Rule {
	return []Rule{
		{
			// A largely generated answer for a user with very little agency
			// takes the conversation out of their hands.
			ID:    "RV1_LOW_AGENCY_GENERATED",
			Block: true,
			Matches: func(profile models.EAAProfile, td models.TDScore, vctx Context) bool {
				return profile.Agency < 0.3 && vctx.GeneratedShare > 0.5
			},
		},
		{
			// Directive suggestions on top of elevated crisis signals belong
			// to the escalation path, not the generative one.
			ID:    "RV2_CRISIS_DIRECTIVE",
			Block: true,
			Matches: func(profile models.EAAProfile, td models.TDScore, vctx Context) bool {
				return vctx.Rubrics.Crisis > 0.5 && vctx.Label == models.LabelSuggestie
			},
		},
		{
			// Drifting balance with low ownership is flagged for the audit
			// trail but not blocked outright.
			ID:    "RV3_DRIFT_LOW_OWNERSHIP",
			Block: false,
			Matches: func(profile models.EAAProfile, td models.TDScore, vctx Context) bool {
				return td.Flag == "drifting" && profile.Ownership < 0.3
			},
		},
	}
}
