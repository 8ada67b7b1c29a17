package domain

// RuleConfig defines an advisory underwriting rule.
// Advisory rules annotate an evaluation; they never change its decision.
type RuleConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression to evaluate
	Expression string `json:"expression"`

	// Outcome bands for score-to-outcome mapping
	Bands []RuleBand `json:"bands"`

	// Whether rule is active
	Enabled bool `json:"enabled"`
}

// RuleBand maps a score range to an outcome.
type RuleBand struct {
	LowerLimit *float64 `json:"lowerLimit,omitempty"`
	UpperLimit *float64 `json:"upperLimit,omitempty"`
	Outcome    string   `json:"outcome"` // e.g., ".pass", ".review", ".fail"
	Reason     string   `json:"reason"`
}

// RuleResult is the output of an advisory rule evaluation.
type RuleResult struct {
	RuleID    string  `json:"ruleId"`
	Outcome   string  `json:"outcome"` // ".pass", ".review", ".fail", ".err"
	Score     float64 `json:"score"`   // The computed value
	Reason    string  `json:"reason"`
	ProcessMs int64   `json:"processMs"`
}

// Flagged reports whether the rule asks for a human look.
func (r RuleResult) Flagged() bool {
	return r.Outcome == RuleOutcomeFail || r.Outcome == RuleOutcomeReview
}

// Predefined rule outcomes
const (
	RuleOutcomePass   = ".pass"
	RuleOutcomeFail   = ".fail"
	RuleOutcomeReview = ".review"
	RuleOutcomeError  = ".err"
)
