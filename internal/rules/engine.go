// Package rules holds the underwriting rules: the fixed eligibility rules
// that decide an application, and the CEL advisory engine whose
// tenant-defined rules annotate a decision without changing it.
package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Engine is the CEL-based advisory rule engine. Rules are held per tenant.
type Engine struct {
	mu             sync.RWMutex
	env            *cel.Env
	compiledRules  map[string]map[string]*CompiledRule // tenant -> rule ID -> rule
	velocityGetter VelocityGetter
	maxWorkers     int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// VelocityGetter returns how many applications an applicant filed within
// the trailing window.
type VelocityGetter func(ctx context.Context, tenantID, applicantID string, windowSecs int) (int64, error)

// NewEngine creates a new advisory rule engine.
func NewEngine(velocityGetter VelocityGetter, maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	env, err := cel.NewEnv(
		cel.Variable("loan_type", cel.StringType),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("term_years", cel.IntType),
		cel.Variable("annual_rate", cel.DoubleType),
		cel.Variable("property_value", cel.DoubleType),
		cel.Variable("loan_to_value", cel.DoubleType),
		cel.Variable("monthly_income", cel.DoubleType),
		cel.Variable("current_debts", cel.DoubleType),
		cel.Variable("monthly_payment", cel.DoubleType),
		cel.Variable("payment_to_income", cel.DoubleType),
		cel.Variable("debt_to_income", cel.DoubleType),
		cel.Variable("applicant_age", cel.IntType),
		cel.Variable("age_at_term_end", cel.IntType),
		cel.Variable("employment_years", cel.DoubleType),
		cel.Variable("credit_rating", cel.StringType),
		cel.Variable("savings_capacity", cel.StringType),
		cel.Variable("decision", cel.StringType),
		cel.Variable("recent_applications", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:            env,
		compiledRules:  make(map[string]map[string]*CompiledRule),
		velocityGetter: velocityGetter,
		maxWorkers:     maxWorkers,
	}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles a rule and loads it for cfg.TenantID.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	tenantRules, ok := e.compiledRules[cfg.TenantID]
	if !ok {
		tenantRules = make(map[string]*CompiledRule)
		e.compiledRules[cfg.TenantID] = tenantRules
	}
	tenantRules[cfg.ID] = compiled

	return nil
}

// EvaluateInput holds the evaluated application seen by advisory rules.
type EvaluateInput struct {
	TenantID       string
	ApplicantID    string
	Profile        domain.ApplicantProfile
	Request        domain.LoanRequest
	Result         domain.EvaluationResult
	VelocityWindow int // seconds
}

// EvaluateAll evaluates the tenant's rules in parallel. Results are
// ordered by rule ID.
func (e *Engine) EvaluateAll(ctx context.Context, input *EvaluateInput) ([]domain.RuleResult, error) {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules[input.TenantID]))
	for _, rule := range e.compiledRules[input.TenantID] {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Config.ID < rules[j].Config.ID })

	var recent int64
	if e.velocityGetter != nil && input.VelocityWindow > 0 && input.ApplicantID != "" {
		count, err := e.velocityGetter(ctx, input.TenantID, input.ApplicantID, input.VelocityWindow)
		if err == nil {
			recent = count
		}
	}

	activation := buildActivation(input, recent)

	results := make([]domain.RuleResult, len(rules))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = e.evaluateRule(r, activation)
		}(i, rule)
	}

	wg.Wait()

	return results, nil
}

// buildActivation flattens the application into CEL variables. Ratios and
// age are recomputed from the inputs so rules see them even when an
// eligibility rule short-circuited before reaching them.
func buildActivation(input *EvaluateInput, recent int64) map[string]any {
	req, p := input.Request, input.Profile

	loanToValue := 0.0
	if req.PropertyValue.IsPositive() {
		loanToValue = req.Amount.Div(req.PropertyValue).InexactFloat64()
	}

	asOf := input.Result.EvaluatedAt
	if asOf.IsZero() {
		asOf = time.Now()
	}
	age := p.AgeAt(asOf)

	return map[string]any{
		"loan_type":           req.Type.String(),
		"amount":              req.Amount.InexactFloat64(),
		"term_years":          int64(req.TermYears),
		"annual_rate":         req.AnnualRatePct.InexactFloat64(),
		"property_value":      req.PropertyValue.InexactFloat64(),
		"loan_to_value":       loanToValue,
		"monthly_income":      p.MonthlyIncome.InexactFloat64(),
		"current_debts":       p.CurrentDebts.InexactFloat64(),
		"monthly_payment":     input.Result.MonthlyPayment.InexactFloat64(),
		"payment_to_income":   ratio(input.Result.MonthlyPayment, p.MonthlyIncome).InexactFloat64(),
		"debt_to_income":      ratio(p.CurrentDebts, p.MonthlyIncome).InexactFloat64(),
		"applicant_age":       int64(age),
		"age_at_term_end":     int64(age + req.TermYears),
		"employment_years":    p.EmploymentYears.InexactFloat64(),
		"credit_rating":       string(p.CreditRating),
		"savings_capacity":    string(p.SavingsCapacity),
		"decision":            string(input.Result.Decision),
		"recent_applications": recent,
	}
}

// evaluateRule evaluates a single rule and returns the result.
func (e *Engine) evaluateRule(rule *CompiledRule, activation map[string]any) domain.RuleResult {
	start := time.Now()

	result := domain.RuleResult{
		RuleID: rule.Config.ID,
	}

	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		result.Outcome = domain.RuleOutcomeError
		result.Reason = fmt.Sprintf("evaluation error: %v", err)
		result.ProcessMs = time.Since(start).Milliseconds()
		return result
	}

	score := toScore(out)
	result.Score = score

	result.Outcome, result.Reason = matchBand(score, rule.Config.Bands)
	result.ProcessMs = time.Since(start).Milliseconds()

	return result
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// matchBand finds the matching band for a score.
// Bands are evaluated in order: lower inclusive, upper exclusive, and a nil
// upper means unbounded. No bands at all means a truthy score fails.
func matchBand(score float64, bands []domain.RuleBand) (string, string) {
	if len(bands) == 0 {
		if score > 0 {
			return domain.RuleOutcomeFail, "rule matched"
		}
		return domain.RuleOutcomePass, "rule not matched"
	}

	for _, band := range bands {
		lower := 0.0
		if band.LowerLimit != nil {
			lower = *band.LowerLimit
		}
		if score < lower {
			continue
		}
		if band.UpperLimit == nil || score < *band.UpperLimit {
			return band.Outcome, band.Reason
		}
	}

	return domain.RuleOutcomePass, "no matching band"
}

// RulesCount returns the number of rules loaded for a tenant.
func (e *Engine) RulesCount(tenantID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules[tenantID])
}

// ReloadRules replaces the tenant's rules with configs. On a compile error
// the previously loaded rules stay in place.
func (e *Engine) ReloadRules(tenantID string, configs []*domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules[tenantID] = newRules

	return nil
}

// GetLoadedRules returns the tenant's loaded rule configurations ordered by ID.
func (e *Engine) GetLoadedRules(tenantID string) []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RuleConfig, 0, len(e.compiledRules[tenantID]))
	for _, compiled := range e.compiledRules[tenantID] {
		rules = append(rules, compiled.Config)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
