package origination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
)

var errNoRuleEngine = errors.New("advisory rule engine is not configured")

// SaveRule validates, stores and activates an advisory rule for the tenant.
func (s *Service) SaveRule(ctx context.Context, tenantID string, cfg *domain.RuleConfig) (*domain.RuleConfig, error) {
	if s.rules == nil {
		return nil, errNoRuleEngine
	}
	if cfg == nil || strings.TrimSpace(cfg.Expression) == "" {
		return nil, fmt.Errorf("%w: rule expression is required", domain.ErrInvalidInput)
	}

	rule := *cfg
	rule.TenantID = tenantID
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.Version == "" {
		rule.Version = "1.0.0"
	}

	if err := s.rules.ValidateRule(&rule); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err := s.repo.SaveRuleConfig(ctx, tenantID, &rule); err != nil {
		return nil, err
	}
	if _, err := s.ReloadRules(ctx, tenantID); err != nil {
		return nil, err
	}

	slog.Info("advisory rule saved",
		"tenant_id", tenantID,
		"rule_id", rule.ID,
		"enabled", rule.Enabled,
	)
	return &rule, nil
}

// ReloadRules replaces the tenant's active rules with the stored ones and
// returns how many are active.
func (s *Service) ReloadRules(ctx context.Context, tenantID string) (int, error) {
	if s.rules == nil {
		return 0, errNoRuleEngine
	}
	configs, err := s.repo.ListRuleConfigs(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if err := s.rules.ReloadRules(tenantID, configs); err != nil {
		return 0, fmt.Errorf("failed to reload rules: %w", err)
	}
	return s.rules.RulesCount(tenantID), nil
}

// ListRules returns the tenant's stored enabled rules.
func (s *Service) ListRules(ctx context.Context, tenantID string) ([]*domain.RuleConfig, error) {
	return s.repo.ListRuleConfigs(ctx, tenantID)
}

// ActiveRules returns the rules currently compiled for the tenant.
func (s *Service) ActiveRules(tenantID string) []*domain.RuleConfig {
	if s.rules == nil {
		return nil
	}
	return s.rules.GetLoadedRules(tenantID)
}

// GetRule returns one stored rule.
func (s *Service) GetRule(ctx context.Context, tenantID, ruleID string) (*domain.RuleConfig, error) {
	return s.repo.GetRuleConfig(ctx, tenantID, ruleID)
}
