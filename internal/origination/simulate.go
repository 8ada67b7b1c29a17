package origination

import (
	"context"
	"log/slog"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/simulation"
)

// Simulate answers a what-if query, serving repeated queries from the
// cache. cached reports whether the result came from the cache.
func (s *Service) Simulate(ctx context.Context, tenantID string, in domain.SimulationInput) (result domain.SimulationResult, cached bool, err error) {
	key := simulation.Key(in)

	if s.cache != nil {
		hit, err := s.cache.GetSimulation(ctx, tenantID, key)
		if err != nil {
			slog.Warn("simulation cache read failed",
				"tenant_id", tenantID,
				"key", key,
				"error", err,
			)
		} else if hit != nil {
			s.metrics.IncrementSimulation(true)
			return *hit, true, nil
		}
	}

	result, err = simulation.Simulate(in)
	if err != nil {
		return domain.SimulationResult{}, false, err
	}
	s.metrics.IncrementSimulation(false)

	if s.cache != nil {
		if err := s.cache.SetSimulation(ctx, tenantID, key, &result, s.opts.SimulationTTL); err != nil {
			slog.Warn("simulation cache write failed",
				"tenant_id", tenantID,
				"key", key,
				"error", err,
			)
		}
	}
	return result, false, nil
}
