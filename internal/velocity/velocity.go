// Package velocity counts how often an applicant has applied recently.
package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/rules"
)

// Service calculates application velocity for applicants.
type Service struct {
	repo domain.Repository
	now  func() time.Time
}

// NewService creates a new velocity service.
func NewService(repo domain.Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// GetApplicationCount returns the number of applications an applicant filed
// within the trailing window.
func (s *Service) GetApplicationCount(ctx context.Context, tenantID, applicantID string, windowSecs int) (int64, error) {
	if tenantID == "" || applicantID == "" {
		return 0, fmt.Errorf("%w: tenantID and applicantID are required", domain.ErrInvalidInput)
	}
	if s.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}

	since := s.now().Add(-time.Duration(windowSecs) * time.Second)

	count, err := s.repo.CountApplicationsSince(ctx, tenantID, applicantID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count applications: %w", err)
	}
	return int64(count), nil
}

// GetVelocityGetter returns the getter expected by the advisory rule engine.
func (s *Service) GetVelocityGetter() rules.VelocityGetter {
	return s.GetApplicationCount
}
