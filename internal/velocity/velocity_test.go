package velocity

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/shopspring/decimal"
)

func TestVelocityService(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "velocity-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	svc := NewService(repo)

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("NoApplications", func(t *testing.T) {
		count, err := svc.GetApplicationCount(ctx, tenantID, "applicant-001", 3600)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 {
			t.Errorf("expected count 0, got %d", count)
		}
	})

	t.Run("WithApplications", func(t *testing.T) {
		now := time.Now().UTC()
		ages := []time.Duration{0, time.Minute, 10 * time.Minute, 2 * time.Hour, 48 * time.Hour}
		for i, age := range ages {
			app := &domain.Application{
				ID:          fmt.Sprintf("app-%d", i),
				ApplicantID: "applicant-001",
				Request: domain.LoanRequest{
					Type:          domain.PrimaryResidence,
					Amount:        decimal.NewFromInt(100000),
					TermYears:     20,
					AnnualRatePct: decimal.RequireFromString("4.5"),
				},
				Status:    domain.StatusPending,
				CreatedAt: now.Add(-age),
				UpdatedAt: now.Add(-age),
			}
			if err := repo.SaveApplication(ctx, tenantID, app); err != nil {
				t.Fatalf("failed to save application: %v", err)
			}
		}

		count, err := svc.GetApplicationCount(ctx, tenantID, "applicant-001", 3600)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 3 {
			t.Errorf("expected 3 applications in the last hour, got %d", count)
		}

		count, _ = svc.GetApplicationCount(ctx, tenantID, "applicant-001", 7*24*3600)
		if count != 5 {
			t.Errorf("expected 5 applications in the last week, got %d", count)
		}

		count, _ = svc.GetApplicationCount(ctx, tenantID, "unknown-applicant", 3600)
		if count != 0 {
			t.Errorf("expected count 0 for unknown applicant, got %d", count)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		count, err := svc.GetApplicationCount(ctx, "other-tenant", "applicant-001", 3600)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 0 {
			t.Errorf("expected count 0 for different tenant, got %d", count)
		}
	})

	t.Run("RequiresIDs", func(t *testing.T) {
		if _, err := svc.GetApplicationCount(ctx, "", "applicant-001", 3600); err == nil {
			t.Error("expected error for empty tenantID")
		}
		if _, err := svc.GetApplicationCount(ctx, tenantID, "", 3600); err == nil {
			t.Error("expected error for empty applicantID")
		}
	})

	t.Run("VelocityGetter", func(t *testing.T) {
		getter := svc.GetVelocityGetter()
		count, err := getter(ctx, tenantID, "applicant-001", 3600)
		if err != nil {
			t.Fatalf("VelocityGetter failed: %v", err)
		}
		if count != 3 {
			t.Errorf("expected count 3, got %d", count)
		}
	})
}

func TestNoDataSource(t *testing.T) {
	svc := &Service{now: time.Now}

	_, err := svc.GetApplicationCount(context.Background(), "tenant", "applicant", 3600)
	if err == nil {
		t.Error("expected error with no data source")
	}
}
