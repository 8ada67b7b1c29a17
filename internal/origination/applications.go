package origination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/policy"
	"github.com/opensource-finance/kestrel/internal/rules"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SubmitInput files a loan request for an applicant identified by ID or,
// when ApplicantID is empty, by full name.
type SubmitInput struct {
	ApplicantID   string
	ApplicantName string
	Request       domain.LoanRequest
}

// Submit stores a pending application and announces it. Requests outside
// their loan-type policy are refused here so that no application is left
// pending with an evaluation that can never succeed. In synchronous mode
// the application is evaluated before Submit returns.
func (s *Service) Submit(ctx context.Context, tenantID string, in SubmitInput) (*domain.Application, error) {
	if err := in.Request.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Validate(in.Request); err != nil {
		var violation *domain.PolicyViolation
		if errors.As(err, &violation) {
			s.metrics.IncrementPolicyViolation(string(violation.Reason), violation.LoanType.String())
		}
		return nil, err
	}

	applicant, err := s.resolveApplicant(ctx, tenantID, in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	app := &domain.Application{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		ApplicantID: applicant.ID,
		Request:     in.Request,
		Status:      domain.StatusPending,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.SaveApplication(ctx, tenantID, app); err != nil {
		return nil, err
	}

	slog.Info("application submitted",
		"tenant_id", tenantID,
		"application_id", app.ID,
		"applicant_id", app.ApplicantID,
		"loan_type", app.Request.Type.String(),
	)

	if s.opts.Async {
		s.publish(ctx, tenantID, domain.TopicApplicationSubmitted, app)
		return app, nil
	}
	return s.Evaluate(ctx, tenantID, app.ID)
}

func (s *Service) resolveApplicant(ctx context.Context, tenantID string, in SubmitInput) (*domain.Applicant, error) {
	if in.ApplicantID != "" {
		return s.repo.GetApplicant(ctx, tenantID, in.ApplicantID)
	}
	name := strings.TrimSpace(in.ApplicantName)
	if name == "" {
		return nil, fmt.Errorf("%w: applicantId or applicantName is required", domain.ErrInvalidInput)
	}
	return s.repo.FindApplicantByName(ctx, tenantID, name)
}

// Evaluate decides a pending application against its applicant's current
// profile, attaches advisory findings and stores the outcome. A concurrent
// decision of the same application surfaces as domain.ErrConflict.
func (s *Service) Evaluate(ctx context.Context, tenantID, applicationID string) (*domain.Application, error) {
	ctx, span := tracer.Start(ctx, "origination.Evaluate",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("application.id", applicationID),
		),
	)
	defer span.End()

	app, err := s.evaluate(ctx, tenantID, applicationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("application.status", string(app.Status)))
	return app, nil
}

func (s *Service) evaluate(ctx context.Context, tenantID, applicationID string) (*domain.Application, error) {
	app, err := s.repo.GetApplication(ctx, tenantID, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status.Terminal() {
		return nil, fmt.Errorf("%w: application is %s", domain.ErrInvalidTransition, app.Status)
	}

	applicant, err := s.repo.GetApplicant(ctx, tenantID, app.ApplicantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load applicant %s: %w", app.ApplicantID, err)
	}

	result, err := s.decide(applicant.Profile, app.Request)
	if err != nil {
		return nil, err
	}

	advisories := s.advise(ctx, &rules.EvaluateInput{
		TenantID:       tenantID,
		ApplicantID:    applicant.ID,
		Profile:        applicant.Profile,
		Request:        app.Request,
		Result:         result,
		VelocityWindow: int(s.opts.VelocityWindow.Seconds()),
	})

	decided, err := app.ApplyEvaluation(result, advisories, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateApplication(ctx, tenantID, &decided); err != nil {
		return nil, err
	}

	slog.Info("application evaluated",
		"tenant_id", tenantID,
		"application_id", decided.ID,
		"status", decided.Status,
		"reason_code", result.ReasonCode,
		"advisories", len(advisories),
	)

	s.publish(ctx, tenantID, domain.TopicEvaluationCompleted, &decided)
	if decided.Status == domain.StatusApproved {
		s.publish(ctx, tenantID, domain.TopicApplicationApproved, &decided)
	} else {
		s.publish(ctx, tenantID, domain.TopicApplicationRejected, &decided)
	}
	return &decided, nil
}

// Cancel withdraws a pending application.
func (s *Service) Cancel(ctx context.Context, tenantID, applicationID, reason string) (*domain.Application, error) {
	app, err := s.repo.GetApplication(ctx, tenantID, applicationID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = "cancelled by request"
	}

	cancelled, err := app.Cancel(reason, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateApplication(ctx, tenantID, &cancelled); err != nil {
		return nil, err
	}

	slog.Info("application cancelled",
		"tenant_id", tenantID,
		"application_id", cancelled.ID,
	)
	return &cancelled, nil
}

// Delete removes an application permanently.
func (s *Service) Delete(ctx context.Context, tenantID, applicationID string) error {
	if err := s.repo.DeleteApplication(ctx, tenantID, applicationID); err != nil {
		return err
	}
	slog.Info("application deleted",
		"tenant_id", tenantID,
		"application_id", applicationID,
	)
	return nil
}

// GetApplication returns one application.
func (s *Service) GetApplication(ctx context.Context, tenantID, applicationID string) (*domain.Application, error) {
	return s.repo.GetApplication(ctx, tenantID, applicationID)
}

// ListApplications returns the tenant's applications, newest first. An
// empty status lists all of them.
func (s *Service) ListApplications(ctx context.Context, tenantID string, status domain.ApplicationStatus) ([]*domain.Application, error) {
	return s.repo.ListApplications(ctx, tenantID, status)
}

// ListApplicationsByApplicant returns the applications of one applicant.
func (s *Service) ListApplicationsByApplicant(ctx context.Context, tenantID, applicantID string) ([]*domain.Application, error) {
	if _, err := s.repo.GetApplicant(ctx, tenantID, applicantID); err != nil {
		return nil, err
	}
	return s.repo.ListApplicationsByApplicant(ctx, tenantID, applicantID)
}
