// Package origination drives loan applications through their lifecycle:
// applicant registration, submission, evaluation and cancellation.
// The HTTP API and the async worker both go through it.
package origination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/evaluator"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/policy"
	"github.com/opensource-finance/kestrel/internal/rules"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("kestrel-origination")

// DefaultVelocityWindow is how far back recent_applications looks.
const DefaultVelocityWindow = 24 * time.Hour

// Deps are the collaborators of a Service. Cache, Bus, Rules and Metrics
// are optional.
type Deps struct {
	Repo      domain.Repository
	Cache     domain.Cache
	Bus       domain.EventBus
	Evaluator *evaluator.Evaluator
	Rules     *rules.Engine
	Metrics   *metrics.Metrics
}

// Options tune a Service.
type Options struct {
	// Async leaves submitted applications pending for a worker to evaluate.
	Async bool

	SimulationTTL  time.Duration
	VelocityWindow time.Duration
}

// Service implements the origination use cases.
type Service struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	evaluator *evaluator.Evaluator
	rules     *rules.Engine
	metrics   *metrics.Metrics
	opts      Options
	now       func() time.Time
}

// New creates a Service. Repo and Evaluator are required.
func New(deps Deps, opts Options) (*Service, error) {
	if deps.Repo == nil {
		return nil, errors.New("origination: repository is required")
	}
	if deps.Evaluator == nil {
		return nil, errors.New("origination: evaluator is required")
	}
	if opts.VelocityWindow <= 0 {
		opts.VelocityWindow = DefaultVelocityWindow
	}
	if opts.SimulationTTL <= 0 {
		opts.SimulationTTL = 15 * time.Minute
	}
	return &Service{
		repo:      deps.Repo,
		cache:     deps.Cache,
		bus:       deps.Bus,
		evaluator: deps.Evaluator,
		rules:     deps.Rules,
		metrics:   deps.Metrics,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Async reports whether submissions are evaluated by a worker.
func (s *Service) Async() bool {
	return s.opts.Async
}

// Policies returns the loan-type policy table.
func (s *Service) Policies() []domain.PolicyRecord {
	return policy.All()
}

// RegisterApplicantInput describes a new applicant.
type RegisterApplicantInput struct {
	FullName string
	Email    string
	Profile  domain.ApplicantProfile
}

// RegisterApplicant validates and stores a new applicant. Full names are
// unique within a tenant.
func (s *Service) RegisterApplicant(ctx context.Context, tenantID string, in RegisterApplicantInput) (*domain.Applicant, error) {
	name := strings.TrimSpace(in.FullName)
	if name == "" {
		return nil, fmt.Errorf("%w: full name is required", domain.ErrInvalidInput)
	}
	if err := in.Profile.Validate(); err != nil {
		return nil, err
	}

	profile := in.Profile
	profile.CreditRating = domain.NormalizeCreditRating(string(profile.CreditRating))
	profile.SavingsCapacity = domain.NormalizeSavingsCapacity(string(profile.SavingsCapacity))

	applicant := &domain.Applicant{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		FullName:  name,
		Email:     strings.TrimSpace(in.Email),
		Profile:   profile,
		CreatedAt: s.now(),
	}
	if err := s.repo.SaveApplicant(ctx, tenantID, applicant); err != nil {
		return nil, err
	}

	slog.Info("applicant registered",
		"tenant_id", tenantID,
		"applicant_id", applicant.ID,
	)
	return applicant, nil
}

// GetApplicant returns one applicant.
func (s *Service) GetApplicant(ctx context.Context, tenantID, applicantID string) (*domain.Applicant, error) {
	return s.repo.GetApplicant(ctx, tenantID, applicantID)
}

// FindApplicantByName looks an applicant up by exact full name.
func (s *Service) FindApplicantByName(ctx context.Context, tenantID, fullName string) (*domain.Applicant, error) {
	return s.repo.FindApplicantByName(ctx, tenantID, strings.TrimSpace(fullName))
}

// ListApplicants returns every applicant of the tenant.
func (s *Service) ListApplicants(ctx context.Context, tenantID string) ([]*domain.Applicant, error) {
	return s.repo.ListApplicants(ctx, tenantID)
}

// EvaluateProfile runs a stateless evaluation: nothing is stored or published.
// Advisory rules run without velocity since there is no applicant on file.
func (s *Service) EvaluateProfile(ctx context.Context, tenantID string, profile domain.ApplicantProfile, request domain.LoanRequest) (domain.EvaluationResult, []domain.RuleResult, error) {
	ctx, span := tracer.Start(ctx, "origination.EvaluateProfile",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("loan.type", request.Type.String()),
		),
	)
	defer span.End()

	profile.CreditRating = domain.NormalizeCreditRating(string(profile.CreditRating))
	profile.SavingsCapacity = domain.NormalizeSavingsCapacity(string(profile.SavingsCapacity))

	result, err := s.decide(profile, request)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.EvaluationResult{}, nil, err
	}

	advisories := s.advise(ctx, &rules.EvaluateInput{
		TenantID: tenantID,
		Profile:  profile,
		Request:  request,
		Result:   result,
	})
	span.SetAttributes(attribute.String("decision", string(result.Decision)))
	return result, advisories, nil
}

// decide runs the evaluator and records the outcome.
func (s *Service) decide(profile domain.ApplicantProfile, request domain.LoanRequest) (domain.EvaluationResult, error) {
	start := time.Now()
	result, err := s.evaluator.Evaluate(profile, request)
	s.metrics.ObserveEvaluateLatency(time.Since(start))

	if err != nil {
		var violation *domain.PolicyViolation
		if errors.As(err, &violation) {
			s.metrics.IncrementPolicyViolation(string(violation.Reason), violation.LoanType.String())
		}
		return domain.EvaluationResult{}, err
	}
	s.metrics.IncrementDecision(string(result.Decision), string(result.ReasonCode), request.Type.String())
	return result, nil
}

// advise runs the tenant's advisory rules. Failures are logged and
// produce no findings; they never affect the decision.
func (s *Service) advise(ctx context.Context, input *rules.EvaluateInput) []domain.RuleResult {
	if s.rules == nil || s.rules.RulesCount(input.TenantID) == 0 {
		return nil
	}
	results, err := s.rules.EvaluateAll(ctx, input)
	if err != nil {
		slog.Warn("advisory rules failed",
			"tenant_id", input.TenantID,
			"error", err,
		)
		return nil
	}
	for _, r := range results {
		s.metrics.IncrementAdvisory(r.RuleID, r.Outcome)
	}
	return results
}

// publish emits an application event. Delivery failures are logged only:
// the stored application is the source of truth.
func (s *Service) publish(ctx context.Context, tenantID, topic string, app *domain.Application) {
	if s.bus == nil {
		return
	}
	event := domain.ApplicationEvent{
		ApplicationID: app.ID,
		ApplicantID:   app.ApplicantID,
		Status:        app.Status,
		OccurredAt:    app.UpdatedAt,
	}
	if app.Evaluation != nil {
		event.ReasonCode = app.Evaluation.ReasonCode
	}
	if err := bus.PublishJSON(ctx, s.bus, tenantID, topic, event); err != nil {
		slog.Error("failed to publish application event",
			"tenant_id", tenantID,
			"application_id", app.ID,
			"topic", topic,
			"error", err,
		)
	}
}
