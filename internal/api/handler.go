package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/origination"
	"github.com/shopspring/decimal"
)

// birthDateLayout is the wire format of birth dates.
const birthDateLayout = "2006-01-02"

// Handler holds dependencies for API handlers.
type Handler struct {
	svc     *origination.Service
	probes  Probes
	version string
}

// NewHandler creates a new API handler.
func NewHandler(svc *origination.Service, probes Probes, version string) *Handler {
	return &Handler{
		svc:     svc,
		probes:  probes,
		version: version,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// violationResponse is returned with 422 for requests outside policy.
type violationResponse struct {
	Error    string                 `json:"error"`
	Reason   domain.ViolationReason `json:"reason"`
	LoanType domain.LoanType        `json:"loanType"`
	Detail   string                 `json:"detail"`
}

// ProfileRequest is the wire form of an applicant's financial profile.
type ProfileRequest struct {
	MonthlyIncome   decimal.Decimal `json:"monthlyIncome"`
	CurrentDebts    decimal.Decimal `json:"currentDebts"`
	CreditRating    string          `json:"creditRating"`
	EmploymentYears decimal.Decimal `json:"employmentYears"`
	SavingsCapacity string          `json:"savingsCapacity"`
	BirthDate       string          `json:"birthDate"`
}

func (p ProfileRequest) toDomain() (domain.ApplicantProfile, error) {
	birth, err := time.Parse(birthDateLayout, p.BirthDate)
	if err != nil {
		return domain.ApplicantProfile{}, fmt.Errorf("%w: birthDate must be YYYY-MM-DD", domain.ErrInvalidInput)
	}
	return domain.ApplicantProfile{
		MonthlyIncome:   p.MonthlyIncome,
		CurrentDebts:    p.CurrentDebts,
		CreditRating:    domain.NormalizeCreditRating(p.CreditRating),
		EmploymentYears: p.EmploymentYears,
		SavingsCapacity: domain.NormalizeSavingsCapacity(p.SavingsCapacity),
		BirthDate:       birth,
	}, nil
}

// LoanRequestBody is the wire form of a loan request.
type LoanRequestBody struct {
	LoanType      string          `json:"loanType"`
	Amount        decimal.Decimal `json:"amount"`
	TermYears     int             `json:"termYears"`
	AnnualRatePct decimal.Decimal `json:"annualRatePct"`
	PropertyValue decimal.Decimal `json:"propertyValue"`
}

func (l LoanRequestBody) toDomain() (domain.LoanRequest, error) {
	loanType, err := domain.ParseLoanType(l.LoanType)
	if err != nil {
		return domain.LoanRequest{}, err
	}
	return domain.LoanRequest{
		Type:          loanType,
		Amount:        l.Amount,
		TermYears:     l.TermYears,
		AnnualRatePct: l.AnnualRatePct,
		PropertyValue: l.PropertyValue,
	}, nil
}

// EvaluateRequest is the request body for POST /evaluate.
type EvaluateRequest struct {
	Profile ProfileRequest  `json:"profile"`
	Request LoanRequestBody `json:"request"`
}

// EvaluateResponse is the response for POST /evaluate.
type EvaluateResponse struct {
	Evaluation domain.EvaluationResult `json:"evaluation"`
	Advisories []domain.RuleResult     `json:"advisories,omitempty"`
	Metadata   struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Evaluate handles POST /evaluate: a stateless decision for a profile and
// a loan request. Nothing is stored.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req EvaluateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	profile, err := req.Profile.toDomain()
	if err != nil {
		writeError(w, err)
		return
	}
	loan, err := req.Request.toDomain()
	if err != nil {
		writeError(w, err)
		return
	}

	result, advisories, err := h.svc.EvaluateProfile(ctx, GetTenantID(ctx), profile, loan)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := EvaluateResponse{Evaluation: result, Advisories: advisories}
	resp.Metadata.TraceID = GetTraceID(ctx)
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version
	writeJSON(w, http.StatusOK, resp)
}

// SimulateResponse is the response for POST /simulate.
type SimulateResponse struct {
	domain.SimulationResult
	Cached bool `json:"cached"`
}

// Simulate handles POST /simulate.
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in domain.SimulationInput
	if !decodeBody(w, r, &in) {
		return
	}

	result, cached, err := h.svc.Simulate(ctx, GetTenantID(ctx), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SimulateResponse{SimulationResult: result, Cached: cached})
}

// ListPolicies returns the loan-type policy table.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies := h.svc.Policies()
	writeJSON(w, http.StatusOK, map[string]any{
		"policies": policies,
		"count":    len(policies),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "healthy"

	if h.probes.Repo != nil {
		if err := h.probes.Repo.Ping(ctx); err != nil {
			status = "degraded"
		}
	}
	if h.probes.Cache != nil {
		if err := h.probes.Cache.Ping(ctx); err != nil {
			status = "degraded"
		}
	}
	if h.probes.Bus != nil {
		if err := h.probes.Bus.Ping(ctx); err != nil {
			status = "degraded"
		}
	}

	resp := healthResponse{Status: status, Version: h.version}
	if sized, ok := h.probes.Cache.(sizedCache); ok {
		entries, capacity := sized.Stats()
		resp.Cache = &cacheStats{Entries: entries, Capacity: capacity}
	}
	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status  string      `json:"status"`
	Version string      `json:"version"`
	Cache   *cacheStats `json:"cache,omitempty"`
}

type cacheStats struct {
	Entries  int `json:"entries"`
	Capacity int `json:"capacity"`
}

// sizedCache is implemented by caches with an in-process tier.
type sizedCache interface {
	Stats() (size int, capacity int)
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.probes.Repo != nil {
		if err := h.probes.Repo.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"ready": "false"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON request body"})
		return false
	}
	return true
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var violation *domain.PolicyViolation
	switch {
	case errors.As(err, &violation):
		writeJSON(w, http.StatusUnprocessableEntity, violationResponse{
			Error:    err.Error(),
			Reason:   violation.Reason,
			LoanType: violation.LoanType,
			Detail:   violation.Detail,
		})
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnknownLoanType):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
