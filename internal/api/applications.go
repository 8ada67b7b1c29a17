package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/origination"
)

// RegisterApplicantRequest is the request body for POST /applicants.
type RegisterApplicantRequest struct {
	FullName string         `json:"fullName"`
	Email    string         `json:"email,omitempty"`
	Profile  ProfileRequest `json:"profile"`
}

// RegisterApplicant handles POST /applicants.
func (h *Handler) RegisterApplicant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterApplicantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	profile, err := req.Profile.toDomain()
	if err != nil {
		writeError(w, err)
		return
	}

	applicant, err := h.svc.RegisterApplicant(ctx, GetTenantID(ctx), origination.RegisterApplicantInput{
		FullName: req.FullName,
		Email:    req.Email,
		Profile:  profile,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, applicant)
}

// ListApplicants handles GET /applicants. With ?name= it returns the
// applicant with exactly that full name.
func (h *Handler) ListApplicants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if name := r.URL.Query().Get("name"); name != "" {
		applicant, err := h.svc.FindApplicantByName(ctx, tenantID, name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, applicant)
		return
	}

	applicants, err := h.svc.ListApplicants(ctx, tenantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"applicants": applicants,
		"count":      len(applicants),
	})
}

// GetApplicant handles GET /applicants/{id}.
func (h *Handler) GetApplicant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicant, err := h.svc.GetApplicant(ctx, GetTenantID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, applicant)
}

// ListApplicantApplications handles GET /applicants/{id}/applications.
func (h *Handler) ListApplicantApplications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	apps, err := h.svc.ListApplicationsByApplicant(ctx, GetTenantID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"applications": apps,
		"count":        len(apps),
	})
}

// SubmitApplicationRequest is the request body for POST /applications.
type SubmitApplicationRequest struct {
	ApplicantID   string          `json:"applicantId,omitempty"`
	ApplicantName string          `json:"applicantName,omitempty"`
	Request       LoanRequestBody `json:"request"`
}

// SubmitApplication handles POST /applications. In async mode the
// application is accepted pending and decided by a worker.
func (h *Handler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SubmitApplicationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	loan, err := req.Request.toDomain()
	if err != nil {
		writeError(w, err)
		return
	}

	app, err := h.svc.Submit(ctx, GetTenantID(ctx), origination.SubmitInput{
		ApplicantID:   req.ApplicantID,
		ApplicantName: req.ApplicantName,
		Request:       loan,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if app.Status == domain.StatusPending {
		status = http.StatusAccepted
	}
	writeJSON(w, status, app)
}

var listableStatuses = map[domain.ApplicationStatus]bool{
	domain.StatusPending:   true,
	domain.StatusApproved:  true,
	domain.StatusRejected:  true,
	domain.StatusCancelled: true,
}

// ListApplications handles GET /applications with an optional ?status=.
func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := domain.ApplicationStatus(strings.ToUpper(r.URL.Query().Get("status")))
	if status != "" && !listableStatuses[status] {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown status " + string(status)})
		return
	}

	apps, err := h.svc.ListApplications(ctx, GetTenantID(ctx), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"applications": apps,
		"count":        len(apps),
	})
}

// GetApplication handles GET /applications/{id}.
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	app, err := h.svc.GetApplication(ctx, GetTenantID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// EvaluateApplication handles PUT /applications/{id}/evaluate.
func (h *Handler) EvaluateApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	app, err := h.svc.Evaluate(ctx, GetTenantID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// CancelRequest is the optional body of POST /applications/{id}/cancel.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// CancelApplication handles POST /applications/{id}/cancel.
func (h *Handler) CancelApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CancelRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}

	app, err := h.svc.Cancel(ctx, GetTenantID(ctx), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// DeleteApplication handles DELETE /applications/{id}.
func (h *Handler) DeleteApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.svc.Delete(ctx, GetTenantID(ctx), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
