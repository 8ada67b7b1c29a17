package domain

import (
	"fmt"
	"time"
)

// ApplicationStatus is the lifecycle state of a stored application.
type ApplicationStatus string

const (
	StatusPending   ApplicationStatus = "PENDING"
	StatusApproved  ApplicationStatus = "APPROVED"
	StatusRejected  ApplicationStatus = "REJECTED"
	StatusCancelled ApplicationStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed.
func (s ApplicationStatus) Terminal() bool {
	return s != StatusPending
}

// Application is a loan request filed by an applicant, plus its evaluation
// once one has run. Version guards concurrent updates.
type Application struct {
	ID          string            `json:"id"`
	TenantID    string            `json:"tenantId"`
	ApplicantID string            `json:"applicantId"`
	Request     LoanRequest       `json:"request"`
	Status      ApplicationStatus `json:"status"`
	Evaluation  *EvaluationResult `json:"evaluation,omitempty"`
	Advisories  []RuleResult      `json:"advisories,omitempty"`
	Comment     string            `json:"comment,omitempty"`
	Version     int               `json:"version"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	DecidedAt   *time.Time        `json:"decidedAt,omitempty"`
}

// ApplyEvaluation returns a copy of the application moved to the status the
// evaluation decided. Only pending applications can be decided.
func (a Application) ApplyEvaluation(result EvaluationResult, advisories []RuleResult, now time.Time) (Application, error) {
	if a.Status != StatusPending {
		return a, fmt.Errorf("%w: cannot evaluate application in status %s", ErrInvalidTransition, a.Status)
	}

	next := a
	next.Evaluation = &result
	next.Advisories = advisories
	next.UpdatedAt = now
	next.DecidedAt = &now

	switch result.Decision {
	case DecisionApproved:
		next.Status = StatusApproved
		next.Comment = "application approved"
	case DecisionRejected:
		next.Status = StatusRejected
		next.Comment = result.ReasonCode.Description()
	default:
		return a, fmt.Errorf("%w: unknown decision %q", ErrInvalidTransition, result.Decision)
	}
	return next, nil
}

// Cancel returns a cancelled copy of a pending application.
func (a Application) Cancel(reason string, now time.Time) (Application, error) {
	if a.Status != StatusPending {
		return a, fmt.Errorf("%w: cannot cancel application in status %s", ErrInvalidTransition, a.Status)
	}
	next := a
	next.Status = StatusCancelled
	next.Comment = reason
	next.UpdatedAt = now
	return next, nil
}
