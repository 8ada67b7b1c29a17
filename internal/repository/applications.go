package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const applicationColumns = `
	id, tenant_id, applicant_id, loan_type, amount, term_years, annual_rate,
	property_value, status, evaluation, advisories, comment, version,
	created_at, updated_at, decided_at
`

// SaveApplication stores a new application. Version starts at 1.
func (r *SQLRepository) SaveApplication(ctx context.Context, tenantID string, app *domain.Application) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if app.Version == 0 {
		app.Version = 1
	}

	evaluation, advisories, err := encodeOutcome(app)
	if err != nil {
		return err
	}

	query := `INSERT INTO applications (` + applicationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	req := app.Request
	_, err = r.db.ExecContext(ctx, r.rebind(query),
		app.ID, tenantID, app.ApplicantID, req.Type.String(),
		req.Amount, req.TermYears, req.AnnualRatePct, req.PropertyValue,
		string(app.Status), evaluation, advisories, app.Comment, app.Version,
		app.CreatedAt.UTC(), app.UpdatedAt.UTC(), nullTime(app.DecidedAt),
	)
	return err
}

// GetApplication retrieves an application by ID with tenant isolation.
func (r *SQLRepository) GetApplication(ctx context.Context, tenantID string, appID string) (*domain.Application, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + applicationColumns + ` FROM applications WHERE tenant_id = ? AND id = ?`
	return scanApplication(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, appID))
}

// ListApplications returns the tenant's applications, newest first. An empty
// status lists every status.
func (r *SQLRepository) ListApplications(ctx context.Context, tenantID string, status domain.ApplicationStatus) ([]*domain.Application, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + applicationColumns + ` FROM applications WHERE tenant_id = ?`
	args := []any{tenantID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id`

	return r.queryApplications(ctx, query, args...)
}

// ListApplicationsByApplicant returns an applicant's applications, newest first.
func (r *SQLRepository) ListApplicationsByApplicant(ctx context.Context, tenantID string, applicantID string) ([]*domain.Application, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + applicationColumns + ` FROM applications
		WHERE tenant_id = ? AND applicant_id = ?
		ORDER BY created_at DESC, id`

	return r.queryApplications(ctx, query, tenantID, applicantID)
}

// CountApplicationsSince counts an applicant's applications created at or after since.
func (r *SQLRepository) CountApplicationsSince(ctx context.Context, tenantID string, applicantID string, since time.Time) (int, error) {
	if err := requireTenant(tenantID); err != nil {
		return 0, err
	}

	query := `SELECT COUNT(*) FROM applications WHERE tenant_id = ? AND applicant_id = ? AND created_at >= ?`

	var count int
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, applicantID, since.UTC()).Scan(&count)
	return count, err
}

// UpdateApplication writes app back if nobody else updated it since it was
// read. On success app.Version is incremented.
func (r *SQLRepository) UpdateApplication(ctx context.Context, tenantID string, app *domain.Application) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	evaluation, advisories, err := encodeOutcome(app)
	if err != nil {
		return err
	}

	query := `
		UPDATE applications
		SET status = ?, evaluation = ?, advisories = ?, comment = ?,
			updated_at = ?, decided_at = ?, version = version + 1
		WHERE tenant_id = ? AND id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		string(app.Status), evaluation, advisories, app.Comment,
		app.UpdatedAt.UTC(), nullTime(app.DecidedAt),
		tenantID, app.ID, app.Version,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := r.GetApplication(ctx, tenantID, app.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: application %s changed since version %d", domain.ErrConflict, app.ID, app.Version)
	}

	app.Version++
	return nil
}

// DeleteApplication removes an application.
func (r *SQLRepository) DeleteApplication(ctx context.Context, tenantID string, appID string) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM applications WHERE tenant_id = ? AND id = ?`), tenantID, appID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *SQLRepository) queryApplications(ctx context.Context, query string, args ...any) ([]*domain.Application, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []*domain.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func scanApplication(row rowScanner) (*domain.Application, error) {
	var app domain.Application
	var loanType, status string
	var evaluation, advisories, comment sql.NullString
	var decidedAt sql.NullTime

	err := row.Scan(
		&app.ID, &app.TenantID, &app.ApplicantID, &loanType,
		&app.Request.Amount, &app.Request.TermYears, &app.Request.AnnualRatePct,
		&app.Request.PropertyValue, &status, &evaluation, &advisories, &comment,
		&app.Version, &app.CreatedAt, &app.UpdatedAt, &decidedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if app.Request.Type, err = domain.ParseLoanType(loanType); err != nil {
		return nil, fmt.Errorf("application %s: %w", app.ID, err)
	}
	app.Status = domain.ApplicationStatus(status)
	app.Comment = comment.String
	if decidedAt.Valid {
		t := decidedAt.Time
		app.DecidedAt = &t
	}

	if evaluation.String != "" {
		var result domain.EvaluationResult
		if err := json.Unmarshal([]byte(evaluation.String), &result); err != nil {
			return nil, fmt.Errorf("failed to parse evaluation of application %s: %w", app.ID, err)
		}
		app.Evaluation = &result
	}
	if advisories.String != "" {
		if err := json.Unmarshal([]byte(advisories.String), &app.Advisories); err != nil {
			return nil, fmt.Errorf("failed to parse advisories of application %s: %w", app.ID, err)
		}
	}

	return &app, nil
}

// encodeOutcome serializes the evaluation and advisories. Absent values are
// stored as NULL.
func encodeOutcome(app *domain.Application) (evaluation, advisories sql.NullString, err error) {
	if app.Evaluation != nil {
		b, err := json.Marshal(app.Evaluation)
		if err != nil {
			return evaluation, advisories, fmt.Errorf("failed to encode evaluation: %w", err)
		}
		evaluation = sql.NullString{String: string(b), Valid: true}
	}
	if len(app.Advisories) > 0 {
		b, err := json.Marshal(app.Advisories)
		if err != nil {
			return evaluation, advisories, fmt.Errorf("failed to encode advisories: %w", err)
		}
		advisories = sql.NullString{String: string(b), Valid: true}
	}
	return evaluation, advisories, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
