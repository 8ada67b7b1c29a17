package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const birthDateLayout = "2006-01-02"

const applicantColumns = `
	id, tenant_id, full_name, email, monthly_income, current_debts,
	credit_rating, employment_years, savings_capacity, birth_date, created_at
`

// SaveApplicant stores a new applicant. Full names are unique per tenant.
func (r *SQLRepository) SaveApplicant(ctx context.Context, tenantID string, a *domain.Applicant) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	var existing int
	err := r.db.QueryRowContext(ctx,
		r.rebind(`SELECT COUNT(*) FROM applicants WHERE tenant_id = ? AND (id = ? OR full_name = ?)`),
		tenantID, a.ID, a.FullName,
	).Scan(&existing)
	if err != nil {
		return err
	}
	if existing > 0 {
		return fmt.Errorf("%w: applicant %q already exists", domain.ErrConflict, a.FullName)
	}

	p := a.Profile
	query := `INSERT INTO applicants (` + applicantColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		a.ID, tenantID, a.FullName, a.Email,
		p.MonthlyIncome, p.CurrentDebts, string(p.CreditRating),
		p.EmploymentYears, string(p.SavingsCapacity),
		p.BirthDate.Format(birthDateLayout), a.CreatedAt.UTC(),
	)
	return err
}

// GetApplicant retrieves an applicant by ID with tenant isolation.
func (r *SQLRepository) GetApplicant(ctx context.Context, tenantID string, applicantID string) (*domain.Applicant, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE tenant_id = ? AND id = ?`
	return scanApplicant(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, applicantID))
}

// FindApplicantByName retrieves an applicant by exact full name.
func (r *SQLRepository) FindApplicantByName(ctx context.Context, tenantID string, fullName string) (*domain.Applicant, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE tenant_id = ? AND full_name = ?`
	return scanApplicant(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, fullName))
}

// ListApplicants returns the tenant's applicants ordered by name.
func (r *SQLRepository) ListApplicants(ctx context.Context, tenantID string) ([]*domain.Applicant, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE tenant_id = ? ORDER BY full_name`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var applicants []*domain.Applicant
	for rows.Next() {
		a, err := scanApplicant(rows)
		if err != nil {
			return nil, err
		}
		applicants = append(applicants, a)
	}
	return applicants, rows.Err()
}

func scanApplicant(row rowScanner) (*domain.Applicant, error) {
	var a domain.Applicant
	var email sql.NullString
	var rating, savings, birthDate string

	err := row.Scan(
		&a.ID, &a.TenantID, &a.FullName, &email,
		&a.Profile.MonthlyIncome, &a.Profile.CurrentDebts, &rating,
		&a.Profile.EmploymentYears, &savings, &birthDate, &a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.Email = email.String
	a.Profile.CreditRating = domain.NormalizeCreditRating(rating)
	a.Profile.SavingsCapacity = domain.NormalizeSavingsCapacity(savings)
	a.Profile.BirthDate, err = time.Parse(birthDateLayout, birthDate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse birth date of applicant %s: %w", a.ID, err)
	}
	return &a, nil
}
