package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL. Money and rates are stored as
// TEXT so decimals round-trip exactly.

const schemaApplicants = `
CREATE TABLE IF NOT EXISTS applicants (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    full_name TEXT NOT NULL,
    email TEXT,
    monthly_income TEXT NOT NULL,
    current_debts TEXT NOT NULL,
    credit_rating TEXT NOT NULL,
    employment_years TEXT NOT NULL,
    savings_capacity TEXT NOT NULL,
    birth_date TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_applicants_tenant ON applicants(tenant_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_applicants_name ON applicants(tenant_id, full_name);
`

const schemaApplications = `
CREATE TABLE IF NOT EXISTS applications (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    applicant_id TEXT NOT NULL,
    loan_type TEXT NOT NULL,
    amount TEXT NOT NULL,
    term_years INTEGER NOT NULL,
    annual_rate TEXT NOT NULL,
    property_value TEXT NOT NULL,
    status TEXT NOT NULL,
    evaluation TEXT,
    advisories TEXT,
    comment TEXT,
    version INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    decided_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_applications_tenant ON applications(tenant_id);
CREATE INDEX IF NOT EXISTS idx_applications_applicant ON applications(tenant_id, applicant_id, created_at);
CREATE INDEX IF NOT EXISTS idx_applications_status ON applications(tenant_id, status);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    bands TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_tenant ON rule_configs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaApplicants,
		schemaApplications,
		schemaRuleConfigs,
	}
}
