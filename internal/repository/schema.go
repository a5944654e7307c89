package repository

// Schema definitions for the Red-Flag database.
// Compatible with both SQLite and PostgreSQL.

// schemaAssessments keeps the input and canonical result as JSON documents.
// The scalar columns duplicate result fields for filtering and stats.
const schemaAssessments = `
CREATE TABLE IF NOT EXISTS assessments (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL DEFAULT '',
    tax_year TEXT NOT NULL DEFAULT '',
    industry TEXT NOT NULL,
    report_type TEXT NOT NULL,
    score INTEGER NOT NULL,
    band TEXT NOT NULL,
    input TEXT NOT NULL,
    result TEXT NOT NULL,
    ruleset_version TEXT NOT NULL,
    payment_status TEXT NOT NULL DEFAULT 'pending',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_industry ON assessments(industry);
CREATE INDEX IF NOT EXISTS idx_assessments_band ON assessments(band);
CREATE INDEX IF NOT EXISTS idx_assessments_created ON assessments(created_at);
`

const schemaReports = `
CREATE TABLE IF NOT EXISTS reports (
    assessment_id TEXT PRIMARY KEY REFERENCES assessments(id),
    report_type TEXT NOT NULL,
    document TEXT NOT NULL,
    generated_at TIMESTAMP NOT NULL
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaAssessments,
		schemaReports,
	}
}
