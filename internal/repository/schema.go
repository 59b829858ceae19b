package repository

// Schema definitions for the Caduceus configuration store.
// Compatible with both SQLite and PostgreSQL.
//
// Only tenant configuration is persisted here: scoring profiles and
// screening rules. Applications and decisions are never written to disk.

const schemaScoringProfiles = `
CREATE TABLE IF NOT EXISTS scoring_profiles (
    tenant_id TEXT PRIMARY KEY,
    profile TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaScreeningRules = `
CREATE TABLE IF NOT EXISTS screening_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    flag TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_screening_rules_tenant ON screening_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_screening_rules_enabled ON screening_rules(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaScoringProfiles,
		schemaScreeningRules,
	}
}
