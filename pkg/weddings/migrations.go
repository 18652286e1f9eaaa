package weddings

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations, oldest first.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create weddings table",
			SQL: `
				CREATE TABLE IF NOT EXISTS weddings (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					wedding_date TIMESTAMP,
					location TEXT,
					settings JSONB NOT NULL DEFAULT '{}',
					owner_ids JSONB NOT NULL DEFAULT '[]',
					planner_ids JSONB NOT NULL DEFAULT '[]',
					assistant_ids JSONB NOT NULL DEFAULT '[]',
					archived BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_weddings_archived ON weddings(archived);
				CREATE INDEX idx_weddings_owner_ids ON weddings USING GIN (owner_ids);
				CREATE INDEX idx_weddings_planner_ids ON weddings USING GIN (planner_ids);
				CREATE INDEX idx_weddings_assistant_ids ON weddings USING GIN (assistant_ids);
			`,
		},
		{
			Version:     2,
			Description: "Create wedding_invitations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS wedding_invitations (
					id BIGSERIAL PRIMARY KEY,
					code VARCHAR(64) NOT NULL UNIQUE,
					wedding_id UUID NOT NULL REFERENCES weddings(id) ON DELETE CASCADE,
					role VARCHAR(50) NOT NULL,
					invited_by VARCHAR(255) NOT NULL,
					expires_at TIMESTAMP NOT NULL,
					accepted_at TIMESTAMP,
					accepted_by VARCHAR(255),
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_wedding_invitations_wedding_id ON wedding_invitations(wedding_id);
				CREATE INDEX idx_wedding_invitations_expires_at ON wedding_invitations(expires_at);
			`,
		},
		{
			Version:     3,
			Description: "Create wedding_items table",
			SQL: `
				CREATE TABLE IF NOT EXISTS wedding_items (
					id UUID PRIMARY KEY,
					wedding_id UUID NOT NULL REFERENCES weddings(id) ON DELETE CASCADE,
					collection VARCHAR(50) NOT NULL,
					data JSONB NOT NULL DEFAULT '{}',
					created_by VARCHAR(255) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_wedding_items_wedding_collection ON wedding_items(wedding_id, collection);
			`,
		},
		{
			Version:     4,
			Description: "Create api_tokens table",
			SQL: `
				CREATE TABLE IF NOT EXISTS api_tokens (
					id BIGSERIAL PRIMARY KEY,
					principal_id VARCHAR(255) NOT NULL,
					token_hash VARCHAR(64) NOT NULL UNIQUE,
					token_prefix VARCHAR(20) NOT NULL,
					name VARCHAR(255) NOT NULL,
					expires_at TIMESTAMP,
					last_used_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					revoked_at TIMESTAMP
				);

				CREATE INDEX idx_api_tokens_principal_id ON api_tokens(principal_id);
				CREATE INDEX idx_api_tokens_token_hash ON api_tokens(token_hash);
			`,
		},
		{
			Version:     5,
			Description: "Create audit_logs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_logs (
					id BIGSERIAL PRIMARY KEY,
					event_type VARCHAR(100) NOT NULL,
					principal_id VARCHAR(255),
					wedding_id UUID,
					capability VARCHAR(100),
					allowed BOOLEAN,
					details JSONB NOT NULL DEFAULT '{}',
					ip_address VARCHAR(64),
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_audit_logs_wedding_id ON audit_logs(wedding_id);
				CREATE INDEX idx_audit_logs_event_type ON audit_logs(event_type);
				CREATE INDEX idx_audit_logs_created_at ON audit_logs(created_at);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS veil_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM veil_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO veil_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
