package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DBLogger writes audit events to the audit_logs table.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger
func NewDBLogger(db *sql.DB) *DBLogger {
	return &DBLogger{db: db}
}

// Log inserts the event.
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	details := event.Details
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	var weddingID any
	if event.WeddingID != "" {
		weddingID = event.WeddingID
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO audit_logs (event_type, principal_id, wedding_id, capability, allowed, details, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(event.EventType), event.PrincipalID, weddingID,
		event.Capability, event.Allowed, detailsJSON, event.IPAddress, event.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// Close is a no-op; the database connection is owned by the caller.
func (l *DBLogger) Close() error { return nil }
