package audit

import (
	"context"
	"time"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *Event) error

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// LogAccessDenied records a capability check that resolved to deny.
func LogAccessDenied(ctx context.Context, l Logger, principalID, weddingID, capability, ip string) {
	if l == nil {
		return
	}
	denied := false
	_ = l.Log(ctx, &Event{
		Timestamp:   time.Now().UTC(),
		EventType:   EventTypeAccessDenied,
		PrincipalID: principalID,
		WeddingID:   weddingID,
		Capability:  capability,
		Allowed:     &denied,
		IPAddress:   ip,
	})
}

// LogMembershipChange records a mutation affecting who can act on a
// wedding: membership edits, invitations, archive.
func LogMembershipChange(ctx context.Context, l Logger, eventType EventType, actorID, weddingID string, details map[string]any) {
	if l == nil {
		return
	}
	_ = l.Log(ctx, &Event{
		Timestamp:   time.Now().UTC(),
		EventType:   eventType,
		PrincipalID: actorID,
		WeddingID:   weddingID,
		Details:     details,
	})
}

// NopLogger discards all events.
type NopLogger struct{}

func (NopLogger) Log(context.Context, *Event) error { return nil }
func (NopLogger) Close() error                      { return nil }
