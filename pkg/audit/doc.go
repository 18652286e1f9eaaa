// Package audit provides security audit logging for authorization and
// membership events.
//
// # Overview
//
// Audit events capture who tried what, on which wedding, and how it
// resolved. Three logger backends exist: DBLogger (audit_logs table),
// FileLogger (JSON lines via logrus), and MultiLogger (fan-out). Handlers
// and middleware log through the Logger interface, so any combination
// works.
//
// Denied capability checks, membership mutations, archives, and token
// lifecycle events are recorded. Data-integrity warnings flag stored role
// strings the registry cannot normalize.
//
// # Usage
//
//	dbLog := audit.NewDBLogger(db)
//	fileLog, _ := audit.NewFileLogger("/var/log/veil/audit.log")
//	logger := audit.NewMultiLogger(dbLog, fileLog)
//
//	audit.LogAccessDenied(ctx, logger, principalID, weddingID, "manageFinance", ip)
package audit
