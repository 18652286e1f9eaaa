package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// FileLogger writes audit events as JSON lines to a file via logrus.
type FileLogger struct {
	log  *logrus.Logger
	file *os.File
	mu   sync.Mutex
}

// NewFileLogger creates a file-based audit logger. The parent directory is
// created if needed.
func NewFileLogger(path string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	log := logrus.New()
	log.SetOutput(file)
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	log.SetLevel(logrus.InfoLevel)

	return &FileLogger{log: log, file: file}, nil
}

// Log writes the event as one JSON line.
func (l *FileLogger) Log(_ context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	fields := logrus.Fields{
		"event_type": string(event.EventType),
		"timestamp":  event.Timestamp,
	}
	if event.PrincipalID != "" {
		fields["principal_id"] = event.PrincipalID
	}
	if event.WeddingID != "" {
		fields["wedding_id"] = event.WeddingID
	}
	if event.Capability != "" {
		fields["capability"] = event.Capability
	}
	if event.Allowed != nil {
		fields["allowed"] = *event.Allowed
	}
	if event.IPAddress != "" {
		fields["ip_address"] = event.IPAddress
	}
	if len(event.Details) > 0 {
		fields["details"] = event.Details
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.WithFields(fields).Info("audit")
	return nil
}

// Close flushes and closes the underlying file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
