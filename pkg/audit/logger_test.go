package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBLogger_Log(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger := NewDBLogger(db)
	denied := false

	mock.ExpectExec(`INSERT INTO audit_logs`).
		WithArgs("authz.access_denied", "user-1", "w-1", "manageFinance",
			false, sqlmock.AnyArg(), "10.0.0.1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = logger.Log(context.Background(), &Event{
		EventType:   EventTypeAccessDenied,
		PrincipalID: "user-1",
		WeddingID:   "w-1",
		Capability:  "manageFinance",
		Allowed:     &denied,
		IPAddress:   "10.0.0.1",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLogger_InsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger := NewDBLogger(db)
	mock.ExpectExec(`INSERT INTO audit_logs`).WillReturnError(fmt.Errorf("table missing"))

	err = logger.Log(context.Background(), &Event{EventType: EventTypeWeddingArchive})
	assert.Error(t, err)
}

func TestFileLogger_Log(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "audit.log")
	logger, err := NewFileLogger(path)
	require.NoError(t, err)

	allowed := true
	err = logger.Log(context.Background(), &Event{
		EventType:   EventTypePermissionCheck,
		PrincipalID: "user-1",
		WeddingID:   "w-1",
		Capability:  "viewGuests",
		Allowed:     &allowed,
		Details:     map[string]any{"role": "assistant"},
	})
	require.NoError(t, err)
	require.NoError(t, logger.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan(), "expected one log line")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
	assert.Equal(t, "authz.permission_check", entry["event_type"])
	assert.Equal(t, "user-1", entry["principal_id"])
	assert.Equal(t, true, entry["allowed"])
}

func TestMultiLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	fileLogger, err := NewFileLogger(path)
	require.NoError(t, err)

	multi := NewMultiLogger(NopLogger{}, fileLogger)
	require.NoError(t, multi.Log(context.Background(), &Event{
		Timestamp: time.Now(),
		EventType: EventTypeMemberAdd,
		WeddingID: "w-1",
	}))
	require.NoError(t, multi.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "membership.member_add")
}

func TestLogAccessDenied_NilLogger(t *testing.T) {
	// Must not panic
	LogAccessDenied(context.Background(), nil, "u", "w", "cap", "")
}
