package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/agentstack-orchestrator/internal/audit"
)

func TestBuildInsert_Placeholders(t *testing.T) {
	now := time.Now()
	events := []audit.AuditEvent{
		{ID: "1", AgentName: "worker.local", ToolName: "echo", Arguments: map[string]any{"message": "hi"}, Timestamp: now},
		{ID: "2", AgentName: "worker.local", ToolName: "read_resource", Timestamp: now},
	}

	query, vals, err := buildInsert(events)
	require.NoError(t, err)

	assert.Len(t, vals, 2*auditColumns)
	assert.Contains(t, query, "($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)")
	assert.Contains(t, query, "($14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)")
	assert.Equal(t, []byte(`{"message":"hi"}`), vals[5])
	assert.Equal(t, "2", vals[auditColumns])
}

func TestBuildInsert_UnmarshalableArguments(t *testing.T) {
	_, _, err := buildInsert([]audit.AuditEvent{{ID: "bad", Arguments: map[string]any{"ch": make(chan int)}}})
	assert.Error(t, err)
}

func TestAuditRepo_WriteBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := NewAuditRepoFromDB(db)
	now := time.Now()
	ev := audit.AuditEvent{
		ID: "11111111-1111-1111-1111-111111111111", TraceID: "t-1", AgentName: "worker.local",
		ToolName: "echo", TaskID: "task-101", Arguments: map[string]any{"message": "[REDACTED]"},
		Stage: "Done", Status: audit.StatusSuccess, Cost: decimal.RequireFromString("10.5"), DurationMs: 3, Timestamp: now,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO execution_audit")).
		WithArgs(ev.ID, "t-1", "worker.local", "echo", "task-101", sqlmock.AnyArg(),
			"Done", audit.StatusSuccess, "", "", "10.5", int64(3), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.WriteBatch(context.Background(), []audit.AuditEvent{ev}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_WriteBatchError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("INSERT INTO execution_audit").WillReturnError(errors.New("connection refused"))

	err = NewAuditRepoFromDB(db).WriteBatch(context.Background(), []audit.AuditEvent{{ID: "1"}})
	assert.ErrorContains(t, err, "write audit batch")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_EmptyBatchSkipsDB(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	assert.NoError(t, NewAuditRepoFromDB(db).WriteBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_EnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS execution_audit")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, NewAuditRepoFromDB(db).EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
