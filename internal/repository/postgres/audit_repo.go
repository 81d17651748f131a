package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres

	"github.com/xela07ax/agentstack-orchestrator/internal/audit"
)

const auditColumns = 13

const createAuditTable = `
CREATE TABLE IF NOT EXISTS execution_audit (
	id          UUID PRIMARY KEY,
	trace_id    TEXT NOT NULL,
	agent_name  TEXT NOT NULL,
	tool_name   TEXT NOT NULL,
	task_id     TEXT NOT NULL,
	arguments   JSONB,
	stage       TEXT NOT NULL,
	status      TEXT NOT NULL,
	error_code  TEXT,
	error       TEXT,
	cost        NUMERIC NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
)`

// AuditRepo - журнал исполнения в Postgres (таблица execution_audit)
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo открывает пул. Доступность базы проверяется отдельно через Ping.
func NewAuditRepo(connString string, maxConns, idleConns int32) (*AuditRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 25
	}
	if idleConns <= 0 || idleConns > maxConns {
		idleConns = maxConns
	}
	db.SetMaxOpenConns(int(maxConns))
	db.SetMaxIdleConns(int(idleConns))
	db.SetConnMaxLifetime(5 * time.Minute)
	return NewAuditRepoFromDB(db), nil
}

// NewAuditRepoFromDB - репозиторий поверх уже открытого пула
func NewAuditRepoFromDB(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// EnsureSchema создает таблицу, если ее нет
func (r *AuditRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createAuditTable); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

func (r *AuditRepo) Close() error {
	return r.db.Close()
}

func (r *AuditRepo) WriteBatch(ctx context.Context, events []audit.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	query, vals, err := buildInsert(events)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, vals...); err != nil {
		return fmt.Errorf("postgres: write audit batch: %w", err)
	}
	return nil
}

// buildInsert строит один multi-row INSERT на всю пачку
func buildInsert(events []audit.AuditEvent) (string, []any, error) {
	var sb strings.Builder
	vals := make([]any, 0, len(events)*auditColumns)

	for i, e := range events {
		args, err := json.Marshal(e.Arguments)
		if err != nil {
			return "", nil, fmt.Errorf("postgres: marshal arguments of %s: %w", e.ID, err)
		}

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		p := i * auditColumns
		for c := 1; c <= auditColumns; c++ {
			if c > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", p+c)
		}
		sb.WriteByte(')')

		vals = append(vals,
			e.ID, e.TraceID, e.AgentName, e.ToolName, e.TaskID,
			args, e.Stage, e.Status, e.ErrorCode, e.Error,
			e.Cost, e.DurationMs, e.Timestamp,
		)
	}

	query := "INSERT INTO execution_audit (id, trace_id, agent_name, tool_name, task_id, arguments, stage, status, error_code, error, cost, duration_ms, created_at) VALUES " + sb.String()
	return query, vals, nil
}
