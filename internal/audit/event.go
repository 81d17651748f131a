package audit

import (
	"time"

	"github.com/shopspring/decimal"
)

// Статусы исполнения
const (
	StatusSuccess  = "SUCCESS"  // Инструмент отработал
	StatusRejected = "REJECTED" // Отказ до списания (auth, мандат, средства)
	StatusFailed   = "FAILED"   // Отказ после списания (агент, инструмент, ресурс)
)

// AuditEvent - одна запись журнала исполнения /execute
type AuditEvent struct {
	ID        string `json:"id"`         // UUID события
	TraceID   string `json:"trace_id"`   // Сквозной ID запроса
	AgentName string `json:"agent_name"` // Целевой агент
	ToolName  string `json:"tool_name"`  // Что хотели вызвать
	TaskID    string `json:"task_id"`    // Из мандата

	// Аргументы ПОСЛЕ фильтрации PII. Сырые аргументы в журнал не попадают.
	Arguments map[string]any `json:"arguments"`

	// Последнее достигнутое состояние пайплайна (Authenticated, Charged, ...)
	Stage     string          `json:"stage"`
	Status    string          `json:"status"`
	ErrorCode string          `json:"error_code,omitempty"`
	Error     string          `json:"error,omitempty"`
	Cost      decimal.Decimal `json:"cost"` // Фактически списано (0, если до Charged не дошли)

	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
}
