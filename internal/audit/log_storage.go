package audit

import (
	"context"

	"go.uber.org/zap"
)

// LogStorage пишет события в структурный лог. Используется, когда база не настроена.
type LogStorage struct {
	logger *zap.Logger
}

func NewLogStorage(logger *zap.Logger) *LogStorage {
	return &LogStorage{logger: logger.Named("audit")}
}

func (s *LogStorage) WriteBatch(_ context.Context, events []AuditEvent) error {
	for _, e := range events {
		s.logger.Info("execution audit",
			zap.String("id", e.ID),
			zap.String("trace_id", e.TraceID),
			zap.String("agent_name", e.AgentName),
			zap.String("tool_name", e.ToolName),
			zap.String("task_id", e.TaskID),
			zap.String("stage", e.Stage),
			zap.String("status", e.Status),
			zap.String("error_code", e.ErrorCode),
			zap.Stringer("cost", e.Cost),
			zap.Int64("duration_ms", e.DurationMs),
			zap.Any("arguments", e.Arguments),
		)
	}
	return nil
}
