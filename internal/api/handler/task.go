package handler

import (
	"net/http"

	"github.com/xela07ax/agentstack-orchestrator/internal/domain"
	"github.com/xela07ax/agentstack-orchestrator/internal/engine"
	"go.uber.org/zap"
)

type TaskHandler struct {
	logger *zap.Logger
}

func NewTaskHandler(logger *zap.Logger) *TaskHandler {
	return &TaskHandler{logger: logger}
}

// Submit - POST /task. Задача только принимается, исполнение идет через /execute.
func (h *TaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var task domain.TaskDefinition
	if !decodeJSON(w, r, &task) {
		return
	}
	if task.ID == "" {
		badRequest(w, "task id is required")
		return
	}
	task.ApplyDefaults()

	h.logger.Info("task accepted",
		zap.String("task_id", task.ID),
		zap.String("trace_id", engine.TraceID(r.Context())),
		zap.Stringer("budget", task.Budget.Limit),
		zap.String("currency", task.Budget.Currency),
		zap.Strings("allowed_tools", task.Constraints.AllowedTools))

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted", "task_id": task.ID})
}
