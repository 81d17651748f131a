package handler

import (
	"context"
	"net/http"

	"github.com/xela07ax/agentstack-orchestrator/internal/domain"
	"github.com/xela07ax/agentstack-orchestrator/internal/engine"
)

type Executor interface {
	Execute(ctx context.Context, credential string, req domain.ExecuteRequest) (*domain.ExecuteResult, error)
}

type ExecuteHandler struct {
	executor Executor
}

func NewExecuteHandler(e Executor) *ExecuteHandler {
	return &ExecuteHandler{executor: e}
}

// Execute - POST /execute. Ключ агента в X-Agent-API-Key.
func (h *ExecuteHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req domain.ExecuteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Mandate.Currency == "" {
		req.Mandate.Currency = domain.DefaultCurrency
	}

	res, err := h.executor.Execute(r.Context(), r.Header.Get(engine.HeaderAPIKey), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
