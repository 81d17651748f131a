package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/xela07ax/agentstack-orchestrator/internal/domain"
	"github.com/xela07ax/agentstack-orchestrator/internal/infra/auth"
	"go.uber.org/zap"
)

// AgentRegistry - то, что ручкам нужно от реестра
type AgentRegistry interface {
	Register(ctx context.Context, profile domain.AgentProfile) error
	List() []domain.AgentProfile
}

type AgentHandler struct {
	registry AgentRegistry
	logger   *zap.Logger
}

func NewAgentHandler(reg AgentRegistry, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{registry: reg, logger: logger}
}

// Register - POST /register
func (h *AgentHandler) Register(w http.ResponseWriter, r *http.Request) {
	var profile domain.AgentProfile
	if !decodeJSON(w, r, &profile) {
		return
	}
	if strings.TrimSpace(profile.Name) == "" {
		badRequest(w, "agent name is required")
		return
	}

	if err := h.registry.Register(r.Context(), profile); err != nil {
		h.logger.Error("failed to register agent", zap.String("name", profile.Name), zap.Error(err))
		writeError(w, err)
		return
	}

	if op := auth.OperatorID(r.Context()); op != "" {
		h.logger.Info("agent registered by operator", zap.String("name", profile.Name), zap.String("operator", op))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "registered", "id": profile.ID})
}

// List - GET /agents
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.List())
}
