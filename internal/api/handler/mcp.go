package handler

import (
	"encoding/json"
	"net/http"

	"github.com/xela07ax/agentstack-orchestrator/internal/domain"
)

type ToolCatalog interface {
	ListTools() []domain.Tool
	ReadResource(uri string) (json.RawMessage, error)
}

type MCPHandler struct {
	catalog ToolCatalog
}

func NewMCPHandler(c ToolCatalog) *MCPHandler {
	return &MCPHandler{catalog: c}
}

// Tools - GET /mcp/tools
func (h *MCPHandler) Tools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.ListTools())
}

// Resource - GET /mcp/resource?uri=...
func (h *MCPHandler) Resource(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		badRequest(w, "uri query param is required")
		return
	}

	content, err := h.catalog.ReadResource(uri)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}
