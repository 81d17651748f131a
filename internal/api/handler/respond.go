package handler

import (
	"encoding/json"
	"net/http"

	"github.com/xela07ax/agentstack-orchestrator/internal/domain"
)

// maxBodyBytes - предел тела запроса для JSON ручек
const maxBodyBytes = 1 << 20

// ErrorResponse - единый формат ошибок API
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError маппит sentinel-ошибку пайплайна на статус и код
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, domain.HTTPStatus(err), ErrorResponse{Error: domain.ErrorCode(err), Message: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, "invalid json body: "+err.Error())
		return false
	}
	return true
}
