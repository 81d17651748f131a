package handler

import "net/http"

// Services - протоколы, которые закрывает оркестратор
var Services = []string{"ANS", "ACDP", "TDF", "FCP", "AGP", "AP2", "MCP"}

const stackName = "2025 Standardized Agentic Stack"

type InfoResponse struct {
	Status   string   `json:"status"`
	Stack    string   `json:"stack"`
	Services []string `json:"services"`
}

func Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, InfoResponse{Status: "active", Stack: stackName, Services: Services})
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
