package domain

import "encoding/json"

// Tool - дескриптор MCP-инструмента. InputSchema отдается клиентам как есть.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}
