package domain

import "github.com/shopspring/decimal"

// DefaultCurrency используется, если в мандате валюта не указана
const DefaultCurrency = "USD"

func init() {
	// Суммы на проводе - JSON-числа (50.0), а не строки "50"
	decimal.MarshalJSONWithoutQuotes = true
}

// Mandate - подписанное разрешение на списание в пределах бюджета задачи (AP2).
// Подпись детерминированно зависит от (TaskID, BudgetLimit) и секретного ключа кошелька.
type Mandate struct {
	TaskID      string          `json:"task_id"`
	BudgetLimit decimal.Decimal `json:"budget_limit"`
	Currency    string          `json:"currency"`
	Signature   string          `json:"signature"` // lowercase hex
}

// ExecuteRequest - тело POST /execute
type ExecuteRequest struct {
	AgentName string         `json:"agent_name"`
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Mandate   Mandate        `json:"mandate"`
}

// ExecuteResult - успешный результат пайплайна
type ExecuteResult struct {
	Status string          `json:"status"` // всегда "success"
	Agent  string          `json:"agent"`
	Tool   string          `json:"tool"`
	Result any             `json:"result"`
	Cost   decimal.Decimal `json:"cost"`
}
