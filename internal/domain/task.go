package domain

import "github.com/shopspring/decimal"

// TaskDefinition - формат описания задачи (TDF). Метаданные без поведения:
// оркестратор принимает задачу и подтверждает прием, не исполняя ее.
type TaskDefinition struct {
	ID              string          `json:"id"`
	Description     string          `json:"description"`
	Constraints     TaskConstraints `json:"constraints"`
	SuccessCriteria SuccessCriteria `json:"success_criteria"`
	Budget          TaskBudget      `json:"budget"`
	InputData       map[string]any  `json:"input_data"`
}

type TaskConstraints struct {
	MaxDurationSeconds int      `json:"max_duration_seconds"`
	AllowedTools       []string `json:"allowed_tools"`
	ForbiddenTerms     []string `json:"forbidden_terms"`
}

type SuccessCriteria struct {
	RequiredOutputFormat string         `json:"required_output_format"`
	ValidationSchema     map[string]any `json:"validation_schema,omitempty"`
}

type TaskBudget struct {
	Currency string          `json:"currency"`
	Limit    decimal.Decimal `json:"limit"`
}

// ApplyDefaults проставляет значения по умолчанию, как это делает эталонный формат
func (t *TaskDefinition) ApplyDefaults() {
	if t.Constraints.MaxDurationSeconds == 0 {
		t.Constraints.MaxDurationSeconds = 60
	}
	if t.SuccessCriteria.RequiredOutputFormat == "" {
		t.SuccessCriteria.RequiredOutputFormat = "json"
	}
	if t.Budget.Currency == "" {
		t.Budget.Currency = DefaultCurrency
	}
	if t.InputData == nil {
		t.InputData = map[string]any{}
	}
}
