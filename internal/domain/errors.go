package domain

import (
	"errors"
	"net/http"
)

// AuthError
var ErrUnauthorized = errors.New("unauthorized: invalid or missing api key")

// PaymentError (AP2)
var (
	ErrInvalidMandate    = errors.New("payment: invalid mandate signature")
	ErrBudgetExceeded    = errors.New("payment: amount exceeds mandate budget")
	ErrInsufficientFunds = errors.New("payment: insufficient wallet funds")
	ErrInvalidAmount     = errors.New("payment: charge amount must be positive")
)

// LookupError
var (
	ErrAgentNotFound    = errors.New("agent not found")
	ErrResourceNotFound = errors.New("resource not found")
)

// DispatchError
var (
	ErrToolNotFound     = errors.New("tool not found")
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// errorClass связывает sentinel-ошибку с машинным кодом и HTTP-статусом
type errorClass struct {
	target error
	code   string
	status int
}

// Порядок важен только для читаемости: sentinel-ошибки не оборачивают друг друга
var errorClasses = []errorClass{
	{ErrUnauthorized, "unauthorized", http.StatusUnauthorized},
	{ErrInvalidMandate, "invalid_mandate", http.StatusPaymentRequired},
	{ErrBudgetExceeded, "budget_exceeded", http.StatusPaymentRequired},
	{ErrInsufficientFunds, "insufficient_funds", http.StatusPaymentRequired},
	{ErrInvalidAmount, "invalid_amount", http.StatusPaymentRequired},
	{ErrAgentNotFound, "agent_not_found", http.StatusNotFound},
	{ErrResourceNotFound, "resource_not_found", http.StatusNotFound},
	{ErrToolNotFound, "tool_not_found", http.StatusBadRequest},
	{ErrInvalidArguments, "invalid_arguments", http.StatusBadRequest},
}

// HTTPStatus возвращает статус ответа для ошибки пайплайна.
// Неизвестные ошибки считаются внутренними (500).
func HTTPStatus(err error) int {
	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			return c.status
		}
	}
	return http.StatusInternalServerError
}

// ErrorCode возвращает короткий код ошибки для JSON-ответа, аудита и метрик
func ErrorCode(err error) string {
	if err == nil {
		return "ok"
	}
	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			return c.code
		}
	}
	return "internal"
}
