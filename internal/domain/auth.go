package domain

import "github.com/golang-jwt/jwt/v5"

// OperatorClaims - claims токена оператора, которому разрешено публиковать агентов.
// Токен выпускается внешним IdP и подписывается RS256.
type OperatorClaims struct {
	UserID string          `json:"user_id"`
	Scopes map[string]bool `json:"scopes"` // "registry.write": true
	jwt.RegisteredClaims
}

// ScopeRegistryWrite - право на POST /register
const ScopeRegistryWrite = "registry.write"

// Can проверяет наличие права в токене
func (c *OperatorClaims) Can(scope string) bool {
	if c == nil {
		return false
	}
	return c.Scopes[scope] || c.Scopes["admin"]
}
