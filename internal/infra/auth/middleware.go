package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xela07ax/agentstack-orchestrator/internal/domain"
	"go.uber.org/zap"
)

type ctxKey string

const claimsKey ctxKey = "operator_claims"

// RequireScope пропускает только запросы с валидным операторским токеном,
// в котором есть scope. Заголовок: Authorization: Bearer <jwt>.
func RequireScope(v TokenValidator, scope string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				deny(w, http.StatusUnauthorized, "missing operator token")
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("operator auth failure", zap.Error(err))
				deny(w, http.StatusUnauthorized, "invalid operator token")
				return
			}
			if !claims.Can(scope) {
				logger.Warn("operator scope denied",
					zap.String("user_id", claims.UserID),
					zap.String("scope", scope))
				deny(w, http.StatusForbidden, "token does not grant "+scope)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OperatorID достает ID оператора, прошедшего RequireScope
func OperatorID(ctx context.Context) string {
	if c, ok := ctx.Value(claimsKey).(*domain.OperatorClaims); ok {
		return c.UserID
	}
	return ""
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": "security_violation", "message": msg})
}
