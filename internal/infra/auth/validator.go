package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/agentstack-orchestrator/internal/domain"
)

// TokenValidator - проверка операторских токенов
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.OperatorClaims, error)
}

// ValidatorOption сужает набор принимаемых токенов
type ValidatorOption func(*BaseValidator)

// WithIssuer требует совпадения iss
func WithIssuer(iss string) ValidatorOption {
	return func(v *BaseValidator) {
		if iss != "" {
			v.parserOpts = append(v.parserOpts, jwt.WithIssuer(iss))
		}
	}
}

// WithAudience требует наличия aud
func WithAudience(aud string) ValidatorOption {
	return func(v *BaseValidator) {
		if aud != "" {
			v.parserOpts = append(v.parserOpts, jwt.WithAudience(aud))
		}
	}
}

// BaseValidator проверяет RS256-токены внешнего IdP публичным ключом
type BaseValidator struct {
	publicKey  *rsa.PublicKey
	parserOpts []jwt.ParserOption
}

func NewBaseValidator(pubKey *rsa.PublicKey, opts ...ValidatorOption) *BaseValidator {
	v := &BaseValidator{
		publicKey: pubKey,
		parserOpts: []jwt.ParserOption{
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30 * time.Second),
		},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifyToken принимает значение заголовка Authorization целиком или голый токен
func (v *BaseValidator) VerifyToken(tokenStr string) (*domain.OperatorClaims, error) {
	tokenStr = strings.TrimSpace(strings.TrimPrefix(tokenStr, "Bearer "))
	if tokenStr == "" {
		return nil, errors.New("empty token")
	}

	claims := &domain.OperatorClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	}, v.parserOpts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	// Оператор без идентификатора не попадет в журнал
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, errors.New("invalid token: no operator id")
	}
	return claims, nil
}

// ParseRSAPublicKey превращает PEM в ключ для проверки подписи
func ParseRSAPublicKey(data []byte) (*rsa.PublicKey, error) {
	if len(data) == 0 {
		return nil, errors.New("public key data is empty")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return key, nil
}
