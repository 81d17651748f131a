package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/xela07ax/agentstack-orchestrator/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// KeyGate проверяет X-Agent-API-Key по множеству известных ключей (AGP).
// Набор загружается один раз при старте и дальше только читается,
// поэтому блокировки не нужны.
type KeyGate struct {
	plain  [][]byte
	hashed [][]byte
}

// NewKeyGate принимает ключи в открытом виде или bcrypt-хэши ($2a$/$2b$/$2y$).
// Пустые строки игнорируются.
func NewKeyGate(keys []string) *KeyGate {
	g := &KeyGate{}
	for _, k := range keys {
		k = strings.TrimSpace(k)
		switch {
		case k == "":
			continue
		case isBcryptHash(k):
			g.hashed = append(g.hashed, []byte(k))
		default:
			g.plain = append(g.plain, []byte(k))
		}
	}
	return g
}

// Validate возвращает domain.ErrUnauthorized, если ключ пуст или неизвестен
func (g *KeyGate) Validate(credential string) error {
	if credential == "" {
		return domain.ErrUnauthorized
	}
	c := []byte(credential)

	// Проходим весь список, чтобы время ответа не зависело от позиции ключа
	match := 0
	for _, k := range g.plain {
		match |= subtle.ConstantTimeCompare(k, c)
	}
	if match == 1 {
		return nil
	}

	for _, h := range g.hashed {
		if bcrypt.CompareHashAndPassword(h, c) == nil {
			return nil
		}
	}
	return domain.ErrUnauthorized
}

// Size - количество сконфигурированных ключей
func (g *KeyGate) Size() int {
	return len(g.plain) + len(g.hashed)
}

func isBcryptHash(s string) bool {
	return len(s) == 60 &&
		(strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}
