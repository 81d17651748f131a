package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/agentstack-orchestrator/internal/domain"
)

func newKeyPair(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return key, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

func signToken(t *testing.T, key *rsa.PrivateKey, scopes map[string]bool, ttl time.Duration) string {
	t.Helper()
	claims := &domain.OperatorClaims{
		UserID: "op-1",
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "op-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestBaseValidator_VerifyToken(t *testing.T) {
	key, pubPEM := newKeyPair(t)
	pub, err := ParseRSAPublicKey(pubPEM)
	require.NoError(t, err)
	v := NewBaseValidator(pub)

	token := signToken(t, key, map[string]bool{domain.ScopeRegistryWrite: true}, time.Hour)

	claims, err := v.VerifyToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.UserID)
	assert.True(t, claims.Can(domain.ScopeRegistryWrite))

	_, err = v.VerifyToken(signToken(t, key, nil, -time.Minute))
	assert.Error(t, err, "expired token")

	other, _ := newKeyPair(t)
	_, err = v.VerifyToken(signToken(t, other, nil, time.Hour))
	assert.Error(t, err, "foreign key")

	hs, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "x"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = v.VerifyToken(hs)
	assert.Error(t, err, "hmac tokens are rejected")
}

func TestParseRSAPublicKey_Errors(t *testing.T) {
	_, err := ParseRSAPublicKey(nil)
	assert.Error(t, err)
	_, err = ParseRSAPublicKey([]byte("not a pem"))
	assert.Error(t, err)
}

func TestRequireScope(t *testing.T) {
	key, pubPEM := newKeyPair(t)
	pub, err := ParseRSAPublicKey(pubPEM)
	require.NoError(t, err)

	var seenOperator string
	h := RequireScope(NewBaseValidator(pub), domain.ScopeRegistryWrite, zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seenOperator = OperatorID(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))

	do := func(header string) int {
		req := httptest.NewRequest(http.MethodPost, "/register", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, do(""))
	assert.Equal(t, http.StatusUnauthorized, do("Bearer garbage"))
	assert.Equal(t, http.StatusForbidden, do("Bearer "+signToken(t, key, map[string]bool{"other": true}, time.Hour)))
	assert.Equal(t, http.StatusNoContent, do("Bearer "+signToken(t, key, map[string]bool{"admin": true}, time.Hour)))
	assert.Equal(t, "op-1", seenOperator)
}

func TestBaseValidator_IssuerAudience(t *testing.T) {
	key, pubPEM := newKeyPair(t)
	pub, err := ParseRSAPublicKey(pubPEM)
	require.NoError(t, err)
	v := NewBaseValidator(pub, WithIssuer("idp.local"), WithAudience("orchestrator"))

	sign := func(iss, aud string) string {
		claims := &domain.OperatorClaims{
			UserID: "op-2",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    iss,
				Audience:  jwt.ClaimStrings{aud},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}

	_, err = v.VerifyToken(sign("idp.local", "orchestrator"))
	assert.NoError(t, err)
	_, err = v.VerifyToken(sign("evil", "orchestrator"))
	assert.Error(t, err)
	_, err = v.VerifyToken(sign("idp.local", "other"))
	assert.Error(t, err)
}

func TestBaseValidator_RequiresExpAndOperator(t *testing.T) {
	key, pubPEM := newKeyPair(t)
	pub, err := ParseRSAPublicKey(pubPEM)
	require.NoError(t, err)
	v := NewBaseValidator(pub)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{"user_id": "op"}).SignedString(key)
	require.NoError(t, err)
	_, err = v.VerifyToken(noExp)
	assert.Error(t, err)

	anon, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(key)
	require.NoError(t, err)
	_, err = v.VerifyToken(anon)
	assert.ErrorContains(t, err, "no operator id")

	bySubject, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": "op-sub",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(key)
	require.NoError(t, err)
	claims, err := v.VerifyToken("Bearer " + bySubject)
	require.NoError(t, err)
	assert.Equal(t, "op-sub", claims.UserID)

	_, err = v.VerifyToken("Bearer ")
	assert.Error(t, err)
}
