package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFrom_Defaults(t *testing.T) {
	cfg, err := LoadConfigFrom(writeConfig(t, "server:\n  host: 127.0.0.1\n"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8000", cfg.Server.Addr())
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"valid-api-key-123"}, cfg.Auth.APIKeys)
	assert.Equal(t, "super-secret-key", cfg.Wallet.SigningKey)
	assert.Equal(t, "1000", cfg.Wallet.InitialBalance.String())
	assert.Equal(t, "10", cfg.Pipeline.FlatFee.String())
	assert.Equal(t, "[REDACTED]", cfg.Redaction.Marker)

	require.Len(t, cfg.Pipeline.BootstrapAgents, 1)
	assert.Equal(t, "worker.local", cfg.Pipeline.BootstrapAgents[0].Name)
	assert.Equal(t, "agent-001", cfg.Pipeline.BootstrapAgents[0].ID)
}

func TestLoadConfigFrom_File(t *testing.T) {
	path := writeConfig(t, `
auth:
  api_keys: ["k1", "k2"]
wallet:
  signing_key: from-file
  initial_balance: 250
pipeline:
  flat_fee: 2.5
redaction:
  marker: "<pii>"
  patterns:
    - name: phone
      regex: '\d{3}-\d{3}-\d{4}'
mcp:
  resources:
    - uri: "file://Local/Readme"
      content: "hello"
`)
	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"k1", "k2"}, cfg.Auth.APIKeys)
	assert.Equal(t, "from-file", cfg.Wallet.SigningKey)
	assert.Equal(t, "250", cfg.Wallet.InitialBalance.String())
	assert.Equal(t, "2.5", cfg.Pipeline.FlatFee.String())
	assert.Equal(t, "<pii>", cfg.Redaction.Marker)
	require.Len(t, cfg.Redaction.Patterns, 1)
	assert.Equal(t, "phone", cfg.Redaction.Patterns[0].Name)
	require.Len(t, cfg.MCP.Resources, 1)
	assert.Equal(t, "file://Local/Readme", cfg.MCP.Resources[0].URI, "resource uris keep their case")
}

func TestLoadConfigFrom_EnvOverride(t *testing.T) {
	t.Setenv("WALLET_SIGNING_KEY", "from-env")
	t.Setenv("PIPELINE_FLAT_FEE", "7.5")

	cfg, err := LoadConfigFrom(writeConfig(t, "wallet:\n  signing_key: from-file\n"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Wallet.SigningKey)
	assert.Equal(t, "7.5", cfg.Pipeline.FlatFee.String())
}

func TestLoadConfigFrom_MoneyFromEnvIsExact(t *testing.T) {
	t.Setenv("WALLET_INITIAL_BALANCE", "0.3")
	t.Setenv("PIPELINE_FLAT_FEE", "0.1")

	cfg, err := LoadConfigFrom(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	left := cfg.Wallet.InitialBalance
	for i := 0; i < 3; i++ {
		left = left.Sub(cfg.Pipeline.FlatFee)
	}
	assert.True(t, left.IsZero(), "0.3 - 3*0.1 = %s", left)
}

func TestLoadConfigFrom_BadMoney(t *testing.T) {
	t.Setenv("PIPELINE_FLAT_FEE", "ten")

	_, err := LoadConfigFrom(writeConfig(t, "{}\n"))
	assert.Error(t, err)
}

func TestLoadConfigFrom_PublicKeyFromEnv(t *testing.T) {
	t.Setenv("AUTH_PUBLIC_KEY_DATA", "-----BEGIN PUBLIC KEY-----")

	cfg, err := LoadConfigFrom(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, []byte("-----BEGIN PUBLIC KEY-----"), cfg.Auth.PublicKey)
}

func TestLoadConfigFrom_Invalid(t *testing.T) {
	_, err := LoadConfigFrom(writeConfig(t, "pipeline:\n  flat_fee: 0\n"))
	assert.ErrorContains(t, err, "flat_fee")

	_, err = LoadConfigFrom(writeConfig(t, "wallet:\n  initial_balance: -5\n"))
	assert.ErrorContains(t, err, "initial_balance")

	_, err = LoadConfigFrom(writeConfig(t, "server: [broken"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger(LoggerConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = NewLogger(LoggerConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)

	_, err = NewLogger(LoggerConfig{Level: "loud"})
	assert.Error(t, err)
}
