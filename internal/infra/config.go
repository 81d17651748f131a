package infra

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config - корневая структура конфигурации оркестратора.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Redaction RedactionConfig `mapstructure:"redaction"`
	MCP       MCPConfig       `mapstructure:"mcp"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr - адрес для http.Server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GRPCConfig - gRPC health endpoint. Пустой Addr отключает gRPC.
type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

// DatabaseConfig описывает подключение к PostgreSQL (журнал аудита).
// Пустой URL - аудит пишется только в лог.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (Pub/Sub регистраций).
// Пустой Addr отключает зеркалирование реестра.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig - ключи агентов (AGP) и публичный ключ операторских токенов.
type AuthConfig struct {
	// APIKeys - допустимые значения X-Agent-API-Key. Допускаются bcrypt-хэши.
	APIKeys []string `mapstructure:"api_keys"`

	// PublicKeyPath - RS256 ключ для проверки токенов на POST /register.
	// Если ключа нет, регистрация открыта (режим демо).
	PublicKeyPath string `mapstructure:"public_key_path"`
	PublicKey     []byte
	TokenIssuer   string `mapstructure:"token_issuer"`   // пусто - iss не проверяется
	TokenAudience string `mapstructure:"token_audience"` // пусто - aud не проверяется
}

// WalletConfig - параметры Mandate Authority (AP2).
type WalletConfig struct {
	SigningKey     string          `mapstructure:"signing_key"`
	InitialBalance decimal.Decimal `mapstructure:"initial_balance"`
	Currency       string          `mapstructure:"currency"`
}

// PipelineConfig - параметры пайплайна исполнения.
type PipelineConfig struct {
	FlatFee decimal.Decimal `mapstructure:"flat_fee"` // Фиксированная стоимость любого вызова

	// BootstrapAgents регистрируются при старте
	BootstrapAgents []BootstrapAgent `mapstructure:"bootstrap_agents"`
}

type BootstrapAgent struct {
	Name         string           `mapstructure:"name"`
	ID           string           `mapstructure:"id"`
	Endpoint     string           `mapstructure:"endpoint"`
	Capabilities []map[string]any `mapstructure:"capabilities"`
}

// RedactionConfig - упорядоченный список шаблонов PII.
type RedactionConfig struct {
	Marker   string          `mapstructure:"marker"`
	Patterns []PatternConfig `mapstructure:"patterns"`
}

type PatternConfig struct {
	Name  string `mapstructure:"name"`
	Regex string `mapstructure:"regex"`
}

// MCPConfig - статический Data Layer.
// Ресурсы задаются списком, а не мапой: viper приводит ключи мап к нижнему регистру.
type MCPConfig struct {
	Name      string           `mapstructure:"name"`
	Resources []ResourceConfig `mapstructure:"resources"`
}

type ResourceConfig struct {
	URI     string `mapstructure:"uri"`
	Content string `mapstructure:"content"`
}

// EngineConfig содержит настройки аудита и защитных механизмов.
type EngineConfig struct {
	AuditBufferSize    int           `mapstructure:"audit_buffer_size"`
	AuditFlushInterval time.Duration `mapstructure:"audit_flush_interval"`

	// Circuit Breaker и ретраи для записи аудита в хранилище
	CBMaxRequests int           `mapstructure:"cb_max_requests"`
	CBInterval    time.Duration `mapstructure:"cb_interval"`
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`
	RetryAttempts uint          `mapstructure:"retry_attempts"`

	// Лимит запросов на /execute в секунду на один API-ключ
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom("")
}

// LoadConfigFrom читает конфиг из явного пути. Пустой путь - поиск config.yaml по умолчанию.
func LoadConfigFrom(path string) (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// 2. ENV перекрывает файл: WALLET_SIGNING_KEY перекроет wallet.signing_key,
	// списки через запятую: AUTH_API_KEYS="k1,k2"
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Дефолты
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет - работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToWeakSliceHookFunc(","),
		decimalHook(),
	))); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. PEM-ключ из ENV или из файла
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет то, без чего пайплайн не может работать корректно
func (c *Config) Validate() error {
	if c.Wallet.SigningKey == "" {
		return errors.New("config: wallet.signing_key is required")
	}
	if c.Wallet.InitialBalance.IsNegative() {
		return errors.New("config: wallet.initial_balance must not be negative")
	}
	if !c.Pipeline.FlatFee.IsPositive() {
		return errors.New("config: pipeline.flat_fee must be positive")
	}
	if len(c.Auth.APIKeys) == 0 {
		return errors.New("config: auth.api_keys must contain at least one key")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("auth.api_keys", []string{"valid-api-key-123"})
	v.SetDefault("wallet.signing_key", "super-secret-key")
	v.SetDefault("wallet.initial_balance", "1000")
	v.SetDefault("wallet.currency", "USD")
	v.SetDefault("pipeline.flat_fee", "10")
	v.SetDefault("pipeline.bootstrap_agents", []map[string]any{
		{
			"name":         "worker.local",
			"id":           "agent-001",
			"endpoint":     "http://localhost:8000/worker",
			"capabilities": []map[string]any{{"name": "process_data", "type": "function"}},
		},
	})
	v.SetDefault("redaction.marker", "[REDACTED]")
	v.SetDefault("mcp.name", "orchestrator-mcp")

	v.SetDefault("engine.audit_buffer_size", 1000)
	v.SetDefault("engine.audit_flush_interval", 1*time.Second)
	v.SetDefault("engine.cb_max_requests", 3)
	v.SetDefault("engine.cb_interval", 5*time.Second)
	v.SetDefault("engine.cb_timeout", 30*time.Second)
	v.SetDefault("engine.retry_attempts", 3)
	v.SetDefault("engine.rate_limit", 100.0)
	v.SetDefault("engine.rate_burst", 20)
}

// decimalHook разбирает денежные суммы из YAML-чисел и строк ENV без прохода через float:
// "0.1" из ENV дает ровно 0.1. YAML-числа приходят уже как float64 и переводятся
// по кратчайшему десятичному представлению.
func decimalHook() mapstructure.DecodeHookFuncType {
	target := reflect.TypeOf(decimal.Decimal{})
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != target {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return decimal.NewFromString(strings.TrimSpace(v))
		case float64:
			return decimal.NewFromFloat(v), nil
		case float32:
			return decimal.NewFromFloat32(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		}
		return data, nil
	}
}

// loadKeyResource - ключ напрямую из ENV (Docker/K8s) или из файла по пути из конфига
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
