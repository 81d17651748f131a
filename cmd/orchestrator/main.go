package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/agentstack-orchestrator/internal/api/server"
	"github.com/xela07ax/agentstack-orchestrator/internal/audit"
	"github.com/xela07ax/agentstack-orchestrator/internal/domain"
	"github.com/xela07ax/agentstack-orchestrator/internal/engine"
	"github.com/xela07ax/agentstack-orchestrator/internal/infra"
	"github.com/xela07ax/agentstack-orchestrator/internal/infra/auth"
	"github.com/xela07ax/agentstack-orchestrator/internal/mcp"
	"github.com/xela07ax/agentstack-orchestrator/internal/redact"
	"github.com/xela07ax/agentstack-orchestrator/internal/registry"
	"github.com/xela07ax/agentstack-orchestrator/internal/repository/postgres"
	"github.com/xela07ax/agentstack-orchestrator/internal/wallet"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("orchestrator failed", zap.Error(err))
	}
}

func run(cfg *infra.Config, logger *zap.Logger) error {
	// Контекст для управления жизненным циклом фоновых горутин
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	// 2. Trust-компоненты
	gate := auth.NewKeyGate(cfg.Auth.APIKeys)
	logger.Info("agent api keys loaded", zap.Int("count", gate.Size()))

	patterns := redact.DefaultPatterns()
	if len(cfg.Redaction.Patterns) > 0 {
		patterns = patterns[:0]
		for _, p := range cfg.Redaction.Patterns {
			patterns = append(patterns, redact.Pattern{Name: p.Name, Regex: p.Regex})
		}
	}
	filter, err := redact.New(cfg.Redaction.Marker, patterns)
	if err != nil {
		return err
	}

	w, err := wallet.New([]byte(cfg.Wallet.SigningKey), cfg.Wallet.InitialBalance, cfg.Wallet.Currency, logger)
	if err != nil {
		return err
	}

	var mcpOpts []mcp.Option
	for _, res := range cfg.MCP.Resources {
		mcpOpts = append(mcpOpts, mcp.WithResource(res.URI, res.Content))
	}
	tools, err := mcp.NewServer(cfg.MCP.Name, logger, mcpOpts...)
	if err != nil {
		return err
	}

	// 3. Реестр агентов (+ зеркалирование через Redis, если настроен)
	agents := registry.New(logger)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()

		pingCtx, pingCancel := context.WithTimeout(appCtx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			// Реестр работает и без Redis, просто без соседей
			logger.Warn("redis unreachable, registry mirror will keep reconnecting", zap.Error(err))
		}

		mirror := registry.NewMirror(rdb, agents, uuid.New().String(), logger)
		agents.SetAnnouncer(mirror)
		go mirror.StartListener(appCtx)
	}
	if err := bootstrapAgents(appCtx, agents, cfg.Pipeline.BootstrapAgents); err != nil {
		return err
	}

	// 4. Журнал исполнения: Postgres за Retries/CB или структурный лог
	var storage audit.StorageInterface = audit.NewLogStorage(logger)
	if cfg.Database.URL != "" {
		repo, err := postgres.NewAuditRepo(cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return err
		}
		defer repo.Close()

		dbCtx, dbCancel := context.WithTimeout(appCtx, 5*time.Second)
		err = repo.Ping(dbCtx)
		if err == nil {
			err = repo.EnsureSchema(dbCtx)
		}
		dbCancel()
		if err != nil {
			return fmt.Errorf("database unreachable: %w", err)
		}

		storage = audit.NewReliableStorage(repo, audit.ReliabilitySettings{
			Name:        "audit-postgres",
			MaxRequests: uint32(cfg.Engine.CBMaxRequests),
			Interval:    cfg.Engine.CBInterval,
			Timeout:     cfg.Engine.CBTimeout,
			Attempts:    cfg.Engine.RetryAttempts,
		}, logger, metrics.OnBreakerState)
	}
	auditor := audit.NewAgentFS(storage, cfg.Engine.AuditBufferSize, cfg.Engine.AuditFlushInterval, logger)
	auditor.SetBufferGauge(metrics.AuditBufferFill)
	auditor.Start()
	defer auditor.Stop()

	// 5. Core (Сборка пайплайна)
	orch, err := engine.NewOrchestrator(engine.Deps{
		Gate:     gate,
		Redactor: filter,
		Wallet:   w,
		Agents:   agents,
		Tools:    tools,
		Auditor:  auditor,
		Metrics:  metrics,
		FlatFee:  cfg.Pipeline.FlatFee,
	}, logger)
	if err != nil {
		return err
	}

	// 6. HTTP Server
	var validator auth.TokenValidator
	if len(cfg.Auth.PublicKey) > 0 {
		pub, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
		if err != nil {
			return err
		}
		validator = auth.NewBaseValidator(pub,
			auth.WithIssuer(cfg.Auth.TokenIssuer),
			auth.WithAudience(cfg.Auth.TokenAudience))
	}

	api := server.New(server.Options{
		Agents:    agents,
		Executor:  orch,
		Catalog:   tools,
		Limiter:   engine.NewKeyRateLimiter(cfg.Engine.RateLimit, cfg.Engine.RateBurst, metrics),
		Validator: validator,
		Gatherer:  reg,
	}, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("orchestrator started",
			zap.String("addr", srv.Addr),
			zap.Stringer("balance", w.Balance()),
			zap.Stringer("flat_fee", orch.FlatFee()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http listen: %w", err)
		}
	}()

	// 7. gRPC health (опционально)
	if cfg.GRPC.Addr != "" {
		grpcSrv, health := engine.NewGRPCServer(gate)
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		go func() {
			logger.Info("grpc health started", zap.String("addr", cfg.GRPC.Addr))
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc serve: %w", err)
			}
		}()
		defer func() {
			health.Shutdown()
			grpcSrv.GracefulStop()
		}()
	}

	// 8. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("orchestrator stopping...", zap.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	logger.Info("orchestrator exited properly")
	return nil
}

// bootstrapAgents регистрирует агентов из конфигурации до приема трафика
func bootstrapAgents(ctx context.Context, agents *registry.Registry, list []infra.BootstrapAgent) error {
	for _, a := range list {
		caps := make([]json.RawMessage, 0, len(a.Capabilities))
		for _, c := range a.Capabilities {
			raw, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("bootstrap agent %s: %w", a.Name, err)
			}
			caps = append(caps, raw)
		}
		profile := domain.AgentProfile{Name: a.Name, ID: a.ID, Capabilities: caps, Endpoint: a.Endpoint}
		if err := agents.Register(ctx, profile); err != nil {
			return fmt.Errorf("bootstrap agent %s: %w", a.Name, err)
		}
	}
	return nil
}
