package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xela07ax/agentstack-orchestrator/internal/api/handler"
	"github.com/xela07ax/agentstack-orchestrator/internal/domain"
	"github.com/xela07ax/agentstack-orchestrator/internal/engine"
	"github.com/xela07ax/agentstack-orchestrator/internal/infra/auth"
)

// Options - зависимости HTTP-поверхности
type Options struct {
	Agents   handler.AgentRegistry
	Executor handler.Executor
	Catalog  handler.ToolCatalog
	Limiter  *engine.KeyRateLimiter // nil - без лимита на /execute

	// Validator включает RS256-защиту POST /register. nil - регистрация открыта.
	Validator auth.TokenValidator

	// Gatherer для /metrics. nil - ручка не монтируется.
	Gatherer prometheus.Gatherer
}

type Server struct {
	router *chi.Mux
	logger *zap.Logger
	opts   Options

	agentHandler   *handler.AgentHandler   // /register, /agents
	executeHandler *handler.ExecuteHandler // /execute
	taskHandler    *handler.TaskHandler    // /task
	mcpHandler     *handler.MCPHandler     // /mcp/*
}

// New собирает роутер оркестратора со всеми ручками
func New(opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")

	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger,
		opts:           opts,
		agentHandler:   handler.NewAgentHandler(opts.Agents, logger),
		executeHandler: handler.NewExecuteHandler(opts.Executor),
		taskHandler:    handler.NewTaskHandler(logger),
		mcpHandler:     handler.NewMCPHandler(opts.Catalog),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(engine.TracingMiddleware)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Get("/", handler.Info)
	r.Get("/health", handler.Health)
	if s.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}

	// Identity & Discovery (ANS/ACDP)
	r.Get("/agents", s.agentHandler.List)
	r.Group(func(r chi.Router) {
		if s.opts.Validator != nil {
			r.Use(auth.RequireScope(s.opts.Validator, domain.ScopeRegistryWrite, s.logger))
		} else {
			s.logger.Warn("POST /register is open: operator public key is not configured")
		}
		r.Post("/register", s.agentHandler.Register)
	})

	// Task (TDF)
	r.Post("/task", s.taskHandler.Submit)

	// Execution (AGP + AP2 + MCP). Ключ агента проверяется внутри пайплайна.
	r.Group(func(r chi.Router) {
		if s.opts.Limiter != nil {
			r.Use(s.opts.Limiter.Middleware)
		}
		r.Post("/execute", s.executeHandler.Execute)
	})

	// Data Layer (MCP)
	r.Route("/mcp", func(r chi.Router) {
		r.Get("/tools", s.mcpHandler.Tools)
		r.Get("/resource", s.mcpHandler.Resource)
	})
}

// ServeHTTP позволяет использовать Server как стандартный http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
