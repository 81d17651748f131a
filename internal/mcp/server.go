package mcp

/*
Файл server.go - локальный MCP Data Layer оркестратора: статическая таблица
инструментов и хранилище ресурсов.

Добавить инструмент = добавить запись в таблицу (name -> descriptor + handler),
а не новую ветку if/else. Таблица и ресурсы заполняются при старте и дальше
только читаются, поэтому Dispatch безопасен для конкурентных вызовов без блокировок.
*/

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/xela07ax/agentstack-orchestrator/internal/domain"
	"go.uber.org/zap"
)

// Handler исполняет инструмент над уже отфильтрованными (redacted) аргументами
type Handler func(ctx context.Context, args map[string]any) (any, error)

type toolEntry struct {
	descriptor domain.Tool
	schema     *jsonschema.Schema // nil - без валидации аргументов
	handler    Handler
}

// Server - диспетчер инструментов и хранилище ресурсов
type Server struct {
	name      string
	tools     map[string]toolEntry
	order     []string
	resources map[string]json.RawMessage
	logger    *zap.Logger
}

// Option дополняет сервер при сборке
type Option func(*Server) error

// WithResource добавляет (или перекрывает) ресурс. content - произвольная строка,
// отдается как {"content": ...}.
func WithResource(uri, content string) Option {
	return func(s *Server) error {
		if strings.TrimSpace(uri) == "" {
			return fmt.Errorf("mcp: resource uri is required")
		}
		raw, err := json.Marshal(map[string]string{"content": content})
		if err != nil {
			return err
		}
		s.resources[uri] = raw
		return nil
	}
}

// WithTool регистрирует дополнительный инструмент
func WithTool(tool domain.Tool, h Handler) Option {
	return func(s *Server) error { return s.addTool(tool, h) }
}

// NewServer собирает сервер со встроенными инструментами read_resource и echo
func NewServer(name string, logger *zap.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		name:  name,
		tools: make(map[string]toolEntry),
		resources: map[string]json.RawMessage{
			"file://local/config": json.RawMessage(`{"content":"system_mode=active"}`),
			"db://users/count":    json.RawMessage(`{"content":"42"}`),
		},
		logger: logger.Named("mcp"),
	}

	builtins := []struct {
		tool    domain.Tool
		handler Handler
	}{
		{
			tool: domain.Tool{
				Name:        "read_resource",
				Description: "Reads a local resource by URI",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"uri":{"type":"string"}}}`),
			},
			handler: s.handleReadResource,
		},
		{
			tool: domain.Tool{
				Name:        "echo",
				Description: "Echoes back the input",
				InputSchema: json.RawMessage(`{"type":"object","properties":{"message":{"type":"string"}}}`),
			},
			handler: handleEcho,
		},
	}
	for _, b := range builtins {
		if err := s.addTool(b.tool, b.handler); err != nil {
			return nil, err
		}
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Name - имя MCP-сервера
func (s *Server) Name() string { return s.name }

func (s *Server) addTool(tool domain.Tool, h Handler) error {
	if tool.Name == "" || h == nil {
		return fmt.Errorf("mcp: tool name and handler are required")
	}

	var compiled *jsonschema.Schema
	if len(tool.InputSchema) > 0 {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		schemaURL := fmt.Sprintf("https://orchestrator.local/mcp/%s.schema.json", tool.Name)
		if err := c.AddResource(schemaURL, strings.NewReader(string(tool.InputSchema))); err != nil {
			return fmt.Errorf("mcp: load schema for %s: %w", tool.Name, err)
		}
		var err error
		if compiled, err = c.Compile(schemaURL); err != nil {
			return fmt.Errorf("mcp: compile schema for %s: %w", tool.Name, err)
		}
	}

	if _, exists := s.tools[tool.Name]; !exists {
		s.order = append(s.order, tool.Name)
	}
	s.tools[tool.Name] = toolEntry{descriptor: tool, schema: compiled, handler: h}
	return nil
}

// ListTools возвращает дескрипторы в порядке регистрации
func (s *Server) ListTools() []domain.Tool {
	out := make([]domain.Tool, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.tools[name].descriptor)
	}
	return out
}

// ResourceURIs - отсортированный список известных URI
func (s *Server) ResourceURIs() []string {
	out := make([]string, 0, len(s.resources))
	for uri := range s.resources {
		out = append(out, uri)
	}
	sort.Strings(out)
	return out
}

// ReadResource возвращает содержимое ресурса или domain.ErrResourceNotFound
func (s *Server) ReadResource(uri string) (json.RawMessage, error) {
	content, ok := s.resources[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrResourceNotFound, uri)
	}
	return content, nil
}

// Dispatch находит инструмент, валидирует аргументы по его input_schema и исполняет.
// Ошибки: domain.ErrToolNotFound, domain.ErrInvalidArguments, ошибки обработчика.
func (s *Server) Dispatch(ctx context.Context, toolName string, args map[string]any) (any, error) {
	entry, ok := s.tools[toolName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrToolNotFound, toolName)
	}
	if args == nil {
		args = map[string]any{}
	}

	if entry.schema != nil {
		if err := entry.schema.Validate(toJSONValue(args)); err != nil {
			s.logger.Debug("tool arguments rejected", zap.String("tool", toolName), zap.Error(err))
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidArguments, toolName, err)
		}
	}

	return entry.handler(ctx, args)
}

func (s *Server) handleReadResource(_ context.Context, args map[string]any) (any, error) {
	uri, _ := args["uri"].(string)
	return s.ReadResource(uri)
}

func handleEcho(_ context.Context, args map[string]any) (any, error) {
	return args["message"], nil
}

// toJSONValue приводит аргументы к виду, который ожидает валидатор
// (как после json.Unmarshal: float64, []any, map[string]any).
func toJSONValue(args map[string]any) any {
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return args
	}
	return v
}
