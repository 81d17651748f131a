package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xela07ax/agentstack-orchestrator/internal/domain"
	"go.uber.org/zap"
)

// Announcer транслирует локальные регистрации другим инстансам (см. Mirror)
type Announcer interface {
	Announce(ctx context.Context, profile domain.AgentProfile) error
}

// Registry - потокобезопасный справочник агентов (ANS/ACDP).
// Хранится только в памяти; порядок List() - порядок первой регистрации.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]domain.AgentProfile
	order  []string

	announcer Announcer
	logger    *zap.Logger
}

func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		agents: make(map[string]domain.AgentProfile),
		logger: logger.Named("registry"),
	}
}

// SetAnnouncer подключает трансляцию регистраций. Вызывается до старта HTTP.
func (r *Registry) SetAnnouncer(a Announcer) {
	r.mu.Lock()
	r.announcer = a
	r.mu.Unlock()
}

// Register вставляет профиль или полностью заменяет существующий с тем же Name.
// Достижимость Endpoint не проверяется - это забота пайплайна в момент вызова.
func (r *Registry) Register(ctx context.Context, profile domain.AgentProfile) error {
	if err := r.store(profile); err != nil {
		return err
	}

	r.mu.RLock()
	a := r.announcer
	r.mu.RUnlock()

	r.logger.Info("registered agent",
		zap.String("name", profile.Name),
		zap.String("id", profile.ID),
		zap.String("endpoint", profile.Endpoint))

	if a != nil {
		// Трансляция best-effort: локальная регистрация уже состоялась
		if err := a.Announce(ctx, profile); err != nil {
			r.logger.Warn("registration announce failed", zap.String("name", profile.Name), zap.Error(err))
		}
	}
	return nil
}

// Apply сохраняет профиль без повторной трансляции (регистрации от других инстансов)
func (r *Registry) Apply(profile domain.AgentProfile) error {
	return r.store(profile)
}

func (r *Registry) store(profile domain.AgentProfile) error {
	if strings.TrimSpace(profile.Name) == "" {
		return fmt.Errorf("registry: agent name is required")
	}

	p := profile.Clone()
	if p.Capabilities == nil {
		// В ответах список способностей всегда массив, а не null
		p.Capabilities = []json.RawMessage{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[p.Name]; !exists {
		r.order = append(r.order, p.Name)
	}
	r.agents[p.Name] = p
	return nil
}

// Get возвращает профиль по имени
func (r *Registry) Get(name string) (domain.AgentProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.agents[name]
	if !ok {
		return domain.AgentProfile{}, false
	}
	return p.Clone(), true
}

// List возвращает снимок всех профилей. Никогда не nil.
func (r *Registry) List() []domain.AgentProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.AgentProfile, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.agents[name].Clone())
	}
	return out
}

// Len - количество зарегистрированных агентов
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
