package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/agentstack-orchestrator/internal/domain"
	"github.com/xela07ax/agentstack-orchestrator/internal/infra"
	"go.uber.org/zap"
)

// announcement - формат сообщения в канале регистраций
type announcement struct {
	Origin  string              `json:"origin"` // ID инстанса-источника
	Profile domain.AgentProfile `json:"profile"`
}

// Mirror связывает реестры нескольких инстансов оркестратора через Redis Pub/Sub.
// Состояние по-прежнему живет только в памяти каждого инстанса:
// Redis не хранит профили, а только доставляет события.
type Mirror struct {
	rdb        *redis.Client
	registry   *Registry
	instanceID string
	channel    string
	logger     *zap.Logger
}

func NewMirror(rdb *redis.Client, reg *Registry, instanceID string, logger *zap.Logger) *Mirror {
	return &Mirror{
		rdb:        rdb,
		registry:   reg,
		instanceID: instanceID,
		channel:    infra.RedisChanRegistryAnnounce,
		logger:     logger.With(zap.String("mod", "registry-mirror")),
	}
}

// Announce реализует Announcer
func (m *Mirror) Announce(ctx context.Context, profile domain.AgentProfile) error {
	payload, err := json.Marshal(announcement{Origin: m.instanceID, Profile: profile})
	if err != nil {
		return fmt.Errorf("mirror: marshal announcement: %w", err)
	}
	if err := m.rdb.Publish(ctx, m.channel, payload).Err(); err != nil {
		return fmt.Errorf("mirror: publish: %w", err)
	}
	return nil
}

// StartListener применяет регистрации других инстансов. Блокируется до отмены ctx.
func (m *Mirror) StartListener(ctx context.Context) {
	infra.ListenResilient(ctx, m.rdb, m.logger, m.channel,
		func() error {
			m.logger.Info("registry mirror subscribed", zap.String("chan", m.channel))
			return nil
		},
		m.handleMessage,
	)
}

func (m *Mirror) handleMessage(payload string) {
	var a announcement
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		m.logger.Error("invalid registry announcement", zap.String("payload", payload), zap.Error(err))
		return
	}
	// Собственные сообщения уже применены локально
	if a.Origin == m.instanceID {
		return
	}
	if err := m.registry.Apply(a.Profile); err != nil {
		m.logger.Warn("remote registration rejected", zap.String("origin", a.Origin), zap.Error(err))
		return
	}
	m.logger.Debug("remote registration applied",
		zap.String("origin", a.Origin),
		zap.String("name", a.Profile.Name))
}
