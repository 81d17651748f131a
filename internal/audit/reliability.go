package audit

import (
	"context"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ReliabilitySettings - параметры защиты записи в хранилище
type ReliabilitySettings struct {
	Name             string
	MaxRequests      uint32        // Пробных запросов в half-open
	Interval         time.Duration // Период сброса счетчиков в closed
	Timeout          time.Duration // Через сколько open пробует закрыться
	FailureThreshold uint32        // Подряд неудачных пачек до открытия
	Attempts         uint          // Попыток записи одной пачки
	CallTimeout      time.Duration // Таймаут одной попытки
}

// ReliableStorage оборачивает хранилище в Retries + Circuit Breaker.
// Пока предохранитель открыт, пачки не долбят упавшую базу, а сразу отбрасываются с ошибкой.
type ReliableStorage struct {
	next        StorageInterface
	cb          *gobreaker.CircuitBreaker
	attempts    uint
	callTimeout time.Duration
}

// NewReliableStorage. onState вызывается при смене состояния предохранителя (метрики), может быть nil.
func NewReliableStorage(next StorageInterface, s ReliabilitySettings, logger *zap.Logger, onState func(name string, open bool)) *ReliableStorage {
	if s.Name == "" {
		s.Name = "audit-storage"
	}
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	if s.Attempts == 0 {
		s.Attempts = 3
	}
	if s.CallTimeout <= 0 {
		s.CallTimeout = 10 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("audit storage breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if onState != nil {
				onState(name, to == gobreaker.StateOpen)
			}
		},
	})

	return &ReliableStorage{
		next:        next,
		cb:          cb,
		attempts:    s.Attempts,
		callTimeout: s.CallTimeout,
	}
}

func (r *ReliableStorage) WriteBatch(ctx context.Context, events []AuditEvent) error {
	_, err := r.cb.Execute(func() (interface{}, error) {
		rt := retry.New(
			retry.Context(ctx),
			retry.Attempts(r.attempts),
			retry.DelayType(retry.BackOffDelay),
		)
		return nil, rt.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
			defer cancel()
			return r.next.WriteBatch(tCtx, events)
		})
	})
	return err
}

// State - текущее состояние предохранителя
func (r *ReliableStorage) State() gobreaker.State {
	return r.cb.State()
}
