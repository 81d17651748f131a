package audit

/*
Файл agentfs.go - асинхронный журнал исполнения (Audit Trail).

- Non-blocking Logging: события уходят в буферизированный канал, Hot Path
  пайплайна не ждет записи в хранилище.
- Batching: пакетная запись по таймеру или при достижении лимита пачки.
- Load Shedding: при переполнении буфера событие не блокирует запрос,
  а пишется в лог как audit_buffer_overflow.
- Drain Pattern: Stop закрывает вход, воркер вычитывает остатки и делает финальный flush.
*/

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const maxBatch = 100

// StorageInterface определяет, куда физически будут сохраняться события
type StorageInterface interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []AuditEvent) error
}

// Auditor - то, что нужно пайплайну
type Auditor interface {
	Log(event AuditEvent)
}

type AgentFS struct {
	ch            chan AuditEvent
	repo          StorageInterface
	flushInterval time.Duration
	logger        *zap.Logger
	fill          prometheus.Gauge // может быть nil

	// mu защищает закрытие канала от конкурентных Log
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewAgentFS(repo StorageInterface, bufferSize int, flushInterval time.Duration, logger *zap.Logger) *AgentFS {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if flushInterval <= 0 {
		flushInterval = 500 * time.Millisecond
	}
	return &AgentFS{
		ch:            make(chan AuditEvent, bufferSize),
		repo:          repo,
		flushInterval: flushInterval,
		logger:        logger.With(zap.String("mod", "agentfs")),
	}
}

// SetBufferGauge подключает метрику заполненности буфера (backpressure)
func (fs *AgentFS) SetBufferGauge(g prometheus.Gauge) {
	fs.fill = g
}

func (fs *AgentFS) Start() {
	fs.wg.Add(1)
	go fs.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет. Повторный вызов безопасен.
func (fs *AgentFS) Stop() {
	fs.mu.Lock()
	if fs.closed {
		fs.mu.Unlock()
		return
	}
	fs.closed = true
	fs.logger.Info("stopping auditor: closing channel and flushing buffer...")
	close(fs.ch)
	fs.mu.Unlock()

	fs.wg.Wait()
	fs.logger.Info("auditor stopped gracefully")
}

func (fs *AgentFS) Log(event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.closed {
		fs.logger.Warn("audit event dropped: auditor is stopping", zap.String("id", event.ID))
		return
	}

	select {
	case fs.ch <- event:
		fs.observeFill()
	default:
		fs.logger.Error("audit_buffer_overflow",
			zap.String("agent_name", event.AgentName),
			zap.String("tool_name", event.ToolName),
			zap.String("trace_id", event.TraceID),
			zap.String("status", event.Status),
		)
	}
}

func (fs *AgentFS) observeFill() {
	if fs.fill != nil {
		fs.fill.Set(float64(len(fs.ch)))
	}
}

func (fs *AgentFS) worker() {
	defer fs.wg.Done()

	batch := make([]AuditEvent, 0, maxBatch)
	ticker := time.NewTicker(fs.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: основной контекст к моменту flush может быть уже отменен
		if err := fs.repo.WriteBatch(context.Background(), batch); err != nil {
			fs.logger.Error("audit flush failed", zap.Int("events", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
		fs.observeFill()
	}

	for {
		select {
		case event, ok := <-fs.ch:
			if !ok {
				// Канал закрыт в Stop(): остатки уже вычитаны, финальный сброс
				flush()
				fs.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= maxBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
