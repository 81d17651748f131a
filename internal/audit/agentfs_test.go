package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStorage struct {
	mu     sync.Mutex
	events []AuditEvent
	calls  int
	fail   int // сколько первых вызовов вернуть ошибку
}

func (m *memStorage) WriteBatch(_ context.Context, events []AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.fail {
		return errors.New("db down")
	}
	m.events = append(m.events, events...)
	return nil
}

func (m *memStorage) snapshot() ([]AuditEvent, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AuditEvent, len(m.events))
	copy(out, m.events)
	return out, m.calls
}

func TestAgentFS_FlushOnStop(t *testing.T) {
	store := &memStorage{}
	fs := NewAgentFS(store, 16, time.Hour, zap.NewNop())
	fs.Start()

	for i := 0; i < 5; i++ {
		fs.Log(AuditEvent{ID: string(rune('a' + i)), Status: StatusSuccess})
	}
	fs.Stop()

	events, _ := store.snapshot()
	require.Len(t, events, 5)
	assert.Equal(t, "a", events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestAgentFS_FlushOnTicker(t *testing.T) {
	store := &memStorage{}
	fs := NewAgentFS(store, 16, 10*time.Millisecond, zap.NewNop())
	fs.Start()
	defer fs.Stop()

	fs.Log(AuditEvent{ID: "tick"})

	assert.Eventually(t, func() bool {
		events, _ := store.snapshot()
		return len(events) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestAgentFS_BatchLimit(t *testing.T) {
	store := &memStorage{}
	fs := NewAgentFS(store, 1000, time.Hour, zap.NewNop())
	fs.Start()

	for i := 0; i < maxBatch*2+1; i++ {
		fs.Log(AuditEvent{ID: "e"})
	}
	fs.Stop()

	events, calls := store.snapshot()
	assert.Len(t, events, maxBatch*2+1)
	assert.Equal(t, 3, calls)
}

func TestAgentFS_OverflowDoesNotBlock(t *testing.T) {
	store := &memStorage{}
	// Воркер не запущен: буфер из одного слота быстро заполнится
	fs := NewAgentFS(store, 1, time.Hour, zap.NewNop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			fs.Log(AuditEvent{ID: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Log blocked on full buffer")
	}
	assert.Len(t, fs.ch, 1)
}

func TestAgentFS_LogAfterStop(t *testing.T) {
	store := &memStorage{}
	fs := NewAgentFS(store, 4, time.Hour, zap.NewNop())
	fs.Start()
	fs.Stop()
	fs.Stop()

	assert.NotPanics(t, func() { fs.Log(AuditEvent{ID: "late"}) })
	events, _ := store.snapshot()
	assert.Empty(t, events)
}
