package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Тип для ключа в контексте (избегаем коллизий)
type ctxKey string

const traceIDKey ctxKey = "trace_id"

const (
	HeaderTraceID = "X-Trace-ID"
	HeaderAPIKey  = "X-Agent-API-Key"
)

// TracingMiddleware инициализирует Trace-ID для каждого запроса
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Пытаемся достать ID из заголовка (если пришел от агента/прокси)
		traceID := r.Header.Get(HeaderTraceID)
		if traceID == "" {
			traceID = uuid.New().String()
		}

		// Добавляем в ответ, чтобы клиент тоже знал ID своего запроса
		w.Header().Set(HeaderTraceID, traceID)

		next.ServeHTTP(w, r.WithContext(WithTraceID(r.Context(), traceID)))
	})
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID помогает безопасно достать ID в любом месте кода
func TraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return "00000000-0000-0000-0000-000000000000" // Fallback
}

// maxTrackedKeys ограничивает память лимитера: ключ приходит от клиента до аутентификации
const maxTrackedKeys = 10000

// pruneEvery - не чаще этого ищем простаивающие корзины при заполненной карте
const pruneEvery = time.Second

// KeyRateLimiter - token bucket на каждый API-ключ.
// Из карты удаляются только полные (простаивающие) корзины: они неотличимы от новых,
// поэтому поток случайных ключей не может сбросить корзину активного ключа.
// Пока карта заполнена активными ключами, новые ключи делят одну общую корзину.
type KeyRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	overflow  *rate.Limiter
	maxKeys   int
	lastPrune time.Time
	limit     rate.Limit
	burst     int
	metrics   *Metrics
}

// NewKeyRateLimiter. perSecond <= 0 отключает ограничение.
func NewKeyRateLimiter(perSecond float64, burst int, metrics *Metrics) *KeyRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &KeyRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		overflow: rate.NewLimiter(rate.Limit(perSecond), burst),
		maxKeys:  maxTrackedKeys,
		limit:    rate.Limit(perSecond),
		burst:    burst,
		metrics:  metrics,
	}
}

func (l *KeyRateLimiter) Allow(key string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	lim := l.lookup(key, time.Now())
	l.mu.Unlock()

	return lim.Allow()
}

// lookup вызывается под l.mu
func (l *KeyRateLimiter) lookup(key string, now time.Time) *rate.Limiter {
	if lim, ok := l.limiters[key]; ok {
		return lim
	}
	if len(l.limiters) >= l.maxKeys && now.Sub(l.lastPrune) >= pruneEvery {
		l.lastPrune = now
		for k, lim := range l.limiters {
			if lim.TokensAt(now) >= float64(l.burst) {
				delete(l.limiters, k)
			}
		}
	}
	if len(l.limiters) >= l.maxKeys {
		return l.overflow
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.limiters[key] = lim
	return lim
}

// Middleware ограничивает частоту запросов по заголовку X-Agent-API-Key
func (l *KeyRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(r.Header.Get(HeaderAPIKey)) {
			l.metrics.RateLimited.Inc()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "rate_limited", "message": "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
