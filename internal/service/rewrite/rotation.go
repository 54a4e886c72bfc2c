package rewrite

import (
	"context"
	"strings"
	"sync"
	"time"

	"cvtailor/internal/redis"
)

// Quota failures are recognized by substring; provider SDKs do not expose a
// stable error type for them.
var quotaMarkers = []string{
	"quota",
	"rate limit",
	"429",
	"exceeded",
	"resource exhausted",
}

// isQuotaError classifies an error as quota/rate-limit exhaustion.
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// CooldownStore remembers which candidates recently exhausted their quota.
type CooldownStore interface {
	// MarkExhausted starts the cooldown window for the candidate key.
	MarkExhausted(ctx context.Context, key string)
	// InCooldown reports whether the candidate is still inside its window.
	InCooldown(ctx context.Context, key string) bool
}

const cooldownKeyPrefix = "rewrite:cooldown:"

// redisCooldowns keeps cooldown state in Redis so every instance sees the
// same exclusions. Redis errors degrade to "not cooling": a lost cooldown
// only costs one extra failed call.
type redisCooldowns struct {
	client *redis.Client
	window time.Duration
}

// NewRedisCooldowns builds a Redis-backed CooldownStore.
func NewRedisCooldowns(client *redis.Client, window time.Duration) CooldownStore {
	return &redisCooldowns{client: client, window: window}
}

func (r *redisCooldowns) MarkExhausted(ctx context.Context, key string) {
	_ = r.client.Set(ctx, cooldownKeyPrefix+key, time.Now().UTC().Format(time.RFC3339), r.window)
}

func (r *redisCooldowns) InCooldown(ctx context.Context, key string) bool {
	_, err := r.client.Get(ctx, cooldownKeyPrefix+key)
	return err == nil
}

// memoryCooldowns is the in-process fallback used when Redis is not
// configured, and in tests.
type memoryCooldowns struct {
	mu     sync.Mutex
	marked map[string]time.Time
	window time.Duration
}

// NewMemoryCooldowns builds an in-process CooldownStore.
func NewMemoryCooldowns(window time.Duration) CooldownStore {
	return &memoryCooldowns{marked: make(map[string]time.Time), window: window}
}

func (m *memoryCooldowns) MarkExhausted(_ context.Context, key string) {
	m.mu.Lock()
	m.marked[key] = time.Now()
	m.mu.Unlock()
}

func (m *memoryCooldowns) InCooldown(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.marked[key]
	if !ok {
		return false
	}
	if time.Since(at) >= m.window {
		delete(m.marked, key)
		return false
	}
	return true
}
