package admission

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore — атомарный счётчик с TTL.
//
// Incr инкрементирует ключ и возвращает значение после инкремента.
// TTL выставляется при первом инкременте ключа и не продлевается.
type CounterStore interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RedisStore — CounterStore поверх Redis.
// INCR и EXPIRE NX идут одним TxPipeline, поэтому гонка между
// процессами не оставляет ключ без TTL и не теряет инкременты.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore создаёт RedisStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Incr атомарно инкрементирует ключ.
func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// MemoryStore — CounterStore в памяти процесса.
// Для разработки и тестов; в проде счётчики обязаны быть разделяемыми.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry

	// now подменяется в тестах.
	now func() time.Time
}

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryStore создаёт пустой MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// Incr инкрементирует ключ, лениво удаляя истёкшие записи.
func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	entry, ok := s.entries[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &memoryEntry{expiresAt: now.Add(ttl)}
		s.entries[key] = entry
	}

	entry.count++
	return entry.count, nil
}
