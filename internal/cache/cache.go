package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Cache — кэш представлений для чтения. Потребители ленты изменений
// инвалидируют его по префиксу ключа; источником истины остаётся хранилище.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	InvalidateByPrefix(ctx context.Context, prefix string)
}

// MemoryCache хранит значения в памяти процесса с TTL.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]*memoryEntry
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryCache создаёт кэш и запускает фоновую очистку просроченных записей.
func NewMemoryCache() *MemoryCache {
	mc := &MemoryCache{items: make(map[string]*memoryEntry)}
	go mc.cleanup()
	return mc
}

// Get возвращает значение, если оно есть и не просрочено.
func (mc *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	entry, ok := mc.items[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

// Set сохраняет значение с TTL.
func (mc *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.items[key] = &memoryEntry{data: value, expiresAt: time.Now().Add(ttl)}
}

// InvalidateByPrefix удаляет все ключи с заданным префиксом.
func (mc *MemoryCache) InvalidateByPrefix(_ context.Context, prefix string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for key := range mc.items {
		if strings.HasPrefix(key, prefix) {
			delete(mc.items, key)
		}
	}
}

func (mc *MemoryCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		mc.mu.Lock()
		for key, entry := range mc.items {
			if now.After(entry.expiresAt) {
				delete(mc.items, key)
			}
		}
		mc.mu.Unlock()
	}
}
