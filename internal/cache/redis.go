package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/timecraft/timebank-backend/internal/logger"
)

// RedisCache — кэш поверх Redis, общий для нескольких экземпляров сервиса.
type RedisCache struct {
	rdb *redis.Client
}

// ConnectRedis подключается к Redis. Пустой адрес отключает внешний кэш.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

// NewRedisCache создаёт кэш поверх готового клиента.
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

// Get возвращает значение по ключу.
func (rc *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := rc.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return raw, true
}

// Set сохраняет значение с TTL. Ошибки записи не критичны и только логируются.
func (rc *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := rc.rdb.Set(ctx, key, value, ttl).Err(); err != nil && logger.Log != nil {
		logger.Log.WithField("key", key).Warnf("cache: не удалось записать в redis: %v", err)
	}
}

// InvalidateByPrefix удаляет ключи по префиксу через SCAN.
func (rc *RedisCache) InvalidateByPrefix(ctx context.Context, prefix string) {
	iter := rc.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := rc.rdb.Del(ctx, iter.Val()).Err(); err != nil && logger.Log != nil {
			logger.Log.WithField("key", iter.Val()).Warnf("cache: не удалось удалить ключ: %v", err)
		}
	}
	if err := iter.Err(); err != nil && logger.Log != nil {
		logger.Log.Warnf("cache: ошибка scan по префиксу %s: %v", prefix, err)
	}
}
