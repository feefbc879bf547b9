// Package cache горячий кеш сериализованных чанков перед постоянным
// хранилищем. Поддерживает Read-Through и Write-Through: промах читается
// из постоянного хранилища и кладётся в кеш, сохранение пишет в обе стороны.
package cache

import (
	"context"
	"errors"
	"time"
)

// Backend хранилище горячего кеша (Redis или память процесса)
type Backend interface {
	// Get возвращает значение или ErrCacheMiss
	Get(ctx context.Context, key string) ([]byte, error)

	// Set сохраняет значение с TTL. TTL = 0 означает отсутствие истечения.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete удаляет ключ; отсутствие ключа не ошибка
	Delete(ctx context.Context, key string) error

	// Close закрывает соединение
	Close() error
}

// CacheConfig содержит конфигурацию кеша
type CacheConfig struct {
	// Redis конфигурация
	RedisURL      string `yaml:"redis_url"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// TTL записи чанка в кеше
	TTL time.Duration `yaml:"ttl"`

	// Производительность
	MaxConnections int           `yaml:"max_connections"`
	PoolTimeout    time.Duration `yaml:"pool_timeout"`
}

// Значения по умолчанию
const (
	DefaultTTL            = 10 * time.Minute
	DefaultMaxConnections = 10
	DefaultPoolTimeout    = 30 * time.Second
	opTimeout             = 5 * time.Second
)

// ErrCacheMiss ключ отсутствует в кеше
var ErrCacheMiss = errors.New("cache miss")

// IsCacheMiss проверяет, является ли ошибка промахом кеша
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// CacheMetrics содержит метрики кеша
type CacheMetrics struct {
	TotalRequests int64   `json:"total_requests"`
	CacheHits     int64   `json:"cache_hits"`
	CacheMisses   int64   `json:"cache_misses"`
	Errors        int64   `json:"errors"`
	HitRatio      float64 `json:"hit_ratio"`
}
