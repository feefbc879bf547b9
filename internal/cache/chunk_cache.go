package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/annel0/voxelworld/internal/chunkstore"
	"github.com/annel0/voxelworld/internal/coords"
	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/storage"
	"github.com/annel0/voxelworld/internal/world"
)

const chunkKeyPrefix = "voxel:chunk:"

var _ chunkstore.Persistence[*world.DenseChunk] = (*ChunkCache)(nil)

// ChunkCache кеширует сериализованные чанки перед постоянным хранилищем.
// Ошибки кеша не фатальны: при любой проблеме чтение идёт в хранилище.
type ChunkCache struct {
	backend Backend
	cold    chunkstore.Persistence[*world.DenseChunk]
	ttl     time.Duration

	requests atomic.Int64
	hits     atomic.Int64
	misses   atomic.Int64
	errors   atomic.Int64
}

// NewChunkCache оборачивает cold горячим кешем backend. ttl <= 0 заменяется
// на DefaultTTL.
func NewChunkCache(backend Backend, cold chunkstore.Persistence[*world.DenseChunk], ttl time.Duration) *ChunkCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ChunkCache{
		backend: backend,
		cold:    cold,
		ttl:     ttl,
	}
}

// ChunkKey ключ чанка в кеше
func ChunkKey(c coords.ChunkCoord) string {
	return fmt.Sprintf("%s%d:%d:%d", chunkKeyPrefix, c.X, c.Y, c.Z)
}

// LoadChunk читает чанк из кеша, при промахе из хранилища (Read-Through)
func (c *ChunkCache) LoadChunk(chunk *world.DenseChunk) (bool, error) {
	c.requests.Add(1)
	key := ChunkKey(chunk.Location())

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, err := c.backend.Get(ctx, key)
	switch {
	case err == nil:
		if c.fill(chunk, data) {
			c.hits.Add(1)
			return true, nil
		}
		// Запись повреждена или другого размера
		c.errors.Add(1)
		logging.Warn("Повреждённая запись кеша %s", key)
		if err := c.backend.Delete(ctx, key); err != nil {
			c.errors.Add(1)
			logging.Warn("Не удалось удалить повреждённую запись %s: %v", key, err)
		}
	case IsCacheMiss(err):
	default:
		c.errors.Add(1)
		logging.Warn("Кеш чанков недоступен для %s: %v", key, err)
	}
	c.misses.Add(1)

	found, err := c.cold.LoadChunk(chunk)
	if err != nil || !found {
		return found, err
	}

	c.put(ctx, key, chunk)
	return true, nil
}

// SaveChunk сохраняет чанк в хранилище и обновляет кеш (Write-Through)
func (c *ChunkCache) SaveChunk(chunk *world.DenseChunk) error {
	if chunk.ChangeCount() == 0 {
		return nil
	}

	key := ChunkKey(chunk.Location())
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// Снимок до записи: хранилище сбрасывает счётчик изменений
	raw, err := storage.EncodeBlocks(chunk.Size(), chunk.Blocks())
	if err != nil {
		return err
	}

	// Старая копия не должна пережить неудачное сохранение
	if err := c.backend.Delete(ctx, key); err != nil {
		c.errors.Add(1)
		logging.Warn("Не удалось инвалидировать %s: %v", key, err)
	}

	if err := c.cold.SaveChunk(chunk); err != nil {
		return err
	}

	if err := c.backend.Set(ctx, key, raw, c.ttl); err != nil {
		c.errors.Add(1)
		logging.Warn("Не удалось записать %s в кеш: %v", key, err)
	}
	return nil
}

// Invalidate удаляет чанк из кеша
func (c *ChunkCache) Invalidate(ctx context.Context, loc coords.ChunkCoord) error {
	return c.backend.Delete(ctx, ChunkKey(loc))
}

// GetMetrics возвращает снимок метрик кеша
func (c *ChunkCache) GetMetrics() CacheMetrics {
	m := CacheMetrics{
		TotalRequests: c.requests.Load(),
		CacheHits:     c.hits.Load(),
		CacheMisses:   c.misses.Load(),
		Errors:        c.errors.Load(),
	}
	if m.TotalRequests > 0 {
		m.HitRatio = float64(m.CacheHits) / float64(m.TotalRequests)
	}
	return m
}

// Close закрывает горячий кеш. Хранилище закрывает его владелец.
func (c *ChunkCache) Close() error {
	return c.backend.Close()
}

func (c *ChunkCache) put(ctx context.Context, key string, chunk *world.DenseChunk) {
	raw, err := storage.EncodeBlocks(chunk.Size(), chunk.Blocks())
	if err == nil {
		err = c.backend.Set(ctx, key, raw, c.ttl)
	}
	if err != nil {
		c.errors.Add(1)
		logging.Debug("Чанк %s не попал в кеш: %v", key, err)
	}
}

func (c *ChunkCache) fill(chunk *world.DenseChunk, data []byte) bool {
	size, blocks, err := storage.DecodeBlocks(data)
	if err != nil || size != chunk.Size() {
		return false
	}
	return chunk.LoadBlocks(blocks) == nil
}
