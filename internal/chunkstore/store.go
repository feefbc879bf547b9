// Package chunkstore держит загруженные чанки в памяти и подгружает
// недостающие из постоянного хранилища или генератора.
//
// Загрузка одного чанка выполняется не более одного раза одновременно:
// параллельные запросы той же координаты ждут первый и получают тот же
// экземпляр. Разные координаты загружаются параллельно.
package chunkstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/annel0/voxelworld/internal/coords"
	"github.com/annel0/voxelworld/internal/generator"
	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
)

// Source откуда был получен чанк
type Source string

const (
	SourceStorage   Source = "storage"
	SourceGenerator Source = "generator"
)

const tracerName = "github.com/annel0/voxelworld/internal/chunkstore"

// ErrNoGenerator возвращается, если хранилище создаётся без генератора
var ErrNoGenerator = errors.New("chunkstore: generator is required")

// Persistence постоянное хранилище чанков
type Persistence[C world.Chunk] interface {
	// LoadChunk заполняет пустой чанк сохранёнными данными; false, если их нет
	LoadChunk(chunk C) (bool, error)
	// SaveChunk сохраняет чанк
	SaveChunk(chunk C) error
}

// ChunkLoadFunc вызывается после того, как чанк стал резидентным
type ChunkLoadFunc[C world.Chunk] func(chunk C, source Source)

// changeTracker чанки, отслеживающие несохранённые изменения
type changeTracker interface {
	ClearChanges()
}

// Options параметры MemoryStore
type Options[C world.Chunk] struct {
	Generator   *generator.Generator[C]
	Persistence Persistence[C] // nil: чанки живут только в памяти
	Metrics     *Metrics       // nil: без метрик
	SpawnSearch vec.Vec3       // Колонка, в которой ищется точка появления
	SpawnPoint  *vec.Vec3      // Явная точка появления вместо поиска
}

var _ world.ChunkLoader[*world.DenseChunk] = (*MemoryStore[*world.DenseChunk])(nil)

// MemoryStore хранилище резидентных чанков
type MemoryStore[C world.Chunk] struct {
	gen     *generator.Generator[C]
	persist Persistence[C]
	metrics *Metrics
	spawn   vec.Vec3

	mu     sync.RWMutex
	chunks map[coords.ChunkCoord]C
	group  singleflight.Group

	hooksMu sync.RWMutex
	onLoad  []ChunkLoadFunc[C]
}

// NewMemoryStore создаёт хранилище
func NewMemoryStore[C world.Chunk](opts Options[C]) (*MemoryStore[C], error) {
	if opts.Generator == nil {
		return nil, ErrNoGenerator
	}

	s := &MemoryStore[C]{
		gen:     opts.Generator,
		persist: opts.Persistence,
		metrics: opts.Metrics,
		chunks:  make(map[coords.ChunkCoord]C),
	}

	if opts.SpawnPoint != nil {
		s.spawn = *opts.SpawnPoint
	} else {
		s.spawn = opts.Generator.FindSpawnPoint(opts.SpawnSearch)
	}
	return s, nil
}

// SpawnPoint возвращает точку появления
func (s *MemoryStore[C]) SpawnPoint() vec.Vec3 {
	return s.spawn
}

// HasChunk проверяет, загружен ли чанк
func (s *MemoryStore[C]) HasChunk(c coords.ChunkCoord) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chunks[c]
	return ok
}

// GetChunk возвращает загруженный чанк
func (s *MemoryStore[C]) GetChunk(c coords.ChunkCoord) (C, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[c]
	return chunk, ok
}

// LoadChunk возвращает чанк, при необходимости загружая его из хранилища
// или генерируя. Повторный вызов для резидентного чанка ничего не делает.
func (s *MemoryStore[C]) LoadChunk(ctx context.Context, c coords.ChunkCoord) (C, error) {
	if chunk, ok := s.GetChunk(c); ok {
		s.metrics.hit()
		return chunk, nil
	}

	var zero C
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	v, err, _ := s.group.Do(c.String(), func() (interface{}, error) {
		// Чанк мог появиться, пока мы ждали
		if chunk, ok := s.GetChunk(c); ok {
			return chunk, nil
		}

		_, span := otel.Tracer(tracerName).Start(ctx, "chunkstore.load")
		defer span.End()
		span.SetAttributes(
			attribute.Int("chunk.x", c.X),
			attribute.Int("chunk.y", c.Y),
			attribute.Int("chunk.z", c.Z),
		)

		chunk, source, err := s.produce(c)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		span.SetAttributes(attribute.String("chunk.source", string(source)))

		s.mu.Lock()
		s.chunks[c] = chunk
		resident := len(s.chunks)
		s.mu.Unlock()

		s.metrics.loaded(source)
		s.metrics.setResident(resident)
		logging.LogChunkLoad(c.X, c.Y, c.Z, string(source))
		s.notifyLoad(chunk, source)
		return chunk, nil
	})
	if err != nil {
		s.metrics.failed()
		return zero, fmt.Errorf("load %v: %w", c, err)
	}
	return v.(C), nil
}

// produce получает новый чанк из постоянного хранилища или генератора
func (s *MemoryStore[C]) produce(c coords.ChunkCoord) (C, Source, error) {
	if s.persist != nil {
		chunk := s.gen.Factory().NewChunk(c)
		found, err := s.persist.LoadChunk(chunk)
		if err != nil {
			var zero C
			return zero, "", err
		}
		if found {
			return chunk, SourceStorage, nil
		}
	}

	started := time.Now()
	chunk := s.gen.GenerateChunk(c)
	s.metrics.observeGenerate(time.Since(started).Seconds())

	// Сгенерированный чанк воспроизводим, сохранять его не нужно
	if tracker, ok := any(chunk).(changeTracker); ok {
		tracker.ClearChanges()
	}
	return chunk, SourceGenerator, nil
}

// OnChunkLoad регистрирует обработчик загрузки чанков
func (s *MemoryStore[C]) OnChunkLoad(fn ChunkLoadFunc[C]) {
	s.hooksMu.Lock()
	s.onLoad = append(s.onLoad, fn)
	s.hooksMu.Unlock()
}

func (s *MemoryStore[C]) notifyLoad(chunk C, source Source) {
	s.hooksMu.RLock()
	hooks := make([]ChunkLoadFunc[C], len(s.onLoad))
	copy(hooks, s.onLoad)
	s.hooksMu.RUnlock()

	for _, fn := range hooks {
		fn(chunk, source)
	}
}

// Unload сохраняет и выгружает чанк. Если сохранить не удалось, чанк
// остаётся в памяти.
func (s *MemoryStore[C]) Unload(c coords.ChunkCoord) error {
	chunk, ok := s.GetChunk(c)
	if !ok {
		return nil
	}

	if s.persist != nil {
		if err := s.persist.SaveChunk(chunk); err != nil {
			return fmt.Errorf("save %v: %w", c, err)
		}
	}

	s.mu.Lock()
	delete(s.chunks, c)
	resident := len(s.chunks)
	s.mu.Unlock()

	s.metrics.unloaded()
	s.metrics.setResident(resident)
	return nil
}

// EvictOutside выгружает все чанки, для которых keep возвращает false.
// Возвращает количество выгруженных чанков.
func (s *MemoryStore[C]) EvictOutside(keep func(coords.ChunkCoord) bool) (int, error) {
	var errs []error
	evicted := 0
	for _, c := range s.Resident() {
		if keep(c) {
			continue
		}
		if err := s.Unload(c); err != nil {
			errs = append(errs, err)
			continue
		}
		evicted++
	}
	return evicted, errors.Join(errs...)
}

// SaveAll сохраняет все резидентные чанки, не выгружая их
func (s *MemoryStore[C]) SaveAll() error {
	if s.persist == nil {
		return nil
	}

	var errs []error
	for _, c := range s.Resident() {
		chunk, ok := s.GetChunk(c)
		if !ok {
			continue
		}
		if err := s.persist.SaveChunk(chunk); err != nil {
			errs = append(errs, fmt.Errorf("save %v: %w", c, err))
		}
	}
	return errors.Join(errs...)
}

// ResidentCount возвращает количество загруженных чанков
func (s *MemoryStore[C]) ResidentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Resident возвращает координаты загруженных чанков
func (s *MemoryStore[C]) Resident() []coords.ChunkCoord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]coords.ChunkCoord, 0, len(s.chunks))
	for c := range s.chunks {
		out = append(out, c)
	}
	return out
}

// NearAgents возвращает предикат для EvictOutside: чанк остаётся, если он
// попадает в диапазон стриминга хотя бы одного агента.
func NearAgents(agents []world.Agent, radius int, chunkSize vec.Vec3) func(coords.ChunkCoord) bool {
	type span struct{ start, end coords.ChunkCoord }
	spans := make([]span, 0, len(agents))
	for _, a := range agents {
		start, end := coords.StreamingRange(a.Location(), radius, chunkSize)
		spans = append(spans, span{start, end})
	}

	return func(c coords.ChunkCoord) bool {
		for _, sp := range spans {
			if coords.InRange(c, sp.start, sp.end) {
				return true
			}
		}
		return false
	}
}
