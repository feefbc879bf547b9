package world

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/annel0/voxelworld/internal/coords"
	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world/block"
)

// DefaultStreamingRadius радиус подгрузки вокруг агента в блоках
const DefaultStreamingRadius = 128

// ChunkLoader хранилище чанков, которым пользуется мир. Реализации сами
// решают, откуда берётся чанк (кэш, диск, генератор).
type ChunkLoader[C Chunk] interface {
	// HasChunk проверяет, загружен ли чанк в память
	HasChunk(c coords.ChunkCoord) bool
	// GetChunk возвращает загруженный чанк; false, если чанка нет в памяти
	GetChunk(c coords.ChunkCoord) (C, bool)
	// LoadChunk гарантирует, что чанк загружен, и возвращает его
	LoadChunk(ctx context.Context, c coords.ChunkCoord) (C, error)
	// SpawnPoint возвращает начальную точку появления
	SpawnPoint() vec.Vec3
}

// Config параметры создания мира. Seed, ChunkFactory и ChunkLoader обязательны.
type Config[C Chunk] struct {
	Seed            *int64
	ChunkFactory    ChunkFactory[C]
	ChunkLoader     ChunkLoader[C]
	StreamingRadius int               // 0 означает DefaultStreamingRadius
	Validator       LocationValidator // nil означает Unbounded
	Registry        *block.Registry   // nil отключает проверку ID блоков
}

// TickStats итоги одного тика
type TickStats struct {
	Tick     uint64
	TickRate int
	Agents   int
	Requests int // Запросов загрузки чанков
	Failures int
	Duration time.Duration
}

// World воксельный мир: доступ к блокам по мировым координатам и
// подгрузка чанков вокруг агентов.
type World[C Chunk] struct {
	seed      int64
	factory   ChunkFactory[C]
	loader    ChunkLoader[C]
	chunkSize vec.Vec3
	radius    int
	validator LocationValidator
	registry  *block.Registry

	spawnMu    sync.RWMutex
	spawnPoint vec.Vec3

	agents    agentSet
	observers observerList

	writeMu sync.Mutex // Для чанков без SwapBlockAt

	tickMu      sync.Mutex // Тики не выполняются параллельно
	statsMu     sync.RWMutex
	currentTick uint64
	lastTick    TickStats
}

// New проверяет конфигурацию и создаёт мир
func New[C Chunk](cfg Config[C]) (*World[C], error) {
	var missing []string
	if cfg.Seed == nil {
		missing = append(missing, "seed")
	}
	if cfg.ChunkFactory == nil {
		missing = append(missing, "chunk factory")
	}
	if cfg.ChunkLoader == nil {
		missing = append(missing, "chunk loader")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrIncompleteConfig, strings.Join(missing, ", "))
	}

	size := cfg.ChunkFactory.ChunkSize()
	if !size.AllPositive() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChunkSize, size)
	}

	radius := cfg.StreamingRadius
	if radius < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRadius, radius)
	}
	if radius == 0 {
		radius = DefaultStreamingRadius
	}

	validator := cfg.Validator
	if validator == nil {
		validator = Unbounded{}
	}

	w := &World[C]{
		seed:       *cfg.Seed,
		factory:    cfg.ChunkFactory,
		loader:     cfg.ChunkLoader,
		chunkSize:  size,
		radius:     radius,
		validator:  validator,
		registry:   cfg.Registry,
		spawnPoint: cfg.ChunkLoader.SpawnPoint(),
	}

	logging.Info("Мир создан: seed=%d, chunk=%v, radius=%d, spawn=%v", w.seed, size, radius, w.spawnPoint)
	return w, nil
}

// Seed возвращает сид мира
func (w *World[C]) Seed() int64 { return w.seed }

// ChunkSize возвращает размер чанка
func (w *World[C]) ChunkSize() vec.Vec3 { return w.chunkSize }

// StreamingRadius возвращает радиус подгрузки в блоках
func (w *World[C]) StreamingRadius() int { return w.radius }

// Registry возвращает реестр блоков (может быть nil)
func (w *World[C]) Registry() *block.Registry { return w.registry }

// ChunkFactory возвращает фабрику чанков
func (w *World[C]) ChunkFactory() ChunkFactory[C] { return w.factory }

// ChunkLoader возвращает хранилище чанков
func (w *World[C]) ChunkLoader() ChunkLoader[C] { return w.loader }

// ToBlockLocation привязывает мировые координаты к размеру чанка мира
func (w *World[C]) ToBlockLocation(pos vec.Vec3) coords.BlockLocation {
	return coords.NewBlockLocation(pos, w.chunkSize)
}

// ToChunkCoord возвращает координаты чанка, содержащего позицию
func (w *World[C]) ToChunkCoord(pos vec.Vec3) coords.ChunkCoord {
	return coords.ToChunkCoord(pos, w.chunkSize)
}

// IsChunkLoaded проверяет, загружен ли чанк, содержащий позицию
func (w *World[C]) IsChunkLoaded(pos vec.Vec3) bool {
	return w.loader.HasChunk(w.ToChunkCoord(pos))
}

// ChunkAt возвращает загруженный чанк, содержащий позицию
func (w *World[C]) ChunkAt(pos vec.Vec3) (C, bool) {
	return w.loader.GetChunk(w.ToChunkCoord(pos))
}

// LoadChunk загружает чанк через хранилище
func (w *World[C]) LoadChunk(ctx context.Context, c coords.ChunkCoord) (C, error) {
	return w.loader.LoadChunk(ctx, c)
}

// BlockAt возвращает блок в мировой позиции. Для недопустимой позиции и
// незагруженного чанка возвращается воздух, загрузка не запускается.
func (w *World[C]) BlockAt(pos vec.Vec3) block.BlockID {
	if !w.validator.IsValid(pos) {
		return block.AirBlockID
	}
	loc := w.ToBlockLocation(pos)
	chunk, ok := w.loader.GetChunk(loc.Chunk())
	if !ok {
		return block.AirBlockID
	}
	local := loc.Local()
	return chunk.BlockAt(local.X, local.Y, local.Z)
}

// SetBlockAt устанавливает блок в мировой позиции. Возвращает false, если
// чанк не загружен, позиция недопустима или ID блока неизвестен реестру.
// Наблюдатели уведомляются только об успешных изменениях.
func (w *World[C]) SetBlockAt(pos vec.Vec3, id block.BlockID) bool {
	if !w.validator.IsValid(pos) {
		return false
	}
	if w.registry != nil && !w.registry.IsValid(id) {
		logging.Debug("SetBlockAt %v: неизвестный блок %d", pos, id)
		return false
	}

	loc := w.ToBlockLocation(pos)
	chunk, ok := w.loader.GetChunk(loc.Chunk())
	if !ok {
		return false
	}

	local := loc.Local()
	previous, ok := w.swapBlock(chunk, local, id)
	if !ok {
		return false
	}

	w.observers.notify(BlockUpdate{
		Location: loc,
		Previous: previous,
		Current:  id,
		Time:     time.Now(),
	})
	return true
}

// swapBlock записывает блок и возвращает прежний так, что между чтением и
// записью никто другой не меняет этот блок
func (w *World[C]) swapBlock(chunk C, local coords.LocalOffset, id block.BlockID) (block.BlockID, bool) {
	if s, ok := any(chunk).(BlockSwapper); ok {
		return s.SwapBlockAt(local.X, local.Y, local.Z, id)
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	previous := chunk.BlockAt(local.X, local.Y, local.Z)
	if !chunk.SetBlockAt(local.X, local.Y, local.Z, id) {
		return block.AirBlockID, false
	}
	return previous, true
}

// OnBlockUpdate подписывает наблюдателя на изменения блоков.
// Возвращает функцию отписки.
func (w *World[C]) OnBlockUpdate(fn BlockUpdateFunc) func() {
	return w.observers.add(fn)
}

// IsValidBlockLocation проверяет, допустима ли позиция для блока
func (w *World[C]) IsValidBlockLocation(pos vec.Vec3) bool {
	return w.validator.IsValid(pos)
}

// HasInvalidLocations сообщает, ограничен ли мир
func (w *World[C]) HasInvalidLocations() bool {
	return w.validator.HasInvalidLocations()
}

// SpawnPoint возвращает точку появления
func (w *World[C]) SpawnPoint() vec.Vec3 {
	w.spawnMu.RLock()
	defer w.spawnMu.RUnlock()
	return w.spawnPoint
}

// SetSpawnPoint меняет точку появления
func (w *World[C]) SetSpawnPoint(pos vec.Vec3) {
	w.spawnMu.Lock()
	w.spawnPoint = pos
	w.spawnMu.Unlock()
}

// JoinAgent добавляет агента; повторное добавление, nil и несравнимые
// агенты отклоняются (false)
func (w *World[C]) JoinAgent(a Agent) bool {
	return w.agents.join(a)
}

// LeaveAgent удаляет агента
func (w *World[C]) LeaveAgent(a Agent) bool {
	return w.agents.leave(a)
}

// Agents возвращает копию списка агентов
func (w *World[C]) Agents() []Agent {
	return w.agents.snapshot()
}

// Tick выполняет один шаг мира: для каждого агента запрашивает загрузку
// всех чанков в кубе радиуса стриминга вокруг него. Диапазон включительный
// с обеих сторон. Запросы не дедуплицируются между агентами, повторные
// загрузки отсекает хранилище. Ошибка загрузки отдельного чанка
// логируется и не прерывает тик. Отмена ctx прерывает тик.
func (w *World[C]) Tick(ctx context.Context, tickRate int) error {
	if tickRate <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTickRate, tickRate)
	}

	w.tickMu.Lock()
	defer w.tickMu.Unlock()

	started := time.Now()
	agents := w.agents.snapshot()
	stats := TickStats{TickRate: tickRate, Agents: len(agents)}

	var tickErr error
	for _, agent := range agents {
		start, end := coords.StreamingRange(agent.Location(), w.radius, w.chunkSize)

		coords.ForEachInRange(start, end, func(c coords.ChunkCoord) bool {
			if err := ctx.Err(); err != nil {
				tickErr = err
				return false
			}

			stats.Requests++
			if _, err := w.loader.LoadChunk(ctx, c); err != nil {
				stats.Failures++
				logging.Warn("Не удалось загрузить %v: %v", c, err)
			}
			return true
		})

		if tickErr != nil {
			break
		}
	}

	stats.Duration = time.Since(started)

	w.statsMu.Lock()
	w.currentTick++
	stats.Tick = w.currentTick
	w.lastTick = stats
	w.statsMu.Unlock()

	if stats.Failures > 0 {
		logging.Warn("Тик %d: %d из %d загрузок завершились ошибкой", stats.Tick, stats.Failures, stats.Requests)
	} else {
		logging.Trace("Тик %d: агентов %d, запросов %d, %v", stats.Tick, stats.Agents, stats.Requests, stats.Duration)
	}

	return tickErr
}

// LastTick возвращает итоги последнего тика
func (w *World[C]) LastTick() TickStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	return w.lastTick
}

// CurrentTick возвращает номер последнего выполненного тика
func (w *World[C]) CurrentTick() uint64 {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	return w.currentTick
}
