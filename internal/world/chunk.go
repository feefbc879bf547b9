package world

import (
	"fmt"
	"sync"

	"github.com/annel0/voxelworld/internal/coords"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world/block"
)

// Chunk описывает возможности чанка, которыми пользуются мир, хранилище и
// генератор. Конкретное представление выбирается при сборке через
// параметр типа, а не через интерфейс во время выполнения.
type Chunk interface {
	// Size возвращает размер чанка в блоках
	Size() vec.Vec3
	// Location возвращает координаты чанка
	Location() coords.ChunkCoord
	// BlockAt возвращает блок по локальным координатам; вне чанка - воздух
	BlockAt(x, y, z int) block.BlockID
	// SetBlockAt устанавливает блок; false, если смещение вне чанка
	SetBlockAt(x, y, z int, id block.BlockID) bool
}

// BlockSwapper чанк, умеющий атомарно заменить блок. Мир использует его,
// чтобы наблюдатели получали согласованную пару (прежний, новый).
type BlockSwapper interface {
	// SwapBlockAt устанавливает блок и возвращает прежний; false, если
	// смещение вне чанка
	SwapBlockAt(x, y, z int, id block.BlockID) (block.BlockID, bool)
}

// ChunkFactory создаёт пустые (заполненные воздухом) чанки одного размера
type ChunkFactory[C Chunk] interface {
	NewChunk(coords coords.ChunkCoord) C
	ChunkSize() vec.Vec3
}

var _ BlockSwapper = (*DenseChunk)(nil)

// DenseChunk чанк с плоским массивом блоков
type DenseChunk struct {
	coords coords.ChunkCoord // Координаты чанка в мире
	size   vec.Vec3

	blocks        []block.BlockID
	changeCounter int          // Счетчик изменений с последнего сохранения
	mu            sync.RWMutex // Запись сериализуется, чтение параллельно
}

// NewDenseChunk создаёт чанк, заполненный воздухом
func NewDenseChunk(c coords.ChunkCoord, size vec.Vec3) *DenseChunk {
	return &DenseChunk{
		coords: c,
		size:   size,
		blocks: make([]block.BlockID, size.Volume()),
	}
}

// Size возвращает размер чанка
func (c *DenseChunk) Size() vec.Vec3 {
	return c.size
}

// Location возвращает координаты чанка
func (c *DenseChunk) Location() coords.ChunkCoord {
	return c.coords
}

func (c *DenseChunk) index(x, y, z int) (int, bool) {
	if x < 0 || y < 0 || z < 0 || x >= c.size.X || y >= c.size.Y || z >= c.size.Z {
		return 0, false
	}
	return (y*c.size.Z+z)*c.size.X + x, true
}

// BlockAt возвращает ID блока по локальным координатам
func (c *DenseChunk) BlockAt(x, y, z int) block.BlockID {
	i, ok := c.index(x, y, z)
	if !ok {
		return block.AirBlockID
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[i]
}

// SetBlockAt устанавливает блок по локальным координатам
func (c *DenseChunk) SetBlockAt(x, y, z int, id block.BlockID) bool {
	i, ok := c.index(x, y, z)
	if !ok {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.blocks[i] = id
	c.changeCounter++
	return true
}

// SwapBlockAt устанавливает блок и возвращает прежний под одной блокировкой
func (c *DenseChunk) SwapBlockAt(x, y, z int, id block.BlockID) (block.BlockID, bool) {
	i, ok := c.index(x, y, z)
	if !ok {
		return block.AirBlockID, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	previous := c.blocks[i]
	c.blocks[i] = id
	c.changeCounter++
	return previous, true
}

// Fill заполняет весь чанк одним блоком
func (c *DenseChunk) Fill(id block.BlockID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.blocks {
		c.blocks[i] = id
	}
	c.changeCounter++
}

// Blocks возвращает копию буфера блоков
func (c *DenseChunk) Blocks() []block.BlockID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]block.BlockID, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// LoadBlocks заменяет буфер блоков (например, при загрузке из хранилища).
// Счётчик изменений при этом сбрасывается.
func (c *DenseChunk) LoadBlocks(blocks []block.BlockID) error {
	if len(blocks) != len(c.blocks) {
		return fmt.Errorf("размер буфера %d не совпадает с размером чанка %d", len(blocks), len(c.blocks))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	copy(c.blocks, blocks)
	c.changeCounter = 0
	return nil
}

// NonAirCount возвращает количество блоков, отличных от воздуха
func (c *DenseChunk) NonAirCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, id := range c.blocks {
		if id != block.AirBlockID {
			n++
		}
	}
	return n
}

// HasChanges возвращает true, если в чанке есть несохранённые изменения
func (c *DenseChunk) HasChanges() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.changeCounter > 0
}

// ClearChanges сбрасывает счётчик изменений
func (c *DenseChunk) ClearChanges() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.changeCounter = 0
}

// ChangeCount возвращает количество изменений с последнего сброса
func (c *DenseChunk) ChangeCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.changeCounter
}

// DenseChunkFactory создаёт DenseChunk заданного размера
type DenseChunkFactory struct {
	Size vec.Vec3
}

// NewDenseChunkFactory создаёт фабрику
func NewDenseChunkFactory(size vec.Vec3) DenseChunkFactory {
	return DenseChunkFactory{Size: size}
}

// NewChunk создаёт пустой чанк
func (f DenseChunkFactory) NewChunk(c coords.ChunkCoord) *DenseChunk {
	return NewDenseChunk(c, f.Size)
}

// ChunkSize возвращает размер создаваемых чанков
func (f DenseChunkFactory) ChunkSize() vec.Vec3 {
	return f.Size
}
