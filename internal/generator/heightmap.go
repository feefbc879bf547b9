package generator

import (
	"math"

	"github.com/annel0/voxelworld/internal/noise"
	"github.com/annel0/voxelworld/internal/world"
	"github.com/annel0/voxelworld/internal/world/block"
)

// Константы карты высот. Подобраны под шум в диапазоне [-1, 1]:
// поверхность колеблется примерно от -31 до 33.
const (
	HeightScale = 32 // Множитель значения шума
	HeightBias  = 1  // Смещение поверхности
	DirtDepth   = 4  // Глубина, с которой начинается камень
)

// Heightmap заполняет чанк по карте высот из двумерного шума:
// трава на поверхности, под ней слой земли, ниже камень.
type Heightmap[C world.Chunk] struct {
	field noise.Field
}

// NewHeightmap создаёт стратегию карты высот
func NewHeightmap[C world.Chunk](field noise.Field) *Heightmap[C] {
	return &Heightmap[C]{field: field}
}

// NewHeightmapGenerator собирает генератор с картой высот
func NewHeightmapGenerator[C world.Chunk](factory world.ChunkFactory[C], field noise.Field) *Generator[C] {
	return New[C](factory, NewHeightmap[C](field))
}

// SurfaceHeight возвращает мировую высоту поверхности в колонке
func (h *Heightmap[C]) SurfaceHeight(worldX, worldZ int) int {
	n := h.field.Sample(float64(worldX), float64(worldZ))
	return int(math.Floor(n*HeightScale)) + HeightBias
}

// ApproximateHeightAt совпадает с точной высотой поверхности
func (h *Heightmap[C]) ApproximateHeightAt(x, z int) int {
	return h.SurfaceHeight(x, z)
}

// FillTerrain заполняет колонки чанка от поверхности вниз
func (h *Heightmap[C]) FillTerrain(chunk C) {
	size := chunk.Size()
	loc := chunk.Location()

	for x := 0; x < size.X; x++ {
		for z := 0; z < size.Z; z++ {
			worldX := loc.X*size.X + x
			worldZ := loc.Z*size.Z + z

			// Высота поверхности относительно низа этого чанка
			columnTop := h.SurfaceHeight(worldX, worldZ) - loc.Y*size.Y
			if columnTop <= 0 {
				continue
			}

			top := columnTop
			if top > size.Y-1 {
				top = size.Y - 1
			}
			for y := top; y >= 0; y-- {
				chunk.SetBlockAt(x, y, z, LayerFor(columnTop-y))
			}
		}
	}
}

// LayerFor возвращает материал по глубине под поверхностью
func LayerFor(depth int) block.BlockID {
	switch {
	case depth == 0:
		return block.GrassBlockID
	case depth < DirtDepth:
		return block.DirtBlockID
	default:
		return block.StoneBlockID
	}
}
