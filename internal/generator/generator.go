// Package generator заполняет новые чанки ландшафтом.
//
// Generator задаёт общий порядок: выделить чанк из воздуха через фабрику и
// передать его стратегии заполнения. Генерация зависит только от
// неизменяемого сида (через поле шума) и координат чанка, поэтому разные
// чанки можно генерировать параллельно, а повторная генерация того же чанка
// даёт тот же результат.
package generator

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/annel0/voxelworld/internal/coords"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
)

// TerrainFiller стратегия заполнения чанка
type TerrainFiller[C world.Chunk] interface {
	// FillTerrain изменяет только что созданный чанк на месте
	FillTerrain(chunk C)
	// ApproximateHeightAt оценивает высоту поверхности в колонке без генерации чанка
	ApproximateHeightAt(x, z int) int
}

// Generator генерирует чанки с помощью фабрики и стратегии заполнения
type Generator[C world.Chunk] struct {
	factory world.ChunkFactory[C]
	filler  TerrainFiller[C]
}

// New создаёт генератор
func New[C world.Chunk](factory world.ChunkFactory[C], filler TerrainFiller[C]) *Generator[C] {
	return &Generator[C]{
		factory: factory,
		filler:  filler,
	}
}

// GenerateChunk создаёт чанк из воздуха и заполняет его ландшафтом
func (g *Generator[C]) GenerateChunk(c coords.ChunkCoord) C {
	chunk := g.factory.NewChunk(c)
	g.filler.FillTerrain(chunk)
	return chunk
}

// ApproximateHeightAt возвращает оценку высоты поверхности в колонке (x, z)
func (g *Generator[C]) ApproximateHeightAt(x, z int) int {
	return g.filler.ApproximateHeightAt(x, z)
}

// Factory возвращает фабрику пустых чанков
func (g *Generator[C]) Factory() world.ChunkFactory[C] {
	return g.factory
}

// ChunkSize возвращает размер генерируемых чанков
func (g *Generator[C]) ChunkSize() vec.Vec3 {
	return g.factory.ChunkSize()
}

// FindSpawnPoint возвращает точку на один блок выше поверхности в колонке near
func (g *Generator[C]) FindSpawnPoint(near vec.Vec3) vec.Vec3 {
	return vec.Vec3{
		X: near.X,
		Y: g.ApproximateHeightAt(near.X, near.Z) + 1,
		Z: near.Z,
	}
}

// GenerateBatch генерирует набор различных чанков на пуле из workers горутин.
// Дубликаты в списке генерируются один раз.
func (g *Generator[C]) GenerateBatch(ctx context.Context, list []coords.ChunkCoord, workers int) (map[coords.ChunkCoord]C, error) {
	if workers <= 0 {
		workers = 1
	}

	var mu sync.Mutex
	result := make(map[coords.ChunkCoord]C, len(list))
	seen := make(map[coords.ChunkCoord]struct{}, len(list))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for _, c := range list {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}

		c := c
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			chunk := g.GenerateChunk(c)

			mu.Lock()
			result[c] = chunk
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
