package coords

import "github.com/annel0/voxelworld/internal/vec"

// StreamingRange возвращает включительный диапазон координат чанков,
// пересекающих куб с полушириной radius блоков вокруг center.
//
// По каждой оси: start = floor((c - R) / s), end = ceil((c + R) / s).
func StreamingRange(center vec.Vec3, radius int, size vec.Vec3) (start, end ChunkCoord) {
	start = ChunkCoord{
		X: FloorDiv(center.X-radius, size.X),
		Y: FloorDiv(center.Y-radius, size.Y),
		Z: FloorDiv(center.Z-radius, size.Z),
	}
	end = ChunkCoord{
		X: CeilDiv(center.X+radius, size.X),
		Y: CeilDiv(center.Y+radius, size.Y),
		Z: CeilDiv(center.Z+radius, size.Z),
	}
	return start, end
}

// ForEachInRange перебирает все координаты чанков в [start, end] по всем
// трём осям (x внешний цикл, z внутренний). Если fn возвращает false,
// перебор прекращается.
func ForEachInRange(start, end ChunkCoord, fn func(ChunkCoord) bool) {
	for x := start.X; x <= end.X; x++ {
		for y := start.Y; y <= end.Y; y++ {
			for z := start.Z; z <= end.Z; z++ {
				if !fn(ChunkCoord{X: x, Y: y, Z: z}) {
					return
				}
			}
		}
	}
}

// RangeVolume возвращает количество координат в включительном диапазоне
func RangeVolume(start, end ChunkCoord) int {
	dx := end.X - start.X + 1
	dy := end.Y - start.Y + 1
	dz := end.Z - start.Z + 1
	if dx <= 0 || dy <= 0 || dz <= 0 {
		return 0
	}
	return dx * dy * dz
}

// InRange проверяет, лежит ли c внутри включительного диапазона
func InRange(c, start, end ChunkCoord) bool {
	return c.X >= start.X && c.X <= end.X &&
		c.Y >= start.Y && c.Y <= end.Y &&
		c.Z >= start.Z && c.Z <= end.Z
}
