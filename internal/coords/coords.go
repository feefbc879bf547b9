// Package coords содержит арифметику перевода координат блоков
// в координаты чанков и локальные смещения внутри чанка.
//
// Все функции чистые и зависят только от размера чанка. Деление везде
// математическое (с округлением вниз), а не усечение к нулю, поэтому блок
// x = -1 при размере 16 принадлежит чанку -1 со смещением 15.
//
// Размер чанка по каждой оси обязан быть положительным. Это контракт
// вызывающей стороны, здесь он не проверяется.
package coords

import (
	"fmt"

	"github.com/annel0/voxelworld/internal/vec"
)

// ChunkCoord представляет координаты чанка в пространстве чанков.
// Отдельный тип нужен, чтобы не перепутать единицы с координатами блоков.
type ChunkCoord vec.Vec3

// LocalOffset представляет позицию блока относительно начала его чанка.
// Каждая компонента лежит в [0, size).
type LocalOffset vec.Vec3

// NewChunkCoord создаёт координаты чанка
func NewChunkCoord(x, y, z int) ChunkCoord {
	return ChunkCoord{X: x, Y: y, Z: z}
}

// Vec возвращает координаты как обычный вектор
func (c ChunkCoord) Vec() vec.Vec3 {
	return vec.Vec3(c)
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("chunk(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Vec возвращает смещение как обычный вектор
func (o LocalOffset) Vec() vec.Vec3 {
	return vec.Vec3(o)
}

// BlockLocation неизменяемая позиция блока в мировых координатах вместе с
// размером чанка мира, которому она принадлежит.
type BlockLocation struct {
	pos       vec.Vec3
	chunkSize vec.Vec3
}

// NewBlockLocation создаёт позицию блока для мира с указанным размером чанка
func NewBlockLocation(pos, chunkSize vec.Vec3) BlockLocation {
	return BlockLocation{pos: pos, chunkSize: chunkSize}
}

// Pos возвращает мировые координаты блока
func (l BlockLocation) Pos() vec.Vec3 { return l.pos }

// ChunkSize возвращает размер чанка мира
func (l BlockLocation) ChunkSize() vec.Vec3 { return l.chunkSize }

// X, Y, Z возвращают отдельные компоненты позиции
func (l BlockLocation) X() int { return l.pos.X }
func (l BlockLocation) Y() int { return l.pos.Y }
func (l BlockLocation) Z() int { return l.pos.Z }

// Chunk возвращает координаты чанка, которому принадлежит блок
func (l BlockLocation) Chunk() ChunkCoord {
	return ToChunkCoord(l.pos, l.chunkSize)
}

// Local возвращает смещение блока внутри его чанка
func (l BlockLocation) Local() LocalOffset {
	return ToLocalOffset(l.pos, l.chunkSize)
}

func (l BlockLocation) String() string {
	return fmt.Sprintf("block%v", l.pos)
}

// FloorDiv выполняет деление с округлением вниз
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// CeilDiv выполняет деление с округлением вверх
func CeilDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) == (b < 0)) {
		q++
	}
	return q
}

// Mod возвращает неотрицательный остаток в диапазоне [0, b)
func Mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// ToChunkCoord переводит координаты блока в координаты чанка
func ToChunkCoord(pos, size vec.Vec3) ChunkCoord {
	return ChunkCoord{
		X: FloorDiv(pos.X, size.X),
		Y: FloorDiv(pos.Y, size.Y),
		Z: FloorDiv(pos.Z, size.Z),
	}
}

// ToLocalOffset возвращает смещение блока внутри чанка
func ToLocalOffset(pos, size vec.Vec3) LocalOffset {
	return LocalOffset{
		X: Mod(pos.X, size.X),
		Y: Mod(pos.Y, size.Y),
		Z: Mod(pos.Z, size.Z),
	}
}

// ChunkOrigin возвращает мировые координаты блока (0,0,0) чанка
func ChunkOrigin(c ChunkCoord, size vec.Vec3) vec.Vec3 {
	return c.Vec().Mul(size)
}

// ToBlockPos собирает мировые координаты из чанка и локального смещения
func ToBlockPos(c ChunkCoord, off LocalOffset, size vec.Vec3) vec.Vec3 {
	return ChunkOrigin(c, size).Add(off.Vec())
}
