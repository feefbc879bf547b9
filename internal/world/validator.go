package world

import "github.com/annel0/voxelworld/internal/vec"

// LocationValidator решает, какие мировые позиции допустимы для блоков
type LocationValidator interface {
	IsValid(pos vec.Vec3) bool
	// HasInvalidLocations сообщает, бывают ли вообще недопустимые позиции
	HasInvalidLocations() bool
}

// Unbounded считает допустимой любую позицию
type Unbounded struct{}

func (Unbounded) IsValid(vec.Vec3) bool     { return true }
func (Unbounded) HasInvalidLocations() bool { return false }

// Bounds ограничивает мир параллелепипедом [Min, Max] включительно
type Bounds struct {
	Min vec.Vec3
	Max vec.Vec3
}

// IsValid проверяет попадание позиции в границы
func (b Bounds) IsValid(pos vec.Vec3) bool {
	return pos.X >= b.Min.X && pos.X <= b.Max.X &&
		pos.Y >= b.Min.Y && pos.Y <= b.Max.Y &&
		pos.Z >= b.Min.Z && pos.Z <= b.Max.Z
}

func (Bounds) HasInvalidLocations() bool { return true }

// VerticalBounds ограничивает только высоту, по горизонтали мир бесконечен
type VerticalBounds struct {
	MinY int
	MaxY int
}

func (b VerticalBounds) IsValid(pos vec.Vec3) bool {
	return pos.Y >= b.MinY && pos.Y <= b.MaxY
}

func (VerticalBounds) HasInvalidLocations() bool { return true }
