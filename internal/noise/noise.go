// Package noise реализует детерминированные скалярные поля шума над
// плоскостью (x, z). Все реализации чистые: результат зависит только от
// сида и координат, общего изменяемого состояния нет, поэтому поле можно
// безопасно вызывать из нескольких горутин.
package noise

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig возвращается при некорректной конфигурации шума
var ErrInvalidConfig = errors.New("noise: invalid config")

// MaxOctaves ограничивает количество октав
const MaxOctaves = 16

// Виды полей для фабрики New
const (
	KindValue  = "value"
	KindPerlin = "perlin"
)

// Field детерминированное скалярное поле шума
type Field interface {
	// Sample возвращает значение поля в точке (x, z).
	// Одинаковые аргументы всегда дают побитово одинаковый результат.
	Sample(x, z float64) float64
}

// Config параметры многооктавного шума
type Config struct {
	Seed        int64   `yaml:"seed"`
	Scale       float64 `yaml:"scale"`       // Шаг решётки первой октавы в блоках
	Octaves     int     `yaml:"octaves"`     // Количество октав
	Persistence float64 `yaml:"persistence"` // Затухание амплитуды на октаву
	Lacunarity  float64 `yaml:"lacunarity"`  // Рост частоты на октаву
}

// DefaultConfig возвращает параметры генератора высот по умолчанию
func DefaultConfig(seed int64) Config {
	return Config{
		Seed:        seed,
		Scale:       128,
		Octaves:     4,
		Persistence: 0.8,
		Lacunarity:  2.24564,
	}
}

// BaseFrequency возвращает частоту первой октавы
func (c Config) BaseFrequency() float64 {
	return 1.0 / c.Scale
}

// TotalAmplitude возвращает сумму весов всех октав
func (c Config) TotalAmplitude() float64 {
	total := 0.0
	amp := 1.0
	for i := 0; i < c.Octaves; i++ {
		total += amp
		amp *= c.Persistence
	}
	return total
}

// Validate проверяет конфигурацию. Ошибки здесь должны всплывать при
// создании мира, а не во время генерации чанков.
func (c Config) Validate() error {
	if !isFinite(c.Scale) || c.Scale <= 0 {
		return fmt.Errorf("%w: scale must be positive and finite, got %v", ErrInvalidConfig, c.Scale)
	}
	if c.Octaves < 1 || c.Octaves > MaxOctaves {
		return fmt.Errorf("%w: octaves must be in [1, %d], got %d", ErrInvalidConfig, MaxOctaves, c.Octaves)
	}
	if !isFinite(c.Persistence) || c.Persistence <= 0 {
		return fmt.Errorf("%w: persistence must be positive and finite, got %v", ErrInvalidConfig, c.Persistence)
	}
	if !isFinite(c.Lacunarity) || c.Lacunarity <= 0 {
		return fmt.Errorf("%w: lacunarity must be positive and finite, got %v", ErrInvalidConfig, c.Lacunarity)
	}

	total := c.TotalAmplitude()
	if !isFinite(total) || total <= 0 {
		return fmt.Errorf("%w: total amplitude over %d octaves is not finite", ErrInvalidConfig, c.Octaves)
	}
	topFreq := c.BaseFrequency() * math.Pow(c.Lacunarity, float64(c.Octaves-1))
	if !isFinite(topFreq) || topFreq == 0 {
		return fmt.Errorf("%w: frequency of the last octave is degenerate", ErrInvalidConfig)
	}
	return nil
}

// New создаёт поле указанного вида. Пустой kind означает KindValue.
func New(kind string, cfg Config) (Field, error) {
	switch kind {
	case "", KindValue:
		return NewValueNoise(cfg)
	case KindPerlin:
		return NewPerlinNoise(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown noise kind %q", ErrInvalidConfig, kind)
	}
}

// Constant поле, возвращающее одно и то же значение в любой точке.
// Используется для плоских миров и тестов.
type Constant float64

// Sample возвращает константу
func (c Constant) Sample(x, z float64) float64 {
	return float64(c)
}

// FieldFunc позволяет использовать обычную функцию как поле
type FieldFunc func(x, z float64) float64

// Sample вызывает функцию
func (f FieldFunc) Sample(x, z float64) float64 {
	return f(x, z)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
