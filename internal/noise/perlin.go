package noise

import (
	"github.com/aquilax/go-perlin"
)

// PerlinNoise градиентный шум Перлина поверх go-perlin.
// В отличие от value noise, значения в узлах решётки равны нулю, а рельеф
// получается более "округлым".
type PerlinNoise struct {
	cfg Config
	p   *perlin.Perlin // только чтение после создания
}

// NewPerlinNoise создаёт генератор Перлина с параметрами из cfg.
// Persistence переводится в alpha библиотеки (alpha = 1/persistence),
// Lacunarity в beta.
func NewPerlinNoise(cfg Config) (*PerlinNoise, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	alpha := 1.0 / cfg.Persistence
	beta := cfg.Lacunarity
	return &PerlinNoise{
		cfg: cfg,
		p:   perlin.NewPerlin(alpha, beta, int32(cfg.Octaves), cfg.Seed),
	}, nil
}

// Config возвращает параметры поля
func (n *PerlinNoise) Config() Config {
	return n.cfg
}

// Sample возвращает значение шума в точке, ограниченное диапазоном [-1, 1]
func (n *PerlinNoise) Sample(x, z float64) float64 {
	v := n.p.Noise2D(x/n.cfg.Scale, z/n.cfg.Scale)
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}
