package noise

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// ValueNoise многооктавный value noise: каждой точке целочисленной решётки
// сопоставляется псевдослучайное значение из [-1, 1], между узлами значения
// гладко интерполируются. Результат нормирован суммой амплитуд и лежит в
// [-1, 1].
type ValueNoise struct {
	cfg       Config
	baseFreq  float64
	totalAmpl float64
}

// NewValueNoise создаёт поле value noise с проверкой конфигурации
func NewValueNoise(cfg Config) (*ValueNoise, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ValueNoise{
		cfg:       cfg,
		baseFreq:  cfg.BaseFrequency(),
		totalAmpl: cfg.TotalAmplitude(),
	}, nil
}

// Config возвращает параметры поля
func (n *ValueNoise) Config() Config {
	return n.cfg
}

// Sample суммирует октавы в точке (x, z)
func (n *ValueNoise) Sample(x, z float64) float64 {
	sum := 0.0
	amp := 1.0
	freq := n.baseFreq
	for i := 0; i < n.cfg.Octaves; i++ {
		sum += n.octave(uint64(i), x*freq, z*freq) * amp
		amp *= n.cfg.Persistence
		freq *= n.cfg.Lacunarity
	}
	return sum / n.totalAmpl
}

// octave интерполирует значения четырёх ближайших узлов решётки
func (n *ValueNoise) octave(octave uint64, x, z float64) float64 {
	fx := math.Floor(x)
	fz := math.Floor(z)
	x0 := int64(fx)
	z0 := int64(fz)

	tx := fade(x - fx)
	tz := fade(z - fz)

	v00 := n.lattice(octave, x0, z0)
	v10 := n.lattice(octave, x0+1, z0)
	v01 := n.lattice(octave, x0, z0+1)
	v11 := n.lattice(octave, x0+1, z0+1)

	return lerp(lerp(v00, v10, tx), lerp(v01, v11, tx), tz)
}

// lattice возвращает значение узла решётки в [-1, 1).
// Хеш считается по фиксированному little-endian представлению, поэтому
// результат одинаков на любой платформе и между перезапусками.
func (n *ValueNoise) lattice(octave uint64, ix, iz int64) float64 {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(n.cfg.Seed))
	binary.LittleEndian.PutUint64(buf[8:], octave)
	binary.LittleEndian.PutUint64(buf[16:], uint64(ix))
	binary.LittleEndian.PutUint64(buf[24:], uint64(iz))
	h := xxhash.Sum64(buf[:])

	// 53 старших бита дают равномерное значение в [0, 1)
	u := float64(h>>11) / (1 << 53)
	return u*2 - 1
}

// fade квинтическое сглаживание 6t^5 - 15t^4 + 10t^3
func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}
