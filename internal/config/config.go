package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/annel0/voxelworld/internal/noise"
)

// Config корневая структура конфигурации сервера мира
type Config struct {
	World    WorldConfig    `yaml:"world"`
	Noise    NoiseConfig    `yaml:"noise"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Cache    CacheConfig    `yaml:"cache"`
	EventBus EventBusConfig `yaml:"eventbus"`
	API      APIConfig      `yaml:"api"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type WorldConfig struct {
	Seed            *int64        `yaml:"seed"`
	ChunkSize       int           `yaml:"chunk_size"`
	StreamingRadius int           `yaml:"streaming_radius"`
	TickRate        int           `yaml:"tick_rate"`
	Bounds          *BoundsConfig `yaml:"bounds"`
	BlocksFile      string        `yaml:"blocks_file"` // Дополнительные типы блоков
}

// BoundsConfig вертикальные границы мира
type BoundsConfig struct {
	MinY int `yaml:"min_y"`
	MaxY int `yaml:"max_y"`
}

type NoiseConfig struct {
	Kind        string  `yaml:"kind"`
	Scale       float64 `yaml:"scale"`
	Octaves     int     `yaml:"octaves"`
	Persistence float64 `yaml:"persistence"`
	Lacunarity  float64 `yaml:"lacunarity"`
}

type StorageConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// CacheConfig горячий кеш чанков перед хранилищем
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	RedisURL   string `yaml:"redis_url"` // Пусто: кеш в памяти процесса
	Password   string `yaml:"redis_password"`
	DB         int    `yaml:"redis_db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type MetricsConfig struct {
	Port int `yaml:"port"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // Пусто: шина в памяти
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

// APIConfig административный HTTP API
type APIConfig struct {
	Addr      string `yaml:"addr"`       // Пусто: API выключен
	JWTSecret string `yaml:"jwt_secret"` // base64; пусто: без авторизации
	TokenTTL  int    `yaml:"token_ttl_hours"`
}

// TracingConfig экспорт трассировок OpenTelemetry
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // host:port OTLP HTTP
	Insecure bool   `yaml:"insecure"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Значения по умолчанию
const (
	DefaultChunkSize       = 16
	DefaultStreamingRadius = 128
	DefaultTickRate        = 20
	DefaultStoragePath     = "data"
	DefaultStream          = "WORLD_EVENTS"
	DefaultCacheTTLSeconds = 600
	DefaultTokenTTLHours   = 24
)

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults заполняет незаданные поля
func (c *Config) applyDefaults() {
	if c.World.ChunkSize == 0 {
		c.World.ChunkSize = getIntWithEnvFallback(0, "VOXEL_CHUNK_SIZE", DefaultChunkSize)
	}
	if c.World.StreamingRadius == 0 {
		c.World.StreamingRadius = getIntWithEnvFallback(0, "VOXEL_STREAMING_RADIUS", DefaultStreamingRadius)
	}
	if c.World.TickRate == 0 {
		c.World.TickRate = getIntWithEnvFallback(0, "VOXEL_TICK_RATE", DefaultTickRate)
	}
	if c.World.Seed == nil {
		if envVal := os.Getenv("VOXEL_SEED"); envVal != "" {
			if seed, err := strconv.ParseInt(envVal, 10, 64); err == nil {
				c.World.Seed = &seed
			}
		}
	}

	if c.Noise.Kind == "" {
		c.Noise.Kind = noise.KindValue
	}
	defaults := noise.DefaultConfig(0)
	if c.Noise.Scale == 0 {
		c.Noise.Scale = defaults.Scale
	}
	if c.Noise.Octaves == 0 {
		c.Noise.Octaves = defaults.Octaves
	}
	if c.Noise.Persistence == 0 {
		c.Noise.Persistence = defaults.Persistence
	}
	if c.Noise.Lacunarity == 0 {
		c.Noise.Lacunarity = defaults.Lacunarity
	}

	if c.Storage.Path == "" {
		c.Storage.Path = DefaultStoragePath
	}
	if c.Cache.RedisURL == "" {
		c.Cache.RedisURL = os.Getenv("VOXEL_REDIS_URL")
	}
	if c.Cache.TTLSeconds == 0 {
		c.Cache.TTLSeconds = DefaultCacheTTLSeconds
	}
	if c.API.JWTSecret == "" {
		c.API.JWTSecret = os.Getenv("VOXEL_JWT_SECRET")
	}
	if c.API.TokenTTL == 0 {
		c.API.TokenTTL = DefaultTokenTTLHours
	}
	if c.EventBus.URL == "" {
		c.EventBus.URL = os.Getenv("VOXEL_NATS_URL")
	}
	if c.EventBus.Stream == "" {
		c.EventBus.Stream = DefaultStream
	}
}

// GetMetricsPort возвращает порт Prometheus метрик с поддержкой fallback значений
func (m *MetricsConfig) GetMetricsPort() int {
	return getIntWithEnvFallback(m.Port, "VOXEL_METRICS_PORT", 2112)
}

// NoiseParams переводит секцию noise в параметры поля шума для сида
func (c *Config) NoiseParams(seed int64) noise.Config {
	return noise.Config{
		Seed:        seed,
		Scale:       c.Noise.Scale,
		Octaves:     c.Noise.Octaves,
		Persistence: c.Noise.Persistence,
		Lacunarity:  c.Noise.Lacunarity,
	}
}

// Validate проверяет конфигурацию до создания мира
func (c *Config) Validate() error {
	var errs []error

	if c.World.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("world.chunk_size must be positive, got %d", c.World.ChunkSize))
	}
	if c.World.StreamingRadius < 0 {
		errs = append(errs, fmt.Errorf("world.streaming_radius must not be negative, got %d", c.World.StreamingRadius))
	}
	if c.World.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("world.tick_rate must be positive, got %d", c.World.TickRate))
	}
	if b := c.World.Bounds; b != nil && b.MinY > b.MaxY {
		errs = append(errs, fmt.Errorf("world.bounds: min_y %d > max_y %d", b.MinY, b.MaxY))
	}
	if c.Noise.Kind != noise.KindValue && c.Noise.Kind != noise.KindPerlin {
		errs = append(errs, fmt.Errorf("noise.kind: unknown %q", c.Noise.Kind))
	}
	if c.Cache.TTLSeconds < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl_seconds must not be negative, got %d", c.Cache.TTLSeconds))
	}
	if c.API.TokenTTL < 0 {
		errs = append(errs, fmt.Errorf("api.token_ttl_hours must not be negative, got %d", c.API.TokenTTL))
	}
	if err := c.NoiseParams(0).Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configVal int, envVar string, defaultVal int) int {
	// Если значение задано в конфиге и больше 0, используем его
	if configVal > 0 {
		return configVal
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}

	// Используем дефолтное значение
	return defaultVal
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать путь из ENV VOXEL_CONFIG, а если он
// тоже не задан, возвращает конфигурацию по умолчанию.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("VOXEL_CONFIG")
		if path == "" {
			return Default(), nil // конфиг не задан, используем дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}
