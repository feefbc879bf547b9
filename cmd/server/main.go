package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annel0/voxelworld/internal/api"
	"github.com/annel0/voxelworld/internal/auth"
	"github.com/annel0/voxelworld/internal/cache"
	"github.com/annel0/voxelworld/internal/chunkstore"
	"github.com/annel0/voxelworld/internal/config"
	"github.com/annel0/voxelworld/internal/coords"
	"github.com/annel0/voxelworld/internal/eventbus"
	"github.com/annel0/voxelworld/internal/generator"
	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/noise"
	"github.com/annel0/voxelworld/internal/observability"
	"github.com/annel0/voxelworld/internal/storage"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
	"github.com/annel0/voxelworld/internal/world/block"
)

const (
	worldName = "overworld"
	// Выгрузка далёких чанков раз в evictEveryTicks тиков
	evictEveryTicks = 200
)

func main() {
	configPath := flag.String("config", "", "Путь к YAML конфигурации (по умолчанию $VOXEL_CONFIG)")
	issueToken := flag.String("issue-token", "", "Выпустить токен Admin API для оператора и выйти")
	issueAdmin := flag.Bool("admin", false, "Токен с правами администратора (вместе с -issue-token)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Некорректная конфигурация: %v", err)
	}

	if *issueToken != "" {
		authority, err := newAuthority(cfg.API)
		if err != nil {
			log.Fatalf("❌ Некорректный api.jwt_secret: %v", err)
		}
		if authority == nil {
			log.Fatalf("❌ Нужен api.jwt_secret или VOXEL_JWT_SECRET")
		}
		token, err := authority.Issue(*issueToken, *issueAdmin)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		fmt.Println(token)
		return
	}

	// Инициализируем систему логирования
	if cfg.Logging.Dir != "" {
		logging.SetLogDir(cfg.Logging.Dir)
	}
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		logging.Warn("%v, используется INFO", err)
	}
	logging.SetLevel(level)
	defer logging.CloseComponents()

	if err := run(cfg); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	seed := time.Now().UnixNano()
	if cfg.World.Seed != nil {
		seed = *cfg.World.Seed
	}
	logging.Info("🌍 Запуск мира %s: seed=%d, chunk=%d, radius=%d, tick_rate=%d",
		worldName, seed, cfg.World.ChunkSize, cfg.World.StreamingRadius, cfg.World.TickRate)

	// === ТРАССИРОВКА ===
	if cfg.Tracing.Enabled {
		shutdown, err := observability.InitTelemetry(context.Background(), "voxelworld", cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
		if err != nil {
			logging.Warn("OpenTelemetry не инициализирован: %v", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logging.Warn("Остановка OpenTelemetry: %v", err)
				}
			}()
		}
	}

	// === ГЕНЕРАЦИЯ ===
	field, err := noise.New(cfg.Noise.Kind, cfg.NoiseParams(seed))
	if err != nil {
		return fmt.Errorf("поле шума: %w", err)
	}
	factory := world.NewDenseChunkFactory(vec.Splat(cfg.World.ChunkSize))
	gen := generator.NewHeightmapGenerator[*world.DenseChunk](factory, field)

	// === ХРАНИЛИЩЕ ===
	var ws *storage.WorldStorage
	if cfg.Storage.InMemory {
		ws, err = storage.NewInMemoryWorldStorage()
	} else {
		ws, err = storage.NewWorldStorage(cfg.Storage.Path)
	}
	if err != nil {
		return fmt.Errorf("хранилище: %w", err)
	}
	defer ws.Close()

	persist, closeCache, err := newPersistence(cfg.Cache, ws)
	if err != nil {
		return err
	}
	defer closeCache()

	opts := chunkstore.Options[*world.DenseChunk]{
		Generator:   gen,
		Persistence: persist,
		Metrics:     chunkstore.NewMetrics(prometheus.DefaultRegisterer),
	}
	if spawn, ok, err := ws.LoadSpawnPoint(); err != nil {
		logging.Warn("Не удалось прочитать точку появления: %v", err)
	} else if ok {
		opts.SpawnPoint = &spawn
	}

	store, err := chunkstore.NewMemoryStore(opts)
	if err != nil {
		return err
	}

	// === МИР ===
	registry := block.NewDefaultRegistry()
	if cfg.World.BlocksFile != "" {
		if err := registry.LoadFile(cfg.World.BlocksFile); err != nil {
			return fmt.Errorf("типы блоков: %w", err)
		}
	}

	var validator world.LocationValidator
	if b := cfg.World.Bounds; b != nil {
		validator = world.VerticalBounds{MinY: b.MinY, MaxY: b.MaxY}
	}

	w, err := world.New(world.Config[*world.DenseChunk]{
		Seed:            &seed,
		ChunkFactory:    factory,
		ChunkLoader:     store,
		StreamingRadius: cfg.World.StreamingRadius,
		Validator:       validator,
		Registry:        registry,
	})
	if err != nil {
		return err
	}

	// === ШИНА СОБЫТИЙ ===
	bus, err := newEventBus(cfg.EventBus)
	if err != nil {
		return err
	}
	defer bus.Close()

	if _, err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("LoggingListener не запущен: %v", err)
	}
	exporter := eventbus.NewMetricsExporter(bus, prometheus.DefaultRegisterer)
	exporter.Start(time.Second)
	defer exporter.Stop()

	w.OnBlockUpdate(eventbus.BlockUpdatePublisher(bus, worldName))
	store.OnChunkLoad(eventbus.ChunkLoadPublisher[*world.DenseChunk](bus, worldName))

	// === МЕТРИКИ ===
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.GetMetricsPort()),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logging.Info("📈 Prometheus /metrics доступен по адресу %s", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()

	// === ADMIN API ===
	var adminAPI *api.RestServer
	if cfg.API.Addr != "" {
		authority, err := newAuthority(cfg.API)
		if err != nil {
			return fmt.Errorf("admin api: %w", err)
		}
		adminAPI = api.NewRestServer(api.Config{
			Addr:  cfg.API.Addr,
			World: w,
			LoadChunk: func(ctx context.Context, c coords.ChunkCoord) error {
				_, err := w.LoadChunk(ctx, c)
				return err
			},
			ResidentCount: store.ResidentCount,
			Auth:          authority,
			Registerer:    prometheus.DefaultRegisterer,
		})
		adminAPI.Start()
	}

	// Наблюдатель у точки появления, чтобы вокруг неё подгружался мир
	observer := world.NewPointAgent(w.SpawnPoint())
	w.JoinAgent(observer)
	logging.Info("Агент %s присоединился в %v", observer.ID(), w.SpawnPoint())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info("✅ Мир запущен")
	runTickLoop(ctx, w, store, cfg.World.TickRate)

	// === GRACEFUL SHUTDOWN ===
	logging.Info("📡 Получен сигнал завершения, сохранение мира...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Остановка HTTP сервера: %v", err)
	}
	if adminAPI != nil {
		if err := adminAPI.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Остановка Admin API: %v", err)
		}
	}

	if err := store.SaveAll(); err != nil {
		logging.Error("Ошибка сохранения чанков: %v", err)
	}
	if err := ws.SaveSpawnPoint(w.SpawnPoint()); err != nil {
		logging.Error("Ошибка сохранения точки появления: %v", err)
	}

	logging.Info("👋 Мир остановлен после %d тиков", w.CurrentTick())
	return nil
}

// newAuthority создаёт проверку токенов; без секрета возвращает nil
func newAuthority(cfg config.APIConfig) (*auth.TokenAuthority, error) {
	if cfg.JWTSecret == "" {
		return nil, nil
	}
	return auth.NewTokenAuthorityFromBase64(cfg.JWTSecret, "voxelworld", time.Duration(cfg.TokenTTL)*time.Hour)
}

// newPersistence ставит горячий кеш перед хранилищем, если он включён
func newPersistence(cfg config.CacheConfig, ws *storage.WorldStorage) (chunkstore.Persistence[*world.DenseChunk], func(), error) {
	if !cfg.Enabled {
		return ws, func() {}, nil
	}

	var backend cache.Backend
	if cfg.RedisURL == "" {
		logging.Info("Кеш чанков: in-memory")
		backend = cache.NewMemoryBackend()
	} else {
		rb, err := cache.NewRedisBackend(cache.CacheConfig{
			RedisURL:      cfg.RedisURL,
			RedisPassword: cfg.Password,
			RedisDB:       cfg.DB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("кеш чанков: %w", err)
		}
		backend = rb
	}

	cc := cache.NewChunkCache(backend, ws, time.Duration(cfg.TTLSeconds)*time.Second)
	return cc, func() {
		m := cc.GetMetrics()
		logging.Info("Кеш чанков: %d запросов, hit ratio %.2f", m.TotalRequests, m.HitRatio)
		cc.Close()
	}, nil
}

// newEventBus выбирает JetStream, если задан адрес NATS, иначе шину в памяти
func newEventBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		logging.Info("EventBus: in-memory")
		return eventbus.NewMemoryBus(1024), nil
	}

	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("eventbus: %w", err)
	}
	logging.Info("EventBus: JetStream %s, stream %s", cfg.URL, cfg.Stream)
	return bus, nil
}

// runTickLoop выполняет тики с частотой tickRate в секунду до отмены ctx.
// Если тик не укладывается в период, пропущенные тики не догоняются.
func runTickLoop(ctx context.Context, w *world.World[*world.DenseChunk], store *chunkstore.MemoryStore[*world.DenseChunk], tickRate int) {
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	// Ошибки тиков пишутся в файл компонента world
	tickLog := logging.WorldLogger()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Tick(ctx, tickRate); err != nil {
				if !errors.Is(err, context.Canceled) {
					tickLog.Error("Ошибка тика: %v", err)
				}
				continue
			}

			if w.CurrentTick()%evictEveryTicks == 0 {
				keep := chunkstore.NearAgents(w.Agents(), w.StreamingRadius(), w.ChunkSize())
				evicted, err := store.EvictOutside(keep)
				if err != nil {
					tickLog.Error("Ошибка выгрузки чанков: %v", err)
				}
				if evicted > 0 {
					tickLog.Debug("Выгружено %d чанков, в памяти %d", evicted, store.ResidentCount())
				}
			}
		}
	}
}
