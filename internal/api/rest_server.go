// Package api административный HTTP API мира: чтение и запись блоков,
// состояние чанков, точка появления и статистика тиков.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/voxelworld/internal/auth"
	"github.com/annel0/voxelworld/internal/coords"
	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/middleware"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
	"github.com/annel0/voxelworld/internal/world/block"
)

// WorldView операции мира, доступные через API
type WorldView interface {
	Seed() int64
	ChunkSize() vec.Vec3
	StreamingRadius() int
	Registry() *block.Registry
	BlockAt(pos vec.Vec3) block.BlockID
	SetBlockAt(pos vec.Vec3, id block.BlockID) bool
	IsChunkLoaded(pos vec.Vec3) bool
	IsValidBlockLocation(pos vec.Vec3) bool
	SpawnPoint() vec.Vec3
	SetSpawnPoint(pos vec.Vec3)
	Agents() []world.Agent
	LastTick() world.TickStats
	CurrentTick() uint64
}

// ChunkLoadFunc загружает чанк по координате
type ChunkLoadFunc func(ctx context.Context, c coords.ChunkCoord) error

// Config содержит конфигурацию для REST сервера
type Config struct {
	Addr          string                // адрес для запуска сервера
	World         WorldView             // мир
	LoadChunk     ChunkLoadFunc         // nil: загрузка через API недоступна
	ResidentCount func() int            // nil: число резидентных чанков не сообщается
	Auth          *auth.TokenAuthority  // nil: запись без авторизации
	Registerer    prometheus.Registerer // nil: глобальный регистр
}

// RestServer представляет REST API сервер
type RestServer struct {
	router   *gin.Engine
	server   *http.Server
	cfg      Config
	metrics  *ServerMetrics
	registry *block.Registry
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewRestServer создает новый REST API сервер
func NewRestServer(cfg Config) *RestServer {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	// Устанавливаем режим релиза для gin
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("admin_api"))
	router.Use(middleware.NewRequestLogger().Handler())

	promMw := middleware.NewPrometheusMiddleware("admin_api", cfg.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	// Мир без реестра принимает любые ID; API всё равно именует блоки
	registry := cfg.World.Registry()
	if registry == nil {
		registry = block.NewDefaultRegistry()
	}

	rs := &RestServer{
		router:   router,
		cfg:      cfg,
		metrics:  NewServerMetrics(),
		registry: registry,
	}
	rs.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if cfg.Auth == nil {
		logging.Warn("Admin API: авторизация отключена, запись открыта всем")
	}

	rs.setupRoutes()
	return rs
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	v1 := rs.router.Group("/api/v1")
	{
		v1.GET("/server", rs.handleServerInfo)
		v1.GET("/world", rs.handleWorldInfo)
		v1.GET("/registry", rs.handleRegistry)
		v1.GET("/blocks/:x/:y/:z", rs.handleGetBlock)
		v1.GET("/chunks/:x/:y/:z", rs.handleGetChunk)
	}

	// Изменение мира требует токена, если настроена авторизация
	protected := v1.Group("/")
	protected.Use(rs.jwtMiddleware())
	{
		protected.PUT("/blocks/:x/:y/:z", rs.handleSetBlock)
		protected.POST("/chunks/:x/:y/:z/load", rs.handleLoadChunk)

		admin := protected.Group("/")
		admin.Use(rs.adminMiddleware())
		{
			admin.PUT("/spawn", rs.handleSetSpawn)
		}
	}
}

// Handler возвращает http.Handler сервера (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// Start запускает HTTP сервер в отдельной горутине
func (rs *RestServer) Start() {
	go func() {
		logging.Info("🛠  Admin API доступен по адресу %s", rs.server.Addr)
		if err := rs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Ошибка Admin API сервера: %v", err)
		}
	}()
}

// Shutdown останавливает сервер
func (rs *RestServer) Shutdown(ctx context.Context) error {
	return rs.server.Shutdown(ctx)
}
