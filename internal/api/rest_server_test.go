package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxelworld/internal/auth"
	"github.com/annel0/voxelworld/internal/chunkstore"
	"github.com/annel0/voxelworld/internal/coords"
	"github.com/annel0/voxelworld/internal/generator"
	"github.com/annel0/voxelworld/internal/noise"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
	"github.com/annel0/voxelworld/internal/world/block"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testEnv struct {
	server *RestServer
	world  *world.World[*world.DenseChunk]
	store  *chunkstore.MemoryStore[*world.DenseChunk]
}

func newTestEnv(t *testing.T, authority *auth.TokenAuthority) *testEnv {
	t.Helper()

	gen := generator.NewHeightmapGenerator[*world.DenseChunk](world.NewDenseChunkFactory(vec.Splat(16)), noise.Constant(0))
	store, err := chunkstore.NewMemoryStore(chunkstore.Options[*world.DenseChunk]{Generator: gen})
	require.NoError(t, err)

	seed := int64(42)
	w, err := world.New(world.Config[*world.DenseChunk]{
		Seed:         &seed,
		ChunkFactory: gen.Factory(),
		ChunkLoader:  store,
		Validator:    world.VerticalBounds{MinY: -64, MaxY: 256},
	})
	require.NoError(t, err)

	rs := NewRestServer(Config{
		World: w,
		LoadChunk: func(ctx context.Context, c coords.ChunkCoord) error {
			_, err := store.LoadChunk(ctx, c)
			return err
		},
		ResidentCount: store.ResidentCount,
		Auth:          authority,
		Registerer:    prometheus.NewRegistry(),
	})
	return &testEnv{server: rs, world: w, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) (*httptest.ResponseRecorder, GenericResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var resp GenericResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

// decodeData повторно разбирает поле Data в типизированную структуру
func decodeData(t *testing.T, resp GenericResponse, out interface{}) {
	t.Helper()
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, _ := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-Id"))
}

func TestWorldInfo(t *testing.T) {
	env := newTestEnv(t, nil)
	env.world.JoinAgent(world.NewPointAgent(vec.NewVec3(0, 0, 0)))

	rec, resp := env.do(t, http.MethodGet, "/api/v1/world", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var info WorldInfo
	decodeData(t, resp, &info)
	assert.Equal(t, int64(42), info.Seed)
	assert.Equal(t, Position{16, 16, 16}, info.ChunkSize)
	assert.Equal(t, world.DefaultStreamingRadius, info.StreamingRadius)
	assert.Equal(t, 1, info.Agents)
	require.NotNil(t, info.ResidentChunks)
	assert.Zero(t, *info.ResidentChunks)
}

func TestServerInfo(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/server", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var info ServerInfo
	decodeData(t, resp, &info)
	assert.NotEmpty(t, info.Uptime)
	assert.Positive(t, info.Goroutines)
	assert.Positive(t, info.SysMB)
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "5с", formatUptime(5*time.Second))
	assert.Equal(t, "2м 3с", formatUptime(2*time.Minute+3*time.Second))
	assert.Equal(t, "1ч 0м 0с", formatUptime(time.Hour))
	assert.Equal(t, "1д 2ч 0м 0с", formatUptime(26*time.Hour))
}

func TestRegistry(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/registry", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var defs []block.Definition
	decodeData(t, resp, &defs)
	assert.Contains(t, defs, block.Definition{ID: block.WaterBlockID, Name: "water"})
}

func TestBlocks_ReadWrite(t *testing.T) {
	env := newTestEnv(t, nil)

	// Чанк ещё не загружен: чтение даёт воздух, запись отклоняется
	rec, resp := env.do(t, http.MethodGet, "/api/v1/blocks/-1/5/3", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var info BlockInfo
	decodeData(t, resp, &info)
	assert.False(t, info.Loaded)
	assert.Equal(t, uint16(block.AirBlockID), info.ID)
	assert.Equal(t, Position{-1, 0, 0}, info.Chunk)
	assert.Equal(t, Position{15, 5, 3}, info.Local)

	rec, _ = env.do(t, http.MethodPut, "/api/v1/blocks/-1/5/3", SetBlockRequest{Name: "water"}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, resp = env.do(t, http.MethodPost, "/api/v1/chunks/-1/0/0/load", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var chunk ChunkInfo
	decodeData(t, resp, &chunk)
	assert.True(t, chunk.Resident)
	assert.Equal(t, Position{-16, 0, 0}, chunk.Origin)

	rec, _ = env.do(t, http.MethodPut, "/api/v1/blocks/-1/5/3", SetBlockRequest{Name: "water"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, block.WaterBlockID, env.world.BlockAt(vec.NewVec3(-1, 5, 3)))

	id := uint16(block.StoneBlockID)
	rec, resp = env.do(t, http.MethodPut, "/api/v1/blocks/-1/6/3", SetBlockRequest{ID: &id}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, resp, &info)
	assert.Equal(t, "stone", info.Name)
	assert.True(t, info.Loaded)
}

func TestBlocks_BadRequests(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.store.LoadChunk(context.Background(), coords.NewChunkCoord(0, 0, 0))
	require.NoError(t, err)

	unknown := uint16(999)
	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
	}{
		{"нецелые координаты", "/api/v1/blocks/a/0/0", SetBlockRequest{Name: "stone"}, http.StatusBadRequest},
		{"неизвестное имя", "/api/v1/blocks/1/1/1", SetBlockRequest{Name: "lava"}, http.StatusBadRequest},
		{"неизвестный ID", "/api/v1/blocks/1/1/1", SetBlockRequest{ID: &unknown}, http.StatusBadRequest},
		{"пустой запрос", "/api/v1/blocks/1/1/1", SetBlockRequest{}, http.StatusBadRequest},
		{"вне границ", "/api/v1/blocks/1/300/1", SetBlockRequest{Name: "stone"}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := env.do(t, http.MethodPut, tt.path, tt.body, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, resp.Success)
		})
	}

	rec, _ := env.do(t, http.MethodGet, "/api/v1/chunks/0/x/0", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuth(t *testing.T) {
	authority, err := auth.NewTokenAuthorityFromBase64(auth.GenerateSecureSecret(), "voxelworld", time.Hour)
	require.NoError(t, err)
	env := newTestEnv(t, authority)

	builder, err := authority.Issue("builder", false)
	require.NoError(t, err)
	admin, err := authority.Issue("admin", true)
	require.NoError(t, err)

	// Чтение открыто
	rec, _ := env.do(t, http.MethodGet, "/api/v1/world", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/chunks/0/0/0/load", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/chunks/0/0/0/load", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/chunks/0/0/0/load", nil, builder)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodPut, "/api/v1/blocks/2/2/2", SetBlockRequest{Name: "sand"}, builder)
	assert.Equal(t, http.StatusOK, rec.Code)

	spawn := Position{X: 5, Y: 10, Z: -5}
	rec, _ = env.do(t, http.MethodPut, "/api/v1/spawn", spawn, builder)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = env.do(t, http.MethodPut, "/api/v1/spawn", spawn, admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, vec.NewVec3(5, 10, -5), env.world.SpawnPoint())
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(t, http.MethodGet, "/api/v1/world", nil, "")
	env.do(t, http.MethodGet, "/api/v1/blocks/a/b/c", nil, "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "voxelworld_admin_api_http_request_duration_seconds")
	assert.Contains(t, body, "voxelworld_admin_api_http_request_errors_total")
}
