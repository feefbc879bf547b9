package eventbus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxelworld/internal/chunkstore"
	"github.com/annel0/voxelworld/internal/coords"
	"github.com/annel0/voxelworld/internal/generator"
	"github.com/annel0/voxelworld/internal/noise"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
	"github.com/annel0/voxelworld/internal/world/block"
)

// collector собирает полученные события
type collector struct {
	mu     sync.Mutex
	events []*Envelope
}

func (c *collector) handle(_ context.Context, ev *Envelope) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *collector) snapshot() []*Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Envelope(nil), c.events...)
}

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	var all, blocks collector
	_, err := bus.Subscribe(context.Background(), Filter{}, all.handle)
	require.NoError(t, err)
	_, err = bus.Subscribe(context.Background(), Filter{Types: []string{EventBlockUpdated}}, blocks.handle)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), NewEnvelope("w", EventBlockUpdated, 5, nil)))
	require.NoError(t, bus.Publish(context.Background(), NewEnvelope("w", EventChunkLoaded, 5, nil)))

	assert.Eventually(t, func() bool { return all.len() == 2 && blocks.len() == 1 }, time.Second, 5*time.Millisecond)

	stats := bus.Metrics()
	assert.Equal(t, uint64(2), stats.Published)
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	var c collector
	sub, err := bus.Subscribe(context.Background(), Filter{}, c.handle)
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), NewEnvelope("w", EventBlockUpdated, 5, nil)))
	require.NoError(t, bus.Close())
	assert.Zero(t, c.len())
}

func TestMemoryBus_LowPriorityNeverBlocks(t *testing.T) {
	bus := NewMemoryBus(1)
	defer bus.Close()

	// Обработчик висит, пока не отпустим; публикация всё равно не блокируется
	release := make(chan struct{})
	_, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) { <-release })
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		require.NoError(t, bus.Publish(context.Background(), NewEnvelope("w", EventChunkLoaded, 1, nil)))
	}
	close(release)

	// Каждое событие либо принято, либо отброшено
	stats := bus.Metrics()
	assert.Equal(t, uint64(50), stats.Published+stats.Dropped)
}

func TestMemoryBus_Closed(t *testing.T) {
	bus := NewMemoryBus(4)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(context.Background(), NewEnvelope("w", EventBlockUpdated, 9, nil)), ErrBusClosed)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {})
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestNewEnvelope(t *testing.T) {
	a := NewEnvelope("overworld", EventBlockUpdated, 3, []byte("{}"))
	b := NewEnvelope("overworld", EventBlockUpdated, 3, []byte("{}"))

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 1, a.Version)
	assert.Equal(t, "overworld", a.Source)
	assert.False(t, a.Timestamp.IsZero())
}

func TestBlockUpdatePublisher(t *testing.T) {
	bus := NewMemoryBus(64)
	defer bus.Close()

	var c collector
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{EventBlockUpdated}}, c.handle)
	require.NoError(t, err)

	gen := generator.NewHeightmapGenerator[*world.DenseChunk](world.NewDenseChunkFactory(vec.Splat(16)), noise.Constant(0))
	store, err := chunkstore.NewMemoryStore(chunkstore.Options[*world.DenseChunk]{Generator: gen})
	require.NoError(t, err)

	seed := int64(1)
	w, err := world.New(world.Config[*world.DenseChunk]{Seed: &seed, ChunkFactory: gen.Factory(), ChunkLoader: store})
	require.NoError(t, err)
	w.OnBlockUpdate(BlockUpdatePublisher(bus, "overworld"))

	_, err = w.LoadChunk(context.Background(), coords.NewChunkCoord(-1, 0, 0))
	require.NoError(t, err)
	require.True(t, w.SetBlockAt(vec.NewVec3(-1, 5, 3), block.WaterBlockID))

	require.Eventually(t, func() bool { return c.len() == 1 }, time.Second, 5*time.Millisecond)

	ev := c.snapshot()[0]
	assert.Equal(t, "overworld", ev.Source)
	assert.Equal(t, EventBlockUpdated, ev.EventType)

	var payload BlockUpdatedPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, Position{X: -1, Y: 5, Z: 3}, payload.Pos)
	assert.Equal(t, Position{X: -1, Y: 0, Z: 0}, payload.Chunk)
	assert.Equal(t, uint16(block.AirBlockID), payload.Previous)
	assert.Equal(t, uint16(block.WaterBlockID), payload.Current)
}

func TestChunkLoadPublisher(t *testing.T) {
	bus := NewMemoryBus(64)
	defer bus.Close()

	var c collector
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{EventChunkLoaded}}, c.handle)
	require.NoError(t, err)

	gen := generator.NewHeightmapGenerator[*world.DenseChunk](world.NewDenseChunkFactory(vec.Splat(16)), noise.Constant(0))
	store, err := chunkstore.NewMemoryStore(chunkstore.Options[*world.DenseChunk]{Generator: gen})
	require.NoError(t, err)
	store.OnChunkLoad(ChunkLoadPublisher[*world.DenseChunk](bus, "overworld"))

	_, err = store.LoadChunk(context.Background(), coords.NewChunkCoord(4, -1, 2))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return c.len() == 1 }, time.Second, 5*time.Millisecond)

	var payload ChunkLoadedPayload
	require.NoError(t, json.Unmarshal(c.snapshot()[0].Payload, &payload))
	assert.Equal(t, Position{X: 4, Y: -1, Z: 2}, payload.Chunk)
	assert.Equal(t, string(chunkstore.SourceGenerator), payload.Source)
}

func TestMetricsExporter(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	reg := prometheus.NewRegistry()
	exporter := NewMetricsExporter(bus, reg)

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(context.Background(), NewEnvelope("w", EventBlockUpdated, 5, nil)))
	}

	exporter.collect()
	assert.Equal(t, 3.0, testutil.ToFloat64(exporter.published))

	// Повторный сбор переносит только приращение
	require.NoError(t, bus.Publish(context.Background(), NewEnvelope("w", EventBlockUpdated, 5, nil)))
	exporter.collect()
	assert.Equal(t, 4.0, testutil.ToFloat64(exporter.published))

	exporter.Stop()
}
