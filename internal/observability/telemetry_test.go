package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/annel0/voxelworld/internal/chunkstore"
	"github.com/annel0/voxelworld/internal/coords"
	"github.com/annel0/voxelworld/internal/generator"
	"github.com/annel0/voxelworld/internal/noise"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
)

func TestChunkLoadSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := NewTracerProvider(nil, trace.WithSpanProcessor(recorder))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	gen := generator.NewHeightmapGenerator[*world.DenseChunk](world.NewDenseChunkFactory(vec.Splat(8)), noise.Constant(0))
	store, err := chunkstore.NewMemoryStore(chunkstore.Options[*world.DenseChunk]{Generator: gen})
	require.NoError(t, err)

	c := coords.NewChunkCoord(2, -1, 3)
	_, err = store.LoadChunk(context.Background(), c)
	require.NoError(t, err)

	// Резидентный чанк берётся без нового спана
	_, err = store.LoadChunk(context.Background(), c)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "chunkstore.load", spans[0].Name())

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, int64(2), attrs["chunk.x"].AsInt64())
	assert.Equal(t, int64(-1), attrs["chunk.y"].AsInt64())
	assert.Equal(t, int64(3), attrs["chunk.z"].AsInt64())
	assert.Equal(t, string(chunkstore.SourceGenerator), attrs["chunk.source"].AsString())
}
