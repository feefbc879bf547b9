package coords

import (
	"testing"

	"github.com/annel0/voxelworld/internal/vec"
	"github.com/stretchr/testify/assert"
)

func TestStreamingRangeAtOrigin(t *testing.T) {
	start, end := StreamingRange(vec.NewVec3(0, 0, 0), 128, vec.Splat(16))

	assert.Equal(t, NewChunkCoord(-8, -8, -8), start)
	assert.Equal(t, NewChunkCoord(8, 8, 8), end)
	assert.Equal(t, 17*17*17, RangeVolume(start, end))
}

func TestStreamingRangeUnaligned(t *testing.T) {
	// (-5-128)/16 = -8.31 -> -9, (-5+128)/16 = 7.69 -> 8
	start, end := StreamingRange(vec.NewVec3(-5, 0, 3), 128, vec.Splat(16))

	assert.Equal(t, -9, start.X)
	assert.Equal(t, 8, end.X)
	assert.Equal(t, -8, start.Z)
	assert.Equal(t, 9, end.Z)
}

func TestForEachInRangeInclusive(t *testing.T) {
	start := NewChunkCoord(-1, 0, 2)
	end := NewChunkCoord(1, 1, 2)

	seen := make(map[ChunkCoord]int)
	ForEachInRange(start, end, func(c ChunkCoord) bool {
		seen[c]++
		return true
	})

	assert.Len(t, seen, RangeVolume(start, end))
	assert.Equal(t, 6, len(seen))
	assert.Equal(t, 1, seen[start])
	assert.Equal(t, 1, seen[end])
	for c := range seen {
		assert.True(t, InRange(c, start, end))
	}
}

func TestForEachInRangeStops(t *testing.T) {
	calls := 0
	ForEachInRange(NewChunkCoord(0, 0, 0), NewChunkCoord(9, 9, 9), func(ChunkCoord) bool {
		calls++
		return calls < 5
	})
	assert.Equal(t, 5, calls)
}

func TestRangeVolumeEmpty(t *testing.T) {
	assert.Equal(t, 0, RangeVolume(NewChunkCoord(1, 0, 0), NewChunkCoord(0, 0, 0)))
}
