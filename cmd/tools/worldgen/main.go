package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"runtime"
	"strings"
	"time"

	"github.com/annel0/voxelworld/internal/coords"
	"github.com/annel0/voxelworld/internal/generator"
	"github.com/annel0/voxelworld/internal/noise"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
	"github.com/annel0/voxelworld/internal/world/block"
)

// Символы высот для карты, от низких к высоким
const heightRamp = " .:-=+*#%@"

func main() {
	var (
		seed      = flag.Int64("seed", 1, "World seed")
		kind      = flag.String("noise", noise.KindValue, "Noise kind: value, perlin")
		chunkSize = flag.Int("chunk", 16, "Chunk size")
		radius    = flag.Int("radius", 2, "Radius in chunks around origin (x/z)")
		depth     = flag.Int("depth", 2, "Vertical chunk layers below and above y=0")
		workers   = flag.Int("workers", runtime.NumCPU(), "Generation workers")
		showMap   = flag.Bool("map", true, "Print ASCII surface map")
	)
	flag.Parse()

	field, err := noise.New(*kind, noise.DefaultConfig(*seed))
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	size := vec.Splat(*chunkSize)
	gen := generator.NewHeightmapGenerator[*world.DenseChunk](world.NewDenseChunkFactory(size), field)

	var list []coords.ChunkCoord
	coords.ForEachInRange(
		coords.NewChunkCoord(-*radius, -*depth, -*radius),
		coords.NewChunkCoord(*radius, *depth, *radius),
		func(c coords.ChunkCoord) bool {
			list = append(list, c)
			return true
		})

	started := time.Now()
	chunks, err := gen.GenerateBatch(context.Background(), list, *workers)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	elapsed := time.Since(started)

	counts := make(map[block.BlockID]int)
	registry := block.NewDefaultRegistry()
	for _, chunk := range chunks {
		for _, id := range chunk.Blocks() {
			counts[id]++
		}
	}

	fmt.Printf("Generated %d chunks in %v (%d workers)\n", len(chunks), elapsed, *workers)
	for _, def := range registry.All() {
		if n := counts[def.ID]; n > 0 {
			fmt.Printf("  %-6s %d\n", def.Name, n)
		}
	}

	if *showMap {
		printSurface(gen, *radius, *chunkSize)
	}
}

// printSurface печатает карту высот поверхности по колонкам
func printSurface(gen *generator.Generator[*world.DenseChunk], radius, chunkSize int) {
	from := -radius * chunkSize
	to := (radius+1)*chunkSize - 1

	minH, maxH := 1<<31-1, -(1 << 31)
	heights := make([][]int, 0, to-from+1)
	for z := from; z <= to; z++ {
		row := make([]int, 0, to-from+1)
		for x := from; x <= to; x++ {
			h := gen.ApproximateHeightAt(x, z)
			row = append(row, h)
			minH = min(minH, h)
			maxH = max(maxH, h)
		}
		heights = append(heights, row)
	}

	span := maxH - minH
	if span == 0 {
		span = 1
	}

	fmt.Printf("\nSurface %d..%d\n", minH, maxH)
	var sb strings.Builder
	for _, row := range heights {
		for _, h := range row {
			sb.WriteByte(heightRamp[(h-minH)*(len(heightRamp)-1)/span])
		}
		sb.WriteByte('\n')
	}
	fmt.Print(sb.String())
}
