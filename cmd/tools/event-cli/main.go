package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/voxelworld/internal/eventbus"
)

const timeFormat = "2006-01-02T15:04:05Z"

func main() {
	var (
		natsURL    = flag.String("nats", "nats://127.0.0.1:4222", "NATS server URL")
		stream     = flag.String("stream", "WORLD_EVENTS", "JetStream stream name")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated): BlockUpdated, ChunkLoaded")
		sources    = flag.String("sources", "", "World names filter (comma-separated)")
		limit      = flag.Int("limit", 0, "Stop after N events (0 = follow forever)")
		raw        = flag.Bool("raw", false, "Print payload as is")
	)
	flag.Parse()

	bus, err := eventbus.NewJetStreamBus(*natsURL, *stream, 24*time.Hour)
	if err != nil {
		log.Fatalf("❌ Failed to connect: %v", err)
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events := make(chan *eventbus.Envelope, 64)
	filter := eventbus.Filter{
		Types:   parseStringList(*eventTypes),
		Sources: parseStringList(*sources),
	}
	sub, err := bus.Subscribe(ctx, filter, func(_ context.Context, ev *eventbus.Envelope) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		log.Fatalf("❌ Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	fmt.Fprintf(os.Stderr, "📡 Tailing %s on %s...\n", *stream, *natsURL)

	count := 0
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			printEvent(ev, *raw)
			count++
			if *limit > 0 && count >= *limit {
				return
			}
		}
	}
}

func printEvent(ev *eventbus.Envelope, raw bool) {
	prefix := fmt.Sprintf("%s [%s] %-12s", ev.Timestamp.Format(timeFormat), ev.Source, ev.EventType)

	if raw {
		fmt.Printf("%s %s\n", prefix, ev.Payload)
		return
	}

	switch ev.EventType {
	case eventbus.EventBlockUpdated:
		var p eventbus.BlockUpdatedPayload
		if err := json.Unmarshal(ev.Payload, &p); err == nil {
			fmt.Printf("%s (%d,%d,%d) %d -> %d\n", prefix, p.Pos.X, p.Pos.Y, p.Pos.Z, p.Previous, p.Current)
			return
		}
	case eventbus.EventChunkLoaded:
		var p eventbus.ChunkLoadedPayload
		if err := json.Unmarshal(ev.Payload, &p); err == nil {
			fmt.Printf("%s chunk(%d,%d,%d) from %s\n", prefix, p.Chunk.X, p.Chunk.Y, p.Chunk.Z, p.Source)
			return
		}
	}
	fmt.Printf("%s %d bytes\n", prefix, len(ev.Payload))
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
