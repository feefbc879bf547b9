package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/annel0/voxelworld/internal/chunkstore"
	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/world"
)

// Приоритеты событий мира. Обновления блоков можно терять при перегрузке
// шины, мир не должен ждать подписчиков.
const (
	blockUpdatePriority = 3
	chunkLoadPriority   = 1
	publishTimeout      = time.Second
)

// Position координаты в полезной нагрузке
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// BlockUpdatedPayload полезная нагрузка события BlockUpdated
type BlockUpdatedPayload struct {
	Pos      Position `json:"pos"`
	Chunk    Position `json:"chunk"`
	Previous uint16   `json:"previous"`
	Current  uint16   `json:"current"`
}

// ChunkLoadedPayload полезная нагрузка события ChunkLoaded
type ChunkLoadedPayload struct {
	Chunk  Position `json:"chunk"`
	Source string   `json:"source"`
}

// BlockUpdatePublisher возвращает наблюдателя мира, публикующего изменения
// блоков в шину. Ошибки публикации только логируются.
func BlockUpdatePublisher(bus EventBus, source string) world.BlockUpdateFunc {
	return func(u world.BlockUpdate) {
		pos := u.Location.Pos()
		chunk := u.Location.Chunk()
		payload, err := json.Marshal(BlockUpdatedPayload{
			Pos:      Position{X: pos.X, Y: pos.Y, Z: pos.Z},
			Chunk:    Position{X: chunk.X, Y: chunk.Y, Z: chunk.Z},
			Previous: uint16(u.Previous),
			Current:  uint16(u.Current),
		})
		if err != nil {
			logging.Error("BlockUpdated: ошибка сериализации: %v", err)
			return
		}

		publish(bus, NewEnvelope(source, EventBlockUpdated, blockUpdatePriority, payload))
	}
}

// ChunkLoadPublisher возвращает обработчик загрузки чанков для хранилища
func ChunkLoadPublisher[C world.Chunk](bus EventBus, source string) chunkstore.ChunkLoadFunc[C] {
	return func(chunk C, from chunkstore.Source) {
		c := chunk.Location()
		payload, err := json.Marshal(ChunkLoadedPayload{
			Chunk:  Position{X: c.X, Y: c.Y, Z: c.Z},
			Source: string(from),
		})
		if err != nil {
			logging.Error("ChunkLoaded: ошибка сериализации: %v", err)
			return
		}

		publish(bus, NewEnvelope(source, EventChunkLoaded, chunkLoadPriority, payload))
	}
}

func publish(bus EventBus, ev *Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := bus.Publish(ctx, ev); err != nil {
		logging.Warn("Не удалось опубликовать %s: %v", ev.EventType, err)
	}
}
