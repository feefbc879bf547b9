package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/annel0/voxelworld/internal/coords"
	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world/block"
)

var errBadCoord = errors.New("координаты должны быть целыми числами")

// Position координаты в ответах API
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func toPosition(v vec.Vec3) Position {
	return Position{X: v.X, Y: v.Y, Z: v.Z}
}

// WorldInfo сводка состояния мира
type WorldInfo struct {
	Seed            int64    `json:"seed"`
	ChunkSize       Position `json:"chunk_size"`
	StreamingRadius int      `json:"streaming_radius"`
	Spawn           Position `json:"spawn"`
	Agents          int      `json:"agents"`
	ResidentChunks  *int     `json:"resident_chunks,omitempty"`
	Tick            TickInfo `json:"tick"`
}

// TickInfo статистика последнего тика
type TickInfo struct {
	Current    uint64  `json:"current"`
	TickRate   int     `json:"tick_rate"`
	Requests   int     `json:"requests"`
	Failures   int     `json:"failures"`
	DurationMs float64 `json:"duration_ms"`
}

// BlockInfo блок в мировых координатах
type BlockInfo struct {
	Pos    Position `json:"pos"`
	Chunk  Position `json:"chunk"`
	Local  Position `json:"local"`
	ID     uint16   `json:"id"`
	Name   string   `json:"name,omitempty"`
	Loaded bool     `json:"loaded"`
}

// SetBlockRequest запрос на установку блока. Имя имеет приоритет над ID.
type SetBlockRequest struct {
	ID   *uint16 `json:"id"`
	Name string  `json:"name"`
}

// ChunkInfo состояние чанка
type ChunkInfo struct {
	Chunk    Position `json:"chunk"`
	Origin   Position `json:"origin"`
	Resident bool     `json:"resident"`
}

// handleHealth проверка живости
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"tick":   rs.cfg.World.CurrentTick(),
	})
}

// handleWorldInfo возвращает сводку мира
func (rs *RestServer) handleWorldInfo(c *gin.Context) {
	w := rs.cfg.World
	last := w.LastTick()

	info := WorldInfo{
		Seed:            w.Seed(),
		ChunkSize:       toPosition(w.ChunkSize()),
		StreamingRadius: w.StreamingRadius(),
		Spawn:           toPosition(w.SpawnPoint()),
		Agents:          len(w.Agents()),
		Tick: TickInfo{
			Current:    w.CurrentTick(),
			TickRate:   last.TickRate,
			Requests:   last.Requests,
			Failures:   last.Failures,
			DurationMs: float64(last.Duration.Microseconds()) / 1000,
		},
	}
	if rs.cfg.ResidentCount != nil {
		n := rs.cfg.ResidentCount()
		info.ResidentChunks = &n
	}

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: info})
}

// handleRegistry возвращает зарегистрированные типы блоков
func (rs *RestServer) handleRegistry(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "ok",
		Data:    rs.registry.All(),
	})
}

// handleGetBlock возвращает блок по мировым координатам
func (rs *RestServer) handleGetBlock(c *gin.Context) {
	pos, err := parseVec(c)
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: rs.blockInfo(pos)})
}

// handleSetBlock устанавливает блок по мировым координатам
func (rs *RestServer) handleSetBlock(c *gin.Context) {
	pos, err := parseVec(c)
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}

	var req SetBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}

	w := rs.cfg.World
	var id block.BlockID
	switch {
	case req.Name != "":
		var ok bool
		if id, ok = rs.registry.ByName(req.Name); !ok {
			abort(c, http.StatusBadRequest, "Неизвестный тип блока: "+req.Name)
			return
		}
	case req.ID != nil:
		id = block.BlockID(*req.ID)
		if !rs.registry.IsValid(id) {
			abort(c, http.StatusBadRequest, "Неизвестный ID блока: "+strconv.Itoa(int(id)))
			return
		}
	default:
		abort(c, http.StatusBadRequest, "Нужно указать id или name")
		return
	}

	if !w.IsValidBlockLocation(pos) {
		abort(c, http.StatusUnprocessableEntity, "Координаты вне границ мира")
		return
	}
	if !w.IsChunkLoaded(pos) {
		abort(c, http.StatusConflict, "Чанк не загружен")
		return
	}
	if !w.SetBlockAt(pos, id) {
		abort(c, http.StatusConflict, "Блок не установлен")
		return
	}

	logging.Debug("Admin API: %s установил блок %d в %v", c.GetString(ctxOperator), id, pos)
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Блок установлен", Data: rs.blockInfo(pos)})
}

// handleGetChunk возвращает состояние чанка
func (rs *RestServer) handleGetChunk(c *gin.Context) {
	v, err := parseVec(c)
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "ok", Data: rs.chunkInfo(coords.ChunkCoord(v))})
}

// handleLoadChunk загружает чанк в память
func (rs *RestServer) handleLoadChunk(c *gin.Context) {
	if rs.cfg.LoadChunk == nil {
		abort(c, http.StatusNotImplemented, "Загрузка чанков недоступна")
		return
	}

	v, err := parseVec(c)
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}

	chunk := coords.ChunkCoord(v)
	if err := rs.cfg.LoadChunk(c.Request.Context(), chunk); err != nil {
		logging.Error("Admin API: загрузка %v: %v", chunk, err)
		abort(c, http.StatusInternalServerError, "Ошибка загрузки чанка")
		return
	}

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Чанк загружен", Data: rs.chunkInfo(chunk)})
}

// handleSetSpawn переносит точку появления
func (rs *RestServer) handleSetSpawn(c *gin.Context) {
	var req Position
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}

	pos := vec.NewVec3(req.X, req.Y, req.Z)
	if !rs.cfg.World.IsValidBlockLocation(pos) {
		abort(c, http.StatusUnprocessableEntity, "Координаты вне границ мира")
		return
	}

	rs.cfg.World.SetSpawnPoint(pos)
	logging.Info("Admin API: точка появления перенесена в %v", pos)
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Точка появления обновлена", Data: req})
}

func (rs *RestServer) blockInfo(pos vec.Vec3) BlockInfo {
	w := rs.cfg.World
	loc := coords.NewBlockLocation(pos, w.ChunkSize())
	id := w.BlockAt(pos)
	name, _ := rs.registry.Name(id)

	return BlockInfo{
		Pos:    toPosition(pos),
		Chunk:  toPosition(loc.Chunk().Vec()),
		Local:  toPosition(loc.Local().Vec()),
		ID:     uint16(id),
		Name:   name,
		Loaded: w.IsChunkLoaded(pos),
	}
}

func (rs *RestServer) chunkInfo(chunk coords.ChunkCoord) ChunkInfo {
	origin := coords.ChunkOrigin(chunk, rs.cfg.World.ChunkSize())
	return ChunkInfo{
		Chunk:    toPosition(chunk.Vec()),
		Origin:   toPosition(origin),
		Resident: rs.cfg.World.IsChunkLoaded(origin),
	}
}

// parseVec читает параметры пути :x/:y/:z
func parseVec(c *gin.Context) (vec.Vec3, error) {
	var out [3]int
	for i, name := range []string{"x", "y", "z"} {
		v, err := strconv.Atoi(c.Param(name))
		if err != nil {
			return vec.Vec3{}, errBadCoord
		}
		out[i] = v
	}
	return vec.NewVec3(out[0], out[1], out[2]), nil
}
