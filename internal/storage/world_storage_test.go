package storage

import (
	"errors"
	"testing"

	"github.com/annel0/voxelworld/internal/coords"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
	"github.com/annel0/voxelworld/internal/world/block"
)

func setupTestStorage(t *testing.T) *WorldStorage {
	t.Helper()

	storage, err := NewInMemoryWorldStorage()
	if err != nil {
		t.Fatalf("Не удалось создать хранилище: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return storage
}

func TestSaveAndLoadChunk(t *testing.T) {
	storage := setupTestStorage(t)

	c := coords.NewChunkCoord(10, -2, 20)
	chunk := world.NewDenseChunk(c, vec.Splat(16))
	chunk.SetBlockAt(5, 5, 5, block.WaterBlockID)
	chunk.SetBlockAt(8, 3, 15, block.GrassBlockID)

	if err := storage.SaveChunk(chunk); err != nil {
		t.Fatalf("Ошибка сохранения чанка: %v", err)
	}
	if chunk.HasChanges() {
		t.Errorf("После сохранения изменений быть не должно")
	}

	loaded := world.NewDenseChunk(c, vec.Splat(16))
	found, err := storage.LoadChunk(loaded)
	if err != nil {
		t.Fatalf("Ошибка загрузки чанка: %v", err)
	}
	if !found {
		t.Fatalf("Чанк %v не найден", c)
	}

	if got := loaded.BlockAt(5, 5, 5); got != block.WaterBlockID {
		t.Errorf("Неверный блок (5,5,5): %d, ожидалось %d", got, block.WaterBlockID)
	}
	if got := loaded.BlockAt(8, 3, 15); got != block.GrassBlockID {
		t.Errorf("Неверный блок (8,3,15): %d, ожидалось %d", got, block.GrassBlockID)
	}
	if loaded.NonAirCount() != 2 {
		t.Errorf("Неверное количество блоков: %d, ожидалось 2", loaded.NonAirCount())
	}
	if loaded.HasChanges() {
		t.Errorf("Загруженный чанк не должен иметь изменений")
	}
}

func TestSaveSkipsUnchangedChunk(t *testing.T) {
	storage := setupTestStorage(t)

	chunk := world.NewDenseChunk(coords.NewChunkCoord(0, 0, 0), vec.Splat(16))
	if err := storage.SaveChunk(chunk); err != nil {
		t.Fatalf("Ошибка сохранения чанка: %v", err)
	}

	count, err := storage.ChunkCount()
	if err != nil {
		t.Fatalf("Ошибка подсчёта: %v", err)
	}
	if count != 0 {
		t.Errorf("Неизменённый чанк не должен сохраняться, сохранено %d", count)
	}
}

func TestLoadMissingChunk(t *testing.T) {
	storage := setupTestStorage(t)

	chunk := world.NewDenseChunk(coords.NewChunkCoord(1, 2, 3), vec.Splat(16))
	found, err := storage.LoadChunk(chunk)
	if err != nil {
		t.Fatalf("Ошибка загрузки: %v", err)
	}
	if found {
		t.Errorf("Несохранённый чанк не должен находиться")
	}
}

func TestSizeMismatch(t *testing.T) {
	storage := setupTestStorage(t)

	c := coords.NewChunkCoord(0, 0, 0)
	small := world.NewDenseChunk(c, vec.Splat(8))
	small.Fill(block.StoneBlockID)
	if err := storage.SaveChunk(small); err != nil {
		t.Fatalf("Ошибка сохранения: %v", err)
	}

	big := world.NewDenseChunk(c, vec.Splat(16))
	if _, err := storage.LoadChunk(big); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("Ожидалась ErrSizeMismatch, получено %v", err)
	}
}

func TestDeleteAndCount(t *testing.T) {
	storage := setupTestStorage(t)

	for i := 0; i < 3; i++ {
		chunk := world.NewDenseChunk(coords.NewChunkCoord(i, 0, -i), vec.Splat(16))
		chunk.SetBlockAt(0, 0, 0, block.SandBlockID)
		if err := storage.SaveChunk(chunk); err != nil {
			t.Fatalf("Ошибка сохранения: %v", err)
		}
	}

	if count, _ := storage.ChunkCount(); count != 3 {
		t.Fatalf("Ожидалось 3 чанка, получено %d", count)
	}

	c := coords.NewChunkCoord(1, 0, -1)
	if ok, _ := storage.HasChunk(c); !ok {
		t.Errorf("Чанк %v должен быть сохранён", c)
	}
	if err := storage.DeleteChunk(c); err != nil {
		t.Fatalf("Ошибка удаления: %v", err)
	}
	if ok, _ := storage.HasChunk(c); ok {
		t.Errorf("Чанк %v должен быть удалён", c)
	}
	if count, _ := storage.ChunkCount(); count != 2 {
		t.Errorf("Ожидалось 2 чанка, получено %d", count)
	}
}

func TestSpawnPoint(t *testing.T) {
	storage := setupTestStorage(t)

	if _, ok, err := storage.LoadSpawnPoint(); err != nil || ok {
		t.Fatalf("Точка появления не должна быть сохранена: ok=%v err=%v", ok, err)
	}

	want := vec.NewVec3(-100, 42, 7)
	if err := storage.SaveSpawnPoint(want); err != nil {
		t.Fatalf("Ошибка сохранения: %v", err)
	}

	got, ok, err := storage.LoadSpawnPoint()
	if err != nil || !ok {
		t.Fatalf("Ошибка загрузки: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Errorf("Неверная точка появления: %v, ожидалось %v", got, want)
	}
}

func TestClosedStorage(t *testing.T) {
	storage, err := NewInMemoryWorldStorage()
	if err != nil {
		t.Fatalf("Не удалось создать хранилище: %v", err)
	}
	if err := storage.Close(); err != nil {
		t.Fatalf("Ошибка закрытия: %v", err)
	}
	if err := storage.Close(); err != nil {
		t.Errorf("Повторное закрытие не должно возвращать ошибку: %v", err)
	}

	chunk := world.NewDenseChunk(coords.NewChunkCoord(0, 0, 0), vec.Splat(16))
	chunk.SetBlockAt(0, 0, 0, block.StoneBlockID)
	if err := storage.SaveChunk(chunk); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("Ожидалась ErrStorageClosed, получено %v", err)
	}
}

func TestDiskStorageReopen(t *testing.T) {
	dir := t.TempDir()
	c := coords.NewChunkCoord(-1, 0, 1)

	storage, err := NewWorldStorage(dir)
	if err != nil {
		t.Fatalf("Не удалось открыть хранилище: %v", err)
	}
	chunk := world.NewDenseChunk(c, vec.Splat(16))
	chunk.SetBlockAt(15, 0, 0, block.DirtBlockID)
	if err := storage.SaveChunk(chunk); err != nil {
		t.Fatalf("Ошибка сохранения: %v", err)
	}
	storage.Close()

	reopened, err := NewWorldStorage(dir)
	if err != nil {
		t.Fatalf("Не удалось переоткрыть хранилище: %v", err)
	}
	defer reopened.Close()

	loaded := world.NewDenseChunk(c, vec.Splat(16))
	if found, err := reopened.LoadChunk(loaded); err != nil || !found {
		t.Fatalf("Чанк не восстановлен: found=%v err=%v", found, err)
	}
	if got := loaded.BlockAt(15, 0, 0); got != block.DirtBlockID {
		t.Errorf("Неверный блок: %d", got)
	}
}

func TestDecodeCorrupt(t *testing.T) {
	if _, _, err := DecodeBlocks([]byte("garbage")); !errors.Is(err, ErrCorruptChunk) {
		t.Errorf("Ожидалась ErrCorruptChunk, получено %v", err)
	}

	raw, err := EncodeBlocks(vec.Splat(2), make([]block.BlockID, 8))
	if err != nil {
		t.Fatalf("Ошибка кодирования: %v", err)
	}
	if _, _, err := DecodeBlocks(raw[:len(raw)-1]); !errors.Is(err, ErrCorruptChunk) {
		t.Errorf("Обрезанная запись должна давать ErrCorruptChunk, получено %v", err)
	}

	if _, err := EncodeBlocks(vec.Splat(2), make([]block.BlockID, 7)); err == nil {
		t.Errorf("Ожидалась ошибка при несовпадении размера буфера")
	}
}
