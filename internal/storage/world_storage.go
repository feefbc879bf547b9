package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"

	"github.com/annel0/voxelworld/internal/coords"
	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world"
)

var (
	// ErrStorageClosed возвращается при обращении к закрытому хранилищу
	ErrStorageClosed = errors.New("storage: closed")
	// ErrSizeMismatch возвращается, если сохранённый чанк другого размера
	ErrSizeMismatch = errors.New("storage: chunk size mismatch")
)

const (
	chunkKeyPrefix = "chunk:"
	spawnKey       = "meta:spawn"
)

// WorldStorage хранит изменённые чанки мира в BadgerDB. Сгенерированные и
// не изменённые чанки не сохраняются: генерация воспроизводима по сиду.
type WorldStorage struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewWorldStorage открывает хранилище в директории dataPath/world
func NewWorldStorage(dataPath string) (*WorldStorage, error) {
	dbPath := filepath.Join(dataPath, "world")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	return open(opts, dbPath)
}

// NewInMemoryWorldStorage создаёт хранилище без записи на диск
func NewInMemoryWorldStorage() (*WorldStorage, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	return open(opts, "")
}

func open(opts badger.Options, dbPath string) (*WorldStorage, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, fmt.Errorf("не удалось создать zstd decoder: %w", err)
	}

	return &WorldStorage{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// Close закрывает хранилище данных
func (ws *WorldStorage) Close() error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	if !ws.isReady {
		return nil
	}

	ws.isReady = false
	ws.encoder.Close()
	ws.decoder.Close()
	return ws.db.Close()
}

func chunkKey(c coords.ChunkCoord) []byte {
	return []byte(fmt.Sprintf("%s%d:%d:%d", chunkKeyPrefix, c.X, c.Y, c.Z))
}

// SaveChunk сохраняет чанк, если в нём есть несохранённые изменения
func (ws *WorldStorage) SaveChunk(chunk *world.DenseChunk) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrStorageClosed
	}

	// Если нет изменений, пропускаем
	changes := chunk.ChangeCount()
	if changes == 0 {
		return nil
	}

	raw, err := EncodeBlocks(chunk.Size(), chunk.Blocks())
	if err != nil {
		return fmt.Errorf("ошибка сериализации %v: %w", chunk.Location(), err)
	}
	data := ws.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/4))

	err = ws.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chunkKey(chunk.Location()), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	// Изменения, сделанные во время записи, остаются несохранёнными
	if chunk.ChangeCount() == changes {
		chunk.ClearChanges()
	}

	logging.Trace("Чанк %v сохранён (%d байт, %d изменений)", chunk.Location(), len(data), changes)
	return nil
}

// LoadChunk заполняет чанк сохранёнными блоками. Возвращает false, если
// чанк ни разу не сохранялся.
func (ws *WorldStorage) LoadChunk(chunk *world.DenseChunk) (bool, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return false, ErrStorageClosed
	}

	var data []byte

	// Читаем данные из BadgerDB
	err := ws.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chunkKey(chunk.Location()))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	raw, err := ws.decoder.DecodeAll(data, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCorruptChunk, err)
	}

	size, blocks, err := DecodeBlocks(raw)
	if err != nil {
		return false, err
	}
	if size != chunk.Size() {
		return false, fmt.Errorf("%w: stored %v, chunk %v", ErrSizeMismatch, size, chunk.Size())
	}

	if err := chunk.LoadBlocks(blocks); err != nil {
		return false, err
	}
	return true, nil
}

// HasChunk проверяет, сохранён ли чанк
func (ws *WorldStorage) HasChunk(c coords.ChunkCoord) (bool, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return false, ErrStorageClosed
	}

	err := ws.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(chunkKey(c))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// DeleteChunk удаляет сохранённый чанк; при следующей загрузке он будет сгенерирован заново
func (ws *WorldStorage) DeleteChunk(c coords.ChunkCoord) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrStorageClosed
	}

	return ws.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(chunkKey(c))
	})
}

// ChunkCount возвращает количество сохранённых чанков
func (ws *WorldStorage) ChunkCount() (int, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return 0, ErrStorageClosed
	}

	count := 0
	err := ws.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(chunkKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// SaveSpawnPoint сохраняет точку появления мира
func (ws *WorldStorage) SaveSpawnPoint(pos vec.Vec3) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrStorageClosed
	}

	buf := make([]byte, 24)
	binary.LittleEndian.PutUint64(buf[0:], uint64(int64(pos.X)))
	binary.LittleEndian.PutUint64(buf[8:], uint64(int64(pos.Y)))
	binary.LittleEndian.PutUint64(buf[16:], uint64(int64(pos.Z)))

	return ws.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(spawnKey), buf)
	})
}

// LoadSpawnPoint возвращает сохранённую точку появления; false, если её нет
func (ws *WorldStorage) LoadSpawnPoint() (vec.Vec3, bool, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return vec.Vec3{}, false, ErrStorageClosed
	}

	var pos vec.Vec3
	err := ws.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(spawnKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 24 {
				return fmt.Errorf("%w: spawn record of %d bytes", ErrCorruptChunk, len(val))
			}
			pos = vec.Vec3{
				X: int(int64(binary.LittleEndian.Uint64(val[0:]))),
				Y: int(int64(binary.LittleEndian.Uint64(val[8:]))),
				Z: int(int64(binary.LittleEndian.Uint64(val[16:]))),
			}
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return vec.Vec3{}, false, nil
	}
	if err != nil {
		return vec.Vec3{}, false, err
	}
	return pos, true, nil
}
