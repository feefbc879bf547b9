package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/annel0/voxelworld/internal/vec"
	"github.com/annel0/voxelworld/internal/world/block"
)

// Формат записи чанка (до сжатия):
//
//	[0:4]   магическая строка "VXC1"
//	[4:10]  размер чанка X, Y, Z (uint16 LE)
//	[10:]   ID блоков (uint16 LE) в порядке индекса чанка
const (
	chunkMagic      = "VXC1"
	chunkHeaderSize = 10
)

// ErrCorruptChunk возвращается, если запись чанка не удаётся разобрать
var ErrCorruptChunk = errors.New("storage: corrupt chunk record")

// EncodeBlocks сериализует буфер блоков вместе с размером чанка
func EncodeBlocks(size vec.Vec3, blocks []block.BlockID) ([]byte, error) {
	if !size.AllPositive() || size.X > 0xFFFF || size.Y > 0xFFFF || size.Z > 0xFFFF {
		return nil, fmt.Errorf("недопустимый размер чанка %v", size)
	}
	if len(blocks) != size.Volume() {
		return nil, fmt.Errorf("буфер из %d блоков не соответствует размеру %v", len(blocks), size)
	}

	buf := make([]byte, chunkHeaderSize+2*len(blocks))
	copy(buf, chunkMagic)
	binary.LittleEndian.PutUint16(buf[4:], uint16(size.X))
	binary.LittleEndian.PutUint16(buf[6:], uint16(size.Y))
	binary.LittleEndian.PutUint16(buf[8:], uint16(size.Z))

	for i, id := range blocks {
		binary.LittleEndian.PutUint16(buf[chunkHeaderSize+2*i:], uint16(id))
	}
	return buf, nil
}

// DecodeBlocks разбирает запись, созданную EncodeBlocks
func DecodeBlocks(data []byte) (vec.Vec3, []block.BlockID, error) {
	if len(data) < chunkHeaderSize || string(data[:4]) != chunkMagic {
		return vec.Vec3{}, nil, fmt.Errorf("%w: bad header", ErrCorruptChunk)
	}

	size := vec.Vec3{
		X: int(binary.LittleEndian.Uint16(data[4:])),
		Y: int(binary.LittleEndian.Uint16(data[6:])),
		Z: int(binary.LittleEndian.Uint16(data[8:])),
	}
	if !size.AllPositive() {
		return vec.Vec3{}, nil, fmt.Errorf("%w: size %v", ErrCorruptChunk, size)
	}

	body := data[chunkHeaderSize:]
	if len(body) != 2*size.Volume() {
		return vec.Vec3{}, nil, fmt.Errorf("%w: %d bytes for size %v", ErrCorruptChunk, len(body), size)
	}

	blocks := make([]block.BlockID, size.Volume())
	for i := range blocks {
		blocks[i] = block.BlockID(binary.LittleEndian.Uint16(body[2*i:]))
	}
	return size, blocks, nil
}
