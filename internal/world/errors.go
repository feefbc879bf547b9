package world

import "errors"

var (
	// ErrIncompleteConfig возвращается, если не задан сид, фабрика или хранилище чанков
	ErrIncompleteConfig = errors.New("world: incomplete configuration")
	// ErrInvalidChunkSize возвращается при неположительном размере чанка
	ErrInvalidChunkSize = errors.New("world: chunk size must be positive on every axis")
	// ErrInvalidRadius возвращается при отрицательном радиусе стриминга
	ErrInvalidRadius = errors.New("world: streaming radius must not be negative")
	// ErrInvalidTickRate возвращается при неположительной частоте тиков
	ErrInvalidTickRate = errors.New("world: tick rate must be positive")
)
