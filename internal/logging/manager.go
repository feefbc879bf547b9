package logging

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// Логгеры подсистем: у каждой свой файл, уровень консоли общий с
// глобальным логгером (см. SetLevel)
var components = struct {
	mu      sync.Mutex
	loggers map[string]*Logger
	level   LogLevel
}{
	loggers: make(map[string]*Logger),
	level:   INFO,
}

// Component возвращает логгер подсистемы, создавая файл при первом
// обращении. Если файл создать нельзя, логгер пишет только в stdout.
func Component(name string) *Logger {
	components.mu.Lock()
	defer components.mu.Unlock()

	if l, ok := components.loggers[name]; ok {
		return l
	}

	l, err := NewLogger(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		l = NewWriterLogger(name, os.Stdout, components.level)
	}
	l.SetLevels(components.level, TRACE)
	components.loggers[name] = l
	return l
}

// WorldLogger логгер тиков и загрузки мира
func WorldLogger() *Logger {
	return Component("world")
}

// setComponentsLevel меняет уровень консоли всех логгеров подсистем
func setComponentsLevel(level LogLevel) {
	components.mu.Lock()
	defer components.mu.Unlock()

	components.level = level
	for _, l := range components.loggers {
		l.SetLevels(level, TRACE)
	}
}

// CloseComponents закрывает файлы логгеров подсистем
func CloseComponents() error {
	components.mu.Lock()
	defer components.mu.Unlock()

	var errs []error
	for name, l := range components.loggers {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	components.loggers = make(map[string]*Logger)
	return errors.Join(errs...)
}
