package world

import (
	"sync"
	"time"

	"github.com/annel0/voxelworld/internal/coords"
	"github.com/annel0/voxelworld/internal/world/block"
)

// BlockUpdate описывает успешное изменение блока в мире
type BlockUpdate struct {
	Location coords.BlockLocation // Мировая позиция блока
	Previous block.BlockID        // Блок до изменения
	Current  block.BlockID        // Блок после изменения
	Time     time.Time
}

// BlockUpdateFunc наблюдатель изменений блоков. Вызывается синхронно в
// горутине, которая изменила блок, поэтому не должен блокироваться надолго.
type BlockUpdateFunc func(update BlockUpdate)

type observer struct {
	id uint64
	fn BlockUpdateFunc
}

// observerList список наблюдателей с поддержкой отписки
type observerList struct {
	mu     sync.RWMutex
	nextID uint64
	items  []observer
}

// add регистрирует наблюдателя и возвращает функцию отписки
func (l *observerList) add(fn BlockUpdateFunc) func() {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.items = append(l.items, observer{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for i, o := range l.items {
				if o.id == id {
					l.items = append(l.items[:i], l.items[i+1:]...)
					return
				}
			}
		})
	}
}

// notify вызывает наблюдателей в порядке регистрации
func (l *observerList) notify(update BlockUpdate) {
	l.mu.RLock()
	snapshot := make([]observer, len(l.items))
	copy(snapshot, l.items)
	l.mu.RUnlock()

	for _, o := range snapshot {
		o.fn(update)
	}
}

func (l *observerList) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}
