package world

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/annel0/voxelworld/internal/vec"
)

// Agent участник мира, вокруг которого подгружаются чанки (игрок, камера).
// Агенты различаются по значению интерфейса, поэтому несравнимые
// реализации (структуры со срезами или картами) не принимаются миром.
type Agent interface {
	// Location возвращает текущую мировую позицию агента
	Location() vec.Vec3
}

// PointAgent простой агент с изменяемой позицией
type PointAgent struct {
	id  uuid.UUID
	mu  sync.RWMutex
	pos vec.Vec3
}

// NewPointAgent создаёт агента в указанной позиции
func NewPointAgent(pos vec.Vec3) *PointAgent {
	return &PointAgent{
		id:  uuid.New(),
		pos: pos,
	}
}

// ID возвращает идентификатор агента
func (a *PointAgent) ID() uuid.UUID {
	return a.id
}

// Location возвращает позицию агента
func (a *PointAgent) Location() vec.Vec3 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pos
}

// MoveTo перемещает агента
func (a *PointAgent) MoveTo(pos vec.Vec3) {
	a.mu.Lock()
	a.pos = pos
	a.mu.Unlock()
}

func (a *PointAgent) String() string {
	return fmt.Sprintf("agent(%s @ %v)", a.id, a.Location())
}

// agentSet множество агентов с сохранением порядка присоединения
type agentSet struct {
	mu    sync.RWMutex
	items []Agent
}

// comparableAgent сообщает, можно ли безопасно сравнивать агента через ==
func comparableAgent(a Agent) bool {
	return a != nil && reflect.TypeOf(a).Comparable()
}

func (s *agentSet) join(a Agent) bool {
	if !comparableAgent(a) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.items {
		if existing == a {
			return false
		}
	}
	s.items = append(s.items, a)
	return true
}

func (s *agentSet) leave(a Agent) bool {
	if !comparableAgent(a) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.items {
		if existing == a {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// snapshot возвращает копию списка агентов
func (s *agentSet) snapshot() []Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Agent, len(s.items))
	copy(out, s.items)
	return out
}
