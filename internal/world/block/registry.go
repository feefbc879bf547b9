package block

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// BlockID представляет идентификатор блока
type BlockID uint16

// Константы ID блоков
const (
	// Базовые типы блоков
	AirBlockID   BlockID = iota // 0 - отсутствие блока, он же признак невалидной позиции
	StoneBlockID                // 1
	GrassBlockID                // 2
	WaterBlockID                // 3
	SandBlockID                 // 4
	DirtBlockID                 // 5
)

// Ошибки регистрации
var (
	ErrDuplicateID   = errors.New("block: id already registered")
	ErrDuplicateName = errors.New("block: name already registered")
	ErrEmptyName     = errors.New("block: empty name")
)

// builtin встроенная палитра, регистрируемая при создании мира
var builtin = []Definition{
	{ID: AirBlockID, Name: "air"},
	{ID: StoneBlockID, Name: "stone"},
	{ID: GrassBlockID, Name: "grass"},
	{ID: WaterBlockID, Name: "water"},
	{ID: SandBlockID, Name: "sand"},
	{ID: DirtBlockID, Name: "dirt"},
}

// Definition описание типа блока
type Definition struct {
	ID   BlockID `yaml:"id" json:"id"`
	Name string  `yaml:"name" json:"name"`
}

// Registry отображение имён блоков на идентификаторы и обратно.
// Каждый мир владеет своим реестром.
type Registry struct {
	mu     sync.RWMutex
	byID   map[BlockID]string
	byName map[string]BlockID
}

// NewRegistry создаёт пустой реестр
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[BlockID]string),
		byName: make(map[string]BlockID),
	}
}

// NewDefaultRegistry создаёт реестр со встроенной палитрой
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, def := range builtin {
		// встроенная палитра не содержит дубликатов
		_ = r.Register(def.ID, def.Name)
	}
	return r
}

// Register добавляет тип блока в реестр
func (r *Registry) Register(id BlockID, name string) error {
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[id]; ok {
		return fmt.Errorf("%w: %d (%s)", ErrDuplicateID, id, existing)
	}
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}

	r.byID[id] = name
	r.byName[name] = id
	return nil
}

// ByName возвращает ID по имени
func (r *Registry) ByName(name string) (BlockID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[name]
	return id, ok
}

// Name возвращает имя блока по ID
func (r *Registry) Name(id BlockID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.byID[id]
	return name, ok
}

// IsValid проверяет, зарегистрирован ли ID
func (r *Registry) IsValid(id BlockID) bool {
	_, ok := r.Name(id)
	return ok
}

// All возвращает все определения, отсортированные по ID
func (r *Registry) All() []Definition {
	r.mu.RLock()
	defs := make([]Definition, 0, len(r.byID))
	for id, name := range r.byID {
		defs = append(defs, Definition{ID: id, Name: name})
	}
	r.mu.RUnlock()

	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// LoadFile регистрирует дополнительные блоки из YAML-файла вида:
//
//	- id: 100
//	  name: flower
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var defs []Definition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return fmt.Errorf("ошибка разбора %s: %w", path, err)
	}

	for _, def := range defs {
		if err := r.Register(def.ID, def.Name); err != nil {
			return fmt.Errorf("ошибка регистрации блока из %s: %w", path, err)
		}
	}
	return nil
}
