package block

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry()

	for _, name := range []string{"air", "stone", "grass", "dirt"} {
		_, ok := r.ByName(name)
		assert.True(t, ok, "блок %s должен быть зарегистрирован", name)
	}

	id, ok := r.ByName("air")
	require.True(t, ok)
	assert.Equal(t, AirBlockID, id)

	name, ok := r.Name(StoneBlockID)
	require.True(t, ok)
	assert.Equal(t, "stone", name)

	defs := r.All()
	require.Len(t, defs, len(builtin))
	assert.Equal(t, AirBlockID, defs[0].ID)
}

func TestRegisterDuplicates(t *testing.T) {
	r := NewDefaultRegistry()

	assert.ErrorIs(t, r.Register(StoneBlockID, "granite"), ErrDuplicateID)
	assert.ErrorIs(t, r.Register(100, "stone"), ErrDuplicateName)
	assert.ErrorIs(t, r.Register(101, ""), ErrEmptyName)

	require.NoError(t, r.Register(100, "flower"))
	assert.True(t, r.IsValid(100))
	assert.False(t, r.IsValid(999))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blocks.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- id: 100\n  name: flower\n- id: 101\n  name: tree\n"), 0o644))

	r := NewDefaultRegistry()
	require.NoError(t, r.LoadFile(path))

	id, ok := r.ByName("tree")
	require.True(t, ok)
	assert.Equal(t, BlockID(101), id)

	// Повторная загрузка конфликтует по ID
	assert.ErrorIs(t, r.LoadFile(path), ErrDuplicateID)
}
