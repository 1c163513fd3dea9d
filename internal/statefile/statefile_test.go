package statefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleState struct {
	Counter int               `json:"counter"`
	Labels  map[string]string `json:"labels"`
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewStore(path)

	saved := sampleState{Counter: 7, Labels: map[string]string{"a": "b"}}
	require.NoError(t, store.Save(saved))

	loaded := sampleState{}
	require.NoError(t, store.Load(&loaded))
	assert.Equal(t, saved, loaded)
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.json"))

	loaded := sampleState{Counter: 42}
	require.NoError(t, store.Load(&loaded))
	assert.Equal(t, 42, loaded.Counter)
}

func TestLoadMergesWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"counter": 3}`), 0o644))

	loaded := sampleState{Counter: 1, Labels: map[string]string{"keep": "me"}}
	require.NoError(t, NewStore(path).Load(&loaded))

	assert.Equal(t, 3, loaded.Counter)
	assert.Equal(t, "me", loaded.Labels["keep"], "absent keys keep defaults")
}

func TestLoadCorruptFileMovesAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	loaded := sampleState{Counter: 9}
	require.NoError(t, NewStore(path).Load(&loaded))
	assert.Equal(t, 9, loaded.Counter)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "corrupt.json.corrupt.")
}

func TestSecretStorePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.json")
	require.NoError(t, NewSecretStore(path).Save(sampleState{}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	store := NewStore(path)

	require.NoError(t, store.Save(sampleState{Counter: 1}))
	require.NoError(t, store.Save(sampleState{Counter: 2}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file left behind")

	loaded := sampleState{}
	require.NoError(t, store.Load(&loaded))
	assert.Equal(t, 2, loaded.Counter)
}
