package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaths(t *testing.T) {
	at := time.UnixMilli(1754006400123)

	assert.Equal(t, "consolidated/rrb-alp-admit-card-2025.txt", ConsolidatedPath("RRB ALP Admit Card 2025"))
	assert.Equal(t, "responses/rrb-alp-1754006400123.json", ResponsePath("RRB ALP", at))
	assert.Equal(t, "consolidated/untitled.txt", ConsolidatedPath("!!!"))
}

func TestWriter_SavesUnderConventionalPaths(t *testing.T) {
	mem := NewMemory()
	at := time.UnixMilli(42)
	w := NewWriter(mem, func() time.Time { return at })

	uri, err := w.SaveConsolidated(context.Background(), "SSC GD Constable", "blob text")
	require.NoError(t, err)
	assert.Equal(t, "memory://consolidated/ssc-gd-constable.txt", uri)

	_, err = w.SaveResponse(context.Background(), "SSC GD Constable", `{"id":"x"}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"consolidated/ssc-gd-constable.txt", "responses/ssc-gd-constable-42.json"}, mem.Paths())
	b, ok := mem.Get("responses/ssc-gd-constable-42.json")
	require.True(t, ok)
	assert.Equal(t, `{"id":"x"}`, string(b))
}

func TestLocalStore(t *testing.T) {
	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := NewLocal(LocalConfig{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := NewLocal(LocalConfig{BaseDir: file})
		assert.Error(t, err)
	})

	t.Run("CreatesBaseDirAndWrites", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "artifacts")
		store, err := NewLocal(LocalConfig{BaseDir: base})
		require.NoError(t, err)

		uri, err := store.PutObject(context.Background(), "consolidated/a.txt", "text/plain", strings.NewReader("hello"))
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(base, "consolidated/a.txt"), uri)

		b, err := os.ReadFile(filepath.Join(base, "consolidated", "a.txt")) // #nosec G304 -- test temp dir
		require.NoError(t, err)
		assert.Equal(t, "hello", string(b))

		entries, err := os.ReadDir(filepath.Join(base, "consolidated"))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("Overwrites", func(t *testing.T) {
		store, err := NewLocal(LocalConfig{BaseDir: t.TempDir()})
		require.NoError(t, err)
		_, err = store.PutObject(context.Background(), "x.txt", "", strings.NewReader("one"))
		require.NoError(t, err)
		uri, err := store.PutObject(context.Background(), "x.txt", "", strings.NewReader("two"))
		require.NoError(t, err)

		b, err := os.ReadFile(strings.TrimPrefix(uri, "file://"))
		require.NoError(t, err)
		assert.Equal(t, "two", string(b))
	})

	t.Run("RejectsTraversal", func(t *testing.T) {
		store, err := NewLocal(LocalConfig{BaseDir: t.TempDir()})
		require.NoError(t, err)
		_, err = store.PutObject(context.Background(), "../escape.txt", "", strings.NewReader("x"))
		assert.ErrorContains(t, err, "path traversal")
	})

	t.Run("RejectsEmptyPath", func(t *testing.T) {
		store, err := NewLocal(LocalConfig{BaseDir: t.TempDir()})
		require.NoError(t, err)
		_, err = store.PutObject(context.Background(), " ", "", strings.NewReader("x"))
		assert.Error(t, err)
	})
}

func TestNewGCS_Validation(t *testing.T) {
	_, err := NewGCS(nil, GCSConfig{Bucket: "b"})
	assert.ErrorContains(t, err, "client is required")
}
