package resources

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrivener-app/scrivener/registry"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestLibrary(t *testing.T) (*Library, *registry.Resources, string) {
	t.Helper()
	dir := t.TempDir()
	catalog := registry.NewResources(nil)
	lib, err := NewLibrary(dir, catalog, nil)
	require.NoError(t, err)
	return lib, catalog, dir
}

func TestSyncMirrorsDirectory(t *testing.T) {
	lib, catalog, dir := newTestLibrary(t)
	writeFile(t, dir, "notes.md", "# hello")
	writeFile(t, dir, "sub/data.json", `{"a":1}`)

	require.NoError(t, lib.sync())
	require.Equal(t, 2, catalog.Len())

	res, ok := catalog.Get("fs://library/notes.md")
	require.True(t, ok)
	assert.Equal(t, "notes.md", res.Name)

	res, ok = catalog.Get("fs://library/sub/data.json")
	require.True(t, ok)
	assert.Contains(t, res.MimeType, "application/json")
}

func TestSyncRemovesDeletedFiles(t *testing.T) {
	lib, catalog, dir := newTestLibrary(t)
	path := writeFile(t, dir, "temp.txt", "gone soon")
	require.NoError(t, lib.sync())
	require.Equal(t, 1, catalog.Len())

	require.NoError(t, os.Remove(path))
	require.NoError(t, lib.sync())
	assert.Equal(t, 0, catalog.Len())
}

func TestReadTextResource(t *testing.T) {
	lib, _, dir := newTestLibrary(t)
	writeFile(t, dir, "journal.txt", "today was fine")
	require.NoError(t, lib.sync())

	contents, err := lib.Read("fs://library/journal.txt")
	require.NoError(t, err)
	assert.Equal(t, "today was fine", contents.Text)
	assert.Empty(t, contents.Blob)
	assert.Equal(t, "fs://library/journal.txt", contents.URI)
}

func TestReadBinaryResourceIsBase64(t *testing.T) {
	lib, _, dir := newTestLibrary(t)
	path := filepath.Join(dir, "img.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00}, 0o644))

	contents, err := lib.Read("fs://library/img.png")
	require.NoError(t, err)
	assert.Empty(t, contents.Text)
	assert.NotEmpty(t, contents.Blob)
	assert.Equal(t, "image/png", contents.MimeType)
}

func TestReadRejectsTraversal(t *testing.T) {
	lib, _, _ := newTestLibrary(t)

	_, err := lib.Read("fs://library/../../etc/passwd")
	require.Error(t, err)

	_, err = lib.Read("other://scheme/file")
	require.Error(t, err)

	_, err = lib.Read("fs://library/does-not-exist.txt")
	require.Error(t, err)
}

func TestWatcherPicksUpNewFiles(t *testing.T) {
	lib, catalog, dir := newTestLibrary(t)
	lib.rescanDelay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go lib.Run(ctx)

	// Give the watcher a moment to establish before creating the file.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "fresh.txt", "new content")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := catalog.Get("fs://library/fresh.txt"); ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("new file never appeared in the catalog")
}
