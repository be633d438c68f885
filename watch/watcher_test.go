package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 50 * time.Millisecond

func newTestWatcher(t *testing.T) Watcher {
	t.Helper()
	w, err := New(WithDebounce(testDebounce))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func touch(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// waitReload waits generously for one reload signal.
func waitReload(t *testing.T, w Watcher, timeout time.Duration) bool {
	t.Helper()
	select {
	case <-w.Reloads():
		return true
	case <-time.After(timeout):
		return false
	}
}

func TestWatcherEmitsReloadOnWrite(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "main.wgsl")
	touch(t, file, "a")

	w := newTestWatcher(t)
	w.SetPaths([]string{file})
	time.Sleep(100 * time.Millisecond) // let the goroutine apply the set

	touch(t, file, "b")
	assert.True(t, waitReload(t, w, 2*time.Second))
}

func TestWatcherCollapsesBurst(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "main.wgsl")
	touch(t, file, "a")

	w := newTestWatcher(t)
	w.SetPaths([]string{file})
	time.Sleep(100 * time.Millisecond)

	// Several writes inside one debounce window produce one reload.
	for i := 0; i < 5; i++ {
		touch(t, file, "content")
		time.Sleep(5 * time.Millisecond)
	}

	require.True(t, waitReload(t, w, 2*time.Second))

	// No second signal arrives once the burst has settled.
	assert.False(t, waitReload(t, w, 3*testDebounce))
}

func TestWatcherSpacedWritesEmitSeparately(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "main.wgsl")
	touch(t, file, "a")

	w := newTestWatcher(t)
	w.SetPaths([]string{file})
	time.Sleep(100 * time.Millisecond)

	touch(t, file, "b")
	require.True(t, waitReload(t, w, 2*time.Second))

	time.Sleep(3 * testDebounce)

	touch(t, file, "c")
	assert.True(t, waitReload(t, w, 2*time.Second))
}

func TestWatcherIgnoresUnwatchedFiles(t *testing.T) {
	dir := t.TempDir()
	watchedFile := filepath.Join(dir, "main.wgsl")
	otherFile := filepath.Join(dir, "other.wgsl")
	touch(t, watchedFile, "a")
	touch(t, otherFile, "a")

	w := newTestWatcher(t)
	w.SetPaths([]string{watchedFile})
	time.Sleep(100 * time.Millisecond)

	touch(t, otherFile, "b")
	assert.False(t, waitReload(t, w, 4*testDebounce))
}

func TestWatcherSetPathsReplaces(t *testing.T) {
	dir := t.TempDir()
	oldFile := filepath.Join(dir, "old.wgsl")
	newFile := filepath.Join(dir, "new.wgsl")
	touch(t, oldFile, "a")
	touch(t, newFile, "a")

	w := newTestWatcher(t)
	w.SetPaths([]string{oldFile})
	time.Sleep(100 * time.Millisecond)

	w.SetPaths([]string{newFile})
	time.Sleep(100 * time.Millisecond)

	touch(t, oldFile, "b")
	assert.False(t, waitReload(t, w, 4*testDebounce))

	touch(t, newFile, "b")
	assert.True(t, waitReload(t, w, 2*time.Second))
}

func TestWatcherIncludeEditTriggersReload(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "main.wgsl")
	inc := filepath.Join(dir, "util.wgsl")
	touch(t, root, "a")
	touch(t, inc, "a")

	w := newTestWatcher(t)
	w.SetPaths([]string{root, inc})
	time.Sleep(100 * time.Millisecond)

	touch(t, inc, "b")
	assert.True(t, waitReload(t, w, 2*time.Second))
}

func TestWatcherRemovedFileWarnsAndKeepsRunning(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "main.wgsl")
	touch(t, file, "a")

	w := newTestWatcher(t)
	w.SetPaths([]string{file})
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.Remove(file))

	select {
	case err := <-w.Warnings():
		assert.Contains(t, err.Error(), "inaccessible")
	case <-time.After(2 * time.Second):
		t.Fatal("expected a warning for the removed file")
	}

	// Recreating the file still produces reload signals.
	touch(t, file, "b")
	assert.True(t, waitReload(t, w, 2*time.Second))
}

func TestWatcherCloseIdempotent(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
