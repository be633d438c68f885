package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDecodes(t *testing.T) {
	s := Default()
	assert.Equal(t, uint32(640), s.Window.Width)
	assert.Equal(t, uint32(480), s.Window.Height)
	assert.True(t, s.Shader.AutoPlay)
	assert.False(t, s.Appearance.FrameCounter)
	assert.Equal(t, uint32(100), s.Reload.DebounceMillis)
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), s)

	// The file now exists with the default contents.
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLoadExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	content := `[window]
width = 1280
height = 720

[shader]
auto_play = false

[appearance]
clear_color = [0.1, 0.2, 0.3]
frame_counter = true

[reload]
debounce_millis = 250
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(1280), s.Window.Width)
	assert.False(t, s.Shader.AutoPlay)
	assert.Equal(t, [3]float64{0.1, 0.2, 0.3}, s.Appearance.ClearColor)
	assert.True(t, s.Appearance.FrameCounter)
	assert.Equal(t, uint32(250), s.Reload.DebounceMillis)
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("not valid toml ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	s := Default()
	s.Window.Width = 1920
	s.Window.Height = 1080
	s.Appearance.FrameCounter = true
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}
