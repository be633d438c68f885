// Package settings loads and saves the viewer configuration as a TOML file
// next to the executable. A default file is written on first run so users
// have something to edit.
package settings

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

//go:embed default_settings.toml
var defaultSettings string

// FileName is the settings file created next to the executable.
const FileName = "settings.toml"

// Version identifies the settings schema.
type Version struct {
	Major uint32 `toml:"major"`
	Minor uint32 `toml:"minor"`
}

// General holds metadata about the settings file itself.
type General struct {
	Version Version `toml:"version"`
}

// Window holds the window placement restored on startup and saved on exit.
type Window struct {
	X      int    `toml:"x"`
	Y      int    `toml:"y"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

// Shader holds shader loading configuration.
type Shader struct {
	// IncludeRoot overrides the shared include directory. Empty means the
	// "include" directory next to the executable.
	IncludeRoot string `toml:"include_root"`

	// AutoPlay starts the animation clock as soon as a shader loads.
	AutoPlay bool `toml:"auto_play"`
}

// Appearance holds display configuration.
type Appearance struct {
	// ClearColor is the RGB background drawn before the shader pass.
	ClearColor [3]float64 `toml:"clear_color"`

	// FrameCounter shows the frame rate readout on startup.
	FrameCounter bool `toml:"frame_counter"`
}

// Reload holds hot-reload tuning.
type Reload struct {
	// DebounceMillis is the quiet period after a file event before a reload
	// fires, collapsing editor save bursts into one recompile.
	DebounceMillis uint32 `toml:"debounce_millis"`
}

// Settings is the root of the configuration file.
type Settings struct {
	General    General    `toml:"general"`
	Window     Window     `toml:"window"`
	Shader     Shader     `toml:"shader"`
	Appearance Appearance `toml:"appearance"`
	Reload     Reload     `toml:"reload"`
}

// Default returns the built-in settings.
//
// Returns:
//   - *Settings: settings decoded from the embedded default file
func Default() *Settings {
	var s Settings
	// The embedded default file always decodes.
	if _, err := toml.Decode(defaultSettings, &s); err != nil {
		panic(fmt.Sprintf("invalid embedded default settings: %v", err))
	}
	return &s
}

// Load reads settings from the given path. If the file does not exist, the
// default file is written there first and its contents returned.
//
// Parameters:
//   - path: the settings file location
//
// Returns:
//   - *Settings: the decoded settings
//   - error: an error if the file cannot be created or parsed
func Load(path string) (*Settings, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if writeErr := os.WriteFile(path, []byte(defaultSettings), 0o644); writeErr != nil {
			return nil, fmt.Errorf("failed to create %s: %w", filepath.Base(path), writeErr)
		}
	}
	var s Settings
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return &s, nil
}

// Save writes the settings to the given path, replacing the file.
//
// Parameters:
//   - path: the settings file location
//
// Returns:
//   - error: an error if the file cannot be written
func (s *Settings) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(s); err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// DefaultPath returns the settings file location next to the executable.
// Falls back to the working directory when the executable path is unknown.
//
// Returns:
//   - string: the settings file path
func DefaultPath() string {
	exe, err := os.Executable()
	if err != nil {
		return FileName
	}
	return filepath.Join(filepath.Dir(exe), FileName)
}
