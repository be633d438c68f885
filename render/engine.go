// Package render owns the GPU device, swap chain, and pipeline state, and
// submits one full-screen frame per tick. All GPU objects live behind the
// Engine and are only ever driven from the window pump thread; background
// tasks hand the engine nothing but immutable compiled bytecode.
package render

import (
	"errors"
	"image"

	"github.com/LNSEAB/shaderbox/shader"
	"github.com/LNSEAB/shaderbox/window"
)

// ErrDeviceLost reports that the GPU context became invalid (driver reset or
// device removal). The engine must be reinitialized before the next frame.
var ErrDeviceLost = errors.New("gpu device lost")

// ErrNoFrame reports that a screenshot was requested before any shader
// pipeline was installed.
var ErrNoFrame = errors.New("no shader pipeline installed")

// Engine owns the GPU device, swap chain, and pipeline, and submits frames.
// It must only be driven from the window pump thread.
type Engine interface {
	// Resize rebuilds the swap chain for the new client area size. Waits for
	// in-flight work on the affected resources before they are destroyed.
	//
	// Parameters:
	//   - width: new client area width in pixels
	//   - height: new client area height in pixels
	Resize(width, height int)

	// Install atomically replaces the current pipeline with one built from
	// the given bytecode. The previous pipeline is retained until every frame
	// submitted against it has retired, then released. The installed bytecode
	// is remembered as last-known-good for device-loss recovery.
	//
	// Parameters:
	//   - bc: validated bytecode for the fixed vertex and pixel entry points
	//
	// Returns:
	//   - error: an error if GPU pipeline creation fails
	Install(bc *shader.Bytecode) error

	// HasPipeline reports whether a shader pipeline has ever been installed.
	//
	// Returns:
	//   - bool: true once Install has succeeded at least once
	HasPipeline() bool

	// SetOverlay replaces the overlay image drawn on top of the shader
	// output. Pass nil to clear the overlay.
	//
	// Parameters:
	//   - img: the RGBA overlay image, or nil
	SetOverlay(img *image.RGBA)

	// Submit uploads the parameter record, records a full-screen pass with
	// the current pipeline and overlay, and presents.
	//
	// Parameters:
	//   - params: the per-frame uniform record
	//
	// Returns:
	//   - error: ErrDeviceLost when the GPU context is invalid, or another
	//     error for per-frame failures that will resolve on their own
	Submit(params Parameters) error

	// Reinitialize tears down and rebuilds the device, surface, and swap
	// chain after a device loss, then re-installs the last-known-good
	// bytecode. Repeated failure here is the one fatal condition.
	//
	// Returns:
	//   - error: an error if the device cannot be recreated
	Reinitialize() error

	// Screenshot renders the current pipeline into an offscreen target at
	// the swap chain size and reads it back.
	//
	// Returns:
	//   - *image.RGBA: the captured frame
	//   - error: ErrNoFrame before the first install, or a readback error
	Screenshot() (*image.RGBA, error)

	// Close releases all GPU resources.
	Close()
}

// engine is the implementation of the Engine interface.
type engine struct {
	win     window.Window
	backend wgpuBackend

	width  int
	height int

	// lastGood is the bytecode of the last successful install, re-installed
	// after device-loss recovery.
	lastGood   *shader.Bytecode
	lastParams Parameters

	clearColor           [3]float64
	vsync                bool
	forceFallbackAdapter bool
}

var _ Engine = &engine{}

// Option is a functional option for configuring an Engine.
type Option func(*engine)

// WithClearColor sets the color the frame is cleared to before the shader
// pass. Defaults to black.
//
// Parameters:
//   - r, g, b: color channels in 0..1
//
// Returns:
//   - Option: option function to apply
func WithClearColor(r, g, b float64) Option {
	return func(e *engine) {
		e.clearColor = [3]float64{r, g, b}
	}
}

// WithVSync enables FIFO presentation instead of immediate mode.
//
// Parameters:
//   - enabled: true for vsync
//
// Returns:
//   - Option: option function to apply
func WithVSync(enabled bool) Option {
	return func(e *engine) {
		e.vsync = enabled
	}
}

// WithFallbackAdapter forces the software/fallback GPU adapter.
//
// Parameters:
//   - enabled: true to force the fallback adapter
//
// Returns:
//   - Option: option function to apply
func WithFallbackAdapter(enabled bool) Option {
	return func(e *engine) {
		e.forceFallbackAdapter = enabled
	}
}

// NewEngine creates the GPU device and swap chain for the given window.
//
// Parameters:
//   - win: the window supplying the rendering surface
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the initialized engine
//   - error: an error if device or surface creation fails
func NewEngine(win window.Window, options ...Option) (Engine, error) {
	e := &engine{
		win:    win,
		width:  win.Width(),
		height: win.Height(),
	}
	for _, opt := range options {
		opt(e)
	}
	backend, err := newWGPUBackend(win.SurfaceDescriptor(), e.forceFallbackAdapter, e.vsync, e.clearColor)
	if err != nil {
		return nil, err
	}
	e.backend = backend
	e.backend.ConfigureSurface(e.width, e.height)
	return e, nil
}

func (e *engine) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		// Minimized; keep the old swap chain until a real size arrives.
		return
	}
	e.width, e.height = width, height
	e.backend.ConfigureSurface(width, height)
}

func (e *engine) Install(bc *shader.Bytecode) error {
	if err := e.backend.InstallPipeline(bc); err != nil {
		return err
	}
	e.lastGood = bc
	return nil
}

func (e *engine) HasPipeline() bool {
	return e.lastGood != nil
}

func (e *engine) SetOverlay(img *image.RGBA) {
	e.backend.SetOverlay(img)
}

func (e *engine) Submit(params Parameters) error {
	e.lastParams = params
	return e.backend.RenderFrame(params)
}

func (e *engine) Reinitialize() error {
	e.backend.Destroy()
	backend, err := newWGPUBackend(e.win.SurfaceDescriptor(), e.forceFallbackAdapter, e.vsync, e.clearColor)
	if err != nil {
		return err
	}
	e.backend = backend
	e.backend.ConfigureSurface(e.width, e.height)
	if e.lastGood != nil {
		if err := e.backend.InstallPipeline(e.lastGood); err != nil {
			return err
		}
	}
	return nil
}

func (e *engine) Screenshot() (*image.RGBA, error) {
	if e.lastGood == nil {
		return nil, ErrNoFrame
	}
	return e.backend.ReadBack(e.lastParams)
}

func (e *engine) Close() {
	e.backend.Destroy()
}
