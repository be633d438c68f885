// Package app wires the shader loader, compiler, file watcher, render engine,
// and window into the live-viewer event loop. All GPU work and all state
// mutation happen on the window pump thread; compiles run on a worker pool
// and report back through a channel drained once per frame.
package app

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/LNSEAB/shaderbox/common"
	"github.com/LNSEAB/shaderbox/overlay"
	"github.com/LNSEAB/shaderbox/render"
	"github.com/LNSEAB/shaderbox/screenshot"
	"github.com/LNSEAB/shaderbox/settings"
	"github.com/LNSEAB/shaderbox/shader"
	"github.com/LNSEAB/shaderbox/watch"
	"github.com/LNSEAB/shaderbox/window"
)

// Title is the base window title; the loaded shader path is appended.
const Title = "shaderbox"

// maxReinitAttempts bounds consecutive device-loss recoveries before the
// viewer gives up and closes.
const maxReinitAttempts = 3

// action is a keyboard command decoded from a key chord.
type action int

const (
	actionNone action = iota
	actionOpenDialog
	actionFrameCounter
	actionScreenshot
	actionPlayPause
	actionRewind
	actionQuit
)

// DialogFunc shows a file-open dialog and returns the chosen path.
// Returns false when the user cancels.
type DialogFunc func() (string, bool)

// App runs the viewer: it reacts to input and file events, schedules
// compiles, and drives one frame per message loop iteration.
type App interface {
	// LoadFile loads and compiles the shader at the given path, replacing the
	// active shader. The watch set switches to the new file immediately.
	//
	// Parameters:
	//   - path: the shader source file
	LoadFile(path string)

	// Run enters the window message loop and blocks until the window closes.
	// Settings are saved and pending screenshots flushed on the way out.
	Run()
}

type app struct {
	win      window.Window
	engine   render.Engine
	loader   shader.Loader
	compiler shader.Compiler
	watcher  watch.Watcher
	comp     overlay.Compositor
	saver    screenshot.Saver
	params   render.ParameterBuffer

	cfg     *settings.Settings
	cfgPath string

	dialog DialogFunc

	pool    worker.DynamicWorkerPool
	taskID  int
	results chan shader.CompileResult

	// currentSeq is the newest issued compile sequence; appliedSeq is the
	// newest applied one. A result at or below appliedSeq is stale.
	currentSeq uint64
	appliedSeq uint64

	active *shader.Source

	timer *Timer
	play  bool
	// frozenTime holds the shader time while paused.
	frozenTime float64

	overlayDirty bool
	reinitFails  int
	initialFile  string
}

var _ App = &app{}

// Option is a functional option for configuring an App.
type Option func(*app)

// WithDialog sets the file-open dialog implementation bound to Ctrl+O.
//
// Parameters:
//   - dialog: the dialog function, or nil to disable the chord
//
// Returns:
//   - Option: option function to apply
func WithDialog(dialog DialogFunc) Option {
	return func(a *app) {
		a.dialog = dialog
	}
}

// WithInitialFile queues a shader to load before the first frame.
//
// Parameters:
//   - path: the shader source file
//
// Returns:
//   - Option: option function to apply
func WithInitialFile(path string) Option {
	return func(a *app) {
		a.initialFile = path
	}
}

// WithSettingsPath sets where settings are persisted on exit.
//
// Parameters:
//   - path: the settings file location
//
// Returns:
//   - Option: option function to apply
func WithSettingsPath(path string) Option {
	return func(a *app) {
		a.cfgPath = path
	}
}

// New assembles the viewer from its parts.
//
// Parameters:
//   - win: the platform window
//   - engine: the render engine bound to the window's surface
//   - loader: the shader source loader
//   - compiler: the shader compiler
//   - watcher: the file watcher feeding hot reloads
//   - comp: the overlay compositor
//   - saver: the screenshot saver
//   - cfg: the loaded settings
//   - options: functional options for app configuration
//
// Returns:
//   - App: the assembled viewer
func New(win window.Window, engine render.Engine, loader shader.Loader, compiler shader.Compiler, watcher watch.Watcher, comp overlay.Compositor, saver screenshot.Saver, cfg *settings.Settings, options ...Option) App {
	a := &app{
		win:      win,
		engine:   engine,
		loader:   loader,
		compiler: compiler,
		watcher:  watcher,
		comp:     comp,
		saver:    saver,
		params:   render.NewParameterBuffer(win.Width(), win.Height()),
		cfg:      cfg,
		cfgPath:  settings.DefaultPath(),
		pool:     worker.NewDynamicWorkerPool(1, 16, 1*time.Second),
		results:  make(chan shader.CompileResult, 16),
		timer:    NewTimer(),
	}
	for _, opt := range options {
		opt(a)
	}
	a.comp.SetShowFPS(cfg.Appearance.FrameCounter)
	return a
}

func (a *app) Run() {
	a.win.SetUpdateCallback(a.tick)
	a.win.SetResizeCallback(a.handleResize)
	a.win.SetKeyDownCallback(a.handleKey)
	a.win.SetDropCallback(func(paths []string) {
		a.LoadFile(paths[0])
	})

	if a.initialFile != "" {
		a.LoadFile(a.initialFile)
	}

	a.win.ProcessMessages()

	// Placement is persisted in screen coordinates so high-DPI scaling does
	// not inflate the size on the next run.
	a.cfg.Window.X, a.cfg.Window.Y = a.win.Pos()
	width, height := a.win.ScreenSize()
	a.cfg.Window.Width = uint32(width)
	a.cfg.Window.Height = uint32(height)
	if err := a.cfg.Save(a.cfgPath); err != nil {
		log.Printf("save settings: %v", err)
	} else {
		log.Printf("saved settings")
	}

	a.saver.Wait()
	if err := a.watcher.Close(); err != nil {
		log.Printf("close watcher: %v", err)
	}
	a.engine.Close()
}

func (a *app) LoadFile(path string) {
	src, err := a.loader.Load(path)
	if err != nil {
		log.Printf("load file: %v", err)
		a.comp.SetDiagnostics(loadErrorDiagnostics(path, err))
		a.overlayDirty = true
		return
	}
	a.startCompile(src)
	a.win.SetTitle(fmt.Sprintf("%s %s", Title, path))
	log.Printf("load file: %s", path)
}

// startCompile issues a new compile sequence for the source and points the
// watcher at its watch set before the compile finishes, so edits made during
// compilation are not missed.
func (a *app) startCompile(src *shader.Source) {
	a.active = src
	a.currentSeq++
	a.watcher.SetPaths(src.WatchSet())

	req := shader.CompileRequest{
		Source:   src,
		Sequence: a.currentSeq,
	}
	id := a.taskID
	a.taskID++
	a.pool.SubmitTask(worker.Task{
		ID: id,
		Do: func() (any, error) {
			a.results <- a.compiler.Compile(req)
			return nil, nil
		},
	})
}

// reload re-reads the active shader after a file event. An unchanged
// fingerprint skips the recompile entirely.
func (a *app) reload() {
	if a.active == nil {
		return
	}
	src, err := a.loader.Load(a.active.Path)
	if err != nil {
		log.Printf("reload: %v", err)
		a.comp.SetDiagnostics(loadErrorDiagnostics(a.active.Path, err))
		a.overlayDirty = true
		return
	}
	if src.Same(a.active) {
		return
	}
	a.startCompile(src)
}

// tick runs once per message loop iteration on the pump thread. Channels are
// drained without blocking so an idle watcher or compiler never stalls the
// frame.
func (a *app) tick() {
	for drained := false; !drained; {
		select {
		case <-a.watcher.Reloads():
			a.reload()
		default:
			drained = true
		}
	}

	for drained := false; !drained; {
		select {
		case err := <-a.watcher.Warnings():
			log.Printf("watch: %v", err)
		default:
			drained = true
		}
	}

	for drained := false; !drained; {
		select {
		case res := <-a.results:
			a.handleCompileResult(res)
		default:
			drained = true
		}
	}

	a.renderFrame()
}

// handleCompileResult applies a compile outcome unless a newer one has
// already been applied. Failed compiles keep the last good pipeline on screen
// and raise the diagnostic overlay.
func (a *app) handleCompileResult(res shader.CompileResult) {
	if res.Sequence <= a.appliedSeq {
		return
	}
	a.appliedSeq = res.Sequence

	if res.Ok() {
		if err := a.engine.Install(res.Bytecode); err != nil {
			log.Printf("install pipeline: %v", err)
			a.comp.SetDiagnostics(installErrorDiagnostics(err))
			a.overlayDirty = true
			return
		}
		a.comp.ClearDiagnostics()
		a.timer = NewTimer()
		a.frozenTime = 0
		a.play = a.cfg.Shader.AutoPlay
	} else {
		a.comp.SetDiagnostics(res.Diagnostics)
	}
	a.overlayDirty = true
}

func (a *app) renderFrame() {
	if a.comp.Counter().Tick() && a.comp.ShowFPS() {
		a.overlayDirty = true
	}

	if a.overlayDirty {
		if a.comp.Empty() {
			a.engine.SetOverlay(nil)
		} else {
			a.engine.SetOverlay(a.comp.Compose(a.win.Width(), a.win.Height()))
		}
		a.overlayDirty = false
	}

	elapsed := a.frozenTime
	if a.play {
		elapsed = a.timer.Elapsed().Seconds()
		a.frozenTime = elapsed
	}
	mouseX, mouseY := a.win.CursorPos()
	params := a.params.Update(mouseX, mouseY, elapsed)

	err := a.engine.Submit(params)
	switch {
	case err == nil:
		a.reinitFails = 0
	case errors.Is(err, render.ErrDeviceLost):
		log.Printf("device lost: %v", err)
		if reinitErr := a.engine.Reinitialize(); reinitErr != nil {
			a.reinitFails++
			log.Printf("reinitialize: %v", reinitErr)
			if a.reinitFails >= maxReinitAttempts {
				log.Printf("giving up after %d device recoveries", a.reinitFails)
				a.win.RequestClose()
			}
		} else {
			a.reinitFails = 0
		}
	default:
		log.Printf("render: %v", err)
	}
}

func (a *app) handleResize(width, height int) {
	a.engine.Resize(width, height)
	a.params.SetResolution(width, height)
	a.overlayDirty = true
}

// actionFor decodes a key chord into a viewer command.
func actionFor(key, mods uint32) action {
	ctrl := mods&common.ModControl != 0
	switch {
	case key == common.KeyO && ctrl:
		return actionOpenDialog
	case key == common.KeyF && ctrl:
		return actionFrameCounter
	case key == common.KeyPrintScreen, key == common.KeyS && ctrl:
		return actionScreenshot
	case key == common.KeySpace && mods == 0:
		return actionPlayPause
	case key == common.KeyR && mods == 0:
		return actionRewind
	case key == common.KeyQ && ctrl, key == common.KeyEsc && mods == 0:
		return actionQuit
	}
	return actionNone
}

func (a *app) handleKey(key, mods uint32) {
	switch actionFor(key, mods) {
	case actionOpenDialog:
		if a.dialog == nil {
			log.Printf("open dialog: not available; pass a shader path or drop a file onto the window")
			return
		}
		if path, ok := a.dialog(); ok {
			a.LoadFile(path)
		}
	case actionFrameCounter:
		a.comp.SetShowFPS(!a.comp.ShowFPS())
		a.cfg.Appearance.FrameCounter = a.comp.ShowFPS()
		a.overlayDirty = true
	case actionScreenshot:
		img, err := a.engine.Screenshot()
		if err != nil {
			log.Printf("screenshot: %v", err)
			return
		}
		if _, err := a.saver.Save(img); err != nil {
			log.Printf("screenshot: %v", err)
		}
	case actionPlayPause:
		a.play = !a.play
		if a.play {
			// Resume from the frozen position, not wall-clock time.
			a.timer = NewTimerAt(time.Duration(a.frozenTime * float64(time.Second)))
		} else {
			a.timer.Stop()
		}
	case actionRewind:
		a.timer = NewTimer()
		a.frozenTime = 0
	case actionQuit:
		a.win.RequestClose()
	}
}

// loadErrorDiagnostics wraps a file read failure so it shows on the overlay
// like a compile error.
func loadErrorDiagnostics(path string, err error) []shader.Diagnostic {
	return []shader.Diagnostic{
		{
			Severity: shader.SeverityError,
			Message:  err.Error(),
			File:     path,
		},
	}
}

func installErrorDiagnostics(err error) []shader.Diagnostic {
	return []shader.Diagnostic{
		{
			Severity: shader.SeverityError,
			Message:  fmt.Sprintf("pipeline creation failed: %v", err),
		},
	}
}
