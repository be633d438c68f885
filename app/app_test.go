package app

import (
	"crypto/sha256"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LNSEAB/shaderbox/common"
	"github.com/LNSEAB/shaderbox/overlay"
	"github.com/LNSEAB/shaderbox/render"
	"github.com/LNSEAB/shaderbox/settings"
	"github.com/LNSEAB/shaderbox/shader"
)

// fakeWindow satisfies window.Window without any platform resources.
type fakeWindow struct {
	width, height    int
	x, y             int
	screenW, screenH int
	title            string
	closed           bool
}

func (f *fakeWindow) SetUpdateCallback(func())                  {}
func (f *fakeWindow) SetResizeCallback(func(int, int))          {}
func (f *fakeWindow) SetKeyDownCallback(func(uint32, uint32))   {}
func (f *fakeWindow) SetDropCallback(func([]string))            {}
func (f *fakeWindow) CursorPos() (float64, float64)             { return 0, 0 }
func (f *fakeWindow) SetTitle(title string)                     { f.title = title }
func (f *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor { return nil }
func (f *fakeWindow) IsRunning() bool                           { return !f.closed }
func (f *fakeWindow) RequestClose()                             { f.closed = true }
func (f *fakeWindow) Close() error                              { return nil }
func (f *fakeWindow) ProcessMessages()                          {}
func (f *fakeWindow) Width() int                                { return f.width }
func (f *fakeWindow) Height() int                               { return f.height }
func (f *fakeWindow) Pos() (int, int)                           { return f.x, f.y }
func (f *fakeWindow) ScreenSize() (int, int)                    { return f.screenW, f.screenH }

// fakeEngine records installs and submits instead of touching a GPU.
type fakeEngine struct {
	installed    []*shader.Bytecode
	overlays     []*image.RGBA
	submitErr    error
	screenshot   *image.RGBA
	reinitCalled int
}

func (f *fakeEngine) Resize(int, int) {}
func (f *fakeEngine) Install(bc *shader.Bytecode) error {
	f.installed = append(f.installed, bc)
	return nil
}
func (f *fakeEngine) HasPipeline() bool          { return len(f.installed) > 0 }
func (f *fakeEngine) SetOverlay(img *image.RGBA) { f.overlays = append(f.overlays, img) }
func (f *fakeEngine) Submit(render.Parameters) error {
	return f.submitErr
}
func (f *fakeEngine) Reinitialize() error {
	f.reinitCalled++
	return nil
}
func (f *fakeEngine) Screenshot() (*image.RGBA, error) {
	if f.screenshot == nil {
		return nil, render.ErrNoFrame
	}
	return f.screenshot, nil
}
func (f *fakeEngine) Close() {}

// fakeLoader serves canned sources keyed by path.
type fakeLoader struct {
	sources map[string]*shader.Source
	err     error
	loads   int
}

func (f *fakeLoader) Load(path string) (*shader.Source, error) {
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return f.sources[path], nil
}
func (f *fakeLoader) IncludeRoot() string { return "" }

// fakeCompiler returns success for every request.
type fakeCompiler struct{}

func (fakeCompiler) Compile(req shader.CompileRequest) shader.CompileResult {
	return shader.CompileResult{
		Sequence: req.Sequence,
		Bytecode: &shader.Bytecode{},
	}
}

// fakeWatcher records path set replacements.
type fakeWatcher struct {
	sets    [][]string
	reloads chan struct{}
	warns   chan error
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{
		reloads: make(chan struct{}, 1),
		warns:   make(chan error, 1),
	}
}

func (f *fakeWatcher) SetPaths(paths []string)   { f.sets = append(f.sets, paths) }
func (f *fakeWatcher) Reloads() <-chan struct{}  { return f.reloads }
func (f *fakeWatcher) Warnings() <-chan error    { return f.warns }
func (f *fakeWatcher) Close() error              { return nil }

// fakeSaver records saved frames.
type fakeSaver struct {
	saved int
}

func (f *fakeSaver) Save(*image.RGBA) (string, error) {
	f.saved++
	return "screenshot/2026-08-29-1.png", nil
}
func (f *fakeSaver) Wait() {}

func fingerprinted(path, text string) *shader.Source {
	src := &shader.Source{Path: path, Text: text}
	src.Fingerprint = sha256.Sum256([]byte(text))
	return src
}

type fixture struct {
	app     *app
	win     *fakeWindow
	engine  *fakeEngine
	loader  *fakeLoader
	watcher *fakeWatcher
	saver   *fakeSaver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		win:     &fakeWindow{width: 640, height: 480},
		engine:  &fakeEngine{},
		loader:  &fakeLoader{sources: map[string]*shader.Source{}},
		watcher: newFakeWatcher(),
		saver:   &fakeSaver{},
	}
	a := New(f.win, f.engine, f.loader, fakeCompiler{}, f.watcher, overlay.NewCompositor(), f.saver, settings.Default())
	f.app = a.(*app)
	return f
}

// waitResult pulls one compile result off the app's channel. The real worker
// pool runs the fake compiler, so results arrive quickly.
func waitResult(t *testing.T, a *app) shader.CompileResult {
	t.Helper()
	select {
	case res := <-a.results:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("no compile result arrived")
		return shader.CompileResult{}
	}
}

func TestLoadFileWatchesBeforeCompileFinishes(t *testing.T) {
	f := newFixture(t)
	src := fingerprinted("/tmp/a.wgsl", "x")
	src.Includes = []string{"/tmp/util.wgsl"}
	f.loader.sources[src.Path] = src

	f.app.LoadFile(src.Path)

	require.Len(t, f.watcher.sets, 1)
	assert.Equal(t, []string{"/tmp/a.wgsl", "/tmp/util.wgsl"}, f.watcher.sets[0])
	assert.Contains(t, f.win.title, "/tmp/a.wgsl")

	res := waitResult(t, f.app)
	assert.Equal(t, uint64(1), res.Sequence)
}

func TestHandleCompileResultOrderedApply(t *testing.T) {
	f := newFixture(t)

	f.app.currentSeq = 2
	f.app.handleCompileResult(shader.CompileResult{Sequence: 1, Bytecode: &shader.Bytecode{}})
	f.app.handleCompileResult(shader.CompileResult{Sequence: 2, Bytecode: &shader.Bytecode{}})

	assert.Len(t, f.engine.installed, 2)
	assert.Equal(t, uint64(2), f.app.appliedSeq)
}

func TestHandleCompileResultDiscardsSuperseded(t *testing.T) {
	f := newFixture(t)
	f.app.currentSeq = 2

	// The newer result lands first; the older must be dropped.
	f.app.handleCompileResult(shader.CompileResult{Sequence: 2, Bytecode: &shader.Bytecode{}})
	f.app.handleCompileResult(shader.CompileResult{Sequence: 1, Bytecode: &shader.Bytecode{}})

	assert.Len(t, f.engine.installed, 1)
	assert.Equal(t, uint64(2), f.app.appliedSeq)
}

func TestHandleCompileResultFailureKeepsPipeline(t *testing.T) {
	f := newFixture(t)
	f.app.currentSeq = 2

	f.app.handleCompileResult(shader.CompileResult{Sequence: 1, Bytecode: &shader.Bytecode{}})
	f.app.handleCompileResult(shader.CompileResult{
		Sequence:    2,
		Diagnostics: []shader.Diagnostic{{Severity: shader.SeverityError, Message: "boom"}},
	})

	// The failed compile raises the overlay but does not replace the pipeline.
	assert.Len(t, f.engine.installed, 1)
	assert.Equal(t, uint64(2), f.app.appliedSeq)
	assert.False(t, f.app.comp.Empty())

	// A later success clears the diagnostics again.
	f.app.currentSeq = 3
	f.app.handleCompileResult(shader.CompileResult{Sequence: 3, Bytecode: &shader.Bytecode{}})
	assert.Len(t, f.engine.installed, 2)
	assert.True(t, f.app.comp.Empty())
}

func TestInstallRestartsClock(t *testing.T) {
	f := newFixture(t)
	f.app.currentSeq = 1
	f.app.frozenTime = 42
	f.app.play = false

	f.app.handleCompileResult(shader.CompileResult{Sequence: 1, Bytecode: &shader.Bytecode{}})

	assert.Zero(t, f.app.frozenTime)
	assert.Equal(t, f.app.cfg.Shader.AutoPlay, f.app.play)
	assert.Less(t, f.app.timer.Elapsed().Seconds(), 1.0)
}

func TestReloadSkipsUnchangedContent(t *testing.T) {
	f := newFixture(t)
	src := fingerprinted("/tmp/a.wgsl", "x")
	f.loader.sources[src.Path] = src
	f.app.active = src
	f.app.currentSeq = 1

	// Loader hands back an identical snapshot (touch without edit).
	f.app.reload()

	assert.Equal(t, uint64(1), f.app.currentSeq)
	assert.Empty(t, f.watcher.sets)
}

func TestReloadRecompilesChangedContent(t *testing.T) {
	f := newFixture(t)
	old := fingerprinted("/tmp/a.wgsl", "x")
	changed := fingerprinted("/tmp/a.wgsl", "y")
	f.loader.sources[old.Path] = changed
	f.app.active = old
	f.app.currentSeq = 1

	f.app.reload()

	assert.Equal(t, uint64(2), f.app.currentSeq)
	require.Len(t, f.watcher.sets, 1)

	res := waitResult(t, f.app)
	assert.Equal(t, uint64(2), res.Sequence)
}

func TestReloadWithoutActiveShaderIsNoop(t *testing.T) {
	f := newFixture(t)
	f.app.reload()
	assert.Zero(t, f.loader.loads)
}

func TestActionForChords(t *testing.T) {
	assert.Equal(t, actionOpenDialog, actionFor(common.KeyO, common.ModControl))
	assert.Equal(t, actionFrameCounter, actionFor(common.KeyF, common.ModControl))
	assert.Equal(t, actionScreenshot, actionFor(common.KeyPrintScreen, 0))
	assert.Equal(t, actionScreenshot, actionFor(common.KeyS, common.ModControl))
	assert.Equal(t, actionPlayPause, actionFor(common.KeySpace, 0))
	assert.Equal(t, actionRewind, actionFor(common.KeyR, 0))
	assert.Equal(t, actionQuit, actionFor(common.KeyQ, common.ModControl))
	assert.Equal(t, actionQuit, actionFor(common.KeyEsc, 0))

	// Bare letters that only act with a modifier do nothing on their own.
	assert.Equal(t, actionNone, actionFor(common.KeyO, 0))
	assert.Equal(t, actionNone, actionFor(common.KeyS, 0))
	assert.Equal(t, actionNone, actionFor(common.KeyQ, 0))
}

func TestScreenshotKeySavesFrame(t *testing.T) {
	f := newFixture(t)
	f.engine.screenshot = image.NewRGBA(image.Rect(0, 0, 4, 4))

	f.app.handleKey(common.KeyS, common.ModControl)
	assert.Equal(t, 1, f.saver.saved)
}

func TestScreenshotKeyWithoutPipelineDoesNotSave(t *testing.T) {
	f := newFixture(t)

	f.app.handleKey(common.KeyPrintScreen, 0)
	assert.Zero(t, f.saver.saved)
}

func TestPlayPauseFreezesTime(t *testing.T) {
	f := newFixture(t)
	f.app.play = true
	f.app.timer = NewTimerAt(5 * time.Second)
	f.app.frozenTime = 5

	f.app.handleKey(common.KeySpace, 0)
	require.False(t, f.app.play)

	frozen := f.app.frozenTime
	f.app.renderFrame()
	assert.Equal(t, frozen, f.app.frozenTime)

	// Resuming continues from the frozen position.
	f.app.handleKey(common.KeySpace, 0)
	require.True(t, f.app.play)
	assert.InDelta(t, 5.0, f.app.timer.Elapsed().Seconds(), 0.5)
}

func TestRewindResetsTime(t *testing.T) {
	f := newFixture(t)
	f.app.frozenTime = 9
	f.app.timer = NewTimerAt(9 * time.Second)

	f.app.handleKey(common.KeyR, 0)

	assert.Zero(t, f.app.frozenTime)
	assert.Less(t, f.app.timer.Elapsed().Seconds(), 1.0)
}

func TestRunPersistsWindowPlacement(t *testing.T) {
	f := newFixture(t)
	f.win.x = 120
	f.win.y = 80
	f.win.screenW = 800
	f.win.screenH = 600
	// Framebuffer size differs on high-DPI displays; the screen-coordinate
	// size is what must be written back.
	f.win.width = 1600
	f.win.height = 1200
	f.app.cfgPath = filepath.Join(t.TempDir(), settings.FileName)

	f.app.Run()

	saved, err := settings.Load(f.app.cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 120, saved.Window.X)
	assert.Equal(t, 80, saved.Window.Y)
	assert.Equal(t, uint32(800), saved.Window.Width)
	assert.Equal(t, uint32(600), saved.Window.Height)
}

func TestOpenDialogChordWithoutDialogIsNoop(t *testing.T) {
	f := newFixture(t)

	f.app.handleKey(common.KeyO, common.ModControl)

	assert.Zero(t, f.loader.loads)
	assert.Empty(t, f.win.title)
}

func TestOpenDialogChordLoadsChosenFile(t *testing.T) {
	f := newFixture(t)
	src := fingerprinted("/tmp/picked.wgsl", "x")
	f.loader.sources[src.Path] = src
	f.app.dialog = func() (string, bool) {
		return src.Path, true
	}

	f.app.handleKey(common.KeyO, common.ModControl)

	assert.Contains(t, f.win.title, "/tmp/picked.wgsl")
	res := waitResult(t, f.app)
	assert.Equal(t, uint64(1), res.Sequence)
}

func TestQuitChordRequestsClose(t *testing.T) {
	f := newFixture(t)
	f.app.handleKey(common.KeyQ, common.ModControl)
	assert.True(t, f.win.closed)
}

func TestDeviceLostTriggersReinitialize(t *testing.T) {
	f := newFixture(t)
	f.engine.submitErr = render.ErrDeviceLost

	f.app.renderFrame()
	assert.Equal(t, 1, f.engine.reinitCalled)
	assert.False(t, f.win.closed)
}

func TestLoadFailureShowsDiagnosticOverlay(t *testing.T) {
	f := newFixture(t)
	f.loader.err = assert.AnError

	f.app.LoadFile("/tmp/missing.wgsl")

	assert.False(t, f.app.comp.Empty())
	assert.Empty(t, f.watcher.sets)
	assert.Zero(t, f.app.currentSeq)
}
