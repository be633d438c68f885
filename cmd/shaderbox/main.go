package main

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/LNSEAB/shaderbox/app"
	"github.com/LNSEAB/shaderbox/common"
	"github.com/LNSEAB/shaderbox/overlay"
	"github.com/LNSEAB/shaderbox/render"
	"github.com/LNSEAB/shaderbox/screenshot"
	"github.com/LNSEAB/shaderbox/settings"
	"github.com/LNSEAB/shaderbox/shader"
	"github.com/LNSEAB/shaderbox/watch"
	"github.com/LNSEAB/shaderbox/window"
)

var (
	flagFallbackAdapter bool
	flagVSync           bool
	flagSettings        string
)

var rootCmd = &cobra.Command{
	Use:   "shaderbox [shader.wgsl]",
	Short: "Live pixel shader viewer with hot reload",
	Long: `shaderbox renders a WGSL pixel shader over a full-screen plane and
recompiles it whenever the source file or one of its includes changes.
Compile errors appear as an overlay while the last working shader keeps
rendering.

Shaders load from the command-line argument or by dropping a file onto
the window; no file-open dialog is bundled.`,
	Args: cobra.MaximumNArgs(1),
	RunE: run,
}

func init() {
	// The GLFW and WebGPU stacks require the main OS thread.
	runtime.LockOSThread()

	rootCmd.Flags().BoolVar(&flagFallbackAdapter, "fallback-adapter", false, "force the software fallback GPU adapter")
	rootCmd.Flags().BoolVar(&flagVSync, "vsync", false, "cap presentation to the display refresh rate")
	rootCmd.Flags().StringVar(&flagSettings, "settings", "", "settings file path (default: settings.toml next to the executable)")
}

func run(cmd *cobra.Command, args []string) error {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	settingsPath := common.Coalesce(flagSettings, settings.DefaultPath())
	cfg, err := settings.Load(settingsPath)
	if err != nil {
		return err
	}

	win, err := window.NewWindow(
		window.WithTitle(app.Title),
		window.WithWidth(int(cfg.Window.Width)),
		window.WithHeight(int(cfg.Window.Height)),
		window.WithPosition(cfg.Window.X, cfg.Window.Y),
	)
	if err != nil {
		return err
	}

	engine, err := render.NewEngine(win,
		render.WithFallbackAdapter(flagFallbackAdapter),
		render.WithVSync(flagVSync),
		render.WithClearColor(cfg.Appearance.ClearColor[0], cfg.Appearance.ClearColor[1], cfg.Appearance.ClearColor[2]),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize renderer: %w", err)
	}

	var loaderOpts []shader.LoaderOption
	if cfg.Shader.IncludeRoot != "" {
		loaderOpts = append(loaderOpts, shader.WithIncludeRoot(cfg.Shader.IncludeRoot))
	}
	loader := shader.NewLoader(loaderOpts...)

	compiler, err := shader.NewCompiler()
	if err != nil {
		engine.Close()
		return fmt.Errorf("failed to initialize compiler: %w", err)
	}

	watcher, err := watch.New(watch.WithDebounce(time.Duration(cfg.Reload.DebounceMillis) * time.Millisecond))
	if err != nil {
		engine.Close()
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	appOpts := []app.Option{
		app.WithSettingsPath(settingsPath),
	}
	if len(args) == 1 {
		appOpts = append(appOpts, app.WithInitialFile(args[0]))
	}

	viewer := app.New(
		win,
		engine,
		loader,
		compiler,
		watcher,
		overlay.NewCompositor(),
		screenshot.NewSaver(screenshot.DefaultDir()),
		cfg,
		appOpts...,
	)
	viewer.Run()

	return win.Close()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
