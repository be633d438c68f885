// Package watch monitors the active shader file and its include set for
// modification and converts bursts of filesystem events into single reload
// requests via a debounce window.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the window with no further writes that must elapse
// before a burst of modifications collapses into one reload request.
const DefaultDebounce = 100 * time.Millisecond

// Watcher owns the watched-file set. Paths are replaced wholesale via
// SetPaths; reload requests and transient warnings are delivered on channels.
// No other component reads or mutates the watch state directly.
type Watcher interface {
	// SetPaths replaces the watched-file set with exactly the given files.
	// Watches on files outside the new set are dropped, not merged.
	// Non-blocking; the replacement is applied by the watcher goroutine.
	//
	// Parameters:
	//   - paths: the files to watch (typically a shader plus its includes)
	SetPaths(paths []string)

	// Reloads returns the channel on which one signal is delivered per
	// settled edit burst. The channel has capacity 1; a signal that has not
	// been consumed yet absorbs further bursts.
	//
	// Returns:
	//   - <-chan struct{}: the reload request channel
	Reloads() <-chan struct{}

	// Warnings returns the channel carrying transient watch errors, such as
	// a watched file becoming inaccessible. Watching continues after a
	// warning; the channel is lossy when the consumer lags.
	//
	// Returns:
	//   - <-chan error: the warning channel
	Warnings() <-chan error

	// Close stops the watcher goroutine and releases the notification
	// backend. Safe to call multiple times.
	//
	// Returns:
	//   - error: an error from the notification backend, if any
	Close() error
}

// watcher is the implementation of the Watcher interface.
type watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration

	setPaths chan []string
	reloads  chan struct{}
	warnings chan error
	quit     chan struct{}

	closeOnce sync.Once
	done      chan struct{}
}

var _ Watcher = &watcher{}

// Option is a functional option for configuring a Watcher.
type Option func(*watcher)

// WithDebounce sets the debounce window. Values <= 0 keep the default.
//
// Parameters:
//   - d: the debounce duration
//
// Returns:
//   - Option: option function to apply
func WithDebounce(d time.Duration) Option {
	return func(w *watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a Watcher with an empty watch set and starts its goroutine.
//
// Parameters:
//   - options: functional options for watcher configuration
//
// Returns:
//   - Watcher: the running watcher
//   - error: an error if the filesystem notification backend cannot start
func New(options ...Option) (Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("start filesystem watcher: %w", err)
	}
	w := &watcher{
		fsw:      fsw,
		debounce: DefaultDebounce,
		setPaths: make(chan []string, 1),
		reloads:  make(chan struct{}, 1),
		warnings: make(chan error, 4),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range options {
		opt(w)
	}
	go w.run()
	return w, nil
}

func (w *watcher) SetPaths(paths []string) {
	// Replace any pending set that the goroutine has not picked up yet.
	select {
	case w.setPaths <- paths:
	default:
		select {
		case <-w.setPaths:
		default:
		}
		w.setPaths <- paths
	}
}

func (w *watcher) Reloads() <-chan struct{} {
	return w.reloads
}

func (w *watcher) Warnings() <-chan error {
	return w.warnings
}

func (w *watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.quit)
		<-w.done
		err = w.fsw.Close()
	})
	return err
}

// run is the watcher goroutine. Editors commonly save through a
// rename-and-replace dance, so directories are watched rather than the files
// themselves and events are filtered against the watched-file set. Any event
// burst, across any number of watched files, arms a single debounce timer;
// the timer firing emits exactly one reload request.
func (w *watcher) run() {
	defer close(w.done)

	watched := map[string]bool{} // absolute file path -> watched
	dirs := map[string]int{}     // directory -> number of watched files in it

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-w.quit:
			return

		case paths := <-w.setPaths:
			w.applyPaths(paths, watched, dirs)

		case event, ok := <-w.fsw.Events:
			if !ok {
				w.warn(fmt.Errorf("filesystem watcher closed; auto-reload disabled"))
				return
			}
			if !eventOp(event) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !watched[abs] {
				continue
			}
			if _, err := os.Stat(abs); err != nil {
				// Keep watching; the last compiled shader stays displayed.
				w.warn(fmt.Errorf("watched file inaccessible: %s", abs))
			}
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending = true

		case err, ok := <-w.fsw.Errors:
			if !ok {
				w.warn(fmt.Errorf("filesystem watcher closed; auto-reload disabled"))
				return
			}
			if err != nil {
				w.warn(fmt.Errorf("filesystem watcher: %w", err))
			}

		case <-timer.C:
			pending = false
			select {
			case w.reloads <- struct{}{}:
			default:
			}
		}
	}
}

// eventOp reports whether the event can change a watched file's content.
func eventOp(event fsnotify.Event) bool {
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}

// applyPaths swaps the watched-file set and adjusts directory watches to
// match. The old set is replaced, never merged.
func (w *watcher) applyPaths(paths []string, watched map[string]bool, dirs map[string]int) {
	next := map[string]bool{}
	nextDirs := map[string]int{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			w.warn(fmt.Errorf("watch %s: %w", p, err))
			continue
		}
		if next[abs] {
			continue
		}
		next[abs] = true
		nextDirs[filepath.Dir(abs)]++
	}

	for dir := range dirs {
		if nextDirs[dir] == 0 {
			// Removing a watch on a vanished directory is not an error worth
			// surfacing; the directory is gone either way.
			_ = w.fsw.Remove(dir)
		}
	}
	for dir := range nextDirs {
		if dirs[dir] == 0 {
			if err := w.fsw.Add(dir); err != nil {
				w.warn(fmt.Errorf("watch %s: %w", dir, err))
			}
		}
	}

	for k := range watched {
		delete(watched, k)
	}
	for k := range next {
		watched[k] = true
	}
	for k := range dirs {
		delete(dirs, k)
	}
	for k, v := range nextDirs {
		dirs[k] = v
	}
}

// warn delivers a transient warning without blocking the watcher goroutine.
func (w *watcher) warn(err error) {
	select {
	case w.warnings <- err:
	default:
	}
}
