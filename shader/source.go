// source.go implements the shader source model: loading a pixel shader file,
// expanding its #include graph, and fingerprinting the effective content so
// the application can tell a real edit from a no-op touch event.
package shader

import (
	"crypto/sha256"
	"embed"
	"fmt"
	"hash"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

//go:embed assets/*.wgsl assets/include/*.wgsl
var assets embed.FS

// includeRe matches an include directive on its own line, e.g.
//
//	#include "shaderbox.wgsl"
var includeRe = regexp.MustCompile(`^\s*#include\s+"([^"]+)"\s*$`)

// maxIncludeDepth bounds include recursion for pathological inputs that the
// visited-set cannot catch (e.g. a chain of distinct files).
const maxIncludeDepth = 64

// Source is an immutable snapshot of a shader file with its include graph
// expanded. It is replaced wholesale on every reload, never mutated in place.
type Source struct {
	// Path is the absolute path of the root shader file.
	Path string

	// Text is the composed source with all include directives expanded.
	Text string

	// Includes holds the absolute paths of every transitively included file
	// that was resolved on disk, each listed once in resolution order.
	// Embedded fallback includes do not appear here (they cannot change).
	Includes []string

	// Fingerprint is a hash over the concatenation of all resolved file
	// contents, used to detect reloads that did not change effective content.
	Fingerprint [sha256.Size]byte
}

// WatchSet returns the full set of on-disk files whose modification should
// trigger a reload: the root shader plus its resolved includes.
//
// Returns:
//   - []string: absolute paths, root first
func (s *Source) WatchSet() []string {
	paths := make([]string, 0, len(s.Includes)+1)
	paths = append(paths, s.Path)
	paths = append(paths, s.Includes...)
	return paths
}

// Same reports whether the other snapshot has identical effective content.
//
// Parameters:
//   - other: the snapshot to compare against (nil safe)
//
// Returns:
//   - bool: true if both fingerprints match
func (s *Source) Same(other *Source) bool {
	return other != nil && s.Fingerprint == other.Fingerprint
}

// Loader loads shader files and resolves their include graphs.
type Loader interface {
	// Load reads the shader at path and recursively expands its #include
	// directives. Includes resolve against the including file's own directory
	// first, then the shared include root, then the embedded copies shipped
	// with the binary. A file included more than once is expanded only once
	// and contributes to the watch set once; cycles are broken the same way.
	//
	// Parameters:
	//   - path: the shader file to load
	//
	// Returns:
	//   - *Source: the composed, fingerprinted snapshot
	//   - error: a load error if the file or one of its includes is unreadable
	Load(path string) (*Source, error)

	// IncludeRoot returns the shared include directory searched for includes.
	//
	// Returns:
	//   - string: the include root path
	IncludeRoot() string
}

// loader is the implementation of the Loader interface.
type loader struct {
	includeRoot string
}

var _ Loader = &loader{}

// LoaderOption is a functional option for configuring a Loader.
type LoaderOption func(*loader)

// WithIncludeRoot sets the shared include directory. Defaults to the
// "include" directory beside the executable.
//
// Parameters:
//   - root: the include root path
//
// Returns:
//   - LoaderOption: option function to apply
func WithIncludeRoot(root string) LoaderOption {
	return func(l *loader) {
		if root != "" {
			l.includeRoot = root
		}
	}
}

// NewLoader creates a Loader with the provided options.
//
// Parameters:
//   - options: functional options for loader configuration
//
// Returns:
//   - Loader: the configured loader
func NewLoader(options ...LoaderOption) Loader {
	l := &loader{includeRoot: defaultIncludeRoot()}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// defaultIncludeRoot resolves the "include" directory beside the executable,
// falling back to the working directory when the executable path is unknown.
func defaultIncludeRoot() string {
	exe, err := os.Executable()
	if err != nil {
		return "include"
	}
	return filepath.Join(filepath.Dir(exe), "include")
}

func (l *loader) IncludeRoot() string {
	return l.includeRoot
}

func (l *loader) Load(path string) (*Source, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	st := &composeState{
		loader:  l,
		visited: map[string]bool{},
		hash:    sha256.New(),
	}
	text, err := st.expandFile(abs, 0)
	if err != nil {
		return nil, err
	}
	src := &Source{
		Path:     abs,
		Text:     text,
		Includes: st.includes,
	}
	copy(src.Fingerprint[:], st.hash.Sum(nil))
	return src, nil
}

// composeState accumulates the include expansion of one Load call.
type composeState struct {
	loader   *loader
	visited  map[string]bool
	includes []string
	hash     hash.Hash
}

// expandFile reads one on-disk file and expands its include directives.
func (st *composeState) expandFile(path string, depth int) (string, error) {
	if depth > maxIncludeDepth {
		return "", fmt.Errorf("include depth limit exceeded at %s", path)
	}
	if st.visited[path] {
		return "", nil
	}
	st.visited[path] = true

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read shader %s: %w", path, err)
	}
	st.hash.Write(data)
	return st.expandText(string(data), filepath.Dir(path), depth)
}

// expandText replaces include directives in text, resolving relative to dir.
func (st *composeState) expandText(text, dir string, depth int) (string, error) {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		m := includeRe.FindStringSubmatch(line)
		if m == nil {
			out = append(out, line)
			continue
		}
		expanded, err := st.expandInclude(m[1], dir, depth+1)
		if err != nil {
			return "", err
		}
		out = append(out, expanded)
	}
	return strings.Join(out, "\n"), nil
}

// expandInclude resolves one include name against the including file's
// directory, the shared include root, and finally the embedded assets.
func (st *composeState) expandInclude(name, dir string, depth int) (string, error) {
	for _, candidate := range []string{filepath.Join(dir, name), filepath.Join(st.loader.includeRoot, name)} {
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err != nil || info.IsDir() {
			continue
		}
		if st.visited[abs] {
			return "", nil
		}
		text, err := st.expandFile(abs, depth)
		if err != nil {
			return "", err
		}
		st.includes = append(st.includes, abs)
		return text, nil
	}

	embeddedName := "assets/include/" + filepath.Base(name)
	if st.visited[embeddedName] {
		return "", nil
	}
	if data, err := assets.ReadFile(embeddedName); err == nil {
		st.visited[embeddedName] = true
		st.hash.Write(data)
		// Embedded includes are expanded with the include root as their
		// directory so nested directives still resolve sensibly.
		return st.expandText(string(data), st.loader.includeRoot, depth)
	}
	return "", fmt.Errorf("include %q not found (searched %s and %s)", name, dir, st.loader.includeRoot)
}
