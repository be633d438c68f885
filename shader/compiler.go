// compiler.go wraps the naga WGSL front-end as the shader compiler. A compile
// takes an immutable Source snapshot tagged with a sequence number and returns
// either GPU-ready bytecode for the fixed entry points or a structured
// diagnostic list; it never touches GPU state.
package shader

import (
	"strings"

	"github.com/gogpu/naga"
)

// VertexEntryPoint is the internally supplied full-screen vertex stage.
const VertexEntryPoint = "vs_main"

// PixelEntryPoint is the fixed entry point name user shaders must define.
const PixelEntryPoint = "main"

// Module is one validated shader stage: the WGSL source handed to the GPU
// backend plus the SPIR-V produced while validating it.
type Module struct {
	EntryPoint string
	WGSL       string
	SPIRV      []uint32
}

// Bytecode is the successful outcome of a compile: the internal vertex stage
// and the user's pixel stage.
type Bytecode struct {
	Vertex Module
	Pixel  Module
}

// CompileRequest pairs a Source snapshot with a monotonically increasing
// sequence number. A request is stale once a newer sequence has been issued.
type CompileRequest struct {
	Source   *Source
	Sequence uint64
}

// CompileResult carries the originating sequence number so the application
// can discard results superseded by a later request. Exactly one of Bytecode
// and Diagnostics is set.
type CompileResult struct {
	Sequence    uint64
	Bytecode    *Bytecode
	Diagnostics []Diagnostic
}

// Ok reports whether the compile produced bytecode.
//
// Returns:
//   - bool: true on success, false when Diagnostics is populated
func (r CompileResult) Ok() bool {
	return r.Bytecode != nil
}

// Compiler turns shader source snapshots into GPU bytecode. Compilation is
// pure with respect to global state; concurrent calls for different sources
// never interfere.
type Compiler interface {
	// Compile validates the pixel stage composed from the fixed prelude and
	// the request's source text. Safe to call from any goroutine.
	//
	// Parameters:
	//   - req: the source snapshot and its sequence number
	//
	// Returns:
	//   - CompileResult: bytecode on success, diagnostics on failure
	Compile(req CompileRequest) CompileResult
}

// compiler is the implementation of the Compiler interface.
type compiler struct {
	// vertex is the full-screen vertex stage, validated once at construction.
	vertex Module

	// prelude is the uniform block and pixel input declarations prepended to
	// every user shader before compilation.
	prelude string

	// preludeLines is the number of lines prelude adds before user source,
	// used to shift diagnostic locations back into the user's file.
	preludeLines int
}

var _ Compiler = &compiler{}

// NewCompiler creates a Compiler and validates the internal vertex stage.
//
// Returns:
//   - Compiler: the ready-to-use compiler
//   - error: an error if the embedded vertex stage fails to validate
func NewCompiler() (Compiler, error) {
	planeWGSL, err := assets.ReadFile("assets/plane.wgsl")
	if err != nil {
		return nil, err
	}
	preludeWGSL, err := assets.ReadFile("assets/prelude.wgsl")
	if err != nil {
		return nil, err
	}
	spirv, err := compileWGSL(string(planeWGSL))
	if err != nil {
		return nil, err
	}
	prelude := string(preludeWGSL)
	return &compiler{
		vertex: Module{
			EntryPoint: VertexEntryPoint,
			WGSL:       string(planeWGSL),
			SPIRV:      spirv,
		},
		prelude:      prelude,
		preludeLines: strings.Count(prelude, "\n") + 1,
	}, nil
}

func (c *compiler) Compile(req CompileRequest) CompileResult {
	composed := c.prelude + "\n" + req.Source.Text
	spirv, err := compileWGSL(composed)
	if err != nil {
		return CompileResult{
			Sequence:    req.Sequence,
			Diagnostics: parseDiagnostics(err.Error(), req.Source.Path, c.preludeLines),
		}
	}
	return CompileResult{
		Sequence: req.Sequence,
		Bytecode: &Bytecode{
			Vertex: c.vertex,
			Pixel: Module{
				EntryPoint: PixelEntryPoint,
				WGSL:       composed,
				SPIRV:      spirv,
			},
		},
	}
}

// compileWGSL validates WGSL source and returns SPIR-V words.
// SPIR-V is little-endian 32-bit words.
func compileWGSL(source string) ([]uint32, error) {
	raw, err := naga.Compile(source)
	if err != nil {
		return nil, err
	}
	words := make([]uint32, len(raw)/4)
	for i := range words {
		words[i] = uint32(raw[i*4]) |
			uint32(raw[i*4+1])<<8 |
			uint32(raw[i*4+2])<<16 |
			uint32(raw[i*4+3])<<24
	}
	return words, nil
}
