package shader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPixelShader = `@fragment
fn main(input: PixelInput) -> @location(0) vec4<f32> {
    let c = normalize_coord(input.coord, params.resolution);
    return vec4<f32>(c.x, c.y, params.time, 1.0);
}

fn normalize_coord(coord: vec2<f32>, resolution: vec2<f32>) -> vec2<f32> {
    let m = min(resolution.x, resolution.y);
    return vec2<f32>(
        (coord.x * 2.0 - resolution.x) / m,
        (resolution.y - coord.y * 2.0) / m,
    );
}
`

func compileText(t *testing.T, c Compiler, text string, seq uint64) CompileResult {
	t.Helper()
	return c.Compile(CompileRequest{
		Source:   &Source{Path: "test.wgsl", Text: text},
		Sequence: seq,
	})
}

func TestCompileValidShader(t *testing.T) {
	c, err := NewCompiler()
	require.NoError(t, err)

	res := compileText(t, c, validPixelShader, 1)
	require.True(t, res.Ok(), "diagnostics: %v", res.Diagnostics)
	assert.Equal(t, uint64(1), res.Sequence)
	assert.Equal(t, PixelEntryPoint, res.Bytecode.Pixel.EntryPoint)
	assert.Equal(t, VertexEntryPoint, res.Bytecode.Vertex.EntryPoint)
	assert.NotEmpty(t, res.Bytecode.Pixel.SPIRV)
	assert.NotEmpty(t, res.Bytecode.Vertex.SPIRV)
}

func TestCompileSyntaxErrorProducesDiagnostics(t *testing.T) {
	c, err := NewCompiler()
	require.NoError(t, err)

	res := compileText(t, c, "@fragment fn main( {", 2)
	require.False(t, res.Ok())
	assert.Nil(t, res.Bytecode)
	require.NotEmpty(t, res.Diagnostics)
	for _, d := range res.Diagnostics {
		assert.NotEmpty(t, d.Message)
	}
	assert.Equal(t, uint64(2), res.Sequence)
}

func TestCompileChangedConstantChangesBytecode(t *testing.T) {
	c, err := NewCompiler()
	require.NoError(t, err)

	a := compileText(t, c, `@fragment
fn main(input: PixelInput) -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}`, 1)
	b := compileText(t, c, `@fragment
fn main(input: PixelInput) -> @location(0) vec4<f32> {
    return vec4<f32>(0.0, 1.0, 0.0, 1.0);
}`, 2)
	require.True(t, a.Ok())
	require.True(t, b.Ok())
	assert.NotEqual(t, a.Bytecode.Pixel.SPIRV, b.Bytecode.Pixel.SPIRV)
}

func TestCompileUsesPreludeDeclarations(t *testing.T) {
	// PixelInput and params come from the prelude, not the user source; a
	// shader referencing them without declaring them must compile.
	c, err := NewCompiler()
	require.NoError(t, err)

	res := compileText(t, c, `@fragment
fn main(input: PixelInput) -> @location(0) vec4<f32> {
    return vec4<f32>(params.mouse, params.time, 1.0);
}`, 1)
	assert.True(t, res.Ok(), "diagnostics: %v", res.Diagnostics)
}
