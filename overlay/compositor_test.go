package overlay

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LNSEAB/shaderbox/shader"
)

func TestComposeEmptyReturnsNil(t *testing.T) {
	c := NewCompositor()
	assert.True(t, c.Empty())
	assert.Nil(t, c.Compose(640, 480))
}

func TestComposeWithDiagnostics(t *testing.T) {
	c := NewCompositor()
	c.SetDiagnostics([]shader.Diagnostic{
		{Severity: shader.SeverityError, Message: "broken", File: "a.wgsl", Line: 3, Column: 1},
	})

	assert.False(t, c.Empty())
	img := c.Compose(640, 480)
	require.NotNil(t, img)
	assert.Equal(t, image.Rect(0, 0, 640, 480), img.Bounds())
	assert.True(t, hasOpaquePixels(img))
}

func TestComposeWithFPSOnly(t *testing.T) {
	c := NewCompositor()
	c.SetShowFPS(true)

	assert.False(t, c.Empty())
	img := c.Compose(640, 480)
	require.NotNil(t, img)
	assert.True(t, hasOpaquePixels(img))
}

func TestClearDiagnosticsEmptiesOverlay(t *testing.T) {
	c := NewCompositor()
	c.SetDiagnostics([]shader.Diagnostic{{Severity: shader.SeverityError, Message: "x"}})
	c.ClearDiagnostics()
	assert.True(t, c.Empty())
	assert.Nil(t, c.Compose(640, 480))
}

func TestComposeDegenerateSize(t *testing.T) {
	c := NewCompositor()
	c.SetShowFPS(true)
	assert.Nil(t, c.Compose(0, 0))
}

func TestComposeMultilineDiagnostic(t *testing.T) {
	c := NewCompositor()
	c.SetDiagnostics([]shader.Diagnostic{
		{Severity: shader.SeverityError, Message: "line one\nline two\nline three", File: "a.wgsl"},
	})
	img := c.Compose(640, 480)
	require.NotNil(t, img)
	assert.True(t, hasOpaquePixels(img))
}

// hasOpaquePixels reports whether anything was drawn into the overlay.
func hasOpaquePixels(img *image.RGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			return true
		}
	}
	return false
}
