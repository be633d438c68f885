// Package overlay renders the HUD layer shown over the shader output:
// compiler diagnostics after a failed reload and an optional frame rate
// readout. Text is rasterized on the CPU into an RGBA image that the render
// engine uploads as a texture.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/LNSEAB/shaderbox/shader"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	lineHeight = 16
	marginX    = 8
	marginY    = 6
)

var (
	errorColor   = color.RGBA{R: 255, G: 96, B: 96, A: 255}
	warningColor = color.RGBA{R: 255, G: 216, B: 96, A: 255}
	infoColor    = color.RGBA{R: 200, G: 200, B: 200, A: 255}
	fpsColor     = color.RGBA{R: 128, G: 255, B: 128, A: 255}
	panelColor   = color.RGBA{R: 0, G: 0, B: 0, A: 176}
)

// Compositor assembles the overlay image from the current diagnostics and
// frame counter state.
type Compositor interface {
	// SetDiagnostics replaces the diagnostic lines shown on the overlay.
	//
	// Parameters:
	//   - diags: the diagnostics from the most recent failed compile
	SetDiagnostics(diags []shader.Diagnostic)

	// ClearDiagnostics removes all diagnostic lines from the overlay.
	ClearDiagnostics()

	// SetShowFPS controls whether the frame rate readout is drawn.
	//
	// Parameters:
	//   - show: true to draw the frame rate
	SetShowFPS(show bool)

	// ShowFPS reports whether the frame rate readout is enabled.
	//
	// Returns:
	//   - bool: true when the frame rate is drawn
	ShowFPS() bool

	// Counter returns the frame counter driven by the event loop.
	//
	// Returns:
	//   - *FrameCounter: the counter ticked once per frame
	Counter() *FrameCounter

	// Empty reports whether the overlay currently has nothing to draw.
	//
	// Returns:
	//   - bool: true when no diagnostics are set and FPS is hidden
	Empty() bool

	// Compose rasterizes the overlay at the given size.
	//
	// Parameters:
	//   - width: overlay width in pixels
	//   - height: overlay height in pixels
	//
	// Returns:
	//   - *image.RGBA: the composed overlay, or nil when Empty
	Compose(width, height int) *image.RGBA
}

type compositor struct {
	diags   []shader.Diagnostic
	showFPS bool
	counter *FrameCounter
}

var _ Compositor = &compositor{}

// NewCompositor creates an empty Compositor.
//
// Returns:
//   - Compositor: the new compositor with FPS hidden and no diagnostics
func NewCompositor() Compositor {
	return &compositor{
		counter: NewFrameCounter(),
	}
}

func (c *compositor) SetDiagnostics(diags []shader.Diagnostic) {
	c.diags = diags
}

func (c *compositor) ClearDiagnostics() {
	c.diags = nil
}

func (c *compositor) SetShowFPS(show bool) {
	c.showFPS = show
}

func (c *compositor) ShowFPS() bool {
	return c.showFPS
}

func (c *compositor) Counter() *FrameCounter {
	return c.counter
}

func (c *compositor) Empty() bool {
	return len(c.diags) == 0 && !c.showFPS
}

func (c *compositor) Compose(width, height int) *image.RGBA {
	if c.Empty() || width <= 0 || height <= 0 {
		return nil
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))

	y := marginY + lineHeight
	for _, d := range c.diags {
		col := infoColor
		switch d.Severity {
		case shader.SeverityError:
			col = errorColor
		case shader.SeverityWarning:
			col = warningColor
		}
		// Diagnostics may span lines; each line gets its own panel row.
		for _, line := range strings.Split(d.String(), "\n") {
			if y > height {
				break
			}
			drawTextLine(img, line, marginX, y, col)
			y += lineHeight
		}
	}

	if c.showFPS {
		// Top-right corner, clear of the diagnostic column.
		text := fmt.Sprintf("%.2f fps", c.counter.FPS())
		textWidth := font.MeasureString(basicfont.Face7x13, text).Ceil()
		x := width - textWidth - marginX
		if x < marginX {
			x = marginX
		}
		drawTextLine(img, text, x, marginY+lineHeight, fpsColor)
	}

	return img
}

// drawTextLine draws one line of text with a translucent backing panel so
// the text stays readable over bright shader output.
func drawTextLine(img *image.RGBA, text string, x, baseline int, col color.RGBA) {
	if text == "" {
		return
	}

	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()

	panel := image.Rect(x-4, baseline-face.Ascent-2, x+width+4, baseline+face.Descent+2)
	panel = panel.Intersect(img.Bounds())
	draw.Draw(img, panel, image.NewUniform(panelColor), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(text)
}
