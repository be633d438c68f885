package render

import (
	"sync"

	"github.com/LNSEAB/shaderbox/common"
)

// Parameters is the per-frame uniform record exposed to the pixel shader.
// It is recomputed as a whole every frame tick, never partially updated.
type Parameters struct {
	// Resolution is the client area size in pixels for the frame about to be
	// submitted.
	Resolution [2]float32

	// Mouse is the cursor position normalized to 0..1 with origin at the
	// window's top-left corner, clamped even when the cursor leaves the
	// client area.
	Mouse [2]float32

	// Time is elapsed seconds since the current shader started running.
	Time float32
}

// floats packs the record in uniform-block order with tail padding so the
// upload length matches the GPU-side struct size.
func (p Parameters) floats() []float32 {
	return []float32{
		p.Resolution[0], p.Resolution[1],
		p.Mouse[0], p.Mouse[1],
		p.Time,
		0, 0, 0,
	}
}

// paramsByteSize is the uniform buffer size for Parameters, padded to the
// 16-byte uniform alignment.
const paramsByteSize = 32

// ParameterBuffer computes the Parameters record each frame tick. It tracks
// the resolution last established by a resize so the uploaded record always
// matches the geometry of the frame about to be submitted.
type ParameterBuffer interface {
	// SetResolution records the client area size established by a resize.
	// Takes effect on the next Update.
	//
	// Parameters:
	//   - width: client area width in pixels
	//   - height: client area height in pixels
	SetResolution(width, height int)

	// Update computes the whole Parameters record for the next frame.
	//
	// Parameters:
	//   - mouseX: cursor x position in pixels (may be outside the client area)
	//   - mouseY: cursor y position in pixels (may be outside the client area)
	//   - elapsed: seconds since the current shader started running
	//
	// Returns:
	//   - Parameters: the record to upload for the frame
	Update(mouseX, mouseY float64, elapsed float64) Parameters
}

// parameterBuffer is the implementation of the ParameterBuffer interface.
type parameterBuffer struct {
	mu     sync.Mutex
	width  int
	height int
}

var _ ParameterBuffer = &parameterBuffer{}

// NewParameterBuffer creates a ParameterBuffer with the given initial size.
//
// Parameters:
//   - width: initial client area width in pixels
//   - height: initial client area height in pixels
//
// Returns:
//   - ParameterBuffer: the parameter buffer manager
func NewParameterBuffer(width, height int) ParameterBuffer {
	return &parameterBuffer{width: width, height: height}
}

func (p *parameterBuffer) SetResolution(width, height int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if width > 0 {
		p.width = width
	}
	if height > 0 {
		p.height = height
	}
}

func (p *parameterBuffer) Update(mouseX, mouseY float64, elapsed float64) Parameters {
	p.mu.Lock()
	w, h := p.width, p.height
	p.mu.Unlock()

	var mx, my float64
	if w > 0 {
		mx = common.Clamp(mouseX/float64(w), 0, 1)
	}
	if h > 0 {
		my = common.Clamp(mouseY/float64(h), 0, 1)
	}
	return Parameters{
		Resolution: [2]float32{float32(w), float32(h)},
		Mouse:      [2]float32{float32(mx), float32(my)},
		Time:       float32(elapsed),
	}
}
