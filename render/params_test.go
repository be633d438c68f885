package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdateNormalizesMouse(t *testing.T) {
	p := NewParameterBuffer(800, 600)

	params := p.Update(400, 150, 0)
	assert.InDelta(t, 0.5, params.Mouse[0], 1e-6)
	assert.InDelta(t, 0.25, params.Mouse[1], 1e-6)
}

func TestUpdateClampsMouseOutsideClientArea(t *testing.T) {
	p := NewParameterBuffer(800, 600)

	params := p.Update(-250, 10000, 0)
	assert.Equal(t, float32(0), params.Mouse[0])
	assert.Equal(t, float32(1), params.Mouse[1])

	params = p.Update(10000, -1, 0)
	assert.Equal(t, float32(1), params.Mouse[0])
	assert.Equal(t, float32(0), params.Mouse[1])
}

func TestUpdateReflectsResize(t *testing.T) {
	p := NewParameterBuffer(800, 600)
	p.SetResolution(1920, 1080)

	params := p.Update(960, 540, 2.5)
	assert.Equal(t, float32(1920), params.Resolution[0])
	assert.Equal(t, float32(1080), params.Resolution[1])
	assert.InDelta(t, 0.5, params.Mouse[0], 1e-6)
	assert.InDelta(t, 0.5, params.Mouse[1], 1e-6)
	assert.Equal(t, float32(2.5), params.Time)
}

func TestUpdateIgnoresDegenerateResize(t *testing.T) {
	// Minimize reports zero size; the previous resolution must hold.
	p := NewParameterBuffer(800, 600)
	p.SetResolution(0, 0)

	params := p.Update(0, 0, 0)
	assert.Equal(t, float32(800), params.Resolution[0])
	assert.Equal(t, float32(600), params.Resolution[1])
}

func TestParametersPackedSize(t *testing.T) {
	// The packed record must fill the padded uniform block exactly.
	var params Parameters
	assert.Equal(t, paramsByteSize, len(params.floats())*4)
}
