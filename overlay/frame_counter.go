package overlay

import "time"

// FrameCounter tracks frame rate over a fixed update interval.
// Call Tick once per frame and read FPS for the most recent measurement.
type FrameCounter struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	fps            float64
}

// NewFrameCounter creates a new FrameCounter with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *FrameCounter: the newly created counter instance
func NewFrameCounter() *FrameCounter {
	return &FrameCounter{
		frameCount:     0,
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
}

// Tick should be called once per frame to track frame timing.
// Recomputes the FPS measurement when the update interval has elapsed.
//
// Returns:
//   - bool: true if the FPS value was updated this tick, false otherwise
func (c *FrameCounter) Tick() bool {
	c.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(c.lastTime)

	if elapsed >= c.updateInterval {
		c.fps = float64(c.frameCount) / elapsed.Seconds()
		c.frameCount = 0
		c.lastTime = currentTime
		return true
	}

	return false
}

// FPS returns the most recently measured frames per second.
//
// Returns:
//   - float64: frames per second over the last completed interval
func (c *FrameCounter) FPS() float64 {
	return c.fps
}
