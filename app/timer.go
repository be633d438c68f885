package app

import "time"

// Timer is the animation clock behind the shader's time parameter. Stop
// freezes the accumulated duration; Start resumes from it.
type Timer struct {
	startTime time.Time
	d         time.Duration
}

// NewTimer creates a running Timer at zero elapsed time.
//
// Returns:
//   - *Timer: the new timer
func NewTimer() *Timer {
	return &Timer{
		startTime: time.Now(),
	}
}

// NewTimerAt creates a running Timer seeded with an already accumulated
// duration, so Elapsed starts at d and advances from there.
//
// Parameters:
//   - d: the accumulated duration to resume from
//
// Returns:
//   - *Timer: the new timer
func NewTimerAt(d time.Duration) *Timer {
	return &Timer{
		startTime: time.Now(),
		d:         d,
	}
}

// Elapsed returns the time accumulated since the last rewind.
//
// Returns:
//   - time.Duration: accumulated duration including the running segment
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.startTime) + t.d
}

// Start resumes the clock from the accumulated duration.
func (t *Timer) Start() {
	t.startTime = time.Now()
}

// Stop folds the running segment into the accumulated duration. Elapsed keeps
// advancing afterwards; callers that pause stop reading it until Start.
func (t *Timer) Stop() {
	t.d = t.Elapsed()
}
