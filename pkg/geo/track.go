package geo

import "sync"

// CourseBuffer keeps a rolling window of positions and derives the ground
// course (course over ground) from the oldest to the newest sample.
type CourseBuffer struct {
	mu         sync.RWMutex
	samples    []Point
	windowSize int
	minSpan    float64
}

// NewCourseBuffer creates a buffer with the given window. Courses are only
// reported once the window spans at least minSpan meters, below that the
// positional noise dominates the bearing.
func NewCourseBuffer(windowSize int, minSpan float64) *CourseBuffer {
	if windowSize < 2 {
		windowSize = 2
	}
	return &CourseBuffer{
		windowSize: windowSize,
		minSpan:    minSpan,
	}
}

// Push adds a point and returns the current course and whether it is valid.
func (b *CourseBuffer) Push(p Point) (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = append(b.samples, p)
	if len(b.samples) > b.windowSize {
		b.samples = b.samples[1:]
	}

	if len(b.samples) < 2 {
		return 0, false
	}

	first, last := b.samples[0], b.samples[len(b.samples)-1]
	if Distance(first, last) < b.minSpan {
		return 0, false
	}
	return Bearing(first, last), true
}

// Reset clears the buffer history.
func (b *CourseBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = nil
}
