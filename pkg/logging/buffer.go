package logging

import (
	"strings"
	"sync"
)

// captureSize is how many lines each capture keeps.
const captureSize = 50

// Capture is an io.Writer that keeps the most recent lines written to it.
// Each Write is taken as one line.
type Capture struct {
	mu    sync.RWMutex
	lines []string
	size  int
}

// NewCapture creates a capture holding at most size lines.
func NewCapture(size int) *Capture {
	return &Capture{size: max(size, 1)}
}

// ServerCapture holds recent INFO+ server log lines.
var ServerCapture = NewCapture(captureSize)

// EventCapture holds recent session event lines.
var EventCapture = NewCapture(captureSize)

// Write implements io.Writer.
func (c *Capture) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\r\n")

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.lines) == c.size {
		copy(c.lines, c.lines[1:])
		c.lines = c.lines[:c.size-1]
	}
	c.lines = append(c.lines, line)
	return len(p), nil
}

// Last returns the newest line, or "" if nothing was written.
func (c *Capture) Last() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.lines) == 0 {
		return ""
	}
	return c.lines[len(c.lines)-1]
}

// Recent returns up to n lines, oldest first.
func (c *Capture) Recent(n int) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n = min(max(n, 0), len(c.lines))
	out := make([]string, n)
	copy(out, c.lines[len(c.lines)-n:])
	return out
}

// Reset drops every captured line.
func (c *Capture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}
