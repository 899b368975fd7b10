// Package screenshot captures project sites to image files with a bounded
// concurrency budget, and decides when an existing capture is still fresh.
package screenshot

import (
	"os"
	"time"
)

// DefaultFreshness is how long an existing screenshot is reused before a
// re-capture is attempted.
const DefaultFreshness = 24 * time.Hour

// Gate decides, from filesystem freshness alone, whether a new capture is
// needed. It keeps no state beyond its window.
type Gate struct {
	window time.Duration
}

// NewGate creates a Gate with the given freshness window. A non-positive
// window falls back to DefaultFreshness.
func NewGate(window time.Duration) Gate {
	if window <= 0 {
		window = DefaultFreshness
	}
	return Gate{window: window}
}

// IsFresh reports whether path exists and was modified within the freshness
// window. Screenshots are expensive and visually near-static, so a recent
// file is reused even when the project's text changed.
func (g Gate) IsFresh(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < g.window
}
