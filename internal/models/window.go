package models

import "time"

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Hours returns the duration in fractional hours.
func (w Window) Hours() float64 {
	return w.Duration().Hours()
}

// Valid reports whether the window has a positive duration.
func (w Window) Valid() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && w.End.After(w.Start)
}

// Overlaps reports whether two windows share any instant. A window ending at t
// does not overlap one starting at t.
func (w Window) Overlaps(other Window) bool {
	return w.Start.Before(other.End) && w.End.After(other.Start)
}
