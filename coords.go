package gcov

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is returned when a coordinate window does not intersect an
// axis.
var ErrOutOfRange = errors.New("coordinate window out of range")

// Window is an interval in the units of a coordinate axis. A nil bound
// extends to the end of the axis: Start to the first coordinate, Stop to the
// last. Start and Stop may be given in either order.
type Window struct {
	Start *float64
	Stop  *float64
}

// Between returns the window [a, b] (or [b, a]).
func Between(a, b float64) *Window { return &Window{Start: &a, Stop: &b} }

// From returns a window from a to the last coordinate.
func From(a float64) *Window { return &Window{Start: &a} }

// Until returns a window from the first coordinate to b.
func Until(b float64) *Window { return &Window{Stop: &b} }

// Full reports whether the window selects the whole axis.
func (w *Window) Full() bool {
	return w == nil || (w.Start == nil && w.Stop == nil)
}

func (w *Window) String() string {
	if w.Full() {
		return "[:]"
	}
	bound := func(v *float64) string {
		if v == nil {
			return ""
		}
		return fmt.Sprint(*v)
	}
	return "[" + bound(w.Start) + ":" + bound(w.Stop) + "]"
}

// IndexRange is a half-open [Start, Stop) range of axis offsets.
type IndexRange struct {
	Start int
	Stop  int
}

// Len is the number of positions in the range.
func (r IndexRange) Len() int { return r.Stop - r.Start }

// Slice returns the part of coords the range covers.
func (r IndexRange) Slice(coords []float64) []float64 {
	return coords[r.Start:r.Stop]
}

func (r IndexRange) String() string {
	return fmt.Sprintf("[%d:%d)", r.Start, r.Stop)
}

// CoordSliceToIndex converts a coordinate window into the index range of
// every axis position whose value lies in [min(window), max(window)]. The
// axis may be ascending or descending.
func CoordSliceToIndex(coords []float64, w *Window) (IndexRange, error) {
	if len(coords) == 0 {
		return IndexRange{}, fmt.Errorf("%w: empty coordinate axis", ErrOutOfRange)
	}
	if w.Full() {
		return IndexRange{Start: 0, Stop: len(coords)}, nil
	}

	start, stop := coords[0], coords[len(coords)-1]
	if w.Start != nil {
		start = *w.Start
	}
	if w.Stop != nil {
		stop = *w.Stop
	}
	low, high := start, stop
	if low > high {
		low, high = high, low
	}

	first, last := -1, -1
	axisMin, axisMax := coords[0], coords[0]
	for i, c := range coords {
		if c < axisMin {
			axisMin = c
		}
		if c > axisMax {
			axisMax = c
		}
		if c >= low && c <= high {
			if first < 0 {
				first = i
			}
			last = i
		}
	}

	if first < 0 {
		return IndexRange{}, fmt.Errorf("%w: coordinate range [%v, %v] is not within dataset [%v, %v]",
			ErrOutOfRange, start, stop, axisMin, axisMax)
	}
	return IndexRange{Start: first, Stop: last + 1}, nil
}
