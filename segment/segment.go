package segment

// Segment is the half-open integer interval [Start, Start+Length).
type Segment struct {
	Start  int
	Length int
}

// NewSegment returns the segment [start, start+length).
func NewSegment(start, length int) Segment {
	return Segment{Start: start, Length: length}
}

// End returns the exclusive upper bound of s.
func (s Segment) End() int { return s.Start + s.Length }

// Empty reports whether s covers no index.
func (s Segment) Empty() bool { return s.Length <= 0 }

// Contains reports whether index i lies in s.
func (s Segment) Contains(i int) bool {
	return s.Start <= i && i < s.End()
}

// Overlap reports whether a and b intersect.
// A zero-length segment never overlaps anything.
func Overlap(a, b Segment) bool {
	if a.Empty() || b.Empty() {
		return false
	}
	return a.Start < b.End() && b.Start < a.End()
}

// Union merges two segments. The result holds one segment when a and b
// touch or overlap, otherwise both in start order.
func Union(a, b Segment) []Segment {
	if a.Start > b.Start {
		a, b = b, a
	}
	// a.Start <= b.Start
	if a.End() >= b.Start {
		length := a.Length
		if b.End()-a.Start > length {
			length = b.End() - a.Start
		}
		return []Segment{{Start: a.Start, Length: length}}
	}
	return []Segment{a, b}
}

// Diff returns a minus b: zero, one or two segments depending on how b
// cuts into a.
func Diff(a, b Segment) []Segment {
	if a.Empty() {
		return nil
	}
	if b.Empty() {
		return []Segment{a}
	}
	var out []Segment
	if a.Start < b.Start {
		end := a.End()
		if b.Start < end {
			end = b.Start
		}
		out = append(out, Segment{Start: a.Start, Length: end - a.Start})
	}
	if b.End() < a.End() {
		start := a.Start
		if b.End() > start {
			start = b.End()
		}
		out = append(out, Segment{Start: start, Length: a.End() - start})
	}
	return out
}
