package segment

import "sort"

// Set is an ordered sequence of segments. Most operations require the set
// to be normalized: sorted by start, pairwise non-overlapping, no empty
// segments. Normalize establishes that invariant; it is never assumed to
// hold implicitly after ad-hoc appends.
type Set []Segment

// All returns the set covering [0, n).
func All(n int) Set {
	if n <= 0 {
		return nil
	}
	return Set{{Start: 0, Length: n}}
}

// Normalize sorts s by start and merges touching or overlapping segments
// in place, dropping empty ones. It returns the normalized set.
func Normalize(s Set) Set {
	if len(s) == 0 {
		return s
	}
	sort.Slice(s, func(i, j int) bool {
		if s[i].Start != s[j].Start {
			return s[i].Start < s[j].Start
		}
		return s[i].End() < s[j].End()
	})
	out := s[:0]
	for _, seg := range s {
		if seg.Empty() {
			continue
		}
		if n := len(out); n > 0 && out[n-1].End() >= seg.Start {
			if seg.End() > out[n-1].End() {
				out[n-1].Length = seg.End() - out[n-1].Start
			}
			continue
		}
		out = append(out, seg)
	}
	return out
}

// Cardinal returns the total number of indices covered by s.
// Only valid on a normalized set.
func (s Set) Cardinal() int {
	c := 0
	for _, seg := range s {
		c += seg.Length
	}
	return c
}

// AddRow appends [start, start+length) and renormalizes.
func (s Set) AddRow(start, length int) Set {
	return Normalize(append(s, Segment{Start: start, Length: length}))
}

// Union returns the normalized union of s and t.
func (s Set) Union(t Set) Set {
	out := make(Set, 0, len(s)+len(t))
	out = append(out, s...)
	out = append(out, t...)
	return Normalize(out)
}

// DiffSegment returns s minus b. s must be normalized; the result is
// normalized. Only the sub-range of s that can intersect b is rewritten,
// located by two boundary searches over the sorted segments.
func (s Set) DiffSegment(b Segment) Set {
	if b.Empty() {
		out := make(Set, len(s))
		copy(out, s)
		return out
	}
	// First segment whose end reaches past b.Start.
	first := sort.Search(len(s), func(i int) bool { return s[i].End() > b.Start })
	// First segment starting at or after b's end.
	last := sort.Search(len(s), func(i int) bool { return s[i].Start >= b.End() })

	out := make(Set, 0, len(s)+1)
	out = append(out, s[:first]...)
	for _, seg := range s[first:last] {
		out = append(out, Diff(seg, b)...)
	}
	out = append(out, s[last:]...)
	return out
}

// Difference returns s minus every segment of t. s must be normalized.
func (s Set) Difference(t Set) Set {
	out := s
	for _, b := range t {
		out = out.DiffSegment(b)
	}
	return out
}

// Contains reports whether index i is covered by s.
func (s Set) Contains(i int) bool {
	j := sort.Search(len(s), func(k int) bool { return s[k].End() > i })
	return j < len(s) && s[j].Contains(i)
}

// Intersects reports whether any segment of s overlaps b.
func (s Set) Intersects(b Segment) bool {
	for _, seg := range s {
		if Overlap(seg, b) {
			return true
		}
	}
	return false
}

// Indices expands s into the covered index list, in increasing order.
func (s Set) Indices() []int {
	idx := make([]int, 0, s.Cardinal())
	for _, seg := range s {
		for i := seg.Start; i < seg.End(); i++ {
			idx = append(idx, i)
		}
	}
	return idx
}

// Shift returns a copy of s with every segment moved by offset.
func (s Set) Shift(offset int) Set {
	out := make(Set, len(s))
	for i, seg := range s {
		out[i] = Segment{Start: seg.Start + offset, Length: seg.Length}
	}
	return out
}

// Clone returns a copy of s.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	copy(out, s)
	return out
}
