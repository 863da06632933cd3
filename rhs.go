package cascade

import (
	"github.com/kinodyn/cascade/constraint"
	"github.com/kinodyn/cascade/internal/linalg"
	"github.com/kinodyn/cascade/manifold"
)

// RightHandSideSize returns the length of the concatenated target
// vector: the summed output embedding dimension of all levels.
func (s *Solver) RightHandSideSize() int {
	n := 0
	for _, lv := range s.levels {
		n += lv.set.NQ()
	}
	return n
}

// RightHandSide returns a copy of the concatenated target vector,
// levels in priority order.
func (s *Solver) RightHandSide() []float64 {
	out := make([]float64, 0, s.RightHandSideSize())
	for _, lv := range s.levels {
		out = append(out, lv.rhs...)
	}
	return out
}

// projectRhs stores value into dst with inequality rows forced to the
// neutral element: a one-sided row has no meaningful target, its bound
// lives in the function itself. In strict mode a non-neutral value on
// such a row is an error; row reports which one.
func projectRhs(space manifold.Space, comps []constraint.Comparison, value, dst []float64, strict bool) (row int, err error) {
	neutral := space.Neutral()
	diff := make([]float64, space.NV())
	space.Difference(value, neutral, diff)
	for k, comp := range comps {
		if comp == constraint.Equality {
			continue
		}
		if strict && diff[k] != 0 {
			return k, &ErrRhsInequalityRows{Row: k}
		}
		diff[k] = 0
	}
	space.Integrate(neutral, diff, dst)
	return 0, nil
}

// SetRightHandSide replaces the full concatenated target vector. In
// strict mode a non-neutral value on an inequality row is rejected with
// ErrRhsInequalityRows; otherwise such values are projected away.
func (s *Solver) SetRightHandSide(rhs []float64) error {
	if len(rhs) != s.RightHandSideSize() {
		return &ErrDimensionMismatch{Expected: s.RightHandSideSize(), Actual: len(rhs)}
	}
	iq := 0
	for li, lv := range s.levels {
		nq := lv.set.NQ()
		row, err := projectRhs(lv.set.OutputSpace(), lv.comparisons, rhs[iq:iq+nq], lv.rhs, s.strict)
		if err != nil {
			return &ErrRhsInequalityRows{Level: li, Row: row}
		}
		iq += nq
	}
	return nil
}

// RightHandSideFor returns a copy of the target segment of one
// registered constraint.
func (s *Solver) RightHandSideFor(c *constraint.Constraint) ([]float64, bool) {
	e, ok := s.findEntry(c)
	if !ok {
		return nil, false
	}
	lv := s.levels[e.priority]
	nq := e.c.Function().OutputSpace().NQ()
	return append([]float64(nil), lv.rhs[e.iq:e.iq+nq]...), true
}

// SetRightHandSideFor replaces the target segment of one registered
// constraint, projecting inequality rows to neutral. It reports whether
// the constraint was found.
func (s *Solver) SetRightHandSideFor(c *constraint.Constraint, value []float64) (bool, error) {
	e, ok := s.findEntry(c)
	if !ok {
		return false, nil
	}
	lv := s.levels[e.priority]
	space := e.c.Function().OutputSpace()
	if len(value) != space.NQ() {
		return true, &ErrDimensionMismatch{Expected: space.NQ(), Actual: len(value)}
	}
	comps := lv.comparisons[e.iv : e.iv+space.NV()]
	row, err := projectRhs(space, comps, value, lv.rhs[e.iq:e.iq+space.NQ()], s.strict)
	if err != nil {
		return true, &ErrRhsInequalityRows{Level: e.priority, Row: e.iv + row}
	}
	return true, nil
}

// SetRightHandSideFromConfig makes q a solution of every equality
// constraint: each function is evaluated at q and its value becomes the
// target, inequality rows staying neutral.
func (s *Solver) SetRightHandSideFromConfig(q []float64) {
	for _, e := range s.entries {
		s.setFromConfig(e, q)
	}
}

// SetRightHandSideFromConfigFor does the same for a single registered
// constraint, reporting whether it was found.
func (s *Solver) SetRightHandSideFromConfigFor(c *constraint.Constraint, q []float64) bool {
	e, ok := s.findEntry(c)
	if !ok {
		return false
	}
	s.setFromConfig(e, q)
	return true
}

func (s *Solver) setFromConfig(e *entry, q []float64) {
	lv := s.levels[e.priority]
	space := e.c.Function().OutputSpace()
	value := make([]float64, space.NQ())
	e.c.Function().Value(value, q)
	comps := lv.comparisons[e.iv : e.iv+space.NV()]
	// Values computed from a configuration cannot trip the strict check:
	// inequality rows are dropped unconditionally.
	projectRhs(space, comps, value, lv.rhs[e.iq:e.iq+space.NQ()], false)
}

// RightHandSideAt updates the target of every constraint carrying a
// parametric right-hand side to its value at time t.
func (s *Solver) RightHandSideAt(t float64) error {
	for _, e := range s.entries {
		if !e.c.HasParametricRightHandSide() {
			continue
		}
		if _, err := s.SetRightHandSideFor(e.c, e.c.RightHandSideAt(t)); err != nil {
			return err
		}
	}
	return nil
}

// IsConstraintSatisfied evaluates one registered constraint at q and
// reports whether its residual passes the convergence threshold. The
// returned residual is on the constraint's output tangent space, after
// inequality activation and inactive-row masking.
func (s *Solver) IsConstraintSatisfied(c *constraint.Constraint, q []float64) (residual []float64, found, satisfied bool) {
	e, ok := s.findEntry(c)
	if !ok {
		return nil, false, false
	}
	lv := s.levels[e.priority]
	space := e.c.Function().OutputSpace()
	value := make([]float64, space.NQ())
	e.c.Function().Value(value, q)
	residual = make([]float64, space.NV())
	space.Difference(value, lv.rhs[e.iq:e.iq+space.NQ()], residual)
	e.c.SetInactiveRowsToZero(residual)

	thr := s.inequalityThreshold
	for k, comp := range e.c.Comparisons() {
		switch comp {
		case constraint.Superior:
			if residual[k] < thr {
				residual[k] -= thr
			} else {
				residual[k] = 0
			}
		case constraint.Inferior:
			if -thr < residual[k] {
				residual[k] += thr
			} else {
				residual[k] = 0
			}
		}
	}
	return residual, true, linalg.SquaredNorm(residual) < s.squaredErrorThreshold
}
