package cascade_test

import (
	"context"
	"math"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinodyn/cascade"
	"github.com/kinodyn/cascade/constraint"
	"github.com/kinodyn/cascade/linesearch"
	"github.com/kinodyn/cascade/manifold"
	"github.com/kinodyn/cascade/saturation"
	"github.com/kinodyn/cascade/segment"
	"github.com/kinodyn/cascade/testutil"
)

func TestAddDuplicate(t *testing.T) {
	s := cascade.New(manifold.Vector(3))
	require.NoError(t, s.Add(constraint.New(testutil.Identity("id", 3)), 0))

	err := s.Add(constraint.New(testutil.Identity("id", 3)), 1)
	var dup *cascade.ErrDuplicateConstraint
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "id", dup.Name)
}

func TestAddDimensionMismatch(t *testing.T) {
	s := cascade.New(manifold.Vector(3))

	err := s.Add(constraint.New(testutil.Identity("id", 4)), 0)
	var mismatch *cascade.ErrDimensionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.Expected)
	assert.Equal(t, 4, mismatch.Actual)
}

func TestSolveLinearOneIteration(t *testing.T) {
	// An affine equality system is solved exactly by a single Newton
	// step.
	stats := &cascade.BasicStatsCollector{}
	s := cascade.New(manifold.Vector(3), cascade.WithStatsCollector(stats))

	f := testutil.NewAffine("plane", [][]float64{
		{1, 2, 0},
		{0, 1, 1},
	}, []float64{-1, 0.5})
	require.NoError(t, s.Add(constraint.New(f), 0))

	q := []float64{0.3, -0.7, 1.1}
	status, err := s.Solve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, cascade.StatusSuccess, status)
	assert.LessOrEqual(t, stats.Iterations.Load(), int64(2))

	value := make([]float64, 2)
	f.Value(value, q)
	assert.InDelta(t, 0, value[0], 1e-8)
	assert.InDelta(t, 0, value[1], 1e-8)
}

func TestTwoLevelNullSpace(t *testing.T) {
	// The lower level corrects inside the null space of the higher one:
	// the combined step still solves level 0 exactly.
	s := cascade.New(manifold.Vector(3))
	require.NoError(t, s.Add(constraint.New(testutil.NewAffine("high", [][]float64{{1, 0, 0}}, nil)), 0))
	require.NoError(t, s.Add(constraint.New(testutil.NewAffine("low", [][]float64{{1, 1, 0}}, nil)), 1))

	q := []float64{1, 2, 0}
	s.ComputeValue(q, true)
	s.ComputeError()
	s.ComputeDescentDirection()

	dq := s.DescentDirection()
	assert.InDelta(t, -1, dq[0], 1e-8, "level 0 must be solved exactly")
	assert.InDelta(t, -2, dq[1], 1e-8, "level 1 corrects in the remaining freedom")
	assert.InDelta(t, 0, dq[2], 1e-8)
}

func TestConflictingLevels(t *testing.T) {
	// A lower level conflicting with a higher one cannot disturb it; with
	// the trailing level optional the solve still succeeds.
	newSolver := func(opts ...cascade.Option) *cascade.Solver {
		s := cascade.New(manifold.Vector(2), opts...)
		require.NoError(t, s.Add(constraint.New(testutil.NewAffine("pin", [][]float64{{1, 0}}, nil)), 0))
		low := constraint.New(testutil.NewAffine("pull", [][]float64{{1, 0}}, []float64{-5}))
		require.NoError(t, s.Add(low, 1))
		return s
	}

	q := []float64{1, 0}
	status, err := newSolver().Solve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, cascade.StatusMaxIterations, status)
	assert.InDelta(t, 0, q[0], 1e-8, "priority 0 wins the conflict")

	q = []float64{1, 0}
	status, err = newSolver(cascade.WithLastIsOptional(true)).Solve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, cascade.StatusSuccess, status)
	assert.InDelta(t, 0, q[0], 1e-8)
}

func TestSolveLevelByLevel(t *testing.T) {
	// While a higher level is still unconverged, lower levels receive no
	// correction that iteration; the full solve still converges once the
	// higher level settles.
	s := cascade.New(manifold.Vector(2), cascade.WithSolveLevelByLevel(true))
	require.NoError(t, s.Add(constraint.New(testutil.NewAffine("a", [][]float64{{1, 0}}, nil)), 0))
	require.NoError(t, s.Add(constraint.New(testutil.NewAffine("b", [][]float64{{0, 1}}, nil)), 1))

	q := []float64{5, 3}
	s.ComputeValue(q, true)
	s.ComputeError()
	s.ComputeDescentDirection()

	dq := s.DescentDirection()
	assert.InDelta(t, -5, dq[0], 1e-8)
	assert.Equal(t, 0.0, dq[1], "lower level must wait for level 0 to converge")

	status, err := s.Solve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, cascade.StatusSuccess, status)
	assert.InDelta(t, 0, q[0], 1e-8)
	assert.InDelta(t, 0, q[1], 1e-8)
}

func TestPriorityOrdering(t *testing.T) {
	s := cascade.New(manifold.Vector(2))
	require.NoError(t, s.Add(constraint.New(testutil.NewAffine("b", [][]float64{{0, 1}}, nil)), 1))
	require.NoError(t, s.Add(constraint.New(testutil.NewAffine("a", [][]float64{{1, 0}}, nil)), 0))

	assert.Equal(t, 2, s.NumLevels())
	assert.Equal(t, 2, s.Dimension())
	assert.Equal(t, 2, s.ReducedDimension())

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Priority)
	assert.Equal(t, 0, entries[1].Priority)
}

func TestPrioritySwapChangesLevelMembership(t *testing.T) {
	build := func(pa, pb int) *cascade.Solver {
		s := cascade.New(manifold.Vector(2))
		require.NoError(t, s.Add(constraint.New(testutil.NewAffine("a", [][]float64{{1, 0}}, nil)), pa))
		require.NoError(t, s.Add(constraint.New(testutil.NewAffine("b", [][]float64{{0, 1}}, nil)), pb))
		return s
	}

	forward := build(0, 1)
	swapped := build(1, 0)

	byName := func(s *cascade.Solver) map[string]int {
		out := map[string]int{}
		for _, e := range s.Entries() {
			out[e.Constraint.Function().Name()] = e.Priority
		}
		return out
	}
	assert.Equal(t, map[string]int{"a": 0, "b": 1}, byName(forward))
	assert.Equal(t, map[string]int{"a": 1, "b": 0}, byName(swapped))
}

func TestInequalityRows(t *testing.T) {
	superior := func() (*cascade.Solver, *constraint.Constraint) {
		s := cascade.New(manifold.Vector(1))
		c := constraint.New(testutil.Identity("floor", 1),
			constraint.WithComparisons([]constraint.Comparison{constraint.Superior}))
		require.NoError(t, s.Add(c, 0))
		return s, c
	}

	t.Run("violated", func(t *testing.T) {
		s, _ := superior()
		q := []float64{-1}
		status, err := s.Solve(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, cascade.StatusSuccess, status)
		assert.GreaterOrEqual(t, q[0], -1e-8)
	})

	t.Run("satisfied row is inactive", func(t *testing.T) {
		s, _ := superior()
		q := []float64{0.5}
		status, err := s.Solve(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, cascade.StatusSuccess, status)
		assert.InDelta(t, 0.5, q[0], 1e-12, "a satisfied one-sided row must not move q")
	})
}

func TestSaturationBounds(t *testing.T) {
	// The target sits outside the box: iterates must stop at the bound
	// instead of stepping past it.
	s := cascade.New(manifold.Vector(2),
		cascade.WithSaturation(saturation.NewBounds([]float64{-1, -1}, []float64{1, 1})),
		cascade.WithMaxIterations(10),
	)
	require.NoError(t, s.Add(constraint.New(testutil.NewAffine("goal", [][]float64{
		{1, 0},
		{0, 1},
	}, []float64{-2, 0})), 0))

	q := []float64{0, 0}
	status, err := s.Solve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, cascade.StatusMaxIterations, status)
	assert.InDelta(t, 1, q[0], 1e-8, "clamped at the upper bound")
	assert.InDelta(t, 0, q[1], 1e-8)
}

func TestFreeVariables(t *testing.T) {
	s := cascade.New(manifold.Vector(3),
		cascade.WithFreeVariables(segment.Set{segment.NewSegment(0, 1), segment.NewSegment(2, 1)}),
	)
	require.NoError(t, s.Add(constraint.New(testutil.Identity("id", 3)), 0))

	q := []float64{1, 1, 1}
	_, err := s.Solve(context.Background(), q)
	require.NoError(t, err)
	assert.InDelta(t, 0, q[0], 1e-8)
	assert.Equal(t, 1.0, q[1], "frozen variable must not move")
	assert.InDelta(t, 0, q[2], 1e-8)
}

func TestFrozenConstraintDropsRows(t *testing.T) {
	// A constraint whose columns are all frozen contributes no reduced
	// rows.
	s := cascade.New(manifold.Vector(3),
		cascade.WithFreeVariables(segment.Set{segment.NewSegment(0, 1)}),
	)
	require.NoError(t, s.Add(constraint.New(testutil.NewAffine("frozen", [][]float64{{0, 1, 0}}, nil)), 0))
	require.NoError(t, s.Add(constraint.New(testutil.NewAffine("live", [][]float64{{1, 0, 0}}, nil)), 0))

	assert.Equal(t, 2, s.Dimension())
	assert.Equal(t, 1, s.ReducedDimension())
}

func TestUpdateIdempotent(t *testing.T) {
	s := cascade.New(manifold.Vector(3))
	require.NoError(t, s.Add(constraint.New(testutil.Identity("id", 3)), 0))

	dim, reduced, size := s.Dimension(), s.ReducedDimension(), s.RightHandSideSize()
	s.Update()
	s.Update()
	assert.Equal(t, dim, s.Dimension())
	assert.Equal(t, reduced, s.ReducedDimension())
	assert.Equal(t, size, s.RightHandSideSize())
}

func TestMergeAndContains(t *testing.T) {
	a := cascade.New(manifold.Vector(2))
	b := cascade.New(manifold.Vector(2))

	c0 := constraint.New(testutil.NewAffine("c0", [][]float64{{1, 0}}, nil))
	c1 := constraint.New(testutil.NewAffine("c1", [][]float64{{0, 1}}, nil))

	require.NoError(t, a.Add(c0, 0))
	require.NoError(t, b.Add(c0.Clone(), 0))
	require.NoError(t, b.Add(c1, 1))

	assert.False(t, a.Contains(c1))
	require.NoError(t, a.Merge(b))
	assert.True(t, a.Contains(c1))
	assert.Len(t, a.Entries(), 2)
	assert.Equal(t, 1, a.Entries()[1].Priority)

	assert.True(t, a.DefinesSubmanifoldOf(b))
	assert.True(t, b.DefinesSubmanifoldOf(a))

	extra := cascade.New(manifold.Vector(2))
	require.NoError(t, extra.Add(constraint.New(testutil.NewAffine("c2", [][]float64{{1, 1}}, nil)), 0))
	assert.False(t, a.DefinesSubmanifoldOf(extra))
}

func TestRightHandSideRoundTrip(t *testing.T) {
	s := cascade.New(manifold.Vector(2))
	c := constraint.New(testutil.Identity("id", 2))
	require.NoError(t, s.Add(c, 0))

	require.Equal(t, 2, s.RightHandSideSize())
	require.NoError(t, s.SetRightHandSide([]float64{0.25, -0.75}))
	assert.Equal(t, []float64{0.25, -0.75}, s.RightHandSide())

	got, ok := s.RightHandSideFor(c)
	require.True(t, ok)
	assert.Equal(t, []float64{0.25, -0.75}, got)

	err := s.SetRightHandSide([]float64{1})
	var mismatch *cascade.ErrDimensionMismatch
	require.ErrorAs(t, err, &mismatch)
}

func TestRightHandSideInequalityProjection(t *testing.T) {
	newSolver := func(strict bool) *cascade.Solver {
		s := cascade.New(manifold.Vector(2), cascade.WithStrictRightHandSide(strict))
		c := constraint.New(testutil.Identity("id", 2),
			constraint.WithComparisons([]constraint.Comparison{constraint.Equality, constraint.Superior}))
		require.NoError(t, s.Add(c, 0))
		return s
	}

	s := newSolver(false)
	require.NoError(t, s.SetRightHandSide([]float64{0.5, 3}))
	assert.Equal(t, []float64{0.5, 0}, s.RightHandSide(), "inequality row projected to neutral")

	s = newSolver(true)
	err := s.SetRightHandSide([]float64{0.5, 3})
	var rhsErr *cascade.ErrRhsInequalityRows
	require.ErrorAs(t, err, &rhsErr)
	assert.Equal(t, 0, rhsErr.Level)
	assert.Equal(t, 1, rhsErr.Row)
}

func TestSetRightHandSideFromConfig(t *testing.T) {
	s := cascade.New(manifold.Vector(3))
	f := testutil.NewAffine("plane", [][]float64{{1, 2, 3}}, []float64{0.5})
	require.NoError(t, s.Add(constraint.New(f), 0))

	goal := []float64{0.1, -0.2, 0.3}
	s.SetRightHandSideFromConfig(goal)
	assert.True(t, s.IsSatisfied(goal))

	residual, found, satisfied := s.IsConstraintSatisfied(constraint.New(f), goal)
	require.True(t, found)
	assert.True(t, satisfied)
	assert.InDelta(t, 0, residual[0], 1e-12)
}

func TestIsConstraintSatisfiedInequality(t *testing.T) {
	s := cascade.New(manifold.Vector(1))
	c := constraint.New(testutil.Identity("floor", 1),
		constraint.WithComparisons([]constraint.Comparison{constraint.Superior}))
	require.NoError(t, s.Add(c, 0))

	residual, found, satisfied := s.IsConstraintSatisfied(c, []float64{0.5})
	require.True(t, found)
	assert.True(t, satisfied, "a value above the bound satisfies a one-sided row")
	assert.Equal(t, 0.0, residual[0])

	residual, found, satisfied = s.IsConstraintSatisfied(c, []float64{-0.5})
	require.True(t, found)
	assert.False(t, satisfied)
	assert.InDelta(t, -0.5, residual[0], 1e-12)
}

func TestRightHandSideAt(t *testing.T) {
	s := cascade.New(manifold.Vector(1))
	c := constraint.New(testutil.Identity("track", 1),
		constraint.WithRightHandSideFunc(func(t float64) []float64 {
			return []float64{math.Sin(t)}
		}))
	require.NoError(t, s.Add(c, 0))

	require.NoError(t, s.RightHandSideAt(math.Pi/2))
	got, ok := s.RightHandSideFor(c)
	require.True(t, ok)
	assert.InDelta(t, 1, got[0], 1e-12)

	q := []float64{0}
	status, err := s.Solve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, cascade.StatusSuccess, status)
	assert.InDelta(t, 1, q[0], 1e-8)
}

func TestCloneIndependence(t *testing.T) {
	s := cascade.New(manifold.Vector(2))
	c := constraint.New(testutil.Identity("id", 2))
	require.NoError(t, s.Add(c, 0))
	require.NoError(t, s.SetRightHandSide([]float64{1, 1}))

	clone := s.Clone()
	got, ok := clone.RightHandSideFor(c)
	require.True(t, ok)
	assert.Equal(t, []float64{1, 1}, got)

	require.NoError(t, clone.SetRightHandSide([]float64{-1, -1}))
	assert.Equal(t, []float64{1, 1}, s.RightHandSide(), "clone edits must not leak back")

	q := []float64{0, 0}
	status, err := clone.Solve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, cascade.StatusSuccess, status)
	assert.InDelta(t, -1, q[0], 1e-8)
}

func TestSolveMany(t *testing.T) {
	s := cascade.New(manifold.Vector(2))
	require.NoError(t, s.Add(constraint.New(testutil.Identity("id", 2)), 0))

	rng := testutil.NewRNG(42)
	configs := rng.Configs(16, 2, -2, 2)

	statuses, err := s.SolveMany(context.Background(), configs, 4)
	require.NoError(t, err)
	require.Len(t, statuses, len(configs))
	for i, status := range statuses {
		assert.Equal(t, cascade.StatusSuccess, status)
		assert.InDelta(t, 0, configs[i][0], 1e-8)
		assert.InDelta(t, 0, configs[i][1], 1e-8)
	}
}

func TestSolveCancelled(t *testing.T) {
	s := cascade.New(manifold.Vector(1))
	require.NoError(t, s.Add(constraint.New(testutil.Identity("id", 1)), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := []float64{1}
	_, err := s.Solve(ctx, q)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSolveWithBacktracking(t *testing.T) {
	s := cascade.New(manifold.Vector(2),
		cascade.WithLineSearch(linesearch.NewBacktracking()))
	require.NoError(t, s.Add(constraint.New(testutil.Identity("id", 2)), 0))

	q := []float64{3, -4}
	status, err := s.Solve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, cascade.StatusSuccess, status)
	assert.InDelta(t, 0, q[0], 1e-6)
	assert.InDelta(t, 0, q[1], 1e-6)
}

// circleIdentity is the identity map on S^1 used to exercise non-flat
// output spaces: input (cos θ, sin θ), output the same point on the
// circle.
type circleIdentity struct{ ap *roaring.Bitmap }

func newCircleIdentity() *circleIdentity {
	ap := roaring.New()
	ap.AddRange(0, 2)
	return &circleIdentity{ap: ap}
}

func (f *circleIdentity) Name() string                                { return "circle-id" }
func (f *circleIdentity) InputSize() int                              { return 2 }
func (f *circleIdentity) InputDerivativeSize() int                    { return 1 }
func (f *circleIdentity) OutputSpace() manifold.Space                 { return manifold.Circle{} }
func (f *circleIdentity) ActiveParameters() *roaring.Bitmap           { return f.ap }
func (f *circleIdentity) ActiveDerivativeParameters() *roaring.Bitmap { return roaring.BitmapOf(0) }
func (f *circleIdentity) Value(out, q []float64)                      { copy(out, q) }
func (f *circleIdentity) Jacobian(dst, q []float64)                   { dst[0] = 1 }

func TestSolveOnCircle(t *testing.T) {
	space := manifold.Circle{}
	s := cascade.New(space)
	c := constraint.New(newCircleIdentity())
	require.NoError(t, s.Add(c, 0))

	target := 2.0
	found, err := s.SetRightHandSideFor(c, []float64{math.Cos(target), math.Sin(target)})
	require.NoError(t, err)
	require.True(t, found)

	q := []float64{math.Cos(0.5), math.Sin(0.5)}
	status, err := s.Solve(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, cascade.StatusSuccess, status)
	assert.InDelta(t, math.Cos(target), q[0], 1e-8)
	assert.InDelta(t, math.Sin(target), q[1], 1e-8)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "success", cascade.StatusSuccess.String())
	assert.Equal(t, "max iterations reached", cascade.StatusMaxIterations.String())
	assert.Equal(t, "unknown", cascade.Status(99).String())
}

func TestSolverString(t *testing.T) {
	s := cascade.New(manifold.Vector(2), cascade.WithLastIsOptional(true))
	require.NoError(t, s.Add(constraint.New(testutil.Identity("id", 2)), 0))

	out := s.String()
	assert.Contains(t, out, "1 levels")
	assert.Contains(t, out, "id")
	assert.Contains(t, out, "(optional)")
}
