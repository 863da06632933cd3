package cascade

import (
	"fmt"
	"math"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kinodyn/cascade/constraint"
	"github.com/kinodyn/cascade/internal/linalg"
	"github.com/kinodyn/cascade/linesearch"
	"github.com/kinodyn/cascade/manifold"
	"github.com/kinodyn/cascade/saturation"
	"github.com/kinodyn/cascade/segment"
)

// entry records one registered constraint: its priority level and its
// offsets inside that level's combined output. Entries are stable handles
// assigned at Add time; lookups by constraint identity resolve through
// them instead of scanning comparison maps.
type entry struct {
	c        *constraint.Constraint
	priority int
	iq, iv   int
}

// level is the per-priority scratch state: the aggregated function, its
// cached output, right-hand side, residual, Jacobians and decomposition.
// All buffers are sized at Update time and reused across iterations.
type level struct {
	set         *constraint.Set
	comparisons []constraint.Comparison

	inequalityIndices []int
	equalityIndices   segment.Set
	activeRows        segment.Set
	rowIdx            []int

	output    []float64
	rhs       []float64
	errv      []float64
	errActive []float64

	jacobian *linalg.Dense
	reducedJ *linalg.Dense
	svd      *linalg.SVD
	maxRank  int
}

// Solver is a hierarchical iterative constraint solver. It is not safe
// for concurrent use; clone it for parallel solves.
type Solver struct {
	space manifold.Space

	squaredErrorThreshold float64
	inequalityThreshold   float64
	maxIterations         int
	rankThreshold         float64
	lastIsOptional        bool
	solveLevelByLevel     bool
	strict                bool

	freeVariables segment.Set
	saturate      saturation.Policy
	lineSearch    linesearch.Policy
	logger        *Logger
	stats         StatsCollector

	levels  []*level
	entries []*entry
	byName  map[string]*entry

	dimension        int
	reducedDimension int
	colIdx           []int
	freeBitmap       *roaring.Bitmap

	sigma       float64
	squaredNorm float64

	dq         []float64
	dqSmall    []float64
	solveBuf   []float64
	qSat       []float64
	satFlags   []int8
	reducedSat []int8
	satScratch []float64
}

// New creates a solver over the given configuration space.
// It panics when space is nil.
func New(space manifold.Space, opts ...Option) *Solver {
	if space == nil {
		panic(ErrNoConfigSpace)
	}
	o := options{
		errorThreshold:      DefaultErrorThreshold,
		inequalityThreshold: DefaultInequalityThreshold,
		maxIterations:       DefaultMaxIterations,
		rankThreshold:       DefaultRankThreshold,
		freeVariables:       segment.All(space.NV()),
		saturate:            saturation.Base{},
		lineSearch:          linesearch.Constant{},
		logger:              NoopLogger(),
		stats:               NoopStatsCollector{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Solver{
		space:                 space,
		squaredErrorThreshold: o.errorThreshold * o.errorThreshold,
		inequalityThreshold:   o.inequalityThreshold,
		maxIterations:         o.maxIterations,
		rankThreshold:         o.rankThreshold,
		lastIsOptional:        o.lastIsOptional,
		solveLevelByLevel:     o.solveLevelByLevel,
		strict:                o.strict,
		freeVariables:         o.freeVariables,
		saturate:              o.saturate,
		lineSearch:            o.lineSearch,
		logger:                o.logger,
		stats:                 o.stats,
	}
	s.Update()
	return s
}

// Space returns the shared configuration-space descriptor.
func (s *Solver) Space() manifold.Space { return s.space }

// ErrorThreshold returns the residual-norm convergence threshold.
func (s *Solver) ErrorThreshold() float64 { return math.Sqrt(s.squaredErrorThreshold) }

// SquaredErrorThreshold returns the squared convergence threshold.
func (s *Solver) SquaredErrorThreshold() float64 { return s.squaredErrorThreshold }

// InequalityThreshold returns the one-sided activation margin.
func (s *Solver) InequalityThreshold() float64 { return s.inequalityThreshold }

// MaxIterations returns the iteration budget per solve.
func (s *Solver) MaxIterations() int { return s.maxIterations }

// RankThreshold returns the relative singular-value cutoff.
func (s *Solver) RankThreshold() float64 { return s.rankThreshold }

// StrictRightHandSide reports whether the bulk target setter rejects
// non-neutral inequality rows.
func (s *Solver) StrictRightHandSide() bool { return s.strict }

// LastIsOptional reports whether the trailing level is excluded from the
// convergence score.
func (s *Solver) LastIsOptional() bool { return s.lastIsOptional }

// SolveLevelByLevel reports whether the descent cascade stops at the
// first unconverged level.
func (s *Solver) SolveLevelByLevel() bool { return s.solveLevelByLevel }

// SaturationPolicy returns the active bound-clamping policy.
func (s *Solver) SaturationPolicy() saturation.Policy { return s.saturate }

// NumLevels returns the number of priority levels.
func (s *Solver) NumLevels() int { return len(s.levels) }

// Dimension returns the summed output tangent dimension of all levels.
func (s *Solver) Dimension() int { return s.dimension }

// ReducedDimension returns the summed active-row count of all levels.
func (s *Solver) ReducedDimension() int { return s.reducedDimension }

// Sigma returns the smallest retained singular value over all levels
// from the last descent computation, +Inf before the first.
func (s *Solver) Sigma() float64 { return s.sigma }

// SquaredNorm returns the convergence score of the last evaluation.
func (s *Solver) SquaredNorm() float64 { return s.squaredNorm }

// FreeVariables returns the tangent columns participating in the solve.
func (s *Solver) FreeVariables() segment.Set { return s.freeVariables }

// SetFreeVariables replaces the free-variable set and recomputes every
// per-level shape.
func (s *Solver) SetFreeVariables(set segment.Set) {
	s.freeVariables = segment.Normalize(set.Clone())
	s.Update()
}

// Entry is the public view of a registered constraint.
type Entry struct {
	Constraint *constraint.Constraint
	Priority   int
}

// Entries returns the registered constraints in registration order.
func (s *Solver) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = Entry{Constraint: e.c, Priority: e.priority}
	}
	return out
}

func (s *Solver) findEntry(c *constraint.Constraint) (*entry, bool) {
	e, ok := s.byName[c.Function().Name()]
	return e, ok
}

// Contains reports whether a constraint wrapping the same logical
// function is registered.
func (s *Solver) Contains(c *constraint.Constraint) bool {
	_, ok := s.findEntry(c)
	return ok
}

// Add registers c at the given priority level (0 is highest). It fails
// with ErrDuplicateConstraint when a constraint wrapping the same logical
// function is already present, and with ErrDimensionMismatch when the
// function does not match the configuration space.
//
// Adding a constraint recomputes every per-level buffer shape and resets
// all right-hand sides to the neutral element.
func (s *Solver) Add(c *constraint.Constraint, priority int) error {
	f := c.Function()
	if _, ok := s.findEntry(c); ok {
		return &ErrDuplicateConstraint{Name: f.Name()}
	}
	if f.InputSize() != s.space.NQ() {
		return &ErrDimensionMismatch{Expected: s.space.NQ(), Actual: f.InputSize()}
	}
	if f.InputDerivativeSize() != s.space.NV() {
		return &ErrDimensionMismatch{Expected: s.space.NV(), Actual: f.InputDerivativeSize()}
	}
	if len(c.Comparisons()) != f.OutputSpace().NV() {
		return &ErrDimensionMismatch{Expected: f.OutputSpace().NV(), Actual: len(c.Comparisons())}
	}

	for len(s.levels) <= priority {
		s.levels = append(s.levels, &level{set: constraint.NewSet()})
	}
	lv := s.levels[priority]

	// Offsets must be captured before the aggregate grows.
	e := &entry{c: c, priority: priority, iq: lv.set.NQ(), iv: lv.set.NV()}
	lv.set.Add(c)

	for i, comp := range c.Comparisons() {
		row := e.iv + i
		switch comp {
		case constraint.Superior, constraint.Inferior:
			lv.inequalityIndices = append(lv.inequalityIndices, row)
		default:
			lv.equalityIndices = lv.equalityIndices.AddRow(row, 1)
		}
		lv.comparisons = append(lv.comparisons, comp)
	}

	s.entries = append(s.entries, e)
	if s.byName == nil {
		s.byName = make(map[string]*entry)
	}
	s.byName[f.Name()] = e
	s.Update()
	return nil
}

// Merge imports every constraint of other not already present, keeping
// other's priorities. Constraints without a recorded priority do not
// occur here: every registration carries one.
func (s *Solver) Merge(other *Solver) error {
	for _, e := range other.entries {
		if s.Contains(e.c) {
			continue
		}
		if err := s.Add(e.c, e.priority); err != nil {
			return err
		}
	}
	return nil
}

// DefinesSubmanifoldOf reports whether every constraint function of
// other is also registered in s: the solution set of s is then a
// submanifold of other's.
func (s *Solver) DefinesSubmanifoldOf(other *Solver) bool {
	for _, e := range other.entries {
		if !s.Contains(e.c) {
			return false
		}
	}
	return true
}

// Update recomputes every per-level shape: active rows, reduced
// dimensions and all scratch buffers. It runs automatically after Add,
// Merge and SetFreeVariables; right-hand sides are reset to neutral.
func (s *Solver) Update() {
	s.colIdx = s.freeVariables.Indices()
	s.freeBitmap = roaring.New()
	for _, c := range s.colIdx {
		s.freeBitmap.Add(uint32(c))
	}
	reduced := len(s.colIdx)

	s.dimension = 0
	s.reducedDimension = 0
	for _, lv := range s.levels {
		s.computeActiveRows(lv)

		nq, nv := lv.set.NQ(), lv.set.NV()
		s.dimension += nv
		s.reducedDimension += len(lv.rowIdx)

		lv.output = make([]float64, nq)
		lv.rhs = lv.set.OutputSpace().Neutral()
		lv.errv = make([]float64, nv)
		lv.errActive = make([]float64, len(lv.rowIdx))
		lv.jacobian = linalg.NewDense(nv, s.space.NV())
		lv.reducedJ = linalg.NewDense(len(lv.rowIdx), reduced)
		lv.svd = linalg.NewSVD(s.rankThreshold)
		lv.maxRank = 0
	}

	s.dq = make([]float64, s.space.NV())
	s.dqSmall = make([]float64, reduced)
	s.solveBuf = make([]float64, reduced)
	s.qSat = make([]float64, s.space.NQ())
	s.satFlags = make([]int8, s.space.NV())
	s.reducedSat = make([]int8, reduced)
	s.satScratch = make([]float64, reduced)
	s.sigma = math.Inf(1)
}

// computeActiveRows drops the rows of constraints whose Jacobian block
// cannot overlap the free columns: they contribute nothing to the
// reduced system and would only inflate its rank.
func (s *Solver) computeActiveRows(lv *level) {
	var rows segment.Set
	for i, c := range lv.set.Items() {
		adp := c.Function().ActiveDerivativeParameters()
		if !adp.Intersects(s.freeBitmap) {
			continue
		}
		offset := lv.set.OffsetV(i)
		rows = append(rows, c.ActiveRows().Shift(offset)...)
	}
	lv.activeRows = segment.Normalize(rows)
	lv.rowIdx = lv.activeRows.Indices()
}

// ActiveParameters returns the union of all registered functions' active
// configuration indices.
func (s *Solver) ActiveParameters() *roaring.Bitmap {
	out := roaring.New()
	for _, lv := range s.levels {
		out.Or(lv.set.ActiveParameters())
	}
	return out
}

// ActiveDerivativeParameters returns the union of all registered
// functions' active tangent indices.
func (s *Solver) ActiveDerivativeParameters() *roaring.Bitmap {
	out := roaring.New()
	for _, lv := range s.levels {
		out.Or(lv.set.ActiveDerivativeParameters())
	}
	return out
}

// Clone returns an independent copy: constraints are cloned, the
// configuration-space descriptor is shared, right-hand sides are copied.
// Policies, logger and stats sink are shared; stateful line-search
// policies should not be shared between concurrently solving clones.
func (s *Solver) Clone() *Solver {
	n := &Solver{
		space:                 s.space,
		squaredErrorThreshold: s.squaredErrorThreshold,
		inequalityThreshold:   s.inequalityThreshold,
		maxIterations:         s.maxIterations,
		rankThreshold:         s.rankThreshold,
		lastIsOptional:        s.lastIsOptional,
		solveLevelByLevel:     s.solveLevelByLevel,
		strict:                s.strict,
		freeVariables:         s.freeVariables.Clone(),
		saturate:              s.saturate,
		lineSearch:            s.lineSearch,
		logger:                s.logger,
		stats:                 s.stats,
	}
	n.Update()
	for _, e := range s.entries {
		if err := n.Add(e.c.Clone(), e.priority); err != nil {
			// Entries were unique in the source; re-adding them cannot
			// collide.
			panic(err)
		}
	}
	for i, lv := range s.levels {
		copy(n.levels[i].rhs, lv.rhs)
	}
	return n
}

// String summarizes the solver's levels and shapes.
func (s *Solver) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "HierarchicalSolver: %d levels, dimension %d, reduced %d, max iter %d, error threshold %g\n",
		len(s.levels), s.dimension, s.reducedDimension, s.maxIterations, s.ErrorThreshold())
	fmt.Fprintf(&b, "free variables: %v\n", s.freeVariables)
	for i, lv := range s.levels {
		optional := ""
		if s.lastIsOptional && i == len(s.levels)-1 {
			optional = " (optional)"
		}
		fmt.Fprintf(&b, "level %d%s: %d constraints, active rows %v\n",
			i, optional, lv.set.Len(), lv.activeRows)
		for j, c := range lv.set.Items() {
			fmt.Fprintf(&b, "  %d: %s [%d, %d), rows %v\n",
				j, c.Function().Name(), lv.set.OffsetV(j),
				lv.set.OffsetV(j)+c.Function().OutputSpace().NV(), c.ActiveRows())
		}
	}
	return b.String()
}
