package cascade

import (
	"github.com/kinodyn/cascade/linesearch"
	"github.com/kinodyn/cascade/saturation"
	"github.com/kinodyn/cascade/segment"
)

// Defaults applied by New.
const (
	// DefaultErrorThreshold is the default residual-norm threshold.
	DefaultErrorThreshold = 1e-4
	// DefaultInequalityThreshold is the default one-sided activation
	// margin.
	DefaultInequalityThreshold = 0
	// DefaultMaxIterations is the default iteration budget per solve.
	DefaultMaxIterations = 20
	// DefaultRankThreshold is the relative singular-value cutoff of the
	// rank-revealing decomposition.
	DefaultRankThreshold = 1e-8
)

type options struct {
	errorThreshold      float64
	inequalityThreshold float64
	maxIterations       int
	rankThreshold       float64
	lastIsOptional      bool
	solveLevelByLevel   bool
	strict              bool
	freeVariables       segment.Set
	saturate            saturation.Policy
	lineSearch          linesearch.Policy
	logger              *Logger
	stats               StatsCollector
}

// Option configures a Solver at construction time.
type Option func(*options)

// WithErrorThreshold sets the residual-norm convergence threshold; the
// solver compares squared norms against its square.
func WithErrorThreshold(eps float64) Option {
	return func(o *options) { o.errorThreshold = eps }
}

// WithInequalityThreshold sets the margin by which a one-sided row must
// satisfy its bound before it is dropped from the iteration.
func WithInequalityThreshold(thr float64) Option {
	return func(o *options) { o.inequalityThreshold = thr }
}

// WithMaxIterations sets the iteration budget per Solve call.
func WithMaxIterations(n int) Option {
	return func(o *options) { o.maxIterations = n }
}

// WithRankThreshold sets the relative singular-value cutoff used to
// decide numerical rank.
func WithRankThreshold(tau float64) Option {
	return func(o *options) { o.rankThreshold = tau }
}

// WithLastIsOptional excludes the trailing priority level from the
// convergence score. The level still receives descent corrections.
func WithLastIsOptional(optional bool) Option {
	return func(o *options) { o.lastIsOptional = optional }
}

// WithSolveLevelByLevel stops the descent cascade at the first level
// whose residual still exceeds the convergence threshold, treating lower
// levels as unreachable this iteration.
func WithSolveLevelByLevel(enabled bool) Option {
	return func(o *options) { o.solveLevelByLevel = enabled }
}

// WithStrictRightHandSide makes the bulk right-hand-side setter reject
// vectors with non-neutral values on inequality rows instead of silently
// projecting them away.
func WithStrictRightHandSide(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// WithFreeVariables restricts the solve to the given tangent columns;
// all other indices are frozen at zero displacement. The default frees
// every column.
func WithFreeVariables(s segment.Set) Option {
	return func(o *options) { o.freeVariables = segment.Normalize(s.Clone()) }
}

// WithSaturation sets the bound-clamping policy.
// If nil is passed, the never-saturating base policy is used.
func WithSaturation(p saturation.Policy) Option {
	return func(o *options) {
		if p == nil {
			p = saturation.Base{}
		}
		o.saturate = p
	}
}

// WithLineSearch sets the step-scale policy.
// If nil is passed, the constant full-step policy is used.
func WithLineSearch(p linesearch.Policy) Option {
	return func(o *options) {
		if p == nil {
			p = linesearch.Constant{}
		}
		o.lineSearch = p
	}
}

// WithLogger sets the logger. If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithStatsCollector sets the statistics sink.
// If nil is passed, collection is disabled.
func WithStatsCollector(c StatsCollector) Option {
	return func(o *options) {
		if c == nil {
			c = NoopStatsCollector{}
		}
		o.stats = c
	}
}
