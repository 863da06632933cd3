package cascade

import (
	"context"
)

// Status is the outcome of a Solve call.
type Status uint8

const (
	// StatusSuccess means the convergence score dropped below the
	// threshold within the iteration budget.
	StatusSuccess Status = iota
	// StatusMaxIterations means the budget ran out first.
	StatusMaxIterations
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusMaxIterations:
		return "max iterations reached"
	default:
		return "unknown"
	}
}

// searchProblem adapts the solver to the line-search Problem view.
type searchProblem struct{ s *Solver }

func (p searchProblem) NQ() int              { return p.s.space.NQ() }
func (p searchProblem) SquaredNorm() float64 { return p.s.squaredNorm }
func (p searchProblem) Sigma() float64       { return p.s.sigma }

func (p searchProblem) ErrorAt(q []float64) float64 {
	p.s.ComputeValue(q, false)
	p.s.ComputeError()
	return p.s.squaredNorm
}

func (p searchProblem) Integrate(from, v, out []float64) {
	p.s.Integrate(from, v, out)
}

// Solve iterates Newton corrections on q in place until the convergence
// score passes the threshold or the iteration budget runs out. q must
// have length Space().NQ() and holds the last iterate on return, also
// when unconverged.
//
// The context is checked between iterations only; a single iteration is
// never interrupted.
func (s *Solver) Solve(ctx context.Context, q []float64) (Status, error) {
	if len(q) != s.space.NQ() {
		return StatusMaxIterations, &ErrDimensionMismatch{Expected: s.space.NQ(), Actual: len(q)}
	}

	s.ComputeValue(q, true)
	s.ComputeError()

	logger := s.logger.WithLevelCount(s.NumLevels())
	iter := 0
	for s.squaredNorm > s.squaredErrorThreshold {
		if iter >= s.maxIterations {
			logger.LogSolve(StatusMaxIterations, iter, s.squaredNorm)
			s.stats.RecordSolve(StatusMaxIterations, iter)
			return StatusMaxIterations, nil
		}
		if err := ctx.Err(); err != nil {
			s.stats.RecordSolve(StatusMaxIterations, iter)
			return StatusMaxIterations, err
		}

		s.ComputeSaturation(q)
		s.ComputeDescentDirection()
		alpha := s.lineSearch.Scale(searchProblem{s}, q, s.dq)
		for i := range s.dq {
			s.dq[i] *= alpha
		}
		s.Integrate(q, s.dq, q)

		s.ComputeValue(q, true)
		s.ComputeError()
		iter++

		logger.LogIteration(iter, s.squaredNorm, s.sigma, alpha)
		s.stats.RecordIteration(iter, s.squaredNorm, s.sigma, alpha)
	}

	logger.LogSolve(StatusSuccess, iter, s.squaredNorm)
	s.stats.RecordSolve(StatusSuccess, iter)
	return StatusSuccess, nil
}
