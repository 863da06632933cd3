package cascade

import (
	"math"

	"github.com/kinodyn/cascade/constraint"
	"github.com/kinodyn/cascade/internal/linalg"
)

// ComputeValue evaluates every level at q: the aggregated function value,
// the residual against the level's right-hand side, inequality activation
// and, when withJacobian is set, the full and reduced Jacobians.
// q must have length Space().NQ().
func (s *Solver) ComputeValue(q []float64, withJacobian bool) {
	for _, lv := range s.levels {
		lv.set.Value(lv.output, q)
		lv.set.OutputSpace().Difference(lv.output, lv.rhs, lv.errv)
		lv.set.SetInactiveRowsToZero(lv.errv)
		if withJacobian {
			lv.set.Jacobian(lv.jacobian.Data(), s.space.NV(), q)
		}
		s.applyComparison(lv, withJacobian)
		if withJacobian {
			s.gatherReduced(lv)
		}
	}
}

// applyComparison handles the one-sided rows of a level. A row whose
// bound holds with the configured margin is deactivated: its residual is
// zeroed, and its Jacobian row too so it cannot steer the correction.
// Rows still violating their bound keep the margin subtracted so the
// iteration aims past the boundary.
func (s *Solver) applyComparison(lv *level, withJacobian bool) {
	thr := s.inequalityThreshold
	for _, j := range lv.inequalityIndices {
		superior := lv.comparisons[j] == constraint.Superior
		v := lv.errv[j]
		if (superior && v < thr) || (!superior && -thr < v) {
			if superior {
				lv.errv[j] -= thr
			} else {
				lv.errv[j] += thr
			}
			continue
		}
		lv.errv[j] = 0
		if withJacobian {
			row := lv.jacobian.Row(j)
			for k := range row {
				row[k] = 0
			}
		}
	}
}

// gatherReduced copies the active rows and free columns of the full
// Jacobian into the level's reduced block.
func (s *Solver) gatherReduced(lv *level) {
	for ri, r := range lv.rowIdx {
		src := lv.jacobian.Row(r)
		dst := lv.reducedJ.Row(ri)
		for ci, c := range s.colIdx {
			dst[ci] = src[c]
		}
	}
}

// ComputeSaturation clamps q with the saturation policy and suppresses
// reduced-Jacobian columns whose correction would push further into a
// violated bound: column j is zeroed when the saturation sign and the
// gradient component (Jᵀe)ⱼ disagree. Call after ComputeValue with
// Jacobians and before ComputeDescentDirection.
func (s *Solver) ComputeSaturation(q []float64) {
	for i := range s.satFlags {
		s.satFlags[i] = 0
	}
	if !s.saturate.Saturate(q, s.qSat, s.satFlags) {
		return
	}
	for i, c := range s.colIdx {
		s.reducedSat[i] = s.satFlags[c]
	}
	for _, lv := range s.levels {
		if len(lv.rowIdx) == 0 {
			continue
		}
		for ri, r := range lv.rowIdx {
			lv.errActive[ri] = lv.errv[r]
		}
		linalg.MulTVec(lv.reducedJ, lv.errActive, s.satScratch)
		for j := range s.colIdx {
			if float64(s.reducedSat[j])*s.satScratch[j] < 0 {
				lv.reducedJ.ZeroCol(j)
			}
		}
	}
}

// ComputeError recomputes the convergence score: the maximum over all
// mandatory levels of the per-constraint squared residual norms. With
// LastIsOptional the trailing level is skipped.
func (s *Solver) ComputeError() {
	end := len(s.levels)
	if s.lastIsOptional && end > 0 {
		end--
	}
	s.squaredNorm = 0
	for li := 0; li < end; li++ {
		lv := s.levels[li]
		for i, c := range lv.set.Items() {
			iv := lv.set.OffsetV(i)
			nv := c.Function().OutputSpace().NV()
			if sq := linalg.SquaredNorm(lv.errv[iv : iv+nv]); sq > s.squaredNorm {
				s.squaredNorm = sq
			}
		}
	}
}

// ComputeDescentDirection runs the priority cascade: each level solves
// its reduced system inside the null space of all higher levels, via a
// minimal-norm least-squares solve of the rank-revealing decomposition.
// The result is written to the full-size direction readable with
// DescentDirection.
func (s *Solver) ComputeDescentDirection() {
	s.sigma = math.Inf(1)
	for i := range s.dqSmall {
		s.dqSmall[i] = 0
	}
	for i := range s.dq {
		s.dq[i] = 0
	}

	// projector is nil while the accumulated null space is still the
	// whole reduced space.
	var projector *linalg.Dense
	for li, lv := range s.levels {
		if len(lv.rowIdx) == 0 {
			continue
		}

		// Target of this level: what remains of -e after the corrections
		// accumulated by higher levels.
		err := lv.errActive
		for ri, r := range lv.rowIdx {
			err[ri] = -lv.errv[r] - linalg.Dot(lv.reducedJ.Row(ri), s.dqSmall)
		}

		if projector == nil {
			lv.svd.Compute(lv.reducedJ)
			lv.svd.Solve(err, s.solveBuf)
		} else {
			m := linalg.Mul(lv.reducedJ, projector)
			lv.svd.Compute(m)
			v := make([]float64, m.Cols())
			lv.svd.Solve(err, v)
			linalg.MulVec(projector, v, s.solveBuf)
		}
		for j := range s.dqSmall {
			s.dqSmall[j] += s.solveBuf[j]
		}

		// maxRank only grows across iterations so sigma tracks the
		// smallest singular value the cascade ever relied on.
		if r := lv.svd.Rank(); r > lv.maxRank {
			lv.maxRank = r
		}
		if k := lv.maxRank; k > 0 {
			if k > lv.svd.NumSingular() {
				k = lv.svd.NumSingular()
			}
			if sv := lv.svd.Singular(k - 1); sv < s.sigma {
				s.sigma = sv
			}
		}

		if s.solveLevelByLevel && linalg.SquaredNorm(err) > s.squaredErrorThreshold {
			break
		}
		if li == len(s.levels)-1 {
			break
		}
		if lv.svd.Rank() == lv.svd.VCols() {
			// Null space is {0}: lower levels have no freedom left.
			break
		}
		kernel := lv.svd.Kernel()
		if projector == nil {
			projector = kernel
		} else {
			projector = linalg.Mul(projector, kernel)
		}
	}

	for i, c := range s.colIdx {
		s.dq[c] = s.dqSmall[i]
	}
}

// DescentDirection returns the last computed full-size tangent
// correction. The slice is owned by the solver.
func (s *Solver) DescentDirection() []float64 { return s.dq }

// Integrate stores from ⊕ velocity into result, clamped by the
// saturation policy. result may alias from. It reports whether any
// bound was hit.
func (s *Solver) Integrate(from, velocity, result []float64) bool {
	s.space.Integrate(from, velocity, result)
	return s.saturate.Saturate(result, result, s.satFlags)
}

// IsSatisfied evaluates the constraints at q and reports whether the
// convergence score is below the threshold. Jacobians are not computed.
func (s *Solver) IsSatisfied(q []float64) bool {
	s.ComputeValue(q, false)
	s.ComputeError()
	return s.squaredNorm < s.squaredErrorThreshold
}

// Value returns the concatenated raw function values of all levels from
// the last evaluation.
func (s *Solver) Value() []float64 {
	out := make([]float64, 0, s.RightHandSideSize())
	for _, lv := range s.levels {
		out = append(out, lv.output...)
	}
	return out
}

// Residual returns the concatenated residuals of all levels from the
// last evaluation, after inequality activation.
func (s *Solver) Residual() []float64 {
	out := make([]float64, 0, s.dimension)
	for _, lv := range s.levels {
		out = append(out, lv.errv...)
	}
	return out
}

// ReducedJacobian returns copies of the per-level reduced Jacobian
// blocks from the last evaluation, one row-major matrix per level with
// ReducedDimension rows in total.
func (s *Solver) ReducedJacobian() [][]float64 {
	out := make([][]float64, len(s.levels))
	for i, lv := range s.levels {
		out[i] = append([]float64(nil), lv.reducedJ.Data()...)
	}
	return out
}
