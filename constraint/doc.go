// Package constraint defines the differentiable functions the solver
// drives to zero and the wrapper carrying their solver-facing metadata:
// per-row comparison tags, active output rows and right-hand-side
// parameterization.
//
// The solver never evaluates constraint mathematics itself; it consumes
// the Function contract and owns only the bookkeeping around it.
package constraint
