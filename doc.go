// Package cascade implements a hierarchical iterative solver for stacked
// equality and inequality constraints on a differentiable manifold
// configuration space.
//
// Constraints are registered into ordered priority levels; each Newton
// iteration solves every level in a weighted least-squares sense and
// projects lower-priority corrections into the null space of the levels
// above, so a lower level can never degrade a higher one.
//
// # Quick Start
//
//	space := manifold.Vector(3)
//	s := cascade.New(space,
//	    cascade.WithErrorThreshold(1e-6),
//	    cascade.WithMaxIterations(40),
//	)
//	_ = s.Add(constraint.New(fn), 0)
//
//	q := []float64{1, 2, 3}
//	status, err := s.Solve(context.Background(), q)
//
// Solve mutates q in place and returns StatusSuccess when the worst
// per-constraint squared residual over all mandatory levels drops below
// the configured threshold, or StatusMaxIterations when the iteration
// budget runs out first.
//
// # Policies
//
// Bound handling and step sizing are pluggable: see the saturation and
// linesearch packages. The defaults never saturate and always take the
// full step.
//
// # Concurrency
//
// A Solver is not safe for concurrent use. Clone copies a solver template
// (constraints cloned, configuration space shared) for independent
// parallel solves; SolveMany fans a batch of seed configurations out over
// clones.
package cascade
