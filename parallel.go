package cascade

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// SolveMany solves each configuration in place using up to workers
// parallel clones of the solver. Statuses are returned per
// configuration in input order. The first context or dimension error
// cancels the remaining work.
//
// The clones share the solver's policies; stateful line-search policies
// are not safe here.
func (s *Solver) SolveMany(ctx context.Context, configs [][]float64, workers int) ([]Status, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(configs) {
		workers = len(configs)
	}

	statuses := make([]Status, len(configs))
	jobs := make(chan int)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		solver := s.Clone()
		g.Go(func() error {
			for i := range jobs {
				status, err := solver.Solve(ctx, configs[i])
				if err != nil {
					return err
				}
				statuses[i] = status
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for i := range configs {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return statuses, err
	}
	return statuses, nil
}
