package estimate

import (
	"context"

	"golang.org/x/sync/errgroup"

	"kitbuild/internal/catalog"
)

type BatchResult struct {
	Result *Result
	Err    error
}

// CalculateBatch quotes independent carts against one snapshot using at most
// workers goroutines. A cart that fails to price does not fail the batch; only
// context cancellation does. Results keep the order of carts.
func CalculateBatch(ctx context.Context, carts [][]ItemRequest, snap catalog.Snapshot, workers int) ([]BatchResult, error) {
	if workers <= 0 {
		workers = 1
	}
	out := make([]BatchResult, len(carts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, cart := range carts {
		i, cart := i, cart
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := Calculate(cart, snap)
			if err != nil {
				out[i] = BatchResult{Err: err}
				return nil
			}
			out[i] = BatchResult{Result: &res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
