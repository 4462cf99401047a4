package concurrent

import (
	"golang.org/x/sync/errgroup"
)

// ForEach runs action for each element in a separate goroutine, with at most
// limit goroutines in flight (no limit when limit <= 0). It waits for all of
// them and returns the first error encountered.
func ForEach[T any](items []T, limit int, action func(T) error) error {
	var group errgroup.Group
	if limit > 0 {
		group.SetLimit(limit)
	}

	for _, item := range items {
		group.Go(func() error {
			return action(item)
		})
	}

	return group.Wait()
}

// Map applies mapFn to each element in parallel, preserving order. It stops
// scheduling new work after the first error and returns that error with the
// partially filled result.
func Map[T any, R any](items []T, limit int, mapFn func(int, T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	var group errgroup.Group
	if limit > 0 {
		group.SetLimit(limit)
	}

	failed := make(chan struct{})
	for idx, item := range items {
		select {
		case <-failed:
			return out, group.Wait()
		default:
		}

		group.Go(func() error {
			r, err := mapFn(idx, item)
			if err != nil {
				select {
				case <-failed:
				default:
					close(failed)
				}
				return err
			}
			out[idx] = r
			return nil
		})
	}

	return out, group.Wait()
}
