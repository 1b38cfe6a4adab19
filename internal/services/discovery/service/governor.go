package service

import (
	"context"
	"sync"
)

// ForEach runs fn(i) for i in [0, n) with at most limit in flight. When the
// window is full it waits for any one task to finish before launching the
// next, so the window slides instead of draining in batches. On cancellation
// it stops launching but lets started tasks run to completion
func ForEach(ctx context.Context, n, limit int, fn func(ctx context.Context, i int)) {
	if limit < 1 {
		limit = 1
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		// Checked before the select: with the window open and ctx already
		// done, the select alone could still pick the semaphore branch
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(ctx, i)
		}(i)
	}

	wg.Wait()
}
