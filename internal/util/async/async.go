package async

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// Run executes tasks with at most width running concurrently and waits for
// all of them. Every task runs to completion even when an earlier one fails;
// all failures are joined into the returned error, each prefixed with its
// task name. A width below one is treated as one.
func Run(ctx context.Context, width int64, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}
	if width < 1 {
		width = 1
	}

	sem := semaphore.NewWeighted(width)
	errs := make([]error, len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = fmt.Errorf("%s: %w", task.Name, err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			if err := task.Func(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", task.Name, err)
			}
		}()
	}

	wg.Wait()
	return errors.Join(errs...)
}
