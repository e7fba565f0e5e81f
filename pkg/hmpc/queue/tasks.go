package queue

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

// task is one unit of fan-out work a collective call spawns: a send or
// a receive.
type task func(ctx context.Context) error

// collectTasks runs every task concurrently and implements §5's
// collect_tasks policy: the first error is retained; a second error
// collapses the verdict into MultipleErrors. A panic inside a task is
// recovered and becomes TaskPanicked.
func collectTasks(ctx context.Context, tasks []task) error {
	if len(tasks) == 0 {
		return nil
	}

	group, gctx := errgroup.WithContext(ctx)
	results := make(chan error, len(tasks))

	for _, t := range tasks {
		t := t
		group.Go(func() (ferr error) {
			defer func() {
				if r := recover(); r != nil {
					ferr = types.NewError(types.ErrKindTaskPanicked, fmt.Sprintf("collective task panicked: %v", r))
				}
				results <- ferr
			}()
			return t(gctx)
		})
	}

	_ = group.Wait()
	close(results)

	var first error
	var merr *multierror.Error
	count := 0
	for err := range results {
		if err == nil {
			continue
		}
		count++
		if first == nil {
			first = err
			continue
		}
		if merr == nil {
			merr = multierror.Append(merr, first)
		}
		merr = multierror.Append(merr, err)
	}

	switch count {
	case 0:
		return nil
	case 1:
		return first
	default:
		return types.WrapError(types.ErrKindMultipleErrors, "collective call had multiple task failures", merr)
	}
}
