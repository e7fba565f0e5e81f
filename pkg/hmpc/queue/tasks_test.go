package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jabolina/hmpc/pkg/hmpc/types"
)

func TestCollectTasksNoErrors(t *testing.T) {
	tasks := []task{
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { return nil },
	}
	require.NoError(t, collectTasks(context.Background(), tasks))
}

func TestCollectTasksSingleErrorPassesThrough(t *testing.T) {
	sentinel := errors.New("boom")
	tasks := []task{
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { return sentinel },
	}
	err := collectTasks(context.Background(), tasks)
	require.ErrorIs(t, err, sentinel)
}

func TestCollectTasksMultipleErrorsCollapse(t *testing.T) {
	tasks := []task{
		func(ctx context.Context) error { return errors.New("first") },
		func(ctx context.Context) error { return errors.New("second") },
	}
	err := collectTasks(context.Background(), tasks)
	require.Error(t, err)
	require.Equal(t, types.ErrKindMultipleErrors, types.KindOf(err))
}

func TestCollectTasksPanicBecomesTaskPanicked(t *testing.T) {
	tasks := []task{
		func(ctx context.Context) error { panic("unexpected") },
	}
	err := collectTasks(context.Background(), tasks)
	require.Error(t, err)
	require.Equal(t, types.ErrKindTaskPanicked, types.KindOf(err))
}

func TestCollectTasksEmptyIsNoOp(t *testing.T) {
	require.NoError(t, collectTasks(context.Background(), nil))
}
