package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteKeepsInputOrder(t *testing.T) {
	pool := NewPool(4, func(_ context.Context, n int) (int, error) {
		return n * n, nil
	})

	tasks := pool.Execute(context.Background(), []int{1, 2, 3, 4, 5, 6, 7})

	got := make([]int, len(tasks))
	for i, task := range tasks {
		require.True(t, task.Done)
		require.NoError(t, task.Err)
		got[i] = task.Result
	}
	if diff := cmp.Diff([]int{1, 4, 9, 16, 25, 36, 49}, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteReportsFailures(t *testing.T) {
	boom := errors.New("boom")
	pool := NewPool(2, func(_ context.Context, s string) (int, error) {
		if s == "bad" {
			return 0, boom
		}
		return len(s), nil
	})

	tasks := pool.Execute(context.Background(), []string{"a", "bad", "ccc"})
	failed := Failed(tasks)
	require.Len(t, failed, 1)
	assert.Equal(t, "bad", failed[0].Input)
	assert.ErrorIs(t, failed[0].Err, boom)
	assert.Equal(t, 3, tasks[2].Result)
}

func TestExecuteStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int32
	pool := NewPool(1, func(_ context.Context, n int) (int, error) {
		ran.Add(1)
		return n, nil
	})
	tasks := pool.Execute(ctx, make([]int, 50))

	require.Len(t, tasks, 50)
	done := 0
	for _, task := range tasks {
		if task.Done {
			done++
		}
	}
	assert.Equal(t, int(ran.Load()), done)
	assert.Less(t, done, 50)
}

func TestExecuteEmpty(t *testing.T) {
	pool := NewPool(0, func(_ context.Context, n int) (int, error) { return n, nil })
	assert.Empty(t, pool.Execute(context.Background(), nil))
}

func TestBatch(t *testing.T) {
	testCases := []struct {
		name string
		size int
		want [][]int
	}{
		{name: "even", size: 2, want: [][]int{{1, 2}, {3, 4}}},
		{name: "remainder", size: 3, want: [][]int{{1, 2, 3}, {4}}},
		{name: "zero size", size: 0, want: [][]int{{1}, {2}, {3}, {4}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Batch([]int{1, 2, 3, 4}, tc.size))
		})
	}
}
