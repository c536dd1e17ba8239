package batch

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ProcessesEveryItemOnce(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[int]int)
	var batches []int

	items := make([]int, 250)
	for i := range items {
		items[i] = i
	}

	err := Run(context.Background(), Options{Threads: 4, BatchSize: 100, OnBatch: func(_, n int) {
		batches = append(batches, n)
	}}, slices.Values(items), func(_ context.Context, item int) {
		mu.Lock()
		seen[item]++
		mu.Unlock()
	})

	require.NoError(t, err)
	assert.Len(t, seen, 250)
	for _, n := range seen {
		assert.Equal(t, 1, n)
	}
	assert.Equal(t, []int{100, 100, 50}, batches)
}

func TestRun_RespectsThreadLimit(t *testing.T) {
	var active, peak atomic.Int32

	items := make([]int, 40)
	err := Run(context.Background(), Options{Threads: 3, BatchSize: 20}, slices.Values(items), func(context.Context, int) {
		cur := active.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
	})

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

func TestRun_EmptyInput(t *testing.T) {
	calls := 0
	err := Run(context.Background(), Options{}, slices.Values([]string{}), func(context.Context, string) { calls++ })
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestRun_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var processed atomic.Int32

	items := make([]int, 1000)
	err := Run(ctx, Options{Threads: 2, BatchSize: 10}, slices.Values(items), func(context.Context, int) {
		if processed.Add(1) == 5 {
			cancel()
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, processed.Load(), int32(1000))
}
