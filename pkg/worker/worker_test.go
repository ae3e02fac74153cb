package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerManager_ProcessesJobs(t *testing.T) {
	w := NewWorkerManager(10, 4)

	var sum int64
	var wg sync.WaitGroup
	w.SetWorker(func(_ int, job interface{}) {
		atomic.AddInt64(&sum, int64(job.(int)))
		wg.Done()
	})
	require.NoError(t, w.Start())
	defer w.Exit()

	for i := 1; i <= 100; i++ {
		wg.Add(1)
		require.NoError(t, w.Enqueue(context.Background(), i))
	}
	wg.Wait()

	assert.Equal(t, int64(5050), atomic.LoadInt64(&sum))
}

func TestWorkerManager_StartWithoutHandler(t *testing.T) {
	assert.Error(t, NewWorkerManager(1, 1).Start())
}

func TestWorkerManager_EnqueueAfterExit(t *testing.T) {
	w := NewWorkerManager(1, 1)
	w.SetWorker(func(int, interface{}) {})
	require.NoError(t, w.Start())

	w.Exit()
	w.Exit()

	assert.ErrorIs(t, w.Enqueue(context.Background(), 1), ErrStopped)
}

func TestWorkerManager_EnqueueHonoursContext(t *testing.T) {
	// no workers started, so the single buffer slot fills up
	w := NewWorkerManager(1, 1)
	require.NoError(t, w.Enqueue(context.Background(), 1))
	assert.Equal(t, int64(1), w.GetUnreadCount())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Enqueue(ctx, 2), context.DeadlineExceeded)
}
