package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshLoop(t *testing.T, name string) *Loop {
	t.Helper()
	l := GetLoop(name)
	t.Cleanup(l.Close)
	return l
}

func freshPool(t *testing.T, name string, width int) *Pool {
	t.Helper()
	poolsMu.Lock()
	delete(pools, name)
	poolsMu.Unlock()
	return GetPool(name, width)
}

// property 6: a Task's completion callback always runs on its declared
// return context, never on the worker goroutine that ran the body.
func TestTaskCallbackRunsOnReturnLoop(t *testing.T) {
	l := freshLoop(t, "cb-loop-"+t.Name())
	pool := freshPool(t, "cb-pool-"+t.Name(), 2)

	var mu sync.Mutex
	var bodyRan, callbackRan bool
	done := make(chan struct{})

	// Block the Loop with a prior callback so the Task's completion
	// callback cannot possibly run until this one returns, proving
	// delivery goes through l's queue rather than running inline on
	// whatever goroutine called OnFinished's closure.
	gate := make(chan struct{})
	l.Post(func() { <-gate })

	tk := NewTask(context.Background(), l, func(ctx context.Context) (interface{}, error) {
		mu.Lock()
		bodyRan = true
		mu.Unlock()
		return 42, nil
	})
	tk.OnFinished(func(result interface{}, err error) {
		mu.Lock()
		callbackRan = true
		mu.Unlock()
		require.NoError(t, err)
		assert.Equal(t, 42, result)
		close(done)
	})

	pool.Submit(tk)

	// Give the body a moment to complete; the callback must still be
	// blocked behind the gate on l's queue.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.True(t, bodyRan, "body should have run already")
	assert.False(t, callbackRan, "callback must wait its turn on the return loop")
	mu.Unlock()

	close(gate)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never ran")
	}
}

// property 7: cancelling a Task makes its Context observably Done.
func TestTaskCancelIsObservable(t *testing.T) {
	l := freshLoop(t, "cancel-loop-"+t.Name())
	pool := freshPool(t, "cancel-pool-"+t.Name(), 1)

	started := make(chan struct{})
	release := make(chan struct{})
	cancelledObserved := make(chan struct{})

	tk := NewTask(context.Background(), l, func(ctx context.Context) (interface{}, error) {
		close(started)
		<-release
		select {
		case <-ctx.Done():
			close(cancelledObserved)
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
			return nil, nil
		}
	})
	done := make(chan struct{})
	tk.OnFinished(func(result interface{}, err error) {
		close(done)
	})

	pool.Submit(tk)
	<-started
	tk.Cancel()
	close(release)

	select {
	case <-cancelledObserved:
	case <-time.After(2 * time.Second):
		t.Fatal("task body never observed cancellation")
	}
	<-done
}

func TestBatchRunsStepsInOrder(t *testing.T) {
	l := freshLoop(t, "batch-loop-"+t.Name())
	pool := freshPool(t, "batch-pool-"+t.Name(), 1)

	var mu sync.Mutex
	var order []int

	b := NewBatch(context.Background(), l)
	for i := 0; i < 5; i++ {
		i := i
		b.Add(func(ctx context.Context) (interface{}, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return i, nil
		})
	}

	done := make(chan struct{})
	var gotResults []interface{}
	var gotErr error
	b.OnFinished(func(results []interface{}, err error) {
		gotResults = results
		gotErr = err
		close(done)
	})

	b.Submit(pool)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("batch never finished")
	}

	require.NoError(t, gotErr)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Len(t, gotResults, 5)
}

func TestBatchStopsOnFirstError(t *testing.T) {
	l := freshLoop(t, "batch-err-loop-"+t.Name())
	pool := freshPool(t, "batch-err-pool-"+t.Name(), 1)

	var ran []int
	boom := assert.AnError

	b := NewBatch(context.Background(), l)
	b.Add(func(ctx context.Context) (interface{}, error) {
		ran = append(ran, 0)
		return nil, nil
	})
	b.Add(func(ctx context.Context) (interface{}, error) {
		ran = append(ran, 1)
		return nil, boom
	})
	b.Add(func(ctx context.Context) (interface{}, error) {
		ran = append(ran, 2)
		return nil, nil
	})

	done := make(chan struct{})
	var gotErr error
	b.OnFinished(func(results []interface{}, err error) {
		gotErr = err
		close(done)
	})
	b.Submit(pool)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("batch never finished")
	}

	assert.Equal(t, boom, gotErr)
	assert.Equal(t, []int{0, 1}, ran, "step 2 must not run after step 1 fails")
}

func TestPoolResizeGrowsAndShrinks(t *testing.T) {
	pool := freshPool(t, "resize-pool-"+t.Name(), 1)
	pool.Resize(4)

	pool.mu.Lock()
	target := pool.target
	pool.mu.Unlock()
	assert.Equal(t, 4, target)

	pool.Resize(1)

	assert.Eventually(t, func() bool {
		pool.mu.Lock()
		defer pool.mu.Unlock()
		return pool.running == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPoolQueuedSignalFiresBeforeCompletion(t *testing.T) {
	l := freshLoop(t, "queued-loop-"+t.Name())
	pool := freshPool(t, "queued-pool-"+t.Name(), 1)

	queued := pool.Queued()

	tk := NewTask(context.Background(), l, func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})
	pool.Submit(tk)

	select {
	case got := <-queued:
		assert.Same(t, tk, got)
	case <-time.After(2 * time.Second):
		t.Fatal("queued signal never fired")
	}
}
