package lanes

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecutor(t *testing.T, n int) *Executor {
	t.Helper()
	e := New(n, 16)
	t.Cleanup(e.Close)
	return e
}

func TestSubmit_SameKeyIsOrdered(t *testing.T) {
	e := newExecutor(t, 4)
	ctx := context.Background()

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 50; i++ {
		i := i
		require.NoError(t, e.Submit(ctx, 7, func() error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		}))
	}
	require.Len(t, got, 50)
	for i := range got {
		assert.Equal(t, i, got[i])
	}
}

func TestSubmit_DistinctLanesRunConcurrently(t *testing.T) {
	e := newExecutor(t, 2)
	ctx := context.Background()
	require.NotEqual(t, e.LaneFor(0), e.LaneFor(1))

	block := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = e.Submit(ctx, 0, func() error {
			close(started)
			<-block
			return nil
		})
	}()
	<-started

	done := make(chan error, 1)
	go func() { done <- e.Submit(ctx, 1, func() error { return nil }) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("lane 1 blocked by lane 0")
	}
	close(block)
}

func TestSubmit_PropagatesErrorsAndPanics(t *testing.T) {
	e := newExecutor(t, 1)
	boom := errors.New("boom")
	assert.ErrorIs(t, e.Submit(context.Background(), 3, func() error { return boom }), boom)

	err := e.Submit(context.Background(), 3, func() error { panic("x") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	// el carril sigue vivo
	assert.NoError(t, e.Submit(context.Background(), 3, func() error { return nil }))
}

func TestSubmit_NegativeKeys(t *testing.T) {
	e := newExecutor(t, 3)
	for _, k := range []int32{-1, -7, -2147483648} {
		l := e.LaneFor(k)
		assert.GreaterOrEqual(t, l, 0)
		assert.Less(t, l, 3)
	}
}

func TestSubmitUniversal_RunsAlone(t *testing.T) {
	e := newExecutor(t, 4)
	ctx := context.Background()

	var running atomic.Int32
	var overlap atomic.Bool
	universal := func() error {
		if running.Load() != 0 {
			overlap.Store(true)
		}
		time.Sleep(2 * time.Millisecond)
		if running.Load() != 0 {
			overlap.Store(true)
		}
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%10 == 0 {
				assert.NoError(t, e.SubmitUniversal(ctx, universal))
				return
			}
			_ = e.Submit(ctx, int32(i), func() error {
				running.Add(1)
				time.Sleep(time.Millisecond)
				running.Add(-1)
				return nil
			})
		}(i)
	}
	wg.Wait()
	assert.False(t, overlap.Load())
}

func TestSubmitUniversal_CanceledWhileWaiting(t *testing.T) {
	e := newExecutor(t, 2)
	block := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = e.Submit(context.Background(), 0, func() error {
			close(started)
			<-block
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ran := false
	err := e.SubmitUniversal(ctx, func() error { ran = true; return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ran)
	close(block)

	// los carriles quedan libres
	assert.NoError(t, e.Submit(context.Background(), 1, func() error { return nil }))
	assert.NoError(t, e.Submit(context.Background(), 0, func() error { return nil }))
}

func TestClose_RejectsNewWork(t *testing.T) {
	e := New(2, 4)
	e.Close()
	assert.ErrorIs(t, e.Submit(context.Background(), 1, func() error { return nil }), ErrClosed)
	assert.ErrorIs(t, e.SubmitUniversal(context.Background(), func() error { return nil }), ErrClosed)
	e.Close()
}
