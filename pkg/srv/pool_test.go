package srv

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsSubmittedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(2, 8)
	go func() { _ = pool.Start(ctx) }()

	var ran atomic.Int32
	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		require.NoError(t, pool.Submit(ctx, "count", time.Second, func(ctx context.Context) error {
			ran.Add(1)
			done <- struct{}{}
			return nil
		}))
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job did not run")
		}
	}
	cancel()
	require.NoError(t, pool.Shutdown(context.Background()))
	assert.Equal(t, int32(3), ran.Load())
}

func TestPool_JobsOutliveSubmitterContext(t *testing.T) {
	poolCtx, stop := context.WithCancel(context.Background())
	defer stop()
	pool := NewPool(1, 1)
	go func() { _ = pool.Start(poolCtx) }()

	reqCtx, cancelReq := context.WithCancel(context.Background())
	result := make(chan error, 1)
	require.NoError(t, pool.Submit(reqCtx, "detached", time.Second, func(ctx context.Context) error {
		result <- ctx.Err()
		return nil
	}))
	cancelReq()

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestPool_FullQueueDrops(t *testing.T) {
	pool := NewPool(1, 1)
	noop := func(ctx context.Context) error { return nil }

	require.NoError(t, pool.Submit(context.Background(), "first", 0, noop))
	err := pool.Submit(context.Background(), "second", 0, noop)
	assert.True(t, errors.Is(err, ErrPoolFull))
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewPool(1, 1)
	require.NoError(t, pool.Shutdown(context.Background()))

	err := pool.Submit(context.Background(), "late", 0, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_ShutdownRightAfterStartDrainsQueue(t *testing.T) {
	for i := 0; i < 200; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		pool := NewPool(1, 4)

		var ran atomic.Bool
		require.NoError(t, pool.Submit(ctx, "queued", time.Second, func(ctx context.Context) error {
			ran.Store(true)
			return nil
		}))

		go func() { _ = pool.Start(ctx) }()
		<-pool.started

		require.NoError(t, pool.Shutdown(context.Background()))
		assert.True(t, ran.Load(), "queued job lost on iteration %d", i)
		cancel()
	}
}
