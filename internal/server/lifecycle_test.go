package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type blockingComponent struct {
	started atomic.Bool
	stopped atomic.Bool
}

func (b *blockingComponent) Run(ctx context.Context) error {
	b.started.Store(true)
	<-ctx.Done()
	b.stopped.Store(true)
	return ctx.Err()
}

func TestLifecycle_StopsOnCancel(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))
	c1, c2 := &blockingComponent{}, &blockingComponent{}
	lc.Add("c1", c1)
	lc.Add("c2", c2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()

	require.Eventually(t, func() bool { return c1.started.Load() && c2.started.Load() },
		2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}
	assert.True(t, c1.stopped.Load())
	assert.True(t, c2.stopped.Load())
}

func TestLifecycle_FailureStopsOthers(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))
	other := &blockingComponent{}
	lc.Add("other", other)
	lc.Add("broken", ComponentFunc(func(context.Context) error {
		return errors.New("listen: address in use")
	}))

	err := lc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "component broken: listen: address in use")
	assert.True(t, other.stopped.Load())
}

func TestLifecycle_CleanExitDoesNotStopOthers(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))
	var ran atomic.Bool
	lc.Add("oneshot", ComponentFunc(func(context.Context) error {
		ran.Store(true)
		return nil
	}))
	lc.Add("server", &blockingComponent{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, lc.Run(ctx))
	assert.True(t, ran.Load())
}
