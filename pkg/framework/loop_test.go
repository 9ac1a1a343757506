package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoopPriorityOrder(t *testing.T) {
	var order []int
	l := NewLoop()
	for _, lv := range []int{PrLvIdle, PrLvTop, PrLvLow, PrLvBridge} {
		lv := lv
		l.AddController(lv, ControlFunc(func(ctx ControlContext) error {
			require.Equal(t, lv, ctx.PriorityLevel())
			order = append(order, lv)
			return nil
		}))
	}
	l.RunIteration(context.Background())
	require.Equal(t, []int{PrLvTop, PrLvBridge, PrLvLow, PrLvIdle}, order)
}

func TestLoopIterationCount(t *testing.T) {
	var seen []uint64
	l := NewLoop().AddController(PrLvNormal, ControlFunc(func(ctx ControlContext) error {
		seen = append(seen, ctx.Iteration())
		return errors.New("ignored")
	}))
	for i := 0; i < 3; i++ {
		l.RunIteration(context.Background())
	}
	require.Equal(t, []uint64{1, 2, 3}, seen)
}

type stopRunnable struct {
	started chan struct{}
}

func (r *stopRunnable) Run(ctx context.Context) error {
	close(r.started)
	<-ctx.Done()
	return ctx.Err()
}

func TestLoopRunsRunnablesAndStops(t *testing.T) {
	r := &stopRunnable{started: make(chan struct{})}
	ticks := make(chan struct{}, 100)
	l := NewLoop()
	l.Interval = time.Millisecond
	l.AddRunnable(r)
	l.AddController(PrLvNormal, ControlFunc(func(ControlContext) error {
		select {
		case ticks <- struct{}{}:
		default:
		}
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	<-r.started
	<-ticks
	l.TriggerNext()
	cancel()
	select {
	case err := <-errCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("loop not stopped")
	}
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil).Aggregate())
	errs.Add(errors.New("a"))
	require.Equal(t, "a", errs.Aggregate().Error())
	errs.Add(errors.New("b"))
	require.Equal(t, "Multiple errors:\na\nb", errs.Aggregate().Error())
}

func TestRunWithContextCloser(t *testing.T) {
	c := &testCloser{done: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- RunWithContextCloser(ctx, c, func() error {
			<-c.done
			return errors.New("closed")
		})
	}()
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
	require.Equal(t, 1, c.closed)
}

type testCloser struct {
	done   chan struct{}
	closed int
}

func (c *testCloser) Close() error {
	c.closed++
	close(c.done)
	return nil
}
