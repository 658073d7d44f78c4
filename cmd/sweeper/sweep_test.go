package main

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lt "github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/lifecycle/lifecycletest"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/orders"
)

type fakeExpirer struct {
	mu     sync.Mutex
	calls  []bool
	errs   []error
	cancel context.CancelFunc
	stopAt int
}

func (f *fakeExpirer) ExpireOverdue(ctx context.Context, dryRun bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dryRun)
	if f.cancel != nil && len(f.calls) == f.stopAt {
		f.cancel()
	}
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return 0, err
	}
	return 1, nil
}

func quiet() zerolog.Logger { return zerolog.New(io.Discard) }

func TestSweepCommand_Once(t *testing.T) {
	f := &fakeExpirer{}
	build := func(context.Context, zerolog.Logger) (Expirer, error) { return f, nil }

	err := newApp(build, quiet()).RunContext(context.Background(), []string{"sweeper", "sweep", "--once", "--dry-run"})
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, f.calls)
}

func TestSweepCommand_OnceReportsFailure(t *testing.T) {
	f := &fakeExpirer{errs: []error{errors.New("scan failed")}}
	build := func(context.Context, zerolog.Logger) (Expirer, error) { return f, nil }

	err := newApp(build, quiet()).RunContext(context.Background(), []string{"sweeper", "sweep", "--once"})
	assert.EqualError(t, err, "scan failed")
}

func TestSweepCommand_BuildFailure(t *testing.T) {
	build := func(context.Context, zerolog.Logger) (Expirer, error) { return nil, errors.New("no credentials") }

	err := newApp(build, quiet()).RunContext(context.Background(), []string{"sweeper", "sweep", "--once"})
	assert.EqualError(t, err, "no credentials")
}

func TestSweep_LoopSurvivesFailedPass(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := &fakeExpirer{errs: []error{errors.New("throttled")}, cancel: cancel, stopAt: 3}

	err := sweep(ctx, f, quiet(), false, time.Millisecond, false)
	require.NoError(t, err)
	assert.Len(t, f.calls, 3)
}

func TestSweep_AgainstEngine(t *testing.T) {
	h := lt.New(t, lt.DefaultSettings())
	o := h.Place(t, lt.Draft("user-1", orders.PaymentCOD, lt.Rice()))
	h.Clock.Advance(20 * time.Minute)

	require.NoError(t, sweep(context.Background(), h.Engine, quiet(), true, time.Minute, false))

	got, err := h.Orders.Get(context.Background(), o.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, got.Status)
	assert.Equal(t, orders.CancelledBySystem, got.CancelledBy)
}
