package ingest_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/vnnews-radar/backend/internal/ingest"
)

func TestSchedulerRunsImmediatelyThenOnTick(t *testing.T) {
	var runs atomic.Int32
	s := ingest.NewScheduler(10*time.Millisecond, func(context.Context) { runs.Add(1) }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestSchedulerFirstRunIsNotDelayed(t *testing.T) {
	var runs atomic.Int32
	s := ingest.NewScheduler(time.Hour, func(context.Context) { runs.Add(1) }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSchedulerNeverOverlapsRuns(t *testing.T) {
	var active, maxActive, runs atomic.Int32
	s := ingest.NewScheduler(time.Millisecond, func(context.Context) {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		runs.Add(1)
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return runs.Load() >= 4 }, 2*time.Second, time.Millisecond)
	cancel()
	<-done
	require.Equal(t, int32(1), maxActive.Load())
}

func TestSchedulerSkipsTicksMissedDuringLongRun(t *testing.T) {
	var (
		runs      atomic.Int32
		firstDone atomic.Int64
		second    = make(chan time.Time, 1)
	)
	s := ingest.NewScheduler(60*time.Millisecond, func(context.Context) {
		switch runs.Add(1) {
		case 1:
			time.Sleep(130 * time.Millisecond)
			firstDone.Store(time.Now().UnixNano())
		case 2:
			second <- time.Now()
		}
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case at := <-second:
		gap := at.Sub(time.Unix(0, firstDone.Load()))
		require.GreaterOrEqual(t, gap, 10*time.Millisecond, "second run started right after the long first run")
	case <-time.After(2 * time.Second):
		t.Fatal("second run never started")
	}
}
