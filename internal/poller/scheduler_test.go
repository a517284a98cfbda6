package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestSchedulerImmediateTick(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var calls atomic.Int32
	s.Replace(RoleDevicePoll, time.Hour, true, func(ctx context.Context) {
		calls.Add(1)
	})

	waitFor(t, func() bool { return calls.Load() == 1 })
	if !s.Active(RoleDevicePoll) {
		t.Error("role should be active")
	}
}

func TestSchedulerPeriodicTicks(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var calls atomic.Int32
	s.Replace(RoleDevicePoll, 10*time.Millisecond, false, func(ctx context.Context) {
		calls.Add(1)
	})

	waitFor(t, func() bool { return calls.Load() >= 3 })
}

func TestSchedulerReplaceStopsOldTask(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var oldCalls, newCalls atomic.Int32
	s.Replace(RoleDevicePoll, 5*time.Millisecond, false, func(ctx context.Context) {
		oldCalls.Add(1)
	})
	waitFor(t, func() bool { return oldCalls.Load() >= 1 })

	s.Replace(RoleDevicePoll, 5*time.Millisecond, false, func(ctx context.Context) {
		newCalls.Add(1)
	})
	// allow a possibly in-flight old tick to finish
	time.Sleep(20 * time.Millisecond)
	frozen := oldCalls.Load()

	waitFor(t, func() bool { return newCalls.Load() >= 3 })
	if got := oldCalls.Load(); got != frozen {
		t.Errorf("old task kept ticking after replace: %d -> %d", frozen, got)
	}
	if roles := s.Roles(); len(roles) != 1 {
		t.Errorf("expected one role, got %v", roles)
	}
}

func TestSchedulerReplaceFromInsideTask(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var second atomic.Int32
	s.Replace(RoleDevicePoll, time.Hour, true, func(ctx context.Context) {
		s.Replace(RoleDevicePoll, time.Hour, true, func(ctx context.Context) {
			second.Add(1)
		})
	})

	waitFor(t, func() bool { return second.Load() == 1 })
}

func TestSchedulerCancel(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var calls atomic.Int32
	s.Replace(RoleTokenRefresh, 5*time.Millisecond, false, func(ctx context.Context) {
		calls.Add(1)
	})
	s.Cancel(RoleTokenRefresh)
	if s.Active(RoleTokenRefresh) {
		t.Error("role should be inactive after Cancel")
	}

	time.Sleep(30 * time.Millisecond)
	if calls.Load() > 1 {
		t.Errorf("cancelled task ticked %d times", calls.Load())
	}
}

func TestSchedulerStopCancelsContext(t *testing.T) {
	s := NewScheduler()

	started := make(chan struct{})
	var sawCancel atomic.Bool
	s.Replace(RoleRealtime, time.Hour, true, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
	})

	<-started
	s.Stop()
	if !sawCancel.Load() {
		t.Error("task context should be cancelled by Stop")
	}

	// Replace after Stop is a no-op
	s.Replace(RoleRealtime, time.Millisecond, true, func(ctx context.Context) {
		t.Error("task must not run after Stop")
	})
	time.Sleep(10 * time.Millisecond)
}
