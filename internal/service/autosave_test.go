package service

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAutosaveSchedulerDebounces(t *testing.T) {
	scheduler := NewAutosaveScheduler(30 * time.Millisecond)
	defer scheduler.Stop()

	var fires atomic.Int64
	for i := 0; i < 5; i++ {
		scheduler.Arm(1, func() { fires.Add(1) })
	}

	require.Eventually(t, func() bool {
		return fires.Load() == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(80 * time.Millisecond)
	require.EqualValues(t, 1, fires.Load(), "re-arming replaces, never stacks")
	require.False(t, scheduler.Pending(1))
}

func TestAutosaveSchedulerCancel(t *testing.T) {
	scheduler := NewAutosaveScheduler(30 * time.Millisecond)
	defer scheduler.Stop()

	var fires atomic.Int64
	scheduler.Arm(1, func() { fires.Add(1) })
	require.True(t, scheduler.Cancel(1))

	time.Sleep(80 * time.Millisecond)
	require.Zero(t, fires.Load())
	require.False(t, scheduler.Cancel(1), "nothing left to cancel")
}

func TestAutosaveSchedulerTracksKeysIndependently(t *testing.T) {
	scheduler := NewAutosaveScheduler(20 * time.Millisecond)
	defer scheduler.Stop()

	var first, second atomic.Int64
	scheduler.Arm(1, func() { first.Add(1) })
	scheduler.Arm(2, func() { second.Add(1) })
	require.True(t, scheduler.Pending(1))
	require.True(t, scheduler.Pending(2))

	require.True(t, scheduler.Cancel(1))

	require.Eventually(t, func() bool {
		return second.Load() == 1
	}, time.Second, 5*time.Millisecond)
	require.Zero(t, first.Load())
}
