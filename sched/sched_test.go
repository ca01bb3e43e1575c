package sched_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/tlc-io/tlcengine/sched"
)

// Tick cadence underlying scenario 3 from spec §8: over 105ms the 1ms
// ticker should call Fire roughly 105 times (90..120 allowed for jitter).
func TestSchedulerCadence(t *testing.T) {
	var ticks int64
	s := sched.New(func(time.Time) {
		atomic.AddInt64(&ticks, 1)
	})
	s.Start()
	time.Sleep(105 * time.Millisecond)
	s.Stop()

	got := atomic.LoadInt64(&ticks)
	if got < 90 || got > 120 {
		t.Fatalf("tick count = %d, want roughly 105 (1ms ticks over 105ms)", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := sched.New(func(time.Time) {})
	s.Start()
	s.Stop()
	s.Stop() // must not block or panic
}

func TestStartIsIdempotentWhileRunning(t *testing.T) {
	var ticks int64
	s := sched.New(func(time.Time) { atomic.AddInt64(&ticks, 1) })
	s.Start()
	s.Start() // second call must not spawn a duplicate goroutine
	time.Sleep(20 * time.Millisecond)
	s.Stop()
}
