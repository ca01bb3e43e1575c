// Package pdruntime holds the engine's mutable per-telegram and per-
// interface runtime state (spec §3): PdRuntime and InterfaceRuntime.
//
// A PdRuntime refers to its PdTelegramDef by index into the Engine's
// defs slice rather than by pointer (spec §9's "arena + index" back-
// reference strategy), so Engine.LoadConfig can rebuild the defs slice
// wholesale without leaving any PdRuntime holding a dangling reference.
package pdruntime

import (
	"time"

	"github.com/tlc-io/tlcengine/config"
)

// PdRuntime is the mutable state tracked for one PdTelegramDef (spec §3).
// All fields are only ever mutated under the owning Engine's state lock.
type PdRuntime struct {
	DefIndex int // index into the owning Engine's telegram-def slice

	TXPayload  []byte
	TXEnabled  bool
	NextTXDue  time.Time

	LastRXPayload []byte
	LastRXTime    time.Time
	LastRXValid   bool

	RXCount      uint64
	TXCount      uint64
	TimeoutCount uint64 // reserved; never incremented (spec §9 open question)

	LastPeriodUS float64
	AvgPeriodUS  float64
}

// NewPdRuntime builds the initial runtime state for a telegram def,
// per spec §4.2 step 5: TXEnabled starts true unless the telegram is a
// pure Sink.
func NewPdRuntime(defIndex int, direction config.Direction, now time.Time) *PdRuntime {
	return &PdRuntime{
		DefIndex:  defIndex,
		TXEnabled: direction != config.Sink,
		NextTXDue: now,
	}
}

// Clone returns a deep, self-contained copy suitable for returning from
// Engine.Snapshot outside the state lock (spec §4.7).
func (r *PdRuntime) Clone() *PdRuntime {
	c := *r
	if r.TXPayload != nil {
		c.TXPayload = append([]byte(nil), r.TXPayload...)
	}
	if r.LastRXPayload != nil {
		c.LastRXPayload = append([]byte(nil), r.LastRXPayload...)
	}
	return &c
}

// OnReceive applies one RX event's statistics update (spec §4.5): copies
// in the payload, updates last_period_us/avg_period_us via the running
// EWMA, and marks the runtime as having valid RX data. Callers must hold
// the owning Engine's state lock.
func (r *PdRuntime) OnReceive(payload []byte, now time.Time) {
	r.LastRXPayload = append(r.LastRXPayload[:0], payload...)

	if r.LastRXValid {
		r.LastPeriodUS = float64(now.Sub(r.LastRXTime)) / float64(time.Microsecond)
		newCount := r.RXCount + 1
		r.AvgPeriodUS += (r.LastPeriodUS - r.AvgPeriodUS) / float64(newCount)
	} else {
		r.LastPeriodUS = 0
		r.AvgPeriodUS = 0
	}

	r.LastRXTime = now
	r.LastRXValid = true
	r.RXCount++
}

// DueToFire reports whether, given direction and now, this runtime should
// publish on the current scheduler tick (spec §4.4). CycleUS == 0 means
// "never due".
func (r *PdRuntime) DueToFire(direction config.Direction, cycleUS uint32, now time.Time) bool {
	if !r.TXEnabled || direction == config.Sink || cycleUS == 0 {
		return false
	}
	return !now.Before(r.NextTXDue)
}

// Advance records one TX firing: increments TXCount and sets NextTXDue to
// now plus exactly one CycleUS, dropping any further missed cycles
// (spec §4.4, §9 — no catch-up).
func (r *PdRuntime) Advance(cycleUS uint32, now time.Time) {
	r.TXCount++
	r.NextTXDue = now.Add(time.Duration(cycleUS) * time.Microsecond)
}

// InterfaceRuntime is the mutable per-interface state: the interface
// definition, an opaque transport session handle, and the PdRuntimes that
// subscribe on it (spec §3).
type InterfaceRuntime struct {
	Def      config.InterfaceDef
	Session  any // transport session handle; opaque to this package
	PdList   []*PdRuntime
}
