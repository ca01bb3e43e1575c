// Package rx implements the engine's RxPipeline (spec §4.5): resolving an
// inbound transport delivery to its owning PdRuntime and applying the RX
// statistics update under the engine's state lock.
//
// This is the callback re-entry point referenced in spec §9's "RX callback
// delivered by a foreign thread" design note: Transport invokes Deliver
// directly from its own RX goroutine, so Deliver must take the lock itself
// and never block on further I/O while holding it.
package rx

import (
	"sync"
	"time"

	"github.com/tlc-io/tlcengine/pdruntime"
	"github.com/tlc-io/tlcengine/pdtransport"
)

// InterfaceLookup resolves the InterfaceRuntime bound to an incoming
// transport session, or ok=false if none matches (spec §4.5 step 1).
type InterfaceLookup func(session pdtransport.Session) (iface *pdruntime.InterfaceRuntime, ok bool)

// RuntimeLookup resolves the PdRuntime for a (com_id, interface_name) pair
// within the given interface, or ok=false if none matches (spec §4.5 step 2).
type RuntimeLookup func(iface *pdruntime.InterfaceRuntime, comID uint32) (r *pdruntime.PdRuntime, ok bool)

// Pipeline wires the two lookups above to a shared state lock. The engine
// constructs one Pipeline when it is created and passes its Deliver method
// as the RxCallback of every session it opens.
type Pipeline struct {
	mu          *sync.Mutex
	findIface   InterfaceLookup
	findRuntime RuntimeLookup
}

// New builds a Pipeline over the engine's shared state lock and lookup
// functions. mu must be the same mutex the scheduler tick and control API
// hold (spec §5's "single shared lock").
func New(mu *sync.Mutex, findIface InterfaceLookup, findRuntime RuntimeLookup) *Pipeline {
	return &Pipeline{mu: mu, findIface: findIface, findRuntime: findRuntime}
}

// Deliver implements pdtransport.RxCallback (spec §4.5). Packets whose
// session or com_id don't resolve to a known PdRuntime are dropped
// silently — there is no error kind for this path (spec §7). Both lookups
// and the statistics update run under the shared lock.
func (p *Pipeline) Deliver(session pdtransport.Session, comID uint32, payload []byte, rxTime time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	iface, ok := p.findIface(session)
	if !ok {
		return
	}

	runtime, ok := p.findRuntime(iface, comID)
	if !ok {
		return
	}

	runtime.OnReceive(payload, rxTime)
}
