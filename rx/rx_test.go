package rx_test

import (
	"sync"
	"testing"
	"time"

	"github.com/tlc-io/tlcengine/config"
	"github.com/tlc-io/tlcengine/pdruntime"
	"github.com/tlc-io/tlcengine/pdtransport"
	"github.com/tlc-io/tlcengine/rx"
)

type stubSession struct{ name string }

func (s stubSession) String() string { return s.name }

func TestDeliverUpdatesMatchingRuntime(t *testing.T) {
	var mu sync.Mutex
	iface := &pdruntime.InterfaceRuntime{Def: config.InterfaceDef{Name: "eth0"}}
	runtime := pdruntime.NewPdRuntime(0, config.Sink, time.Now())
	iface.PdList = append(iface.PdList, runtime)

	findIface := func(s pdtransport.Session) (*pdruntime.InterfaceRuntime, bool) {
		if s.(stubSession).name == "eth0" {
			return iface, true
		}
		return nil, false
	}
	findRuntime := func(i *pdruntime.InterfaceRuntime, comID uint32) (*pdruntime.PdRuntime, bool) {
		if comID == 1001 {
			return i.PdList[0], true
		}
		return nil, false
	}

	p := rx.New(&mu, findIface, findRuntime)
	p.Deliver(stubSession{"eth0"}, 1001, []byte{1, 2, 3}, time.Now())

	if runtime.RXCount != 1 {
		t.Fatalf("rx_count = %d, want 1", runtime.RXCount)
	}
	if !runtime.LastRXValid {
		t.Fatal("expected last_rx_valid = true")
	}
}

func TestDeliverDropsUnknownSession(t *testing.T) {
	var mu sync.Mutex
	findIface := func(pdtransport.Session) (*pdruntime.InterfaceRuntime, bool) { return nil, false }
	findRuntime := func(*pdruntime.InterfaceRuntime, uint32) (*pdruntime.PdRuntime, bool) {
		t.Fatal("findRuntime should not be called when the interface lookup misses")
		return nil, false
	}

	p := rx.New(&mu, findIface, findRuntime)
	p.Deliver(stubSession{"ghost"}, 1, []byte{}, time.Now())
}

func TestDeliverDropsUnknownComID(t *testing.T) {
	var mu sync.Mutex
	iface := &pdruntime.InterfaceRuntime{Def: config.InterfaceDef{Name: "eth0"}}
	findIface := func(pdtransport.Session) (*pdruntime.InterfaceRuntime, bool) { return iface, true }
	findRuntime := func(*pdruntime.InterfaceRuntime, uint32) (*pdruntime.PdRuntime, bool) { return nil, false }

	p := rx.New(&mu, findIface, findRuntime)
	p.Deliver(stubSession{"eth0"}, 9999, []byte{}, time.Now())
}
