// Package pdtransport defines the capability boundary the engine drives to
// reach the underlying network stack (spec §4.8): a small interface any
// concrete transport — real UDP sockets, or an in-memory fake for tests —
// must satisfy. The engine never imports net directly; it only ever talks
// to a Transport.
package pdtransport

import "time"

// ProcessConfig carries the per-interface session parameters the engine
// passes down at open_session time (spec §4.2 step 4).
type ProcessConfig struct {
	HostName   string
	CycleUS    uint32 // nominal scheduler cycle passed to the transport; 100ms per spec §4.2
	Blocking   bool
}

// RxCallback is invoked by the transport's own RX delivery path whenever a
// subscribed com_id arrives on a session (spec §4.5, §4.8). Implementations
// must not block while holding any of the engine's locks; they re-enter
// the engine through a narrow entry point that itself takes the lock.
type RxCallback func(session Session, comID uint32, payload []byte, rxTime time.Time)

// Session is an opaque handle to an open transport session, bound to one
// InterfaceDef's host IP (spec §3, §4.8).
type Session interface {
	// String returns a short, loggable identifier for the session.
	String() string
}

// Transport is the capability this engine requires from the underlying
// network stack (spec §4.8). init/terminate are process-wide and scoped to
// one Engine's load_config/stop cycle (spec §9 "global transport state").
type Transport interface {
	Init() error
	OpenSession(hostIP string, cfg ProcessConfig, cb RxCallback) (Session, error)
	Subscribe(session Session, comID uint32, timeoutUS uint32) error
	Publish(session Session, comID uint32, payload []byte) error
	CloseSession(session Session) error
	Terminate() error
}
