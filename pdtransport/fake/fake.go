// Package fake is an in-memory pdtransport.Transport used by engine and
// scheduler tests so they can drive RX/TX without a real socket (spec §8's
// testable properties are stated independent of the transport).
package fake

import (
	"sync"
	"time"

	"github.com/tlc-io/tlcengine/pdtransport"
)

type session struct {
	name string
	cb   pdtransport.RxCallback
}

func (s *session) String() string { return s.name }

// Transport records every Publish call and lets tests synthesize RX
// deliveries via Deliver, bypassing any real network path.
type Transport struct {
	mu         sync.Mutex
	sessions   map[string]*session
	Published  []PublishedFrame
	Terminated bool
}

type PublishedFrame struct {
	Session string
	ComID   uint32
	Payload []byte
}

func New() *Transport {
	return &Transport{sessions: make(map[string]*session)}
}

func (t *Transport) Init() error { return nil }

func (t *Transport) OpenSession(hostIP string, _ pdtransport.ProcessConfig, cb pdtransport.RxCallback) (pdtransport.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := &session{name: hostIP, cb: cb}
	t.sessions[hostIP] = s
	return s, nil
}

func (t *Transport) Subscribe(_ pdtransport.Session, _ uint32, _ uint32) error { return nil }

func (t *Transport) Publish(sess pdtransport.Session, comID uint32, payload []byte) error {
	s := sess.(*session)
	t.mu.Lock()
	t.Published = append(t.Published, PublishedFrame{Session: s.name, ComID: comID, Payload: append([]byte(nil), payload...)})
	t.mu.Unlock()
	return nil
}

func (t *Transport) CloseSession(sess pdtransport.Session) error {
	s := sess.(*session)
	t.mu.Lock()
	delete(t.sessions, s.name)
	t.mu.Unlock()
	return nil
}

func (t *Transport) Terminate() error {
	t.mu.Lock()
	t.Terminated = true
	t.mu.Unlock()
	return nil
}

// Deliver synthesizes an RX event on the named session's callback, as if
// the transport had received comID/payload off the wire at rxTime.
func (t *Transport) Deliver(hostIP string, comID uint32, payload []byte, rxTime time.Time) {
	t.mu.Lock()
	s, ok := t.sessions[hostIP]
	t.mu.Unlock()
	if !ok {
		return
	}
	s.cb(s, comID, payload, rxTime)
}

// PublishCount returns how many times Publish has been called so far.
func (t *Transport) PublishCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Published)
}
