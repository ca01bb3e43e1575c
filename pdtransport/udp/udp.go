// Package udp is the real Transport (spec §4.8) implementation, binding
// one UDP socket per InterfaceDef and dispatching RX deliveries from a
// dedicated per-session goroutine (spec §4.8, §5's "transport owns one or
// more RX threads").
package udp

import (
	"context"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tlc-io/tlcengine/cmn/cos"
	"github.com/tlc-io/tlcengine/cmn/nlog"
	"github.com/tlc-io/tlcengine/pdtransport"
)

// Port is the UDP port this transport binds on every interface; the TRDP
// default process-data port.
const Port = 17_348

type subscription struct {
	comID     uint32
	timeoutUS uint32
}

type session struct {
	name string
	conn *net.UDPConn
	cb   pdtransport.RxCallback

	mu   sync.Mutex
	subs map[uint32]subscription

	stopOnce sync.Once
	stopped  chan struct{}
}

func (s *session) String() string { return s.name }

// Transport is a Transport backed by real net.UDPConn sockets, one per
// opened session, with SO_REUSEADDR so multiple interfaces on the same
// host can coexist (spec §9 "global transport state").
type Transport struct {
	mu       sync.Mutex
	sessions map[*session]struct{}
}

// New constructs an unopened udp.Transport.
func New() *Transport {
	return &Transport{sessions: make(map[*session]struct{})}
}

// Init is a one-shot, idempotent no-op for the socket-based transport: there
// is no process-wide handle to acquire beyond the sockets opened per
// session (spec §4.2 step 3, §9).
func (t *Transport) Init() error {
	nlog.Infoln("udp transport: init")
	return nil
}

func (t *Transport) OpenSession(hostIP string, cfg pdtransport.ProcessConfig, cb pdtransport.RxCallback) (pdtransport.Session, error) {
	lc := net.ListenConfig{Control: setReuseAddr}

	addr := net.JoinHostPort(hostIP, portString())
	conn, err := lc.ListenPacket(context.Background(), "udp", addr)
	if err != nil {
		return nil, cos.NewErrTransport(cos.SessionOpenFailure, err, "listen on %s", addr)
	}

	s := &session{
		name:    "udp:" + addr,
		conn:    conn.(*net.UDPConn),
		cb:      cb,
		subs:    make(map[uint32]subscription),
		stopped: make(chan struct{}),
	}

	t.mu.Lock()
	t.sessions[s] = struct{}{}
	t.mu.Unlock()

	go s.recvLoop()

	nlog.Infof("udp transport: session %s opened (host=%s)", s.name, cfg.HostName)
	return s, nil
}

func (t *Transport) Subscribe(sess pdtransport.Session, comID uint32, timeoutUS uint32) error {
	s, ok := sess.(*session)
	if !ok {
		return cos.NewErrTransport(cos.SubscribeFailure, nil, "subscribe: not a udp session")
	}
	s.mu.Lock()
	s.subs[comID] = subscription{comID: comID, timeoutUS: timeoutUS}
	s.mu.Unlock()
	return nil
}

func (t *Transport) Publish(sess pdtransport.Session, comID uint32, payload []byte) error {
	s, ok := sess.(*session)
	if !ok {
		return cos.NewErrTransport(cos.InitFailure, nil, "publish: not a udp session")
	}
	packet := encodeFrame(comID, payload)
	_, err := s.conn.WriteToUDP(packet, broadcastAddr(s.conn))
	if err != nil {
		return cos.Wrap(err, "udp publish com_id=%d", comID)
	}
	return nil
}

func (t *Transport) CloseSession(sess pdtransport.Session) error {
	s, ok := sess.(*session)
	if !ok {
		return nil
	}
	s.stopOnce.Do(func() { close(s.stopped) })
	err := s.conn.Close()

	t.mu.Lock()
	delete(t.sessions, s)
	t.mu.Unlock()
	return err
}

func (t *Transport) Terminate() error {
	t.mu.Lock()
	sessions := make([]*session, 0, len(t.sessions))
	for s := range t.sessions {
		sessions = append(sessions, s)
	}
	t.mu.Unlock()

	for _, s := range sessions {
		_ = t.CloseSession(s)
	}
	nlog.Infoln("udp transport: terminate")
	return nil
}

func (s *session) recvLoop() {
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-s.stopped:
			return
		default:
		}

		_ = s.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-s.stopped:
				return
			default:
				continue
			}
		}

		comID, payload, ok := decodeFrame(buf[:n])
		if !ok {
			continue
		}

		s.mu.Lock()
		_, subscribed := s.subs[comID]
		s.mu.Unlock()
		if !subscribed {
			continue
		}

		s.cb(s, comID, payload, time.Now())
	}
}

func setReuseAddr(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

func portString() string {
	return "17348"
}

func broadcastAddr(conn *net.UDPConn) *net.UDPAddr {
	local := conn.LocalAddr().(*net.UDPAddr)
	return &net.UDPAddr{IP: net.IPv4bcast, Port: local.Port}
}
