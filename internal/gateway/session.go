package gateway

import (
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/HariBote1110/serveye/internal/protocol"
)

const sendQueueSize = 100

// Session is one live agent connection. The send queue is drained by a
// single writer goroutine owned by the gateway; send is never closed so
// concurrent enqueuers cannot panic.
type Session struct {
	Token       string
	ClientID    string
	RemoteAddr  string
	ConnectedAt time.Time

	conn *websocket.Conn
	send chan protocol.Frame

	done      chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	lastSeen time.Time
}

func newSession(token, clientID, remoteAddr string, conn *websocket.Conn) *Session {
	now := time.Now()
	return &Session{
		Token:       token,
		ClientID:    clientID,
		RemoteAddr:  remoteAddr,
		ConnectedAt: now,
		conn:        conn,
		send:        make(chan protocol.Frame, sendQueueSize),
		done:        make(chan struct{}),
		lastSeen:    now,
	}
}

// Enqueue offers a frame to the session's send queue without blocking.
// It reports false when the session is closed or the queue is full.
func (s *Session) Enqueue(f protocol.Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- f:
		return true
	case <-s.done:
		return false
	default:
		return false
	}
}

// Touch refreshes the session's liveness clock.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// LastSeen returns the time of the last frame received on this session.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Done is closed when the session is shutting down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close tears the session down with the given status. Idempotent; the
// first caller wins and later calls are no-ops.
func (s *Session) Close(code websocket.StatusCode, reason string) {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			_ = s.conn.Close(code, reason)
		}
	})
}

func (s *Session) setLastSeen(t time.Time) {
	s.mu.Lock()
	s.lastSeen = t
	s.mu.Unlock()
}
