package gateway

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/HariBote1110/serveye/internal/protocol"
)

var (
	// ErrTargetOffline means the addressed client has no live session, or
	// its session could not accept the request.
	ErrTargetOffline = errors.New("client is offline")
	// ErrRequestTimeout means the agent accepted the request but never
	// answered within the deadline.
	ErrRequestTimeout = errors.New("request timed out")
)

// Correlator matches response frames back to the in-flight requests that
// produced them, by request id.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]chan protocol.Frame
}

func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[string]chan protocol.Frame)}
}

// Register creates a pending slot for the request id and returns the
// channel its response will arrive on. Register before sending the
// request so a fast response cannot slip past.
func (c *Correlator) Register(requestID string) <-chan protocol.Frame {
	ch := make(chan protocol.Frame, 1)

	c.mu.Lock()
	c.pending[requestID] = ch
	c.mu.Unlock()

	return ch
}

// Resolve delivers a response to the pending request, if any. A request
// id with no pending slot is reported false and otherwise ignored;
// double resolution is harmless.
func (c *Correlator) Resolve(requestID string, f protocol.Frame) bool {
	c.mu.Lock()
	ch, ok := c.pending[requestID]
	if ok {
		delete(c.pending, requestID)
	}
	c.mu.Unlock()

	if !ok {
		slog.Debug("Response for unknown request", "request_id", requestID, "type", f.Type)
		return false
	}
	ch <- f
	return true
}

// Drop abandons a pending request. A response arriving later resolves to
// nothing.
func (c *Correlator) Drop(requestID string) {
	c.mu.Lock()
	delete(c.pending, requestID)
	c.mu.Unlock()
}

// PendingCount reports how many requests are awaiting responses.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
