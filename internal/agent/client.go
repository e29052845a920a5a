// Package agent runs the host-side monitoring client: it keeps a
// session open to the control plane, heartbeats over it, and answers
// report requests with data from the local monitor.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/HariBote1110/serveye/internal/protocol"
)

const (
	sendChannelBuffer = 100

	DefaultHeartbeatInterval = 30 * time.Second
	defaultInitialDelay      = 1 * time.Second
	defaultMaxDelay          = 30 * time.Second

	dialTimeout  = 10 * time.Second
	writeTimeout = 5 * time.Second
)

// ErrAuthRejected means the control plane refused the token. Rejection
// is terminal; the client stops instead of retrying a dead credential.
var ErrAuthRejected = errors.New("credential rejected by server")

var errHeartbeatTimeout = errors.New("heartbeat not acknowledged")

// Collector answers the report requests a control plane can send.
type Collector interface {
	SystemInfo(ctx context.Context) (protocol.SystemInfo, error)
	CPUHistory() protocol.HistoryReport
	MemoryHistory() protocol.HistoryReport
}

type Config struct {
	ServerURL string
	Token     string

	HeartbeatInterval     time.Duration
	InitialReconnectDelay time.Duration
	MaxReconnectDelay     time.Duration
}

type Client struct {
	cfg       Config
	collector Collector

	sendCh chan protocol.Frame
	stopCh chan struct{}
	doneCh chan struct{}

	reconnectDelay time.Duration

	// Set while a heartbeat is waiting for its ack. A second tick with
	// the bit still set means the link is dead.
	awaitingAck atomic.Bool

	mu       sync.RWMutex
	clientID string
	runErr   error

	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(cfg Config, collector Collector) *Client {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.InitialReconnectDelay <= 0 {
		cfg.InitialReconnectDelay = defaultInitialDelay
	}
	if cfg.MaxReconnectDelay <= 0 {
		cfg.MaxReconnectDelay = defaultMaxDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:            cfg,
		collector:      collector,
		sendCh:         make(chan protocol.Frame, sendChannelBuffer),
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
		reconnectDelay: cfg.InitialReconnectDelay,
		ctx:            ctx,
		cancel:         cancel,
	}
}

func (c *Client) Start() {
	go c.connectionLoop()
}

func (c *Client) Stop() {
	slog.Info("Stopping monitoring client")
	close(c.stopCh)
	c.cancel()
	<-c.doneCh
	slog.Info("Monitoring client stopped")
}

// Done is closed when the connection loop has exited for good.
func (c *Client) Done() <-chan struct{} {
	return c.doneCh
}

// Err reports why the connection loop exited, nil for a normal Stop.
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runErr
}

// ClientID returns the label assigned by the control plane, empty until
// the first successful authentication.
func (c *Client) ClientID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientID
}

func (c *Client) send(f protocol.Frame) error {
	select {
	case c.sendCh <- f:
		return nil
	default:
		return fmt.Errorf("send channel full")
	}
}

func (c *Client) connectionLoop() {
	defer close(c.doneCh)

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		conn, err := c.connect()
		if err != nil {
			if errors.Is(err, ErrAuthRejected) {
				slog.Error("Server rejected credential, giving up")
				c.mu.Lock()
				c.runErr = err
				c.mu.Unlock()
				return
			}

			slog.Error("Connection failed", "error", err, "retry_in", c.reconnectDelay)
			select {
			case <-time.After(c.reconnectDelay):
				c.increaseReconnectDelay()
				continue
			case <-c.stopCh:
				return
			}
		}

		err = c.handleStream(conn)
		conn.Close(websocket.StatusNormalClosure, "reconnecting")
		if err != nil {
			// An auth-failure close mid-session means the token was
			// revoked; reconnecting with it would only be rejected.
			if websocket.CloseStatus(err) == protocol.CloseAuthFailure {
				slog.Error("Server revoked credential, giving up")
				c.mu.Lock()
				c.runErr = ErrAuthRejected
				c.mu.Unlock()
				return
			}
			slog.Error("Session ended", "error", err)
		}

		select {
		case <-c.stopCh:
			return
		default:
			slog.Info("Reconnecting", "delay", c.reconnectDelay)
			select {
			case <-time.After(c.reconnectDelay):
			case <-c.stopCh:
				return
			}
			c.increaseReconnectDelay()
		}
	}
}

func (c *Client) connect() (*websocket.Conn, error) {
	target, err := sessionURL(c.cfg.ServerURL, c.cfg.Token)
	if err != nil {
		return nil, err
	}
	slog.Info("Connecting to control plane", "url", c.cfg.ServerURL)

	dialCtx, cancel := context.WithTimeout(c.ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial server: %w", err)
	}

	first, err := c.awaitAuth(conn)
	if err != nil {
		conn.Close(websocket.StatusNormalClosure, "auth failed")
		return nil, err
	}

	c.mu.Lock()
	c.clientID = first.ClientID
	c.mu.Unlock()
	c.awaitingAck.Store(false)
	// Backoff resets on successful auth, not on a mere dial.
	c.reconnectDelay = c.cfg.InitialReconnectDelay

	slog.Info("Authenticated", "client_id", first.ClientID)

	if err := c.sendInitialInfo(conn); err != nil {
		slog.Warn("Failed to send initial info", "error", err)
	}
	return conn, nil
}

func (c *Client) awaitAuth(conn *websocket.Conn) (protocol.Frame, error) {
	authCtx, cancel := context.WithTimeout(c.ctx, dialTimeout)
	defer cancel()

	_, raw, err := conn.Read(authCtx)
	if err != nil {
		if websocket.CloseStatus(err) == protocol.CloseAuthFailure {
			return protocol.Frame{}, ErrAuthRejected
		}
		return protocol.Frame{}, fmt.Errorf("failed to read auth response: %w", err)
	}

	f, err := protocol.Decode(raw)
	if err != nil {
		return protocol.Frame{}, fmt.Errorf("malformed auth response: %w", err)
	}
	switch f.Type {
	case protocol.TypeAuthSuccess:
		return f, nil
	case protocol.TypeAuthFailed:
		return protocol.Frame{}, fmt.Errorf("%w: %s", ErrAuthRejected, f.Message)
	default:
		return protocol.Frame{}, fmt.Errorf("unexpected first frame: %s", f.Type)
	}
}

func (c *Client) sendInitialInfo(conn *websocket.Conn) error {
	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("failed to read hostname: %w", err)
	}
	data, err := json.Marshal(protocol.InitialInfo{ActualHost: hostname})
	if err != nil {
		return err
	}
	return c.writeFrame(conn, protocol.Frame{Type: protocol.TypeInitialInfo, Data: data})
}

func (c *Client) increaseReconnectDelay() {
	c.reconnectDelay = c.reconnectDelay * 3 / 2
	if c.reconnectDelay > c.cfg.MaxReconnectDelay {
		c.reconnectDelay = c.cfg.MaxReconnectDelay
	}
}

func (c *Client) handleStream(conn *websocket.Conn) error {
	done := make(chan struct{})
	errChan := make(chan error, 3)

	go c.receiveLoop(conn, done, errChan)
	go c.sendLoop(conn, done, errChan)
	go c.heartbeatLoop(done, errChan)

	var err error
	select {
	case err = <-errChan:
	case <-c.stopCh:
	}
	close(done)
	return err
}

func (c *Client) receiveLoop(conn *websocket.Conn, done chan struct{}, errChan chan error) {
	for {
		select {
		case <-done:
			return
		default:
		}

		_, raw, err := conn.Read(c.ctx)
		if err != nil {
			errChan <- fmt.Errorf("read failed: %w", err)
			return
		}

		f, err := protocol.Decode(raw)
		if err != nil {
			slog.Warn("Dropping malformed frame", "error", err)
			continue
		}

		c.processFrame(f)
	}
}

func (c *Client) sendLoop(conn *websocket.Conn, done chan struct{}, errChan chan error) {
	for {
		select {
		case <-done:
			return
		case f := <-c.sendCh:
			if err := c.writeFrame(conn, f); err != nil {
				errChan <- fmt.Errorf("write failed: %w", err)
				return
			}
		}
	}
}

func (c *Client) heartbeatLoop(done chan struct{}, errChan chan error) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if c.awaitingAck.Load() {
				slog.Warn("Heartbeat unacknowledged, dropping connection")
				errChan <- errHeartbeatTimeout
				return
			}
			c.awaitingAck.Store(true)
			if err := c.send(protocol.NewHeartbeat()); err != nil {
				errChan <- err
				return
			}
		}
	}
}

func (c *Client) processFrame(f protocol.Frame) {
	switch f.Type {
	case protocol.TypeHeartbeatAck:
		c.awaitingAck.Store(false)

	case protocol.TypeHeartbeat:
		if err := c.send(protocol.NewHeartbeatAck()); err != nil {
			slog.Warn("Failed to queue heartbeat ack", "error", err)
		}

	case protocol.TypeError:
		slog.Warn("Server reported error", "request_id", f.RequestID, "error", f.Error)

	default:
		if kind, ok := protocol.RequestKind(f.Type); ok {
			go c.handleRequest(kind, f.RequestID)
			return
		}
		slog.Warn("Unknown frame type", "type", f.Type)
	}
}

func (c *Client) handleRequest(kind, requestID string) {
	frame, err := c.buildResponse(kind, requestID)
	if err != nil {
		slog.Error("Failed to build report", "kind", kind, "error", err)
		frame = protocol.Frame{
			Type:      protocol.ResponseType(kind),
			RequestID: requestID,
			Error:     err.Error(),
		}
	}
	if err := c.send(frame); err != nil {
		slog.Error("Failed to queue report", "kind", kind, "error", err)
	}
}

func (c *Client) buildResponse(kind, requestID string) (protocol.Frame, error) {
	switch kind {
	case protocol.KindSystemInfo:
		ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
		defer cancel()
		info, err := c.collector.SystemInfo(ctx)
		if err != nil {
			return protocol.Frame{}, err
		}
		return protocol.NewResponse(kind, requestID, info)

	case protocol.KindCPUHistory:
		return protocol.NewResponse(kind, requestID, c.collector.CPUHistory())

	case protocol.KindMemoryHistory:
		return protocol.NewResponse(kind, requestID, c.collector.MemoryHistory())

	default:
		return protocol.Frame{}, fmt.Errorf("unsupported report kind: %s", kind)
	}
}

func (c *Client) writeFrame(conn *websocket.Conn, f protocol.Frame) error {
	b, err := protocol.Encode(f)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, b)
}

func sessionURL(serverURL, token string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
