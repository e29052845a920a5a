// Package gateway runs the control-plane side of monitoring sessions:
// it authenticates agents, tracks their liveness, correlates report
// requests with responses, and raises availability notifications.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/HariBote1110/serveye/internal/protocol"
	"github.com/HariBote1110/serveye/internal/tokens"
)

const (
	// DefaultHeartbeatInterval matches the cadence agents heartbeat at.
	DefaultHeartbeatInterval = 30 * time.Second
	defaultRequestTimeout    = 15 * time.Second
	defaultWriteTimeout      = 5 * time.Second

	maxFrameBytes = 256 * 1024
)

// Config tunes gateway timing. Zero values fall back to defaults.
type Config struct {
	HeartbeatInterval time.Duration
	RequestTimeout    time.Duration
	WriteTimeout      time.Duration
	DownDelay         time.Duration
}

// Gateway accepts agent sessions over WebSocket and mediates between
// them and the operator-facing API.
type Gateway struct {
	registry *SessionRegistry
	tokens   *tokens.Registry
	corr     *Correlator
	watcher  *Watcher

	requestTimeout time.Duration
	writeTimeout   time.Duration
}

func New(cfg Config, tokenRegistry *tokens.Registry, notifier Notifier) *Gateway {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	return &Gateway{
		registry:       NewSessionRegistry(cfg.HeartbeatInterval),
		tokens:         tokenRegistry,
		corr:           NewCorrelator(),
		watcher:        NewWatcher(cfg.DownDelay, notifier),
		requestTimeout: cfg.RequestTimeout,
		writeTimeout:   cfg.WriteTimeout,
	}
}

// Start launches the stale-session sweeper. It returns once the context
// is cancelled, so run it on its own goroutine.
func (g *Gateway) Start(ctx context.Context) {
	g.registry.StartSweeper(ctx)
}

// Stop tears down every live session and pending countdown.
func (g *Gateway) Stop() {
	g.registry.CloseAll()
	g.watcher.Stop()
}

// ServeHTTP upgrades the request to a WebSocket monitoring session and
// runs it until the agent disconnects or is evicted.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Error("WebSocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	token := r.URL.Query().Get("token")
	rec, err := g.tokens.Lookup(token)
	if token == "" || err != nil {
		slog.Warn("Session rejected, invalid token", "remote", r.RemoteAddr)
		g.refuse(r.Context(), conn, protocol.ReasonInvalidToken)
		return
	}

	sess := newSession(token, rec.ClientID, r.RemoteAddr, conn)
	if err := g.registry.Register(sess); err != nil {
		g.refuse(r.Context(), conn, protocol.ReasonTokenInUse)
		return
	}

	g.runSession(r.Context(), sess, conn)
}

func (g *Gateway) runSession(reqCtx context.Context, sess *Session, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(reqCtx)
	defer cancel()

	if err := g.tokens.MarkConnected(ctx, sess.Token, sess.RemoteAddr); err != nil {
		slog.Error("Failed to mark token connected", "client_id", sess.ClientID, "error", err)
	}
	g.watcher.SessionResumed(sess.Token, sess.ClientID, g.actualHost(sess.Token))

	sess.Enqueue(protocol.Frame{Type: protocol.TypeAuthSuccess, ClientID: sess.ClientID})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-sess.Done():
				return
			case f := <-sess.send:
				if err := writeFrame(ctx, conn, f, g.writeTimeout); err != nil {
					slog.Warn("Session write failed", "client_id", sess.ClientID, "error", err)
					sess.Close(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			logReadEnd(sess.ClientID, err)
			break
		}

		f, err := protocol.Decode(raw)
		if err != nil {
			// Garbage on the wire does not count toward liveness and
			// does not end the session.
			sess.Enqueue(protocol.NewError("", "malformed frame"))
			continue
		}

		sess.Touch()
		g.tokens.Touch(sess.Token)
		g.dispatch(ctx, sess, f)
	}

	sess.Close(websocket.StatusNormalClosure, "session ended")
	cancel()
	<-writerDone

	g.registry.Deregister(sess)

	teardownCtx, teardownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer teardownCancel()
	// The token may already be gone if the session ended by revocation.
	if err := g.tokens.MarkDisconnected(teardownCtx, sess.Token); err != nil && !errors.Is(err, tokens.ErrTokenNotFound) {
		slog.Error("Failed to mark token disconnected", "client_id", sess.ClientID, "error", err)
	}
	g.watcher.SessionClosed(sess.Token, sess.ClientID, g.actualHost(sess.Token))
}

func (g *Gateway) dispatch(ctx context.Context, sess *Session, f protocol.Frame) {
	switch f.Type {
	case protocol.TypeHeartbeat:
		sess.Enqueue(protocol.NewHeartbeatAck())

	case protocol.TypeInitialInfo:
		var info protocol.InitialInfo
		if err := json.Unmarshal(f.Data, &info); err != nil {
			sess.Enqueue(protocol.NewError("", "malformed initial_info payload"))
			return
		}
		if err := g.tokens.SetActualHost(ctx, sess.Token, info.ActualHost); err != nil {
			slog.Error("Failed to record actual host", "client_id", sess.ClientID, "error", err)
		}

	case protocol.TypeError:
		if f.RequestID != "" {
			g.corr.Resolve(f.RequestID, f)
		}

	default:
		if _, ok := protocol.ResponseKind(f.Type); ok {
			g.corr.Resolve(f.RequestID, f)
			return
		}
		// Unknown kinds from a newer peer are dropped, not punished.
		slog.Warn("Dropping unknown frame type", "client_id", sess.ClientID, "type", f.Type)
	}
}

// Request asks the client's agent for a report and waits for the answer.
// An agent-side failure comes back as a frame with Error set; transport
// failures surface as ErrTargetOffline or ErrRequestTimeout.
func (g *Gateway) Request(ctx context.Context, clientID, kind string) (protocol.Frame, error) {
	sess, ok := g.registry.FindByClientID(clientID)
	if !ok {
		return protocol.Frame{}, ErrTargetOffline
	}

	requestID := uuid.NewString()
	ch := g.corr.Register(requestID)

	if !sess.Enqueue(protocol.Frame{Type: protocol.RequestType(kind), RequestID: requestID}) {
		g.corr.Drop(requestID)
		return protocol.Frame{}, ErrTargetOffline
	}

	timer := time.NewTimer(g.requestTimeout)
	defer timer.Stop()

	select {
	case f := <-ch:
		return f, nil
	case <-timer.C:
		g.corr.Drop(requestID)
		return protocol.Frame{}, ErrRequestTimeout
	case <-sess.Done():
		g.corr.Drop(requestID)
		return protocol.Frame{}, ErrTargetOffline
	case <-ctx.Done():
		g.corr.Drop(requestID)
		return protocol.Frame{}, ctx.Err()
	}
}

// Evict closes the live session holding a token, if any. Used when an
// operator revokes the token out from under a connected agent.
func (g *Gateway) Evict(token, reason string) {
	if s, ok := g.registry.Get(token); ok {
		s.Close(protocol.CloseAuthFailure, reason)
	}
}

func (g *Gateway) refuse(ctx context.Context, conn *websocket.Conn, reason string) {
	f := protocol.Frame{Type: protocol.TypeAuthFailed, Message: reason}
	if err := writeFrame(ctx, conn, f, g.writeTimeout); err != nil {
		slog.Debug("Failed to deliver rejection frame", "error", err)
	}
	_ = conn.Close(protocol.CloseAuthFailure, reason)
}

func (g *Gateway) actualHost(token string) string {
	rec, err := g.tokens.Lookup(token)
	if err != nil {
		return ""
	}
	return rec.ActualHost
}

func writeFrame(ctx context.Context, conn *websocket.Conn, f protocol.Frame, timeout time.Duration) error {
	b, err := protocol.Encode(f)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, b)
}

func logReadEnd(clientID string, err error) {
	switch {
	case websocket.CloseStatus(err) != -1:
		slog.Info("Session closed by peer", "client_id", clientID, "status", websocket.CloseStatus(err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		slog.Debug("Session context finished", "client_id", clientID)
	case errors.Is(err, net.ErrClosed), errors.Is(err, io.EOF):
		slog.Info("Session connection closed", "client_id", clientID)
	default:
		slog.Warn("Session read failed", "client_id", clientID, "error", err)
	}
}
