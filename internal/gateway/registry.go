package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// ErrTokenInUse is returned when a session tries to register a token that
// already has an open session. The existing session keeps its slot.
var ErrTokenInUse = errors.New("token already in use")

// SessionRegistry tracks live sessions by token and evicts the ones whose
// agent has gone silent. The stale threshold is two and a half heartbeat
// intervals: two missed heartbeats plus half an interval of grace.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	heartbeatInterval time.Duration
	staleAfter        time.Duration
}

func NewSessionRegistry(heartbeatInterval time.Duration) *SessionRegistry {
	return &SessionRegistry{
		sessions:          make(map[string]*Session),
		heartbeatInterval: heartbeatInterval,
		staleAfter:        heartbeatInterval*2 + heartbeatInterval/2,
	}
}

// Register claims the token's slot for the session. A second session
// presenting the same token is rejected, not swapped in.
func (r *SessionRegistry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.Token]; ok {
		slog.Warn("Rejecting duplicate session", "client_id", s.ClientID, "remote", s.RemoteAddr)
		return ErrTokenInUse
	}
	r.sessions[s.Token] = s

	slog.Info("Session registered",
		"client_id", s.ClientID,
		"remote", s.RemoteAddr,
		"total_sessions", len(r.sessions))
	return nil
}

// Deregister releases the token's slot, but only if it is still held by
// this exact session. A slot claimed by a newer session is left alone.
func (r *SessionRegistry) Deregister(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sessions[s.Token]; ok && current == s {
		delete(r.sessions, s.Token)
		slog.Info("Session deregistered",
			"client_id", s.ClientID,
			"total_sessions", len(r.sessions))
	}
}

// Get returns the live session for a token.
func (r *SessionRegistry) Get(token string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[token]
	return s, ok
}

// FindByClientID returns the live session for a client label. Labels are
// not unique; when several sessions share one, the most recently seen
// session wins.
func (r *SessionRegistry) FindByClientID(clientID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Session
	for _, s := range r.sessions {
		if s.ClientID != clientID {
			continue
		}
		if best == nil || s.LastSeen().After(best.LastSeen()) {
			best = s
		}
	}
	return best, best != nil
}

// Sessions returns a snapshot of all live sessions.
func (r *SessionRegistry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, s)
	}
	return result
}

// StaleAfter is the silence threshold beyond which a session is evicted.
func (r *SessionRegistry) StaleAfter() time.Duration {
	return r.staleAfter
}

// StartSweeper evicts stale sessions once per heartbeat interval until
// the context is cancelled.
func (r *SessionRegistry) StartSweeper(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepOnce()
		}
	}
}

func (r *SessionRegistry) sweepOnce() {
	r.mu.Lock()
	now := time.Now()
	var stale []*Session
	for token, s := range r.sessions {
		if now.Sub(s.LastSeen()) > r.staleAfter {
			delete(r.sessions, token)
			stale = append(stale, s)
		}
	}
	r.mu.Unlock()

	// Closing outside the lock keeps slow sockets from stalling the sweep.
	for _, s := range stale {
		slog.Warn("Evicting stale session",
			"client_id", s.ClientID,
			"last_seen", s.LastSeen())
		s.Close(websocket.StatusGoingAway, "heartbeat timeout")
	}
}

// CloseAll tears down every live session, used during shutdown.
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
