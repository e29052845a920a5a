package gateway

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultDownDelay is how long a client must stay disconnected before a
// down notification goes out.
const DefaultDownDelay = 10 * time.Second

// Notifier receives client availability transitions.
type Notifier interface {
	ClientDown(clientID, actualHost string, downSince time.Time)
	ClientRecovered(clientID, actualHost string)
}

type downEntry struct {
	timer     *time.Timer
	clientID  string
	host      string
	downSince time.Time
}

// Watcher debounces disconnects into down/recovered notifications. Each
// token gets at most one pending entry; a reconnect while the entry is
// pending cancels it and announces the recovery, while the countdown
// running out announces the client as down and retires the entry.
type Watcher struct {
	mu       sync.Mutex
	pending  map[string]*downEntry
	delay    time.Duration
	notifier Notifier
}

func NewWatcher(delay time.Duration, notifier Notifier) *Watcher {
	if delay <= 0 {
		delay = DefaultDownDelay
	}
	return &Watcher{
		pending:  make(map[string]*downEntry),
		delay:    delay,
		notifier: notifier,
	}
}

// SessionClosed starts the down countdown for a token. A countdown that
// is already running is left untouched.
func (w *Watcher) SessionClosed(token, clientID, actualHost string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.pending[token]; exists {
		return
	}

	entry := &downEntry{
		clientID:  clientID,
		host:      actualHost,
		downSince: time.Now(),
	}
	entry.timer = time.AfterFunc(w.delay, func() { w.fire(token) })
	w.pending[token] = entry

	slog.Debug("Down countdown started", "client_id", clientID, "delay", w.delay)
}

// SessionResumed cancels the countdown for a token and announces the
// recovery. A reconnect with no countdown pending, including one after
// the down notification already went out, announces nothing.
func (w *Watcher) SessionResumed(token, clientID, actualHost string) {
	w.mu.Lock()
	entry, exists := w.pending[token]
	if exists {
		entry.timer.Stop()
		delete(w.pending, token)
	}
	w.mu.Unlock()

	if !exists {
		return
	}
	slog.Info("Client recovered", "client_id", clientID)
	w.notifier.ClientRecovered(clientID, actualHost)
}

// Stop cancels every pending countdown without notifying.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for token, entry := range w.pending {
		entry.timer.Stop()
		delete(w.pending, token)
	}
}

func (w *Watcher) fire(token string) {
	w.mu.Lock()
	entry, exists := w.pending[token]
	if exists {
		delete(w.pending, token)
	}
	w.mu.Unlock()

	if !exists {
		return
	}
	slog.Warn("Client down", "client_id", entry.clientID, "down_since", entry.downSince)
	w.notifier.ClientDown(entry.clientID, entry.host, entry.downSince)
}
