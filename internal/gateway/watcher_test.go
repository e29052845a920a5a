package gateway

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingNotifier struct {
	mu        sync.Mutex
	down      []string
	recovered []string
	fired     chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{fired: make(chan struct{}, 16)}
}

func (n *recordingNotifier) ClientDown(clientID, _ string, _ time.Time) {
	n.mu.Lock()
	n.down = append(n.down, clientID)
	n.mu.Unlock()
	n.fired <- struct{}{}
}

func (n *recordingNotifier) ClientRecovered(clientID, _ string) {
	n.mu.Lock()
	n.recovered = append(n.recovered, clientID)
	n.mu.Unlock()
}

func (n *recordingNotifier) downCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.down)
}

func (n *recordingNotifier) recoveredCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.recovered)
}

func TestDownNotificationFiresAfterDelay(t *testing.T) {
	notifier := newRecordingNotifier()
	w := NewWatcher(20*time.Millisecond, notifier)

	w.SessionClosed("tok-1", "web-01", "web-01.internal")

	select {
	case <-notifier.fired:
	case <-time.After(time.Second):
		t.Fatal("down notification never fired")
	}
	assert.Equal(t, []string{"web-01"}, notifier.down)
}

func TestQuickReconnectReportsRecoveryNotDown(t *testing.T) {
	notifier := newRecordingNotifier()
	w := NewWatcher(50*time.Millisecond, notifier)

	w.SessionClosed("tok-1", "web-01", "")
	w.SessionResumed("tok-1", "web-01", "")

	time.Sleep(120 * time.Millisecond)
	assert.Zero(t, notifier.downCount(), "cancelled countdown must not report down")
	assert.Equal(t, []string{"web-01"}, notifier.recovered)
}

func TestReconnectAfterDownFiredAnnouncesNothing(t *testing.T) {
	notifier := newRecordingNotifier()
	w := NewWatcher(10*time.Millisecond, notifier)

	w.SessionClosed("tok-1", "web-01", "")
	<-notifier.fired

	w.SessionResumed("tok-1", "web-01", "")

	assert.Zero(t, notifier.recoveredCount(), "entry retired when the down notification fired")
}

func TestFirstConnectAnnouncesNothing(t *testing.T) {
	notifier := newRecordingNotifier()
	w := NewWatcher(10*time.Millisecond, notifier)

	w.SessionResumed("tok-1", "web-01", "")

	assert.Zero(t, notifier.recoveredCount())
}

func TestSecondCloseDoesNotRestartCountdown(t *testing.T) {
	notifier := newRecordingNotifier()
	w := NewWatcher(30*time.Millisecond, notifier)

	w.SessionClosed("tok-1", "web-01", "")
	time.Sleep(15 * time.Millisecond)
	w.SessionClosed("tok-1", "web-01", "")

	select {
	case <-notifier.fired:
	case <-time.After(time.Second):
		t.Fatal("down notification never fired")
	}
	assert.Equal(t, 1, notifier.downCount())
}

func TestStopCancelsPendingCountdowns(t *testing.T) {
	notifier := newRecordingNotifier()
	w := NewWatcher(20*time.Millisecond, notifier)

	w.SessionClosed("tok-1", "web-01", "")
	w.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, notifier.downCount())
}
