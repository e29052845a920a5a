package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookDeliversDownEvent(t *testing.T) {
	received := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		received <- ev
	}))
	defer srv.Close()

	downSince := time.Now().Add(-time.Minute)
	NewWebhookNotifier(srv.URL).ClientDown("web-01", "web-01.internal", downSince)

	ev := <-received
	assert.Equal(t, EventClientDown, ev.Event)
	assert.Equal(t, "web-01", ev.ClientID)
	assert.Equal(t, "web-01.internal", ev.ActualHost)
	assert.WithinDuration(t, downSince, ev.DownSince, time.Second)
}

func TestWebhookDeliversRecoveryEvent(t *testing.T) {
	received := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		received <- ev
	}))
	defer srv.Close()

	NewWebhookNotifier(srv.URL).ClientRecovered("web-01", "")

	ev := <-received
	assert.Equal(t, EventClientRecovered, ev.Event)
	assert.True(t, ev.DownSince.IsZero())
}

func TestWebhookFailureDoesNotPanic(t *testing.T) {
	n := NewWebhookNotifier("http://127.0.0.1:1/unreachable")

	assert.NotPanics(t, func() {
		n.ClientDown("web-01", "", time.Now())
	})
}

func TestMultiFansOut(t *testing.T) {
	received := make(chan Event, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		received <- ev
	}))
	defer srv.Close()

	m := Multi{NewWebhookNotifier(srv.URL), NewWebhookNotifier(srv.URL)}
	m.ClientRecovered("db-01", "")

	for range 2 {
		ev := <-received
		assert.Equal(t, "db-01", ev.ClientID)
	}
}

func TestFromConfig(t *testing.T) {
	assert.Len(t, FromConfig(""), 1)
	assert.Len(t, FromConfig("http://example.com/hook"), 2)
}
