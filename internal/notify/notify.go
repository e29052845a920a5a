// Package notify delivers client availability notifications to
// operator-facing sinks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

const (
	EventClientDown      = "client_down"
	EventClientRecovered = "client_recovered"
)

// Event is the JSON body delivered to webhook sinks.
type Event struct {
	Event      string    `json:"event"`
	ClientID   string    `json:"clientId"`
	ActualHost string    `json:"actualHost,omitempty"`
	DownSince  time.Time `json:"downSince,omitzero"`
	SentAt     time.Time `json:"sentAt"`
}

// LogNotifier writes availability transitions to the structured log.
type LogNotifier struct{}

func (LogNotifier) ClientDown(clientID, actualHost string, downSince time.Time) {
	slog.Warn("Client is down",
		"client_id", clientID,
		"actual_host", actualHost,
		"down_since", downSince)
}

func (LogNotifier) ClientRecovered(clientID, actualHost string) {
	slog.Info("Client has recovered",
		"client_id", clientID,
		"actual_host", actualHost)
}

// WebhookNotifier POSTs availability transitions to a configured URL.
// Delivery failures are logged and dropped; availability notifications
// are best effort.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *WebhookNotifier) ClientDown(clientID, actualHost string, downSince time.Time) {
	n.deliver(Event{
		Event:      EventClientDown,
		ClientID:   clientID,
		ActualHost: actualHost,
		DownSince:  downSince,
		SentAt:     time.Now(),
	})
}

func (n *WebhookNotifier) ClientRecovered(clientID, actualHost string) {
	n.deliver(Event{
		Event:      EventClientRecovered,
		ClientID:   clientID,
		ActualHost: actualHost,
		SentAt:     time.Now(),
	})
}

func (n *WebhookNotifier) deliver(ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to marshal notification", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		slog.Error("Failed to build notification request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		slog.Error("Failed to deliver notification", "event", ev.Event, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		slog.Error("Notification rejected", "event", ev.Event, "status", resp.StatusCode)
		return
	}
	slog.Debug("Notification delivered", "event", ev.Event, "client_id", ev.ClientID)
}

// Sink is one notification destination.
type Sink interface {
	ClientDown(clientID, actualHost string, downSince time.Time)
	ClientRecovered(clientID, actualHost string)
}

// Multi fans each notification out to every sink.
type Multi []Sink

func (m Multi) ClientDown(clientID, actualHost string, downSince time.Time) {
	for _, s := range m {
		s.ClientDown(clientID, actualHost, downSince)
	}
}

func (m Multi) ClientRecovered(clientID, actualHost string) {
	for _, s := range m {
		s.ClientRecovered(clientID, actualHost)
	}
}

// FromConfig builds the sink set for a server: always the log, plus a
// webhook when a URL is configured.
func FromConfig(webhookURL string) Multi {
	sinks := Multi{LogNotifier{}}
	if webhookURL != "" {
		sinks = append(sinks, NewWebhookNotifier(webhookURL))
		slog.Info("Webhook notifications enabled")
	}
	return sinks
}
