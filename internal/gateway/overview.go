package gateway

import "time"

// ClientState is the availability of a client as seen by an operator.
type ClientState string

const (
	// StateOnline means the client has a live session with recent traffic.
	StateOnline ClientState = "online"
	// StateStale means the session is still open but past the silence
	// threshold, so it is about to be evicted.
	StateStale ClientState = "stale"
	// StateOffline means the client has connected before but is gone now.
	StateOffline ClientState = "offline"
	// StateUnknown means the token has never been used.
	StateUnknown ClientState = "unknown"
)

// ClientView merges a token record with its live session, if one exists.
type ClientView struct {
	ClientID    string      `json:"clientId"`
	Token       string      `json:"token"`
	State       ClientState `json:"state"`
	IssuedAt    time.Time   `json:"issuedAt"`
	LastSeen    time.Time   `json:"lastSeen,omitzero"`
	ActualHost  string      `json:"actualHost,omitempty"`
	ConnectedIP string      `json:"connectedIp,omitempty"`
}

// Overview reports every issued token with its current availability,
// oldest issued first.
func (g *Gateway) Overview() []ClientView {
	live := make(map[string]*Session)
	for _, s := range g.registry.Sessions() {
		live[s.Token] = s
	}

	records := g.tokens.All()
	views := make([]ClientView, 0, len(records))
	for _, rec := range records {
		view := ClientView{
			ClientID:    rec.ClientID,
			Token:       rec.Token,
			IssuedAt:    rec.IssuedAt,
			LastSeen:    rec.LastSeen,
			ActualHost:  rec.ActualHost,
			ConnectedIP: rec.ConnectedIP,
		}
		switch s, ok := live[rec.Token]; {
		case ok && time.Since(s.LastSeen()) > g.registry.StaleAfter():
			view.State = StateStale
			view.LastSeen = s.LastSeen()
		case ok:
			view.State = StateOnline
			view.LastSeen = s.LastSeen()
		case rec.Used:
			view.State = StateOffline
		default:
			view.State = StateUnknown
		}
		views = append(views, view)
	}
	return views
}

// LookupView returns the merged view for a single client label. When
// several tokens share the label, the most recently seen one wins.
func (g *Gateway) LookupView(clientID string) (ClientView, bool) {
	var best ClientView
	found := false
	for _, view := range g.Overview() {
		if view.ClientID != clientID {
			continue
		}
		if !found || view.LastSeen.After(best.LastSeen) {
			best = view
			found = true
		}
	}
	return best, found
}
