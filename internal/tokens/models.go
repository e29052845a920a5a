package tokens

import "time"

// Status is the last known lifecycle state of the client a token was
// issued to.
type Status string

const (
	// StatusUnknown means the token has never been used to connect.
	StatusUnknown Status = "unknown"
	// StatusOnline means a session holding this token is currently open.
	StatusOnline Status = "online"
	// StatusOffline means the token has connected before but has no open
	// session now.
	StatusOffline Status = "offline"
)

// Record is one issued monitoring token together with everything the
// control plane has learned about the client holding it.
type Record struct {
	Token       string    `json:"token"`
	ClientID    string    `json:"clientId"`
	IssuedAt    time.Time `json:"issuedAt"`
	Used        bool      `json:"used"`
	Status      Status    `json:"status"`
	LastSeen    time.Time `json:"lastSeen,omitzero"`
	ActualHost  string    `json:"actualHost,omitempty"`
	ConnectedIP string    `json:"connectedIp,omitempty"`
}
