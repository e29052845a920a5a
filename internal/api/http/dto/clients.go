package dto

import "time"

type ClientResponse struct {
	ClientID    string    `json:"clientId"`
	Token       string    `json:"token"`
	State       string    `json:"state"`
	IssuedAt    time.Time `json:"issuedAt"`
	LastSeen    time.Time `json:"lastSeen,omitzero"`
	ActualHost  string    `json:"actualHost,omitempty"`
	ConnectedIP string    `json:"connectedIp,omitempty"`
}

type ListClientsResponse struct {
	Clients []ClientResponse `json:"clients"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
