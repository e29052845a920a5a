package dto

import "time"

type IssueTokenRequest struct {
	ClientID string `json:"clientId" binding:"required,min=1,max=255"`
}

type IssueTokenResponse struct {
	Token    string    `json:"token"`
	ClientID string    `json:"clientId"`
	IssuedAt time.Time `json:"issuedAt"`
}

type TokenResponse struct {
	Token       string    `json:"token"`
	ClientID    string    `json:"clientId"`
	IssuedAt    time.Time `json:"issuedAt"`
	Used        bool      `json:"used"`
	Status      string    `json:"status"`
	LastSeen    time.Time `json:"lastSeen,omitzero"`
	ActualHost  string    `json:"actualHost,omitempty"`
	ConnectedIP string    `json:"connectedIp,omitempty"`
}

type ListTokensResponse struct {
	Tokens []TokenResponse `json:"tokens"`
}
