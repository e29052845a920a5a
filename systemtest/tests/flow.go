// Package tests holds the HTTP scenarios the system test drives against
// a fully wired control plane.
package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HariBote1110/serveye/internal/api/http/dto"
)

func doJSON(t *testing.T, method, url, bearer string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// Login exercises the operator login endpoint and returns a bearer
// token for the rest of the flow.
func Login(t *testing.T, baseURL, username, password string) string {
	t.Helper()

	resp := doJSON(t, http.MethodPost, baseURL+"/api/auth/login", "",
		dto.LoginRequest{Username: username, Password: "wrong-" + password})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "wrong password must be rejected")

	resp = doJSON(t, http.MethodPost, baseURL+"/api/auth/login", "",
		dto.LoginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	login := decode[dto.LoginResponse](t, resp)
	require.NotEmpty(t, login.Token)
	return login.Token
}

// IssueToken creates a monitoring token for a client label.
func IssueToken(t *testing.T, baseURL, bearer, clientID string) dto.IssueTokenResponse {
	t.Helper()

	resp := doJSON(t, http.MethodPost, baseURL+"/api/tokens", "",
		dto.IssueTokenRequest{ClientID: clientID})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "token issuance requires auth")

	resp = doJSON(t, http.MethodPost, baseURL+"/api/tokens", bearer,
		dto.IssueTokenRequest{ClientID: clientID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	issued := decode[dto.IssueTokenResponse](t, resp)
	require.NotEmpty(t, issued.Token)
	assert.Equal(t, clientID, issued.ClientID)
	return issued
}

// ListClients fetches the merged availability view.
func ListClients(t *testing.T, baseURL, bearer string) dto.ListClientsResponse {
	t.Helper()

	resp := doJSON(t, http.MethodGet, baseURL+"/api/clients", bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[dto.ListClientsResponse](t, resp)
}

// ClientState returns the state string for one client label, or "" when
// the client is not listed.
func ClientState(t *testing.T, baseURL, bearer, clientID string) string {
	t.Helper()

	for _, c := range ListClients(t, baseURL, bearer).Clients {
		if c.ClientID == clientID {
			return c.State
		}
	}
	return ""
}

// Report fetches one on-demand report and returns the response without
// asserting its status, so callers can check error mappings too.
func Report(t *testing.T, baseURL, bearer, clientID, report string) *http.Response {
	t.Helper()

	url := fmt.Sprintf("%s/api/clients/%s/%s", baseURL, clientID, report)
	return doJSON(t, http.MethodGet, url, bearer, nil)
}

// RevokeToken deletes a monitoring token.
func RevokeToken(t *testing.T, baseURL, bearer, token string) {
	t.Helper()

	resp := doJSON(t, http.MethodDelete, baseURL+"/api/tokens/"+token, bearer, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}
