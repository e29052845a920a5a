// Package protocol defines the JSON frame vocabulary exchanged between the
// serveye control plane and its agents over a monitoring session. Both sides
// marshal every message as a single Frame; the Type field selects which of
// the optional fields are meaningful.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coder/websocket"
)

// Frame type constants. These are wire-stable: renaming one breaks every
// deployed agent.
const (
	TypeAuthSuccess  = "auth_success"
	TypeAuthFailed   = "auth_failed"
	TypeInitialInfo  = "initial_info"
	TypeHeartbeat    = "heartbeat"
	TypeHeartbeatAck = "heartbeat_ack"
	TypeError        = "error"
)

// Report kinds a controller can request from an agent.
const (
	KindSystemInfo    = "system_info"
	KindCPUHistory    = "cpu_history"
	KindMemoryHistory = "memory_history"
)

const (
	requestPrefix  = "request_"
	responseSuffix = "_response"
)

// CloseAuthFailure is the close status the control plane sends when a
// session's credential is rejected. Agents treat this code as terminal and
// do not reconnect.
const CloseAuthFailure = websocket.StatusPolicyViolation

// Close reasons accompanying CloseAuthFailure.
const (
	ReasonInvalidToken = "Invalid or missing token"
	ReasonTokenInUse   = "Token already in use"
)

var ErrUnknownType = errors.New("protocol: unknown frame type")

// Frame is the envelope for every message on a monitoring session.
type Frame struct {
	Type      string          `json:"type"`
	ClientID  string          `json:"clientId,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Message   string          `json:"message,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// RequestType returns the frame type that asks an agent for the given
// report kind, e.g. "request_system_info".
func RequestType(kind string) string {
	return requestPrefix + kind
}

// ResponseType returns the frame type that carries an agent's answer for
// the given report kind, e.g. "system_info_response".
func ResponseType(kind string) string {
	return kind + responseSuffix
}

// RequestKind extracts the report kind from a request frame type. The
// second return is false when the type is not a request.
func RequestKind(frameType string) (string, bool) {
	return strings.CutPrefix(frameType, requestPrefix)
}

// ResponseKind extracts the report kind from a response frame type. The
// second return is false when the type is not a response.
func ResponseKind(frameType string) (string, bool) {
	return strings.CutSuffix(frameType, responseSuffix)
}

// Decode parses a single frame from raw bytes. A frame with an empty Type
// is rejected so a liveness update is never credited to garbage input.
func Decode(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("decode frame: %w: empty type", ErrUnknownType)
	}
	return f, nil
}

// Encode serializes a frame for the wire.
func Encode(f Frame) ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return b, nil
}

// NewHeartbeat builds a heartbeat frame stamped with the current wall
// clock in milliseconds.
func NewHeartbeat() Frame {
	return Frame{Type: TypeHeartbeat, Timestamp: time.Now().UnixMilli()}
}

// NewHeartbeatAck builds a heartbeat answer stamped with the responder's
// own wall clock in milliseconds.
func NewHeartbeatAck() Frame {
	return Frame{Type: TypeHeartbeatAck, Timestamp: time.Now().UnixMilli()}
}

// NewError builds an error frame. RequestID may be empty when the error is
// not tied to a particular request.
func NewError(requestID, msg string) Frame {
	return Frame{Type: TypeError, RequestID: requestID, Error: msg}
}
