package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValidFrame(t *testing.T) {
	raw := []byte(`{"type":"heartbeat","timestamp":1700000000000}`)

	f, err := Decode(raw)

	require.NoError(t, err)
	assert.Equal(t, TypeHeartbeat, f.Type)
	assert.Equal(t, int64(1700000000000), f.Timestamp)
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))

	assert.Error(t, err)
}

func TestDecodeRejectsEmptyType(t *testing.T) {
	_, err := Decode([]byte(`{"timestamp":123}`))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestRequestResponseTypeRoundTrip(t *testing.T) {
	for _, kind := range []string{KindSystemInfo, KindCPUHistory, KindMemoryHistory} {
		reqType := RequestType(kind)
		gotKind, ok := RequestKind(reqType)
		require.True(t, ok, reqType)
		assert.Equal(t, kind, gotKind)

		respType := ResponseType(kind)
		gotKind, ok = ResponseKind(respType)
		require.True(t, ok, respType)
		assert.Equal(t, kind, gotKind)
	}
}

func TestRequestKindRejectsNonRequests(t *testing.T) {
	_, ok := RequestKind(TypeHeartbeat)
	assert.False(t, ok)

	_, ok = ResponseKind(TypeHeartbeat)
	assert.False(t, ok)
}

func TestNewResponseCarriesPayload(t *testing.T) {
	f, err := NewResponse(KindCPUHistory, "req-1", HistoryReport{
		Samples:         []float64{1.5, 2.5},
		IntervalMs:      10000,
		DurationSeconds: 600,
	})

	require.NoError(t, err)
	assert.Equal(t, "cpu_history_response", f.Type)
	assert.Equal(t, "req-1", f.RequestID)
	assert.JSONEq(t, `{"samples":[1.5,2.5],"intervalMs":10000,"durationSeconds":600}`, string(f.Data))
}

func TestEncodeOmitsEmptyFields(t *testing.T) {
	b, err := Encode(Frame{Type: TypeHeartbeatAck, Timestamp: 42})

	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"heartbeat_ack","timestamp":42}`, string(b))
}
