package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HariBote1110/serveye/internal/protocol"
)

func TestResolveDeliversToPendingRequest(t *testing.T) {
	corr := NewCorrelator()
	ch := corr.Register("req-1")

	resolved := corr.Resolve("req-1", protocol.Frame{Type: "system_info_response", RequestID: "req-1"})

	require.True(t, resolved)
	select {
	case f := <-ch:
		assert.Equal(t, "req-1", f.RequestID)
	default:
		t.Fatal("no frame delivered")
	}
	assert.Zero(t, corr.PendingCount())
}

func TestResolveUnknownRequestIsNoop(t *testing.T) {
	corr := NewCorrelator()

	assert.False(t, corr.Resolve("ghost", protocol.Frame{Type: "system_info_response"}))
}

func TestDoubleResolveDeliversOnce(t *testing.T) {
	corr := NewCorrelator()
	ch := corr.Register("req-1")

	assert.True(t, corr.Resolve("req-1", protocol.Frame{RequestID: "req-1", Type: "system_info_response"}))
	assert.False(t, corr.Resolve("req-1", protocol.Frame{RequestID: "req-1", Type: "system_info_response"}))

	<-ch
	select {
	case <-ch:
		t.Fatal("second frame delivered")
	default:
	}
}

func TestDropAbandonsRequest(t *testing.T) {
	corr := NewCorrelator()
	corr.Register("req-1")

	corr.Drop("req-1")

	assert.Zero(t, corr.PendingCount())
	assert.False(t, corr.Resolve("req-1", protocol.Frame{RequestID: "req-1"}))
}
