package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/HariBote1110/serveye/internal/gateway"
	"github.com/HariBote1110/serveye/internal/protocol"
)

type fakeGateway struct {
	views      []gateway.ClientView
	frame      protocol.Frame
	requestErr error

	lastClientID string
	lastKind     string
}

func (f *fakeGateway) Overview() []gateway.ClientView { return f.views }

func (f *fakeGateway) LookupView(clientID string) (gateway.ClientView, bool) {
	for _, v := range f.views {
		if v.ClientID == clientID {
			return v, true
		}
	}
	return gateway.ClientView{}, false
}

func (f *fakeGateway) Request(_ context.Context, clientID, kind string) (protocol.Frame, error) {
	f.lastClientID = clientID
	f.lastKind = kind
	return f.frame, f.requestErr
}

func newClientsRouter(gw ReportGateway) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewClientsHandler(gw)
	r.GET("/api/clients", h.List)
	r.GET("/api/clients/:client_id", h.Get)
	r.GET("/api/clients/:client_id/system", h.SystemInfo)
	r.GET("/api/clients/:client_id/cpu-history", h.CPUHistory)
	r.GET("/api/clients/:client_id/memory-history", h.MemoryHistory)
	return r
}

func TestListClients(t *testing.T) {
	gw := &fakeGateway{views: []gateway.ClientView{
		{ClientID: "web-01", State: gateway.StateOnline, IssuedAt: time.Now()},
		{ClientID: "db-01", State: gateway.StateUnknown, IssuedAt: time.Now()},
	}}
	router := newClientsRouter(gw)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/clients", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"web-01"`)
	assert.Contains(t, w.Body.String(), `"state":"unknown"`)
}

func TestGetClientNotFound(t *testing.T) {
	router := newClientsRouter(&fakeGateway{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/clients/ghost", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSystemInfoPassesThroughPayload(t *testing.T) {
	gw := &fakeGateway{frame: protocol.Frame{
		Type: "system_info_response",
		Data: []byte(`{"hostname":"web-01.internal"}`),
	}}
	router := newClientsRouter(gw)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/clients/web-01/system", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"hostname":"web-01.internal"}`, w.Body.String())
	assert.Equal(t, "web-01", gw.lastClientID)
	assert.Equal(t, protocol.KindSystemInfo, gw.lastKind)
}

func TestReportKindsMapToRoutes(t *testing.T) {
	gw := &fakeGateway{frame: protocol.Frame{Data: []byte(`{}`)}}
	router := newClientsRouter(gw)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/clients/web-01/cpu-history", nil))
	assert.Equal(t, protocol.KindCPUHistory, gw.lastKind)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/clients/web-01/memory-history", nil))
	assert.Equal(t, protocol.KindMemoryHistory, gw.lastKind)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReportOfflineClientConflicts(t *testing.T) {
	router := newClientsRouter(&fakeGateway{requestErr: gateway.ErrTargetOffline})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/clients/web-01/system", nil))

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReportTimeoutMapsToGatewayTimeout(t *testing.T) {
	router := newClientsRouter(&fakeGateway{requestErr: gateway.ErrRequestTimeout})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/clients/web-01/system", nil))

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestReportAgentErrorMapsToBadGateway(t *testing.T) {
	gw := &fakeGateway{frame: protocol.Frame{Error: "sampler broken"}}
	router := newClientsRouter(gw)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/clients/web-01/system", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "sampler broken")
}
