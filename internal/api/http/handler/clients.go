package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/HariBote1110/serveye/internal/api/http/dto"
	"github.com/HariBote1110/serveye/internal/gateway"
	"github.com/HariBote1110/serveye/internal/protocol"
)

// ReportGateway is the slice of the session gateway the client API
// needs: availability views and on-demand reports.
type ReportGateway interface {
	Overview() []gateway.ClientView
	LookupView(clientID string) (gateway.ClientView, bool)
	Request(ctx context.Context, clientID, kind string) (protocol.Frame, error)
}

type ClientsHandler struct {
	gw ReportGateway
}

func NewClientsHandler(gw ReportGateway) *ClientsHandler {
	return &ClientsHandler{gw: gw}
}

// List returns every known client with its availability.
// GET /api/clients
func (h *ClientsHandler) List(c *gin.Context) {
	views := h.gw.Overview()
	responses := make([]dto.ClientResponse, len(views))
	for i, view := range views {
		responses[i] = toClientResponse(view)
	}
	c.JSON(http.StatusOK, dto.ListClientsResponse{Clients: responses})
}

// Get returns one client's availability.
// GET /api/clients/:client_id
func (h *ClientsHandler) Get(c *gin.Context) {
	view, ok := h.gw.LookupView(c.Param("client_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
		return
	}
	c.JSON(http.StatusOK, toClientResponse(view))
}

// SystemInfo asks the client's agent for a live system snapshot.
// GET /api/clients/:client_id/system
func (h *ClientsHandler) SystemInfo(c *gin.Context) {
	h.report(c, protocol.KindSystemInfo)
}

// CPUHistory returns the agent's rolling CPU usage history.
// GET /api/clients/:client_id/cpu-history
func (h *ClientsHandler) CPUHistory(c *gin.Context) {
	h.report(c, protocol.KindCPUHistory)
}

// MemoryHistory returns the agent's rolling memory usage history.
// GET /api/clients/:client_id/memory-history
func (h *ClientsHandler) MemoryHistory(c *gin.Context) {
	h.report(c, protocol.KindMemoryHistory)
}

func (h *ClientsHandler) report(c *gin.Context, kind string) {
	clientID := c.Param("client_id")

	frame, err := h.gw.Request(c.Request.Context(), clientID, kind)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrTargetOffline):
			c.JSON(http.StatusConflict, gin.H{"error": "client is offline"})
		case errors.Is(err, gateway.ErrRequestTimeout):
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "agent did not answer in time"})
		default:
			slog.Error("Report request failed", "client_id", clientID, "kind", kind, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	if frame.Error != "" {
		c.JSON(http.StatusBadGateway, gin.H{"error": frame.Error})
		return
	}
	c.Data(http.StatusOK, "application/json", frame.Data)
}

func toClientResponse(view gateway.ClientView) dto.ClientResponse {
	return dto.ClientResponse{
		ClientID:    view.ClientID,
		Token:       view.Token,
		State:       string(view.State),
		IssuedAt:    view.IssuedAt,
		LastSeen:    view.LastSeen,
		ActualHost:  view.ActualHost,
		ConnectedIP: view.ConnectedIP,
	}
}
