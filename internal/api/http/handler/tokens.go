package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/HariBote1110/serveye/internal/api/http/dto"
	"github.com/HariBote1110/serveye/internal/protocol"
	"github.com/HariBote1110/serveye/internal/tokens"
)

// SessionEvictor closes the live session holding a token, if any.
type SessionEvictor interface {
	Evict(token, reason string)
}

type TokensHandler struct {
	registry *tokens.Registry
	evictor  SessionEvictor
}

func NewTokensHandler(registry *tokens.Registry, evictor SessionEvictor) *TokensHandler {
	return &TokensHandler{registry: registry, evictor: evictor}
}

// Issue creates a monitoring token for a client label.
// POST /api/tokens
func (h *TokensHandler) Issue(c *gin.Context) {
	var req dto.IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.registry.Issue(c.Request.Context(), req.ClientID)
	if err != nil {
		slog.Error("Failed to issue token", "client_id", req.ClientID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusCreated, dto.IssueTokenResponse{
		Token:    rec.Token,
		ClientID: rec.ClientID,
		IssuedAt: rec.IssuedAt,
	})
}

// List returns every issued token.
// GET /api/tokens
func (h *TokensHandler) List(c *gin.Context) {
	records := h.registry.All()
	responses := make([]dto.TokenResponse, len(records))
	for i, rec := range records {
		responses[i] = dto.TokenResponse{
			Token:       rec.Token,
			ClientID:    rec.ClientID,
			IssuedAt:    rec.IssuedAt,
			Used:        rec.Used,
			Status:      string(rec.Status),
			LastSeen:    rec.LastSeen,
			ActualHost:  rec.ActualHost,
			ConnectedIP: rec.ConnectedIP,
		}
	}
	c.JSON(http.StatusOK, dto.ListTokensResponse{Tokens: responses})
}

// Revoke deletes a token and evicts its live session.
// DELETE /api/tokens/:token
func (h *TokensHandler) Revoke(c *gin.Context) {
	token := c.Param("token")

	if err := h.registry.Revoke(c.Request.Context(), token); err != nil {
		if errors.Is(err, tokens.ErrTokenNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "token not found"})
			return
		}
		slog.Error("Failed to revoke token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}

	h.evictor.Evict(token, protocol.ReasonInvalidToken)
	c.Status(http.StatusNoContent)
}
