package http

import (
	"github.com/gin-gonic/gin"

	"github.com/HariBote1110/serveye/internal/api/http/handler"
	"github.com/HariBote1110/serveye/internal/api/http/middleware"
	"github.com/HariBote1110/serveye/internal/auth"
	"github.com/HariBote1110/serveye/internal/gateway"
	"github.com/HariBote1110/serveye/internal/tokens"
)

type Services struct {
	AuthService   *auth.Service
	TokenRegistry *tokens.Registry
	Gateway       *gateway.Gateway
	JWTSecret     string
}

func SetupRoute(engine *gin.Engine, srvs *Services) {
	engine.Use(middleware.RequestLogger())

	healthHandler := handler.NewHealthHandler()
	engine.GET("/health", healthHandler.Check)

	// Agent sessions ride the same listener as the management API.
	engine.GET("/session", gin.WrapH(srvs.Gateway))

	authHandler := handler.NewAuthHandler(srvs.AuthService)
	engine.POST("/api/auth/login", authHandler.Login)

	api := engine.Group("/api", middleware.JWTAuth(srvs.JWTSecret))

	tokensHandler := handler.NewTokensHandler(srvs.TokenRegistry, srvs.Gateway)
	api.POST("/tokens", tokensHandler.Issue)
	api.GET("/tokens", tokensHandler.List)
	api.DELETE("/tokens/:token", tokensHandler.Revoke)

	clientsHandler := handler.NewClientsHandler(srvs.Gateway)
	api.GET("/clients", clientsHandler.List)
	api.GET("/clients/:client_id", clientsHandler.Get)
	api.GET("/clients/:client_id/system", clientsHandler.SystemInfo)
	api.GET("/clients/:client_id/cpu-history", clientsHandler.CPUHistory)
	api.GET("/clients/:client_id/memory-history", clientsHandler.MemoryHistory)
}
