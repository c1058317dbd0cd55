package api

import (
	"cove/internal/server/auth"
	"cove/internal/server/config"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupRouter creates and configures the echo router with all routes and middleware.
func SetupRouter(handler *Handler, authn *auth.Authenticator, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}))
	e.Use(RequestLogger())

	// Rate limiter on mutating endpoints
	writeLimiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// Health & auth
	e.GET("/health", handler.HandleHealth)
	e.POST("/api/login", handler.HandleLogin, writeLimiter.Middleware())
	e.POST("/api/logout", handler.HandleLogout)

	// Main storage tree (session required)
	files := e.Group("/api", SessionRequired(authn))
	files.GET("/files", handler.HandleList)
	files.POST("/upload", handler.HandleUpload, writeLimiter.Middleware())
	files.GET("/download", handler.HandleDownload)
	files.POST("/delete", handler.HandleDelete)
	files.POST("/rename", handler.HandleRename)
	files.GET("/storage", handler.HandleStorageInfo)

	// Shares: management needs a session, resolution is public by token
	files.POST("/shares", handler.HandleCreateShare)
	files.GET("/shares", handler.HandleListShares)
	files.DELETE("/shares/:id", handler.HandleRevokeShare)
	e.GET("/s/:id", handler.HandleResolveShare)
	e.GET("/s/:id/:name", handler.HandleShareDownload)

	// Quick transfer: anonymous drop box
	e.POST("/api/transfer", handler.HandleTransferUpload, writeLimiter.Middleware())
	e.GET("/api/transfer", handler.HandleTransferList)
	e.GET("/api/transfer/:name", handler.HandleTransferDownload)

	return e
}
