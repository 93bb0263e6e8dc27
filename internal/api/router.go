package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/whisperlink/whisperlink-backend/internal/auth"
	"github.com/whisperlink/whisperlink-backend/internal/config"
)

// Registrar is a common interface for all route registrars.
type Registrar interface {
	Register(rg *gin.RouterGroup)
}

// NewRouter builds the gin engine: CORS for the browser client, health
// probe, and the authenticated /api/v1 group with all provided services
// registered.
func NewRouter(cfg *config.Config, sessions *auth.Manager, registrars ...Registrar) *gin.Engine {
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	api := r.Group("/api/v1", RequireSession(sessions))
	for _, reg := range registrars {
		reg.Register(api)
	}

	return r
}

// Serve boots the HTTP server on the configured address.
func Serve(cfg *config.Config, engine *gin.Engine) error {
	addr := fmt.Sprintf("%s:%s", cfg.HTTP.Host, cfg.HTTP.Port)
	return engine.Run(addr)
}
