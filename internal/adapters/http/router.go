package http

import (
	"context"
	"net/http"

	"github.com/dkeye/Meet/internal/adapters/signal"
	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HealthMessage is the static body of GET /.
const HealthMessage = "Server is running!"

func corsMiddleware(origin string) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Origin", "Content-Type"},
	}
	if origin == "*" {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = []string{origin}
	}
	return cors.New(cc)
}

func SetupRouter(ctx context.Context, cfg *config.Config, relay *app.Relay) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	// plain HTTP is open to any origin; only the relay socket is limited to CORS_ORIGIN
	r.GET("/", corsMiddleware("*"), func(c *gin.Context) {
		c.String(http.StatusOK, HealthMessage)
	})

	ctrl := signal.NewSignalWSController(relay, signal.Options{
		AllowedOrigin: cfg.CORSOrigin,
		ReadLimit:     cfg.ReadLimit,
		PingPeriod:    cfg.PingPeriod,
		SendBuffer:    cfg.SendBuffer,
	})
	r.GET("/ws", corsMiddleware(cfg.CORSOrigin), func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Str("cors_origin", cfg.CORSOrigin).Msg("router setup")
	return r
}
