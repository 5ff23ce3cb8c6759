package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/directprint/agent/internal/api/handlers"
	"github.com/directprint/agent/internal/api/middleware"
)

func NewRouter(logger zerolog.Logger, auth *middleware.AuthMiddleware, printerH *handlers.PrinterHandler, jobH *handlers.JobHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/api/auth/token", auth.TokenHandler)

	apiGroup := r.Group("/api", auth.RequireAuth())
	printerH.RegisterRoutes(apiGroup)
	jobH.RegisterRoutes(apiGroup)

	return r
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}
