package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter wires every route of the service. gatherer may be nil, in which
// case /metrics is not mounted.
func SetupRouter(handler *Handler, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(handler.log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")
	{
		// Сделки
		api.POST("/deals", handler.CreateDeal)
		api.PATCH("/deals/:id", handler.UpdateDeal)

		// Лид сделки
		api.PUT("/deals/:id/lead", handler.ReassignDealLead)
		api.GET("/deals/:id/lead", handler.GetActiveLead)

		// Ресурсы (пакетный upsert)
		api.POST("/deals/:id/resources", handler.AddResources)
		api.GET("/deals/:id/resources", handler.ListResources)

		// Терапевтические области лида
		api.POST("/users/:id/therapeutic-areas", handler.AssignTherapeuticAreas)
		api.DELETE("/users/:id/therapeutic-areas/:taId", handler.UnassignTherapeuticArea)
	}

	return router
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
