package handlers

import (
	"net/http"

	"analyze-service/models"
	"analyze-service/relay"
	"analyze-service/version"

	"github.com/gin-gonic/gin"
)

const ServiceName = "analyze-service"

type HealthHandler struct {
	relay *relay.Relay
}

func NewHealthHandler(r *relay.Relay) *HealthHandler {
	return &HealthHandler{relay: r}
}

// HealthCheck returns service health status
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:   "healthy",
		Service:  ServiceName,
		Provider: h.relay.Provider().Name(),
		Mode:     string(h.relay.Mode()),
	})
}

func (h *HealthHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get(ServiceName, h.relay.Provider().Name(), string(h.relay.Mode())))
}
