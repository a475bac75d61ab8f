package handler

import (
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tabletimer/tabletimer/internal/api/models"
	"github.com/tabletimer/tabletimer/internal/api/response"
)

// OpsHandler handles operational endpoints: health and server identity.
type OpsHandler struct {
	name    string
	version string
	port    int
	clock   clockwork.Clock
	started time.Time
}

// OpsConfig holds the dependencies for OpsHandler.
type OpsConfig struct {
	Name    string
	Version string
	Port    int
	Clock   clockwork.Clock
}

// NewOpsHandler creates a new OpsHandler. Uptime is measured from this
// call.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &OpsHandler{
		name:    cfg.Name,
		version: cfg.Version,
		port:    cfg.Port,
		clock:   cfg.Clock,
		started: cfg.Clock.Now(),
	}
}

// HealthCheck handles GET /healthz.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.clock.Now()),
	})
}

// ServerInfo handles GET /api/server-info. Devices hit it after discovery
// to confirm they found the right service.
func (h *OpsHandler) ServerInfo(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.ServerInfo{
		Name:          h.name,
		Version:       h.version,
		Port:          h.port,
		UptimeSeconds: int64(h.clock.Now().Sub(h.started).Seconds()),
	})
}
