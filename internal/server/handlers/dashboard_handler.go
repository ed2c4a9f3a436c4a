package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tacogroup/prodlive/internal/domain/models"
	"github.com/tacogroup/prodlive/internal/service/fleet"
)

// FleetService describes the fleet operations the HTTP layer can perform.
type FleetService interface {
	Snapshot() models.Snapshot
	Start(ctx context.Context, location string, id int) error
	Pause(ctx context.Context, location string, id int) error
	Stop(ctx context.Context, location string, id int) error
}

// DashboardHandler serves the dashboard snapshot and the machine commands.
type DashboardHandler struct {
	svc    FleetService
	logger *zap.Logger
}

// NewDashboardHandler constructs the HTTP handler adapter.
func NewDashboardHandler(svc FleetService, logger *zap.Logger) *DashboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardHandler{svc: svc, logger: logger}
}

// Dashboard returns the full fleet snapshot grouped by location.
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Snapshot())
}

// Start marks a machine running.
func (h *DashboardHandler) Start(c *gin.Context) {
	h.command(c, h.svc.Start)
}

// Pause marks a machine paused.
func (h *DashboardHandler) Pause(c *gin.Context) {
	h.command(c, h.svc.Pause)
}

// Stop marks a machine stopped.
func (h *DashboardHandler) Stop(c *gin.Context) {
	h.command(c, h.svc.Stop)
}

// command applies one machine mutation. A missing machine is reported as
// {"ok":false}, never as a transport error.
func (h *DashboardHandler) command(c *gin.Context, op func(ctx context.Context, location string, id int) error) {
	location := c.Query("location")
	rawID := c.Query("machine_id")

	id, err := strconv.Atoi(rawID)
	if err != nil || location == "" {
		h.logger.Warn("invalid machine command",
			zap.String("location", location), zap.String("machine_id", rawID))
		c.JSON(http.StatusBadRequest, gin.H{"error": "location and machine_id are required"})
		return
	}

	if err := op(c.Request.Context(), location, id); err != nil {
		if fleet.IsNotFound(err) {
			c.JSON(http.StatusOK, gin.H{"ok": false})
			return
		}
		h.logger.Error("machine command failed",
			zap.String("location", location), zap.Int("machine_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "command failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
