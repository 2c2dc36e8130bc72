package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/mahdirajaee/iot-ongoingv1/internal/models"
	"github.com/mahdirajaee/iot-ongoingv1/internal/service"
	"github.com/mahdirajaee/iot-ongoingv1/internal/telemetry"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errValveControl    = "valve command failed"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// SetValveRequest is the payload for a valve command.
type SetValveRequest struct {
	// Desired position. Allowed: open, closed
	Status string `json:"status" binding:"required" example:"open"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	resp := gin.H{"status": statusOK}
	if h.services != nil && h.services.Monitoring != nil {
		resp["connection"] = h.services.Monitoring.Status()
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Dashboard snapshot
// @Description  Connection status, latest readings, chart series, valves and alert summary.
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  models.Snapshot
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/dashboard [get]
// @Security     BearerAuth
func (h *Handler) getDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Monitoring.Snapshot(c.Request.Context()))
}

// @Summary      List valves
// @Tags         valves
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, valves"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/valves [get]
// @Security     BearerAuth
func (h *Handler) listValves(c *gin.Context) {
	valves := h.services.Valves.Valves()
	c.JSON(http.StatusOK, gin.H{
		"count":  len(valves),
		"valves": valves,
	})
}

// @Summary      Set valve
// @Description  Sends the command to the api-server; local state changes only after it confirms.
// @Tags         valves
// @Accept       json
// @Produce      json
// @Param        id    path      string           true  "Valve id"  example(VA1)
// @Param        body  body      SetValveRequest  true  "Desired status"
// @Success      200   {object}  models.ValveState
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/valves/{id} [post]
// @Security     BearerAuth
func (h *Handler) setValve(c *gin.Context) {
	var req SetValveRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	status := models.ValveStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be open or closed"})
		return
	}

	id := c.Param("id")
	st, err := h.services.Valves.ToggleValve(c.Request.Context(), id, status)
	if err != nil {
		switch {
		case errors.Is(err, telemetry.ErrInvalidValveChange):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrValveControl):
			h.logAndJSONError(c, http.StatusBadGateway, errValveControl, "valve_toggle_failed", err, "valve", id)
		default:
			h.logAndJSONError(c, http.StatusInternalServerError, errValveControl, "valve_toggle_failed", err, "valve", id)
		}
		return
	}
	c.JSON(http.StatusOK, st)
}
