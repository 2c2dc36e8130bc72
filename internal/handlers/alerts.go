package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/mahdirajaee/iot-ongoingv1/internal/alerting"

	"github.com/gin-gonic/gin"
)

const (
	defaultAlertLimit = 5
	maxAlertLimit     = 100
)

// @Summary      List alerts
// @Description  Active alerts newest first, at most limit. status=all returns every alert including resolved ones.
// @Tags         alerts
// @Produce      json
// @Param        limit   query  int     false  "Max active alerts (default 5, max 100)"
// @Param        status  query  string  false  "active (default) or all"  Enums(active,all)
// @Success      200  {object}  map[string]interface{}  "count, alerts"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/alerts [get]
// @Security     BearerAuth
func (h *Handler) listAlerts(c *gin.Context) {
	if c.Query("status") == "all" {
		all := h.services.Alerts.All()
		c.JSON(http.StatusOK, gin.H{"count": len(all), "alerts": all})
		return
	}

	limit := defaultAlertLimit
	if qs := c.Query("limit"); qs != "" {
		v, err := strconv.Atoi(qs)
		if err != nil || v < 0 || v > maxAlertLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer between 0 and 100"})
			return
		}
		limit = v
	}
	alerts := h.services.Alerts.Recent(limit)
	c.JSON(http.StatusOK, gin.H{"count": len(alerts), "alerts": alerts})
}

// @Summary      Alert counters
// @Tags         alerts
// @Produce      json
// @Success      200  {object}  models.AlertCounts
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/alerts/counts [get]
// @Security     BearerAuth
func (h *Handler) alertCounts(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Alerts.Counts())
}

// @Summary      Alert details
// @Tags         alerts
// @Produce      json
// @Param        id   path      string  true  "Alert id"
// @Success      200  {object}  models.AlertEvent
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/alerts/{id} [get]
// @Security     BearerAuth
func (h *Handler) getAlert(c *gin.Context) {
	ev, err := h.services.Alerts.Get(c.Param("id"))
	if err != nil {
		h.alertError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

// @Summary      Resolve alert
// @Description  Idempotent: resolving a resolved alert returns it unchanged.
// @Tags         alerts
// @Produce      json
// @Param        id   path      string  true  "Alert id"
// @Success      200  {object}  models.AlertEvent
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/alerts/{id}/resolve [post]
// @Security     BearerAuth
func (h *Handler) resolveAlert(c *gin.Context) {
	ev, err := h.services.Alerts.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.alertError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h *Handler) alertError(c *gin.Context, err error) {
	if errors.Is(err, alerting.ErrNotFound) || errors.Is(err, alerting.ErrEmptyID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	h.logAndJSONError(c, http.StatusInternalServerError, "failed to load alert", "alert_lookup_failed", err)
}
