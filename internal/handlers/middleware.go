package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mahdirajaee/iot-ongoingv1/internal/metrics"
	"github.com/mahdirajaee/iot-ongoingv1/internal/service"

	"github.com/gin-gonic/gin"
)

// Gin context keys set by authMiddleware.
const (
	ctxToken   = "token"
	ctxProfile = "profile"
	ctxAuth    = "auth"
)

func (h *Handler) authMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "missing Authorization header",
		})
		return
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid Authorization header format",
		})
		return
	}
	h.authorize(c, parts[1])
}

// wsAuthMiddleware also accepts ?token=, since browsers cannot set headers
// on a WebSocket handshake.
func (h *Handler) wsAuthMiddleware(c *gin.Context) {
	if token := c.Query("token"); token != "" {
		h.authorize(c, token)
		return
	}
	h.authMiddleware(c)
}

func (h *Handler) authorize(c *gin.Context, token string) {
	st, err := h.services.Authorization.Authenticate(c.Request.Context(), token)
	if err != nil {
		msg := "invalid token"
		switch {
		case errors.Is(err, service.ErrSessionExpired):
			msg = "session expired"
		case !errors.Is(err, service.ErrInvalidToken):
			if h.log != nil {
				h.log.Errorw("auth_check_failed", "err", err)
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
		return
	}

	c.Set(ctxToken, token)
	c.Set(ctxProfile, st.Profile)
	c.Set(ctxAuth, st)
	c.Next()
}

// metricsMiddleware records request count and latency per route template.
func metricsMiddleware(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
}
