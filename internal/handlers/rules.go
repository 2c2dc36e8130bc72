package handlers

import (
	"errors"
	"net/http"

	"github.com/mahdirajaee/iot-ongoingv1/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateRuleRequest is the payload for a new automation rule.
type CreateRuleRequest struct {
	// Allowed: temperature, pressure
	Metric string `json:"metric" binding:"required" example:"temperature"`
	// Allowed: gt, lt
	Operator  string  `json:"operator" binding:"required" example:"gt"`
	Threshold float64 `json:"threshold" example:"80"`
	// Allowed: openValve, closeValve, notify
	Action string `json:"action" binding:"required" example:"openValve"`
	// Valve id, required for valve actions
	Target string `json:"target,omitempty" example:"VA1"`
}

// @Summary      List rules
// @Tags         rules
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, rules"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/rules [get]
// @Security     BearerAuth
func (h *Handler) listRules(c *gin.Context) {
	rules := h.services.Rules.List()
	c.JSON(http.StatusOK, gin.H{"count": len(rules), "rules": rules})
}

// @Summary      Create rule
// @Description  Rules are stored for display; they do not change alert evaluation.
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        body  body      CreateRuleRequest  true  "Rule"
// @Success      201   {object}  models.AutomationRule
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/v1/rules [post]
// @Security     BearerAuth
func (h *Handler) createRule(c *gin.Context) {
	var req CreateRuleRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	rule, err := h.services.Rules.Create(c.Request.Context(), service.RuleParams{
		Metric:    req.Metric,
		Operator:  req.Operator,
		Threshold: req.Threshold,
		Action:    req.Action,
		Target:    req.Target,
	})
	if err != nil {
		h.ruleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// @Summary      Enable or disable rule
// @Tags         rules
// @Produce      json
// @Param        id   path      string  true  "Rule id"
// @Success      200  {object}  models.AutomationRule
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/rules/{id}/toggle [post]
// @Security     BearerAuth
func (h *Handler) toggleRule(c *gin.Context) {
	rule, err := h.services.Rules.Toggle(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.ruleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// @Summary      Delete rule
// @Tags         rules
// @Param        id   path  string  true  "Rule id"
// @Success      204
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/rules/{id} [delete]
// @Security     BearerAuth
func (h *Handler) deleteRule(c *gin.Context) {
	if err := h.services.Rules.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.ruleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ruleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRule):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrRuleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, "rule operation failed", "rule_failed", err)
	}
}
