package handlers

import (
	"errors"
	"net/http"

	"github.com/mahdirajaee/iot-ongoingv1/internal/models"
	"github.com/mahdirajaee/iot-ongoingv1/internal/service"

	"github.com/gin-gonic/gin"
)

type signInRequest struct {
	Username string `json:"username" binding:"required" example:"jane.doe"`
	Password string `json:"password" binding:"required" example:"secret1"`
	Remember bool   `json:"remember" example:"true"`
}

// bindJSONOrBadRequest tries to bind the request body into dst and writes a 400 JSON on failure.
// Returns false if the request was already handled (aborted), true otherwise.
func (h *Handler) bindJSONOrBadRequest(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if h.log != nil {
			h.log.Infow("bad_request_body", "path", c.FullPath(), "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return false
	}
	return true
}

// @Summary      Sign in
// @Description  Mock login: any username of 3+ and password of 6+ characters is accepted. The token is valid for 24 hours.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signInRequest  true  "Credentials"
// @Success      200   {object}  models.Session
// @Failure      400   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /auth/sign-in [post]
func (h *Handler) signIn(c *gin.Context) {
	var input signInRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	sess, err := h.services.Authorization.SignIn(c.Request.Context(), service.SignInParams{
		Username: input.Username,
		Password: input.Password,
		Remember: input.Remember,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			if h.log != nil {
				h.log.Infow("auth_sign_in_rejected", "username", input.Username, "err", err)
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to sign in", "auth_sign_in_failed", err, "username", input.Username)
		return
	}

	c.JSON(http.StatusOK, sess)
}

// @Summary      Sign out
// @Tags         auth
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /auth/sign-out [post]
// @Security     BearerAuth
func (h *Handler) signOut(c *gin.Context) {
	if err := h.services.Authorization.SignOut(c.Request.Context(), c.GetString(ctxToken)); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to sign out", "auth_sign_out_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Current session
// @Description  Profile and expiry of the bearer token; expiring_soon is true in the last 30 minutes.
// @Tags         auth
// @Produce      json
// @Success      200  {object}  models.AuthStatus
// @Failure      401  {object}  map[string]string
// @Router       /auth/me [get]
// @Security     BearerAuth
func (h *Handler) me(c *gin.Context) {
	st, _ := c.Get(ctxAuth)
	if _, ok := st.(models.AuthStatus); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, st)
}
