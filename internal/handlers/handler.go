package handlers

import (
	"github.com/mahdirajaee/iot-ongoingv1/internal/logger"
	"github.com/mahdirajaee/iot-ongoingv1/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), metricsMiddleware)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// Snapshot push over WebSocket on the same port
	router.GET("/ws", h.wsAuthMiddleware, h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-in", h.signIn)
		auth.POST("/sign-out", h.authMiddleware, h.signOut)
		auth.GET("/me", h.authMiddleware, h.me)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.authMiddleware)
	{
		api.GET("/dashboard", h.getDashboard)
		h.registerAlertRoutes(api)
		h.registerValveRoutes(api)
		h.registerRuleRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerAlertRoutes(api *gin.RouterGroup) {
	alerts := api.Group("/alerts")
	{
		alerts.GET("", h.listAlerts)
		alerts.GET("/counts", h.alertCounts)
		alerts.GET("/:id", h.getAlert)
		alerts.POST("/:id/resolve", h.resolveAlert)
	}
}

func (h *Handler) registerValveRoutes(api *gin.RouterGroup) {
	valves := api.Group("/valves")
	{
		valves.GET("", h.listValves)
		// Body example: {"status":"open"}
		valves.POST("/:id", h.setValve)
	}
}

func (h *Handler) registerRuleRoutes(api *gin.RouterGroup) {
	rules := api.Group("/rules")
	{
		rules.GET("", h.listRules)
		rules.POST("", h.createRule)
		rules.POST("/:id/toggle", h.toggleRule)
		rules.DELETE("/:id", h.deleteRule)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	api.GET("/logs", h.getLogs)
}
