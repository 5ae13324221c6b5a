package handlers

import (
	"space_maquette/internal/logger"
	"space_maquette/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires the HTTP layer to services and logging.
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
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// Live status stream, same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.operatorIdMiddleware)
	{
		api.GET("/session", h.getSession)
		h.registerRigRoutes(api)
		h.registerConfigRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerRigRoutes(api *gin.RouterGroup) {
	rig := api.Group("/rig")
	{
		rig.POST("/connect", h.connectRig)
		rig.POST("/disconnect", h.disconnectRig)
		rig.GET("/status", h.getStatus)
	}

	// Everything below talks to the controller.
	cmd := api.Group("/rig", h.requireConnected)
	{
		cmd.POST("/ping", h.ping)
		cmd.POST("/reset", h.reset)
		cmd.POST("/stop", h.stop)
		cmd.POST("/estop", h.emergencyStop)
		cmd.POST("/reset-estop", h.resetEmergencyStop)
		cmd.POST("/home-all", h.homeAll)
		// Body example: {"axis":"X"}
		cmd.POST("/home", h.homeAxis)
		// Body example: {"x":10,"y":20,"z":5,"pan":45}
		cmd.POST("/move", h.move)
		cmd.POST("/move-relative", h.moveRelative)
		// Body example: {"direction":"look-up","amount":5}
		cmd.POST("/nudge", h.nudge)
		cmd.POST("/velocity", h.setVelocity)
		cmd.POST("/pan", h.setPan)
		cmd.POST("/tilt", h.setTilt)
		cmd.POST("/debug", h.setDebug)
		cmd.POST("/measure", h.measure)
		cmd.POST("/scan", h.scan)
		cmd.POST("/polling", h.setPolling)
	}
}

func (h *Handler) registerConfigRoutes(api *gin.RouterGroup) {
	device := api.Group("/config/device", h.requireConnected)
	{
		device.GET("/:key", h.getDeviceConfig)
		device.PUT("/:key", h.setDeviceConfig)
		// save | load | list
		device.POST("/:sub", h.deviceConfigCommand)
	}

	host := api.Group("/config/host")
	{
		host.GET("", h.getHostConfig)
		host.PUT("/:key", h.setHostConfig)
		host.POST("/save", h.saveHostConfig)
		host.POST("/load", h.loadHostConfig)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	api.GET("/logs", h.getLogs)
}
