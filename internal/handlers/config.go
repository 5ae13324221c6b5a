package handlers

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"space_maquette/internal/service"

	"github.com/gin-gonic/gin"
)

// ConfigValueRequest carries the new value of one setting.
type ConfigValueRequest struct {
	Value string `json:"value" binding:"required" example:"45"`
}

// @Summary      Read a controller setting
// @Tags         config
// @Produce      json
// @Param        key      path   string  true   "Setting name"  example(tilt_min)
// @Param        default  query  string  false  "Returned when the controller has no value"
// @Success      200  {object}  map[string]string  "key, value"
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/config/device/{key} [get]
// @Security     BearerAuth
func (h *Handler) getDeviceConfig(c *gin.Context) {
	key := c.Param("key")
	value := h.services.Rig.GetConfigValue(c.Request.Context(), key, c.Query("default"))
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

// @Summary      Change a controller setting
// @Tags         config
// @Accept       json
// @Produce      json
// @Param        key   path  string              true  "Setting name"  example(tilt_min)
// @Param        body  body  ConfigValueRequest  true  "Value"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/config/device/{key} [put]
// @Security     BearerAuth
func (h *Handler) setDeviceConfig(c *gin.Context) {
	var req ConfigValueRequest
	if !h.bindOrBadRequest(c, &req) {
		return
	}
	key := c.Param("key")
	ok := h.services.Rig.SetConfigValue(c.Request.Context(), key, req.Value)
	h.respondCommand(c, "set", ok, gin.H{"key": key, "value": req.Value})
}

// @Summary      Controller configuration command
// @Description  save persists controller settings; load and list are forwarded as CONFIG commands.
// @Tags         config
// @Produce      json
// @Param        sub  path  string  true  "Sub-command"  Enums(save,load,list)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/config/device/{sub} [post]
// @Security     BearerAuth
func (h *Handler) deviceConfigCommand(c *gin.Context) {
	ctx := c.Request.Context()
	sub := strings.ToLower(c.Param("sub"))
	switch sub {
	case "save":
		h.respondCommand(c, "save", h.services.Rig.SaveControllerConfig(ctx), nil)
	case "load", "list":
		resp := h.services.Rig.ConfigCommand(ctx, sub)
		h.respondCommand(c, "config-"+sub, resp.OK(), gin.H{"message": resp.Message})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown config command: " + sub})
	}
}

// @Summary      Host configuration
// @Tags         config
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/v1/config/host [get]
// @Security     BearerAuth
func (h *Handler) getHostConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Rig.HostConfig())
}

// @Summary      Change a host setting
// @Description  Updates the in-memory value; call save to persist it.
// @Tags         config
// @Accept       json
// @Produce      json
// @Param        key   path  string              true  "Dotted setting name"  example(status.interval)
// @Param        body  body  ConfigValueRequest  true  "Value"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/config/host/{key} [put]
// @Security     BearerAuth
func (h *Handler) setHostConfig(c *gin.Context) {
	var req ConfigValueRequest
	if !h.bindOrBadRequest(c, &req) {
		return
	}
	key := c.Param("key")
	h.services.Rig.SetHostConfigValue(key, req.Value)
	c.JSON(http.StatusOK, gin.H{"key": key, "value": req.Value})
}

// @Summary      Persist host configuration
// @Tags         config
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/config/host/save [post]
// @Security     BearerAuth
func (h *Handler) saveHostConfig(c *gin.Context) {
	if err := h.services.Rig.SaveHostConfig(); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to save host config", "host_config_save_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Reload host configuration
// @Tags         config
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/config/host/load [post]
// @Security     BearerAuth
func (h *Handler) loadHostConfig(c *gin.Context) {
	err := h.services.Rig.LoadHostConfig()
	switch {
	case err == nil:
		c.JSON(http.StatusOK, h.services.Rig.HostConfig())
	case errors.Is(err, os.ErrNotExist), errors.Is(err, service.ErrNoHostConfig):
		h.logAndJSONError(c, http.StatusNotFound, "host config not found", "host_config_missing", err)
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load host config", "host_config_load_failed", err)
	}
}
