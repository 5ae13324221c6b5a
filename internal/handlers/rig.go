package handlers

import (
	"errors"
	"net/http"

	"space_maquette/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK           = "ok"
	statusConnected    = "connected"
	statusDisconnected = "disconnected"

	errNotConnected    = "rig is not connected"
	errConnect         = "failed to connect to rig"
	errDisconnect      = "failed to disconnect from rig"
	errGetState        = "failed to load status"
	errRejected        = "rig rejected command: "
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

// respondCommand maps a facade result to HTTP: 200 with the current status,
// or 409 when the controller refused.
func (h *Handler) respondCommand(c *gin.Context, action string, ok bool, extra gin.H) {
	if !ok {
		if h.log != nil {
			h.log.Infow("rig_command_rejected", "action", action)
		}
		resp := gin.H{"error": errRejected + action, "action": action}
		for k, v := range extra {
			resp[k] = v
		}
		c.JSON(http.StatusConflict, resp)
		return
	}
	h.respondWithStatusAndState(c, action, extra)
}

// Respond with a status and include current rig status if available (best-effort).
func (h *Handler) respondWithStatusAndState(c *gin.Context, action string, extra gin.H) {
	resp := gin.H{"status": statusOK, "action": action}
	for k, v := range extra {
		resp[k] = v
	}
	st, err := h.services.Monitoring.GetState(c.Request.Context())
	if err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) bindOrBadRequest(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return false
	}
	return true
}

// Request DTOs. Pointer fields make "required" reject a missing value
// without rejecting zero.

// HomeRequest selects the axis to home: ALL, X, Y or Z.
type HomeRequest struct {
	Axis string `json:"axis" binding:"required" example:"ALL"`
}

// MoveRequest is an absolute move. Tilt is ignored unless pan is given.
type MoveRequest struct {
	X    *float64 `json:"x" binding:"required" example:"100"`
	Y    *float64 `json:"y" binding:"required" example:"200"`
	Z    *float64 `json:"z" binding:"required" example:"50"`
	Pan  *float64 `json:"pan,omitempty" example:"45"`
	Tilt *float64 `json:"tilt,omitempty" example:"90"`
}

// MoveRelativeRequest offsets the last known position.
type MoveRelativeRequest struct {
	DX    float64 `json:"dx" example:"10"`
	DY    float64 `json:"dy" example:"0"`
	DZ    float64 `json:"dz" example:"0"`
	DPan  float64 `json:"dpan" example:"0"`
	DTilt float64 `json:"dtilt" example:"-5"`
}

// NudgeRequest is a single directional step. Amount defaults to 10 mm or 5 degrees.
type NudgeRequest struct {
	Direction string  `json:"direction" binding:"required" example:"look-up"`
	Amount    float64 `json:"amount,omitempty" example:"5"`
}

// VelocityRequest sets the X, Y and Z velocities.
type VelocityRequest struct {
	VX *float64 `json:"vx" binding:"required" example:"100"`
	VY *float64 `json:"vy" binding:"required" example:"100"`
	VZ *float64 `json:"vz" binding:"required" example:"50"`
}

// AngleRequest is a servo target in degrees.
type AngleRequest struct {
	Angle *float64 `json:"angle" binding:"required" example:"90"`
}

// ToggleRequest switches a feature on or off.
type ToggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required" example:"true"`
}

// ScanRequest describes a rectangular scan.
type ScanRequest struct {
	X1   *float64 `json:"x1" binding:"required" example:"0"`
	Y1   *float64 `json:"y1" binding:"required" example:"0"`
	X2   *float64 `json:"x2" binding:"required" example:"500"`
	Y2   *float64 `json:"y2" binding:"required" example:"500"`
	Step *float64 `json:"step" binding:"required" example:"50"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	resp := gin.H{"status": statusOK}
	if h.services != nil && h.services.Rig != nil {
		resp["rig_connected"] = h.services.Rig.Connected()
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Connect to the rig
// @Tags         rig
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/rig/connect [post]
// @Security     BearerAuth
func (h *Handler) connectRig(c *gin.Context) {
	if err := h.services.Rig.Connect(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, errConnect, "rig_connect_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusConnected})
}

// @Summary      Disconnect from the rig
// @Tags         rig
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/rig/disconnect [post]
// @Security     BearerAuth
func (h *Handler) disconnectRig(c *gin.Context) {
	if err := h.services.Rig.Disconnect(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errDisconnect, "rig_disconnect_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusDisconnected})
}

// @Summary      Get rig status
// @Description  Live status while polling, else the last persisted snapshot. refresh=true polls once first.
// @Tags         rig
// @Produce      json
// @Param        refresh  query  bool  false  "Poll STATUS before answering"
// @Success      200  {object}  models.SystemStatus
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/rig/status [get]
// @Security     BearerAuth
func (h *Handler) getStatus(c *gin.Context) {
	ctx := c.Request.Context()
	if c.Query("refresh") == "true" && h.services.Rig.Connected() {
		h.services.Rig.RefreshStatus(ctx)
	}
	st, err := h.services.Monitoring.GetState(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "rig_get_status_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Ping the controller
// @Tags         rig
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/rig/ping [post]
// @Security     BearerAuth
func (h *Handler) ping(c *gin.Context) {
	h.respondCommand(c, "ping", h.services.Rig.Ping(c.Request.Context()), nil)
}

// @Summary      Reset the controller
// @Tags         rig
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/rig/reset [post]
// @Security     BearerAuth
func (h *Handler) reset(c *gin.Context) {
	h.respondCommand(c, "reset", h.services.Rig.Reset(c.Request.Context()), nil)
}

// @Summary      Stop all motion
// @Tags         rig
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/rig/stop [post]
// @Security     BearerAuth
func (h *Handler) stop(c *gin.Context) {
	h.respondCommand(c, "stop", h.services.Rig.Stop(c.Request.Context()), nil)
}

// @Summary      Emergency stop
// @Tags         rig
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/rig/estop [post]
// @Security     BearerAuth
func (h *Handler) emergencyStop(c *gin.Context) {
	h.respondCommand(c, "estop", h.services.Rig.EmergencyStop(c.Request.Context()), nil)
}

// @Summary      Clear the emergency stop
// @Tags         rig
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/rig/reset-estop [post]
// @Security     BearerAuth
func (h *Handler) resetEmergencyStop(c *gin.Context) {
	h.respondCommand(c, "reset-estop", h.services.Rig.ResetEmergencyStop(c.Request.Context()), nil)
}

// @Summary      Home every axis
// @Tags         motion
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/rig/home-all [post]
// @Security     BearerAuth
func (h *Handler) homeAll(c *gin.Context) {
	h.respondCommand(c, "home", h.services.Rig.HomeAll(c.Request.Context()), gin.H{"axis": "ALL"})
}

// @Summary      Home one axis
// @Tags         motion
// @Accept       json
// @Produce      json
// @Param        body  body  HomeRequest  true  "Axis"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/rig/home [post]
// @Security     BearerAuth
func (h *Handler) homeAxis(c *gin.Context) {
	var req HomeRequest
	if !h.bindOrBadRequest(c, &req) {
		return
	}
	axis, err := service.NormalizeHomeAxis(req.Axis)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respondCommand(c, "home", h.services.Rig.HomeAxis(c.Request.Context(), axis), gin.H{"axis": axis})
}

// @Summary      Absolute move
// @Tags         motion
// @Accept       json
// @Produce      json
// @Param        body  body  MoveRequest  true  "Target"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/rig/move [post]
// @Security     BearerAuth
func (h *Handler) move(c *gin.Context) {
	var req MoveRequest
	if !h.bindOrBadRequest(c, &req) {
		return
	}
	ok := h.services.Rig.MoveTo(c.Request.Context(), *req.X, *req.Y, *req.Z, req.Pan, req.Tilt)
	h.respondCommand(c, "move", ok, nil)
}

// @Summary      Relative move
// @Tags         motion
// @Accept       json
// @Produce      json
// @Param        body  body  MoveRelativeRequest  true  "Offsets"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/rig/move-relative [post]
// @Security     BearerAuth
func (h *Handler) moveRelative(c *gin.Context) {
	var req MoveRelativeRequest
	if !h.bindOrBadRequest(c, &req) {
		return
	}
	ok := h.services.Rig.MoveRelative(c.Request.Context(), req.DX, req.DY, req.DZ, req.DPan, req.DTilt)
	h.respondCommand(c, "move-relative", ok, nil)
}

// @Summary      Directional step
// @Description  direction: forward, backward, left, right, look-up, look-down, look-left, look-right
// @Tags         motion
// @Accept       json
// @Produce      json
// @Param        body  body  NudgeRequest  true  "Direction"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/rig/nudge [post]
// @Security     BearerAuth
func (h *Handler) nudge(c *gin.Context) {
	var req NudgeRequest
	if !h.bindOrBadRequest(c, &req) {
		return
	}
	ok, err := h.services.Rig.Nudge(c.Request.Context(), req.Direction, req.Amount)
	if errors.Is(err, service.ErrInvalidDirection) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respondCommand(c, "nudge", ok, gin.H{"direction": req.Direction})
}

// @Summary      Set axis velocities
// @Tags         motion
// @Accept       json
// @Produce      json
// @Param        body  body  VelocityRequest  true  "Velocities"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/rig/velocity [post]
// @Security     BearerAuth
func (h *Handler) setVelocity(c *gin.Context) {
	var req VelocityRequest
	if !h.bindOrBadRequest(c, &req) {
		return
	}
	h.respondCommand(c, "velocity", h.services.Rig.SetVelocity(c.Request.Context(), *req.VX, *req.VY, *req.VZ), nil)
}

// @Summary      Set pan angle
// @Tags         servo
// @Accept       json
// @Produce      json
// @Param        body  body  AngleRequest  true  "Angle"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/rig/pan [post]
// @Security     BearerAuth
func (h *Handler) setPan(c *gin.Context) {
	var req AngleRequest
	if !h.bindOrBadRequest(c, &req) {
		return
	}
	h.respondCommand(c, "pan", h.services.Rig.SetPan(c.Request.Context(), *req.Angle), nil)
}

// @Summary      Set tilt angle
// @Tags         servo
// @Accept       json
// @Produce      json
// @Param        body  body  AngleRequest  true  "Angle"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/rig/tilt [post]
// @Security     BearerAuth
func (h *Handler) setTilt(c *gin.Context) {
	var req AngleRequest
	if !h.bindOrBadRequest(c, &req) {
		return
	}
	h.respondCommand(c, "tilt", h.services.Rig.SetTilt(c.Request.Context(), *req.Angle), nil)
}

// @Summary      Toggle controller debug output
// @Tags         rig
// @Accept       json
// @Produce      json
// @Param        body  body  ToggleRequest  true  "Enabled"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/rig/debug [post]
// @Security     BearerAuth
func (h *Handler) setDebug(c *gin.Context) {
	var req ToggleRequest
	if !h.bindOrBadRequest(c, &req) {
		return
	}
	h.respondCommand(c, "debug", h.services.Rig.SetDebug(c.Request.Context(), *req.Enabled), gin.H{"enabled": *req.Enabled})
}

// @Summary      Take a rangefinder measurement
// @Tags         rangefinder
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "distance_m"
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/rig/measure [post]
// @Security     BearerAuth
func (h *Handler) measure(c *gin.Context) {
	v, ok := h.services.Rig.TakeMeasurement(c.Request.Context())
	if !ok {
		h.respondCommand(c, "measure", false, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "action": "measure", "distance_m": v})
}

// @Summary      Start a rectangular scan
// @Tags         rangefinder
// @Accept       json
// @Produce      json
// @Param        body  body  ScanRequest  true  "Scan area"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/rig/scan [post]
// @Security     BearerAuth
func (h *Handler) scan(c *gin.Context) {
	var req ScanRequest
	if !h.bindOrBadRequest(c, &req) {
		return
	}
	ok := h.services.Rig.StartScan(c.Request.Context(), *req.X1, *req.Y1, *req.X2, *req.Y2, *req.Step)
	h.respondCommand(c, "scan", ok, nil)
}

// @Summary      Start or stop background status polling
// @Tags         rig
// @Accept       json
// @Produce      json
// @Param        body  body  ToggleRequest  true  "Enabled"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/rig/polling [post]
// @Security     BearerAuth
func (h *Handler) setPolling(c *gin.Context) {
	var req ToggleRequest
	if !h.bindOrBadRequest(c, &req) {
		return
	}
	if *req.Enabled {
		h.services.Rig.StartStatusUpdates()
	} else {
		h.services.Rig.StopStatusUpdates()
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "polling": h.services.Rig.Polling()})
}
