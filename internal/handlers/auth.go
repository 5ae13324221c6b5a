package handlers

import (
	"errors"
	"net/http"

	"space_maquette/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	tokenTypeBearer = "Bearer"

	errInvalidCredentials = "invalid credentials"
	errRegister           = "failed to register operator"
	errSignIn             = "failed to open session"
	errNoOperator         = "no operator in session"
)

// OperatorCredentials is the sign-up and sign-in payload.
type OperatorCredentials struct {
	Username string `json:"username" binding:"required" example:"bench"`
	Password string `json:"password" binding:"required" example:"s3cr3t"`
}

// SessionInfo describes the operator behind a bearer token and the rig it drives.
type SessionInfo struct {
	OperatorID   int  `json:"operator_id"`
	RigConnected bool `json:"rig_connected"`
	Polling      bool `json:"polling"`
}

// @Summary      Register an operator
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  OperatorCredentials  true  "Credentials"
// @Success      200  {object}  map[string]int
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /auth/sign-up [post]
func (h *Handler) signUp(c *gin.Context) {
	var in OperatorCredentials
	if !h.bindOrBadRequest(c, &in) {
		return
	}

	id, err := h.services.SignUp(in.Username, in.Password)
	switch {
	case errors.Is(err, service.ErrMissingCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, errRegister, "operator_sign_up_failed", err, "username", in.Username)
		return
	}

	if h.log != nil {
		h.log.Infow("operator_registered", "operator_id", id, "username", in.Username)
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// @Summary      Sign in and obtain a bearer token for the rig API
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  OperatorCredentials  true  "Credentials"
// @Success      200  {object}  map[string]string  "token"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /auth/sign-in [post]
func (h *Handler) signIn(c *gin.Context) {
	var in OperatorCredentials
	if !h.bindOrBadRequest(c, &in) {
		return
	}

	token, err := h.services.GenerateToken(in.Username, in.Password)
	switch {
	case errors.Is(err, service.ErrOperatorNotFound), errors.Is(err, service.ErrInvalidPassword):
		if h.log != nil {
			h.log.Infow("operator_sign_in_refused", "username", in.Username, "err", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidCredentials})
		return
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, errSignIn, "operator_sign_in_failed", err, "username", in.Username)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "token_type": tokenTypeBearer})
}

// @Summary      Describe the current operator session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  SessionInfo
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/session [get]
// @Security     BearerAuth
func (h *Handler) getSession(c *gin.Context) {
	id, ok := operatorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errNoOperator})
		return
	}
	c.JSON(http.StatusOK, SessionInfo{
		OperatorID:   id,
		RigConnected: h.services.Rig.Connected(),
		Polling:      h.services.Rig.Polling(),
	})
}

// operatorID returns the id set by operatorIdMiddleware.
func operatorID(c *gin.Context) (int, bool) {
	v, ok := c.Get(operatorCtx)
	if !ok {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}
