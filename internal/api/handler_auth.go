package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type signInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignIn exchanges credentials for a session with the backing store.
func (h *Handler) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	be, err := h.backends.Backend()
	if err != nil {
		h.fail(c, err)
		return
	}
	session, err := be.SignIn(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.auth.Set(session)
	h.logger.Info("signed in", zap.String("user_id", session.UserID))
	c.JSON(http.StatusOK, h.auth.Status())
}

// SignOut ends the session. The local session is dropped even when the
// backing store cannot be reached.
func (h *Handler) SignOut(c *gin.Context) {
	if token, ok := h.auth.Token(); ok {
		if be, err := h.backends.Backend(); err == nil {
			if err := be.SignOut(c.Request.Context(), token); err != nil {
				h.logger.Warn("remote sign-out failed", zap.Error(err))
			}
		}
	}
	h.auth.Clear()
	c.JSON(http.StatusOK, h.auth.Status())
}

// GetSession verifies the session and returns the sign-in indicator.
func (h *Handler) GetSession(c *gin.Context) {
	h.syncer.PollOnce(c.Request.Context())
	c.JSON(http.StatusOK, h.auth.Status())
}
