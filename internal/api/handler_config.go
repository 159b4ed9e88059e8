package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health reports liveness and the local session position.
func (h *Handler) Health(c *gin.Context) {
	st := h.tracker.Status()
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
		"phase":  st.Phase,
		"queued": st.Queued,
		"auth":   h.auth.Status().State,
	})
}

// Env reports which backing store settings are present, never their values.
func (h *Handler) Env(c *gin.Context) {
	c.JSON(http.StatusOK, h.backends.Env())
}

type configRequest struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// PutConfig stores the backing store address locally.
func (h *Handler) PutConfig(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := h.backends.Configure(req.URL, req.Key); err != nil {
		h.fail(c, err)
		return
	}
	h.syncer.PollOnce(c.Request.Context())
	c.JSON(http.StatusOK, h.backends.Env())
}

// DeleteConfig removes the locally stored address.
func (h *Handler) DeleteConfig(c *gin.Context) {
	if err := h.backends.Clear(); err != nil {
		h.fail(c, err)
		return
	}
	h.syncer.PollOnce(c.Request.Context())
	c.JSON(http.StatusOK, h.backends.Env())
}
