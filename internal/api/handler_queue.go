package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"

	"axis-blue-backend/internal/backend"
	"axis-blue-backend/internal/syncer"
)

// GetQueue lists pending synchronization items.
func (h *Handler) GetQueue(c *gin.Context) {
	items := h.tracker.Pending()
	c.JSON(http.StatusOK, gin.H{"count": len(items), "items": items})
}

// DrainQueue pushes due items now. Items that fail stay queued.
func (h *Handler) DrainQueue(c *gin.Context) {
	res, err := h.syncer.DrainOnce(c.Request.Context())
	if err == nil {
		c.JSON(http.StatusOK, res)
		return
	}
	if backend.IsConfig(err) || errors.Is(err, syncer.ErrSignedOut) {
		h.fail(c, err)
		return
	}

	errs := multierr.Errors(err)
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	c.JSON(http.StatusBadGateway, gin.H{
		"error":     "sync incomplete",
		"attempted": res.Attempted,
		"synced":    res.Synced,
		"failed":    res.Failed,
		"errors":    msgs,
	})
}
