package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListMemory returns every store note keyed by store name.
func (h *Handler) ListMemory(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracker.StoreMemories())
}

// GetMemory returns the note for one store name.
func (h *Handler) GetMemory(c *gin.Context) {
	name := c.Param("name")
	note, ok := h.tracker.StoreMemory(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no memory for store"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "note": note})
}

type memoryRequest struct {
	Note string `json:"note"`
}

// PutMemory stores or, with a blank note, clears a store note.
func (h *Handler) PutMemory(c *gin.Context) {
	var req memoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := h.tracker.SetStoreMemory(c.Param("name"), req.Note); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
