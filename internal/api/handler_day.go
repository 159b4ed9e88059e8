package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"axis-blue-backend/internal/tracker"
)

type planTotals struct {
	OnSiteMin int `json:"on_site_min"`
	TravelMin int `json:"travel_min"`
	TotalMin  int `json:"total_min"`
}

type dayResponse struct {
	Status tracker.Status `json:"status"`
	Day    *tracker.Day   `json:"day"`
	Plan   *planTotals    `json:"plan,omitempty"`
}

func (h *Handler) dayResponse() dayResponse {
	resp := dayResponse{Status: h.tracker.Status()}
	if d, ok := h.tracker.Day(); ok {
		onSite, travel, total := tracker.PlanTotals(d)
		resp.Day = &d
		resp.Plan = &planTotals{OnSiteMin: onSite, TravelMin: travel, TotalMin: total}
	}
	return resp
}

// GetDay returns the session status and the current day with its plan totals.
func (h *Handler) GetDay(c *gin.Context) {
	c.JSON(http.StatusOK, h.dayResponse())
}

// StartDay begins a day, or returns the active one unchanged.
func (h *Handler) StartDay(c *gin.Context) {
	var req tracker.DayConfig
	if !bind(c, &req) {
		return
	}
	_, created, err := h.tracker.StartDay(req)
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, h.dayResponse())
}

// EndDay closes the active day.
func (h *Handler) EndDay(c *gin.Context) {
	if _, err := h.tracker.EndDay(); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.dayResponse())
}

// GetCatalog lists the built-in stores.
func (h *Handler) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, tracker.Catalog())
}

// AddStore appends a user-entered store to the plan.
func (h *Handler) AddStore(c *gin.Context) {
	var req tracker.StoreFields
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	s, err := h.tracker.AddStore(req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

type catalogStoreRequest struct {
	EstMinutes int `json:"est_min"`
}

// AddCatalogStore appends a catalog store to the plan.
func (h *Handler) AddCatalogStore(c *gin.Context) {
	var req catalogStoreRequest
	if !bind(c, &req) {
		return
	}
	s, err := h.tracker.AddCatalogStore(c.Param("id"), req.EstMinutes)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

type moveStoreRequest struct {
	Direction string `json:"direction" binding:"required,oneof=up down"`
}

// MoveStore swaps a planned store with its neighbour.
func (h *Handler) MoveStore(c *gin.Context) {
	var req moveStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be up or down"})
		return
	}
	dir := tracker.Up
	if req.Direction == "down" {
		dir = tracker.Down
	}
	if err := h.tracker.ReorderStore(c.Param("id"), dir); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.dayResponse())
}

// RemoveStore drops a store from the plan.
func (h *Handler) RemoveStore(c *gin.Context) {
	if err := h.tracker.RemoveStore(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
