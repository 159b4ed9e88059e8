package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"axis-blue-backend/internal/tracker"
)

// ListVisits returns the day's visits in start order.
func (h *Handler) ListVisits(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracker.Visits())
}

// GetVisit returns one visit; "current" names the open visit.
func (h *Handler) GetVisit(c *gin.Context) {
	var (
		v  tracker.Visit
		ok bool
	)
	if id := visitParam(c); id == "" {
		v, ok = h.tracker.OpenVisit()
	} else {
		v, ok = h.tracker.Visit(id)
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "visit not found"})
		return
	}
	c.JSON(http.StatusOK, v)
}

type startVisitRequest struct {
	StoreID string       `json:"store_id" binding:"required"`
	Geo     *tracker.Geo `json:"geo"`
}

// StartVisit opens a visit at a planned store.
func (h *Handler) StartVisit(c *gin.Context) {
	var req startVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "store_id is required"})
		return
	}
	v, err := h.tracker.StartVisit(req.StoreID, req.Geo)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

type geoRequest struct {
	Geo *tracker.Geo `json:"geo"`
}

// EndVisit closes the open visit. A visit id other than "current" must name
// that visit.
func (h *Handler) EndVisit(c *gin.Context) {
	var req geoRequest
	if !bind(c, &req) {
		return
	}
	if id := visitParam(c); id != "" {
		if _, err := h.tracker.RequireOpen(id); err != nil {
			h.fail(c, err)
			return
		}
	}
	v, err := h.tracker.EndVisit(req.Geo)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// SaveVisit edits notes, concerns and the equipment checklist.
func (h *Handler) SaveVisit(c *gin.Context) {
	var req tracker.VisitUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	id := visitParam(c)
	if id == "" {
		open, ok := h.tracker.OpenVisit()
		if !ok {
			c.JSON(http.StatusConflict, gin.H{"error": "save visit: no open visit"})
			return
		}
		id = open.ID
	}
	v, err := h.tracker.SaveVisit(id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type urgentRequest struct {
	Note     string `json:"note"`
	Severity string `json:"severity"`
}

// FlagUrgent records an urgent issue on an open visit.
func (h *Handler) FlagUrgent(c *gin.Context) {
	var req urgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	sev, ok := tracker.ParseSeverity(req.Severity)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "severity must be Low, Med or High", "field": "severity"})
		return
	}
	issue, err := h.tracker.FlagUrgent(visitParam(c), req.Note, sev)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, issue)
}

type scanRequest struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// AddScan records a code value on an open visit.
func (h *Handler) AddScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	s, err := h.tracker.AddScan(visitParam(c), req.Type, req.Value)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}
