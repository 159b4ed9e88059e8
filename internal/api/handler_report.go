package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) text(c *gin.Context, render func() (string, error)) {
	text, err := render()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.String(http.StatusOK, text)
}

// MorningRundown renders the rundown for the current day.
func (h *Handler) MorningRundown(c *gin.Context) {
	h.text(c, h.tracker.MorningRundown)
}

// EndOfDaySummary renders the end-of-day summary.
func (h *Handler) EndOfDaySummary(c *gin.Context) {
	h.text(c, h.tracker.EndOfDaySummary)
}

// Handoff renders the mid-day handoff.
func (h *Handler) Handoff(c *gin.Context) {
	h.text(c, h.tracker.Handoff)
}

// VisitReport renders the report for one visit.
func (h *Handler) VisitReport(c *gin.Context) {
	id := visitParam(c)
	if id == "" {
		if open, ok := h.tracker.OpenVisit(); ok {
			id = open.ID
		}
	}
	h.text(c, func() (string, error) { return h.tracker.VisitReport(id) })
}

// ReportHistory lists recently rendered reports, newest first.
func (h *Handler) ReportHistory(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracker.Reports())
}

// Export downloads the raw session document.
func (h *Handler) Export(c *gin.Context) {
	data, err := h.tracker.Export()
	if err != nil {
		h.fail(c, err)
		return
	}
	name := "axis-blue-session.json"
	if st := h.tracker.Status(); st.Date != "" {
		name = fmt.Sprintf("axis-blue-%s.json", st.Date)
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "application/json", data)
}

// Import replaces the session with an exported document.
func (h *Handler) Import(c *gin.Context) {
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "document too large"})
		return
	}
	if err := h.tracker.Restore(data); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.dayResponse())
}
