package tracker

import (
	"fmt"

	"go.uber.org/zap"

	"axis-blue-backend/internal/localstate"
)

// recordReportLocked prepends a rendered report, keeping the newest entries.
func (t *Tracker) recordReportLocked(kind, store, text string) {
	entry := ReportEntry{Kind: kind, At: t.now(), Store: store, Text: text}
	t.reports = append([]ReportEntry{entry}, t.reports...)
	if len(t.reports) > t.opts.MaxReports {
		t.reports = t.reports[:t.opts.MaxReports]
	}
	if err := t.storage.Save(localstate.KeyReports, t.reports); err != nil {
		t.logger.Error("failed to persist report history", zap.Error(err))
	}
}

// Reports returns the recent report history, newest first.
func (t *Tracker) Reports() []ReportEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]ReportEntry{}, t.reports...)
}

// MorningRundown renders the rundown for the current day and records it.
func (t *Tracker) MorningRundown() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Day == nil {
		return "", badState("morning rundown", "day not started")
	}
	text := RenderMorningRundown(*t.state.Day)
	t.recordReportLocked(ReportMorning, "", text)
	return text, nil
}

// VisitReport renders the End-of-Visit report for any visit of the day.
func (t *Tracker) VisitReport(visitID string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := t.visitLocked(visitID)
	if v == nil {
		return "", badState("visit report", fmt.Sprintf("visit %q not found", visitID))
	}
	return RenderVisitReport(*v), nil
}

// EndOfDaySummary renders the day summary, including the pending queue size.
func (t *Tracker) EndOfDaySummary() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Day == nil {
		return "", badState("end of day summary", "day not started")
	}
	return RenderEndOfDaySummary(*t.state.Day, t.state.History, len(t.state.Queue)), nil
}

// Handoff renders the relief handoff and records it.
func (t *Tracker) Handoff() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Day == nil {
		return "", badState("handoff", "day not started")
	}
	text := RenderHandoff(*t.state.Day, t.state.History, t.memory)
	t.recordReportLocked(ReportHandoff, "", text)
	return text, nil
}
