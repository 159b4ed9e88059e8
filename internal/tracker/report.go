package tracker

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const none = "(none)"

// The renderers below are pure: output depends only on their arguments.

// PlanTotals returns on-site minutes, travel minutes and their sum for a
// day's plan. Travel counts one buffer per leg between consecutive stops.
func PlanTotals(d Day) (onSite, travel, total int) {
	for _, s := range d.Stores {
		onSite += s.EstMinutes
	}
	if legs := len(d.Stores) - 1; legs > 0 {
		travel = legs * d.TravelBufferMin
	}
	return onSite, travel, onSite + travel
}

// RenderMorningRundown renders the morning plan for management.
func RenderMorningRundown(d Day) string {
	var b lines
	b.add("AXIS BLUE • MORNING RUNDOWN")
	b.addf("Date: %s", d.Date)
	b.addf("Merchandiser: %s", orNone(d.Merchandiser))
	b.addf("Route: %s", orNone(d.Route))
	b.addf("Day Start: %s", fmtTime(d.StartedAt))
	b.addf("Day GPS: %s", fmtGeo(d.GeoStart))
	b.blank()

	b.add("Attestations:")
	if len(d.Attestations) == 0 {
		b.add(none)
	}
	for _, a := range d.Attestations {
		b.addf("- %s: %s", a.Label, yesNo(a.Checked))
	}
	b.blank()

	b.add("Planned Stores:")
	if len(d.Stores) == 0 {
		b.add(none)
	}
	for i, s := range d.Stores {
		b.addf("%d. %s • %s", i+1, s.Name, orNA(s.Address))
		b.addf("   Est: %d min • Delivery: %s • Reason: %s", s.EstMinutes, orNA(s.DeliveryHint), orNA(s.Reason))
		if s.Lat != nil && s.Lon != nil {
			b.addf("   Store GPS: %.6f, %.6f", *s.Lat, *s.Lon)
		}
	}
	b.blank()

	b.add("Notes / priorities:")
	b.add(orNone(d.Notes))
	b.blank()

	onSite, travel, total := PlanTotals(d)
	legs := len(d.Stores) - 1
	if legs < 0 {
		legs = 0
	}
	b.add("Time Estimate:")
	b.addf("- On-site: %d min", onSite)
	b.addf("- Travel: %d min (%d %s x %d min)", travel, legs, plural(legs, "leg", "legs"), d.TravelBufferMin)
	b.addf("- Total: %d min", total)
	return b.String()
}

// RenderVisitReport renders the End-of-Visit report.
func RenderVisitReport(v Visit) string {
	var b lines
	b.add("AXIS BLUE • END OF VISIT REPORT (EOV)")
	b.addf("Store: %s (%s)", v.StoreName, v.StoreID)
	b.addf("Visit ID: %s", v.ID)
	b.addf("Start: %s", fmtTime(v.StartedAt))
	b.addf("End: %s", fmtEnd(v.EndedAt))
	b.addf("Check-in GPS: %s", fmtGeo(v.GeoIn))
	b.addf("Check-out GPS: %s", fmtGeo(v.GeoOut))
	b.blank()

	b.add("Notes:")
	b.add(orNone(v.Notes))
	b.blank()
	b.add("Concerns:")
	b.add(orNone(v.Concerns))
	b.blank()

	b.add("Equipment:")
	keys := make([]string, 0, len(v.Equipment.Checks))
	for k := range v.Equipment.Checks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		b.add(none)
	}
	for _, k := range keys {
		b.addf("- %s: %s", k, yesNo(v.Equipment.Checks[k]))
	}
	b.addf("- Other: %s", orNA(v.Equipment.Other))
	b.blank()

	b.add("Urgent Issues:")
	if len(v.Urgent) == 0 {
		b.add(none)
	}
	for _, u := range v.Urgent {
		b.addf("- [%s] %s (%s)", u.Severity, u.Note, fmtTime(u.At))
	}
	b.blank()

	b.add("Scans:")
	if len(v.Scans) == 0 {
		b.add(none)
	}
	for _, s := range v.Scans {
		b.addf("- [%s] %s (%s) %s", s.Type, s.Value, fmtTime(s.CreatedAt), s.Status)
	}
	b.blank()

	b.add("Captures:")
	if len(v.Captures) == 0 {
		b.add(none)
	}
	for _, c := range v.Captures {
		comment := c.Comment
		if comment == "" {
			comment = "no note"
		}
		b.addf("- [%s] %s (%s) %s", c.Category, comment, fmtTime(c.CreatedAt), c.Status)
	}
	return b.String()
}

// RenderEndOfDaySummary renders the End-of-Day summary for a day and its
// visits; pending is the number of items still awaiting sync.
func RenderEndOfDaySummary(d Day, visits []Visit, pending int) string {
	var b lines
	b.add("AXIS BLUE • END OF DAY SUMMARY (EOD)")
	b.addf("Date: %s", d.Date)
	b.addf("Merchandiser: %s", orNone(d.Merchandiser))
	b.addf("Day Start: %s", fmtTime(d.StartedAt))
	b.addf("Day End: %s", fmtEnd(d.EndedAt))
	b.addf("Day Start GPS: %s", fmtGeo(d.GeoStart))
	b.blank()

	completed := 0
	for _, v := range visits {
		if !v.Open() {
			completed++
		}
	}
	b.addf("Visits Completed: %d of %d planned", completed, len(d.Stores))
	if len(visits) == 0 {
		b.add(none)
	}
	captures, scans, urgent := 0, 0, 0
	for i, v := range visits {
		b.addf("%d. %s • %s → %s", i+1, v.StoreName, fmtTime(v.StartedAt), fmtEnd(v.EndedAt))
		captures += len(v.Captures)
		scans += len(v.Scans)
		urgent += len(v.Urgent)
	}
	b.blank()

	b.add("Stores Not Visited:")
	remaining := unvisited(d, visits)
	if len(remaining) == 0 {
		b.add(none)
	}
	for _, s := range remaining {
		b.addf("- %s", s.Name)
	}
	b.blank()

	b.add("Totals:")
	b.addf("- Captures: %d", captures)
	b.addf("- Scans: %d", scans)
	b.addf("- Urgent issues: %d", urgent)
	b.addf("- Pending sync: %d", pending)
	return b.String()
}

// RenderHandoff renders the relief handoff: what is left, what is urgent and
// what the relief should remember about each remaining store.
func RenderHandoff(d Day, visits []Visit, memory map[string]string) string {
	var b lines
	b.add("AXIS BLUE • RELIEF HANDOFF")
	b.addf("Date: %s", d.Date)
	b.addf("Merchandiser: %s", orNone(d.Merchandiser))
	b.addf("Route: %s", orNone(d.Route))

	current := none
	for _, v := range visits {
		if v.Open() {
			current = fmt.Sprintf("%s since %s", v.StoreName, fmtTime(v.StartedAt))
		}
	}
	b.addf("Current Visit: %s", current)
	b.blank()

	b.add("Remaining Stores:")
	remaining := unvisited(d, visits)
	if len(remaining) == 0 {
		b.add(none)
	}
	for i, s := range remaining {
		b.addf("%d. %s • %s • Est: %d min", i+1, s.Name, orNA(s.Address), s.EstMinutes)
	}
	b.blank()

	b.add("Urgent Issues Today:")
	count := 0
	for _, v := range visits {
		for _, u := range v.Urgent {
			b.addf("- [%s] %s: %s (%s)", u.Severity, v.StoreName, u.Note, fmtTime(u.At))
			count++
		}
	}
	if count == 0 {
		b.add(none)
	}
	b.blank()

	b.add("Store Memory:")
	count = 0
	for _, s := range d.Stores {
		if note, ok := memory[s.Name]; ok && note != "" {
			b.addf("- %s: %s", s.Name, note)
			count++
		}
	}
	if count == 0 {
		b.add(none)
	}
	b.blank()

	b.add("Notes / priorities:")
	b.add(orNone(d.Notes))
	return b.String()
}

// unvisited returns planned stores with no visit yet, in plan order.
func unvisited(d Day, visits []Visit) []Store {
	seen := make(map[string]bool, len(visits))
	for _, v := range visits {
		seen[v.StoreID] = true
	}
	var out []Store
	for _, s := range d.Stores {
		if !seen[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

type lines struct {
	buf []string
}

func (l *lines) add(s string) { l.buf = append(l.buf, s) }

func (l *lines) addf(format string, args ...any) { l.add(fmt.Sprintf(format, args...)) }

func (l *lines) blank() { l.add("") }

func (l *lines) String() string { return strings.Join(l.buf, "\n") }

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "n/a"
	}
	return t.UTC().Format(time.RFC3339)
}

func fmtEnd(t *time.Time) string {
	if t == nil {
		return "IN PROGRESS"
	}
	return fmtTime(*t)
}

func fmtGeo(g *Geo) string {
	if g == nil {
		return "n/a"
	}
	if !g.OK {
		if g.Err != "" {
			return fmt.Sprintf("ERR (%s)", g.Err)
		}
		return "n/a"
	}
	return fmt.Sprintf("%.6f, %.6f (±%dm)", g.Lat, g.Lon, g.AccuracyM)
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return none
	}
	return s
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "n/a"
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
