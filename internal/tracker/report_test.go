package tracker

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanTotals(t *testing.T) {
	testCases := []struct {
		name           string
		estimates      []int
		buffer         int
		expectedOnSite int
		expectedTravel int
		expectedTotal  int
	}{
		{name: "No stores", buffer: 15},
		{name: "One store has no travel", estimates: []int{40}, buffer: 15, expectedOnSite: 40, expectedTotal: 40},
		{name: "Two stores", estimates: []int{30, 20}, buffer: 15, expectedOnSite: 50, expectedTravel: 15, expectedTotal: 65},
		{name: "Four stores", estimates: []int{35, 35, 35, 35}, buffer: 10, expectedOnSite: 140, expectedTravel: 30, expectedTotal: 170},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := Day{TravelBufferMin: tc.buffer}
			for _, m := range tc.estimates {
				d.Stores = append(d.Stores, Store{EstMinutes: m})
			}
			onSite, travel, total := PlanTotals(d)
			assert.Equal(t, tc.expectedOnSite, onSite)
			assert.Equal(t, tc.expectedTravel, travel)
			assert.Equal(t, tc.expectedTotal, total)
		})
	}
}

func TestRenderMorningRundown(t *testing.T) {
	d := Day{
		Date:            "2025-06-02",
		Merchandiser:    "Sam",
		TravelBufferMin: 15,
		StartedAt:       time.Date(2025, 6, 2, 13, 0, 0, 0, time.UTC),
		Attestations:    DefaultAttestations(),
		Stores: []Store{
			{ID: "A", Name: "Store A", EstMinutes: 30},
			{ID: "B", Name: "Store B", EstMinutes: 20},
		},
		GeoStart: &Geo{OK: true, Lat: 39.7, Lon: -104.8, AccuracyM: 9},
	}

	text := RenderMorningRundown(d)
	assert.Contains(t, text, "1. Store A")
	assert.Contains(t, text, "2. Store B")
	assert.Contains(t, text, "- Total: 65 min")
	assert.Contains(t, text, "- Travel: 15 min (1 leg x 15 min)")
	assert.Contains(t, text, "Day GPS: 39.700000, -104.800000 (±9m)")
	assert.Contains(t, text, "- Safety shoes: NO")
	assert.Contains(t, text, "Route: (none)")
	assert.Less(t, strings.Index(text, "Store A"), strings.Index(text, "Store B"))

	// Pure: same input, same output.
	assert.Equal(t, text, RenderMorningRundown(d))
}

func TestRenderMorningRundown_Empty(t *testing.T) {
	text := RenderMorningRundown(Day{Date: "2025-06-02", TravelBufferMin: 15})
	assert.Contains(t, text, "Planned Stores:\n(none)")
	assert.Contains(t, text, "- Total: 0 min")
	assert.Contains(t, text, "Day GPS: n/a")
}

func TestRenderVisitReport(t *testing.T) {
	start := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	v := Visit{
		ID:        "v1",
		StoreID:   "WM1492",
		StoreName: "Walmart 1492",
		StartedAt: start,
		Equipment: Equipment{Checks: map[string]bool{"ladder": true, "cart": false}},
		Urgent:    []UrgentIssue{{At: start, Severity: SeverityHigh, Note: "freezer down"}},
		Captures:  []Capture{{Category: "Shelf", Status: StatusQueued, CreatedAt: start}},
		GeoIn:     &Geo{OK: false, Err: "permission denied"},
	}

	text := RenderVisitReport(v)
	assert.Contains(t, text, "End: IN PROGRESS")
	assert.Contains(t, text, "Check-in GPS: ERR (permission denied)")
	assert.Contains(t, text, "Check-out GPS: n/a")
	assert.Contains(t, text, "- [High] freezer down")
	assert.Contains(t, text, "- [Shelf] no note")
	assert.Contains(t, text, "Scans:\n(none)")
	assert.Less(t, strings.Index(text, "- cart: NO"), strings.Index(text, "- ladder: YES"))

	end := start.Add(40 * time.Minute)
	v.EndedAt = &end
	assert.Contains(t, RenderVisitReport(v), "End: 2025-06-02T14:40:00Z")
}

func TestRenderEndOfDaySummary(t *testing.T) {
	start := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	d := Day{
		Date:   "2025-06-02",
		Stores: []Store{{ID: "A", Name: "Store A"}, {ID: "B", Name: "Store B"}},
	}
	visits := []Visit{{
		StoreID:   "A",
		StoreName: "Store A",
		StartedAt: start,
		EndedAt:   &end,
		Scans:     []Scan{{Value: "1"}, {Value: "2"}},
	}}

	text := RenderEndOfDaySummary(d, visits, 3)
	assert.Contains(t, text, "Visits Completed: 1 of 2 planned")
	assert.Contains(t, text, "Stores Not Visited:\n- Store B")
	assert.Contains(t, text, "- Scans: 2")
	assert.Contains(t, text, "- Pending sync: 3")
	assert.Contains(t, text, "Day End: IN PROGRESS")
}

func TestRenderHandoff(t *testing.T) {
	start := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	d := Day{
		Date:   "2025-06-02",
		Stores: []Store{{ID: "A", Name: "Store A"}, {ID: "B", Name: "Store B", EstMinutes: 25}},
	}
	visits := []Visit{{
		StoreID:   "A",
		StoreName: "Store A",
		StartedAt: start,
		Urgent:    []UrgentIssue{{At: start, Severity: SeverityMed, Note: "wet floor"}},
	}}
	memory := map[string]string{"Store B": "back door code 4411", "Elsewhere": "ignored"}

	text := RenderHandoff(d, visits, memory)
	assert.Contains(t, text, "Current Visit: Store A since 2025-06-02T14:00:00Z")
	assert.Contains(t, text, "1. Store B • n/a • Est: 25 min")
	assert.Contains(t, text, "- [Med] Store A: wet floor")
	assert.Contains(t, text, "- Store B: back door code 4411")
	assert.NotContains(t, text, "Elsewhere")
}

func TestTracker_ReportHistoryCap(t *testing.T) {
	tr := newTestTracker(t, nil)
	tr.opts.MaxReports = 3
	startDay(t, tr)

	for i := 0; i < 5; i++ {
		_, err := tr.MorningRundown()
		require.NoError(t, err)
	}
	_, err := tr.Handoff()
	require.NoError(t, err)

	reports := tr.Reports()
	require.Len(t, reports, 3)
	assert.Equal(t, ReportHandoff, reports[0].Kind)
	assert.Equal(t, ReportMorning, reports[1].Kind)
}
