package tracker

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"axis-blue-backend/internal/localstate"
)

// testClock advances one minute per reading so timestamps are ordered.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.now = c.now.Add(time.Minute)
	return c.now
}

func newTestTracker(t *testing.T, storage Storage) *Tracker {
	t.Helper()
	if storage == nil {
		fs, err := localstate.NewFileStore(t.TempDir())
		require.NoError(t, err)
		storage = fs
	}
	clock := &testClock{now: time.Date(2025, 6, 2, 13, 0, 0, 0, time.UTC)}
	seq := 0
	tr, err := New(storage, zaptest.NewLogger(t), Options{
		Now: clock.Now,
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%03d", seq)
		},
	})
	require.NoError(t, err)
	return tr
}

func startDay(t *testing.T, tr *Tracker) Day {
	t.Helper()
	d, created, err := tr.StartDay(DayConfig{Date: "2025-06-02", Merchandiser: "Sam"})
	require.NoError(t, err)
	require.True(t, created)
	return d
}

func isStateErr(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

func isValidationErr(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func TestTracker_Lifecycle(t *testing.T) {
	tr := newTestTracker(t, nil)
	assert.Equal(t, DayNotStarted, tr.Status().Phase)

	day := startDay(t, tr)
	assert.Equal(t, DayActive, tr.Status().Phase)
	assert.Equal(t, DefaultAttestations(), day.Attestations)
	assert.Equal(t, 15, day.TravelBufferMin)

	s, err := tr.AddCatalogStore("WM1492", 30)
	require.NoError(t, err)

	v, err := tr.StartVisit(s.ID, &Geo{OK: true, Lat: 39.7, Lon: -104.8, AccuracyM: 12})
	require.NoError(t, err)
	assert.True(t, v.Open())
	assert.Equal(t, v.ID, tr.Status().OpenVisitID)

	c, err := tr.AddCapture("", "photos/a.jpg", "", strings.Repeat("x", 200))
	require.NoError(t, err)
	assert.Equal(t, "General", c.Category)
	assert.Len(t, c.Comment, 120)
	assert.Equal(t, StatusQueued, c.Status)

	sc, err := tr.AddScan(v.ID, "", "0 12345 67890 5")
	require.NoError(t, err)
	assert.Equal(t, "OOS", sc.Type)
	assert.Equal(t, "012345678905", sc.Value)

	ended, err := tr.EndVisit(&Geo{OK: false, Err: "timeout"})
	require.NoError(t, err)
	require.NotNil(t, ended.EndedAt)
	assert.False(t, ended.Open())
	assert.Empty(t, tr.Status().OpenVisitID)

	d, err := tr.EndDay()
	require.NoError(t, err)
	require.NotNil(t, d.EndedAt)
	assert.Equal(t, DayEnded, tr.Status().Phase)

	reports := tr.Reports()
	require.Len(t, reports, 2)
	assert.Equal(t, ReportEndDay, reports[0].Kind)
	assert.Equal(t, ReportVisit, reports[1].Kind)
	assert.Equal(t, "Walmart 1492", reports[1].Store)
}

func TestTracker_StartDayIsIdempotent(t *testing.T) {
	tr := newTestTracker(t, nil)
	first := startDay(t, tr)

	again, created, err := tr.StartDay(DayConfig{Date: "2025-06-03"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "2025-06-02", again.Date)
}

func TestTracker_StartDayAfterEnd(t *testing.T) {
	tr := newTestTracker(t, nil)
	startDay(t, tr)
	_, err := tr.EndDay()
	require.NoError(t, err)

	_, _, err = tr.StartDay(DayConfig{Date: "2025-06-02"})
	assert.True(t, isStateErr(err))

	next, created, err := tr.StartDay(DayConfig{Date: "2025-06-03"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "2025-06-03", next.Date)
	assert.Empty(t, tr.Visits())
}

func TestTracker_StartDayInvalidDate(t *testing.T) {
	tr := newTestTracker(t, nil)
	_, _, err := tr.StartDay(DayConfig{Date: "06/02/2025"})
	assert.True(t, isValidationErr(err))
}

func TestTracker_StateErrors(t *testing.T) {
	tr := newTestTracker(t, nil)

	testCases := []struct {
		name string
		call func() error
	}{
		{name: "add store without day", call: func() error { _, err := tr.AddStore(StoreFields{Name: "Store A"}); return err }},
		{name: "start visit without day", call: func() error { _, err := tr.StartVisit("WM1492", nil); return err }},
		{name: "end visit without visit", call: func() error { _, err := tr.EndVisit(nil); return err }},
		{name: "capture without visit", call: func() error { _, err := tr.AddCapture("", "f.jpg", "", ""); return err }},
		{name: "scan without visit", call: func() error { _, err := tr.AddScan("", "", "123"); return err }},
		{name: "urgent without visit", call: func() error { _, err := tr.FlagUrgent("", "spill", ""); return err }},
		{name: "end day without day", call: func() error { _, err := tr.EndDay(); return err }},
		{name: "rundown without day", call: func() error { _, err := tr.MorningRundown(); return err }},
		{name: "handoff without day", call: func() error { _, err := tr.Handoff(); return err }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			assert.Error(t, err)
			assert.True(t, isStateErr(err), "expected StateError, got %T", err)
		})
	}
}

func TestTracker_AddStoreValidation(t *testing.T) {
	tr := newTestTracker(t, nil)

	// Validation runs before the lifecycle check.
	_, err := tr.AddStore(StoreFields{Name: "  "})
	assert.True(t, isValidationErr(err))

	startDay(t, tr)
	_, err = tr.AddStore(StoreFields{Name: ""})
	assert.True(t, isValidationErr(err))

	_, err = tr.AddCatalogStore("NOPE1", 0)
	assert.True(t, isValidationErr(err))

	_, err = tr.AddCatalogStore("KS00014", 0)
	require.NoError(t, err)
	_, err = tr.AddCatalogStore("KS00014", 0)
	assert.True(t, isValidationErr(err))
}

func TestTracker_AddStoreIDs(t *testing.T) {
	tr := newTestTracker(t, nil)
	startDay(t, tr)

	a, err := tr.AddStore(StoreFields{Name: "Walmart 1492", EstMinutes: 30})
	require.NoError(t, err)
	b, err := tr.AddStore(StoreFields{Name: "Corner Market"})
	require.NoError(t, err)

	assert.Equal(t, "WA1492", a.ID)
	assert.Equal(t, 30, a.EstMinutes)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, 35, b.EstMinutes)

	_, err = tr.AddStore(StoreFields{Name: "Walmart #1492"})
	assert.True(t, isValidationErr(err))
	d, _ := tr.Day()
	assert.Len(t, d.Stores, 2)
}

func TestTracker_StorePlanOrdering(t *testing.T) {
	tr := newTestTracker(t, nil)
	startDay(t, tr)

	for _, id := range []string{"WM1492", "KS00014", "FD3477"} {
		_, err := tr.AddCatalogStore(id, 0)
		require.NoError(t, err)
	}
	ids := func() []string {
		d, _ := tr.Day()
		var out []string
		for _, s := range d.Stores {
			out = append(out, s.ID)
		}
		return out
	}

	testCases := []struct {
		name     string
		id       string
		dir      Direction
		expected []string
	}{
		{name: "first up is a no-op", id: "WM1492", dir: Up, expected: []string{"WM1492", "KS00014", "FD3477"}},
		{name: "last down is a no-op", id: "FD3477", dir: Down, expected: []string{"WM1492", "KS00014", "FD3477"}},
		{name: "unknown is a no-op", id: "XX1", dir: Down, expected: []string{"WM1492", "KS00014", "FD3477"}},
		{name: "middle up", id: "KS00014", dir: Up, expected: []string{"KS00014", "WM1492", "FD3477"}},
		{name: "first down", id: "KS00014", dir: Down, expected: []string{"WM1492", "KS00014", "FD3477"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, tr.ReorderStore(tc.id, tc.dir))
			assert.Equal(t, tc.expected, ids())
		})
	}

	assert.True(t, isValidationErr(tr.ReorderStore("WM1492", Direction(3))))

	require.NoError(t, tr.RemoveStore("KS00014"))
	require.NoError(t, tr.RemoveStore("KS00014"))
	assert.Equal(t, []string{"WM1492", "FD3477"}, ids())
}

func TestTracker_SingleOpenVisit(t *testing.T) {
	tr := newTestTracker(t, nil)
	startDay(t, tr)
	_, err := tr.AddCatalogStore("WM1492", 0)
	require.NoError(t, err)
	_, err = tr.AddCatalogStore("TG1471", 0)
	require.NoError(t, err)

	_, err = tr.StartVisit("NOTPLANNED", nil)
	assert.True(t, isStateErr(err))

	first, err := tr.StartVisit("WM1492", nil)
	require.NoError(t, err)
	_, err = tr.StartVisit("TG1471", nil)
	assert.True(t, isStateErr(err))

	_, err = tr.EndVisit(nil)
	require.NoError(t, err)

	_, err = tr.AddCapture(first.ID, "f.jpg", "Shelf", "")
	assert.True(t, isStateErr(err), "closed visit must reject captures")

	// Closed visits stay editable.
	notes := "restocked aisle 4"
	saved, err := tr.SaveVisit(first.ID, VisitUpdate{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, saved.Notes)

	_, err = tr.StartVisit("TG1471", nil)
	require.NoError(t, err)
	assert.Len(t, tr.Visits(), 2)
}

func TestTracker_EndDayClosesOpenVisit(t *testing.T) {
	tr := newTestTracker(t, nil)
	startDay(t, tr)
	_, err := tr.AddCatalogStore("FD3477", 0)
	require.NoError(t, err)
	v, err := tr.StartVisit("FD3477", nil)
	require.NoError(t, err)

	d, err := tr.EndDay()
	require.NoError(t, err)

	got, ok := tr.Visit(v.ID)
	require.True(t, ok)
	require.NotNil(t, got.EndedAt)
	assert.True(t, got.EndedAt.Equal(*d.EndedAt))

	_, err = tr.StartVisit("FD3477", nil)
	assert.True(t, isStateErr(err))
}

func TestTracker_FlagUrgent(t *testing.T) {
	var alerts []UrgentIssue
	fs, err := localstate.NewFileStore(t.TempDir())
	require.NoError(t, err)
	tr, err := New(fs, zaptest.NewLogger(t), Options{
		OnUrgent: func(_ Visit, u UrgentIssue) { alerts = append(alerts, u) },
	})
	require.NoError(t, err)
	startDay(t, tr)
	_, err = tr.AddCatalogStore("WM1492", 0)
	require.NoError(t, err)
	_, err = tr.StartVisit("WM1492", nil)
	require.NoError(t, err)

	_, err = tr.FlagUrgent("", "  ", "")
	assert.True(t, isValidationErr(err))
	_, err = tr.FlagUrgent("", "broken freezer", "Critical")
	assert.True(t, isValidationErr(err))

	issue, err := tr.FlagUrgent("", "broken freezer", "")
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, issue.Severity)

	_, err = tr.FlagUrgent("", "price tags missing", SeverityLow)
	require.NoError(t, err)

	open, ok := tr.OpenVisit()
	require.True(t, ok)
	assert.Len(t, open.Urgent, 2)
	require.Len(t, alerts, 1)
	assert.Equal(t, "broken freezer", alerts[0].Note)
}

func TestTracker_AddScanValidation(t *testing.T) {
	tr := newTestTracker(t, nil)
	startDay(t, tr)
	_, err := tr.AddCatalogStore("WM1492", 0)
	require.NoError(t, err)
	_, err = tr.StartVisit("WM1492", nil)
	require.NoError(t, err)

	_, err = tr.AddScan("", "PRICE", "   ")
	assert.True(t, isValidationErr(err))
	_, err = tr.AddCapture("", "", "Shelf", "")
	assert.True(t, isValidationErr(err))
}

func TestTracker_CaptureCommentKeepsWholeCharacters(t *testing.T) {
	fs, err := localstate.NewFileStore(t.TempDir())
	require.NoError(t, err)
	tr := newTestTracker(t, fs)
	startDay(t, tr)
	_, err = tr.AddCatalogStore("WM1492", 0)
	require.NoError(t, err)
	_, err = tr.StartVisit("WM1492", nil)
	require.NoError(t, err)

	c, err := tr.AddCapture("", "photos/a.jpg", "Shelf", "a"+strings.Repeat("é", 200))
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(c.Comment))
	assert.Equal(t, 120, utf8.RuneCountInString(c.Comment))
	assert.Equal(t, "a"+strings.Repeat("é", 119), c.Comment)

	open, ok := newTestTracker(t, fs).OpenVisit()
	require.True(t, ok)
	require.Len(t, open.Captures, 1)
	assert.Equal(t, c.Comment, open.Captures[0].Comment)
}

func TestLoadArchive(t *testing.T) {
	fs, err := localstate.NewFileStore(t.TempDir())
	require.NoError(t, err)
	tr := newTestTracker(t, fs)
	startDay(t, tr)
	_, err = tr.AddCatalogStore("WM1492", 0)
	require.NoError(t, err)
	v, err := tr.StartVisit("WM1492", nil)
	require.NoError(t, err)
	_, err = tr.EndDay()
	require.NoError(t, err)

	snap, err := LoadArchive(fs, "2025-06-02")
	require.NoError(t, err)
	require.NotNil(t, snap.Day)
	assert.NotNil(t, snap.Day.EndedAt)
	require.Len(t, snap.History, 1)
	assert.Equal(t, v.ID, snap.History[0].ID)

	dates, err := fs.ArchivedDays()
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-06-02"}, dates)

	_, err = LoadArchive(fs, "2025-06-01")
	assert.True(t, isValidationErr(err))
}

func TestTracker_StoreMemory(t *testing.T) {
	tr := newTestTracker(t, nil)

	assert.True(t, isValidationErr(tr.SetStoreMemory(" ", "note")))
	require.NoError(t, tr.SetStoreMemory("Walmart 1492", "receiving closes at 11"))

	note, ok := tr.StoreMemory("Walmart 1492")
	assert.True(t, ok)
	assert.Equal(t, "receiving closes at 11", note)

	require.NoError(t, tr.SetStoreMemory("Walmart 1492", ""))
	_, ok = tr.StoreMemory("Walmart 1492")
	assert.False(t, ok)
}

func TestTracker_PersistsAcrossRestart(t *testing.T) {
	fs, err := localstate.NewFileStore(t.TempDir())
	require.NoError(t, err)

	tr := newTestTracker(t, fs)
	startDay(t, tr)
	lat, lon := 39.70, -104.81
	_, err = tr.AddStore(StoreFields{Name: "Corner Market", Lat: &lat, Lon: &lon})
	require.NoError(t, err)
	_, err = tr.AddCatalogStore("TG1471", 20)
	require.NoError(t, err)
	v, err := tr.StartVisit("TG1471", &Geo{OK: true, Lat: 39.7, Lon: -104.8, AccuracyM: 8})
	require.NoError(t, err)
	_, err = tr.AddCapture(v.ID, "photos/1.jpg", "Display", "endcap")
	require.NoError(t, err)
	_, err = tr.FlagUrgent(v.ID, "leak", SeverityMed)
	require.NoError(t, err)
	require.NoError(t, tr.SetStoreMemory("Target SC 1471", "ask for Dana"))

	before := tr.Snapshot()

	restored := newTestTracker(t, fs)
	after := restored.Snapshot()

	opts := cmp.Options{
		cmpopts.EquateEmpty(),
		cmpopts.IgnoreFields(QueueItem{}, "Payload"),
	}
	if diff := cmp.Diff(before, after, opts); diff != "" {
		t.Errorf("restored session mismatch (-before +after):\n%s", diff)
	}
	for i := range before.Queue {
		assert.JSONEq(t, string(before.Queue[i].Payload), string(after.Queue[i].Payload))
	}

	note, ok := restored.StoreMemory("Target SC 1471")
	assert.True(t, ok)
	assert.Equal(t, "ask for Dana", note)
	assert.Equal(t, v.ID, restored.Status().OpenVisitID)
}

func TestTracker_ExportRestore(t *testing.T) {
	tr := newTestTracker(t, nil)
	startDay(t, tr)
	_, err := tr.AddCatalogStore("WM1492", 0)
	require.NoError(t, err)

	data, err := tr.Export()
	require.NoError(t, err)

	other := newTestTracker(t, nil)
	require.NoError(t, other.Restore(data))
	d, ok := other.Day()
	require.True(t, ok)
	assert.Equal(t, "2025-06-02", d.Date)
	require.Len(t, d.Stores, 1)

	assert.True(t, isValidationErr(other.Restore([]byte("{not json"))))

	twoOpen := `{"day":{"id":"d","date":"2025-06-02"},"history":[{"id":"a"},{"id":"b"}]}`
	assert.True(t, isValidationErr(other.Restore([]byte(twoOpen))))
}

func TestNew_RejectsOpenVisitWithoutDay(t *testing.T) {
	fs, err := localstate.NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, fs.Save(localstate.KeySession, Snapshot{History: []Visit{{ID: "orphan"}}}))

	_, err = New(fs, zaptest.NewLogger(t), Options{})
	assert.Error(t, err)
}

func TestTracker_SnapshotIsACopy(t *testing.T) {
	tr := newTestTracker(t, nil)
	startDay(t, tr)
	_, err := tr.AddCatalogStore("WM1492", 0)
	require.NoError(t, err)

	snap := tr.Snapshot()
	snap.Day.Stores[0].Name = "mutated"

	d, _ := tr.Day()
	assert.Equal(t, "Walmart 1492", d.Stores[0].Name)
}
