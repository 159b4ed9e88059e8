package tracker

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"axis-blue-backend/internal/localstate"
	"axis-blue-backend/internal/parse"
)

const (
	defaultCaptureCategory = "General"
	defaultScanType        = "OOS"
	maxCaptureComment      = 120
	defaultMaxReports      = 25
)

// Storage is the durable local document store the tracker mirrors into.
type Storage interface {
	Load(key string, v any) (bool, error)
	Save(key string, v any) error
	Delete(key string) error
}

// Snapshot is the durable session document: {day, queue, history}.
type Snapshot struct {
	Day     *Day        `json:"day"`
	Queue   []QueueItem `json:"queue"`
	History []Visit     `json:"history"`
}

// LoadArchive reads the archive written when the day on date ended.
func LoadArchive(storage Storage, date string) (Snapshot, error) {
	var snap Snapshot
	ok, err := storage.Load(localstate.DayKey(date), &snap)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load archive %s: %w", date, err)
	}
	if !ok || snap.Day == nil {
		return Snapshot{}, invalid("date", fmt.Sprintf("no archived day for %s", date))
	}
	return snap, nil
}

// Options tunes a Tracker. Zero values fall back to sensible defaults.
type Options struct {
	Location          *time.Location
	TravelBufferMin   int
	DefaultEstMinutes int
	Merchandiser      string
	MaxReports        int
	Now               func() time.Time
	NewID             func() string

	// OnUrgent runs after a High severity issue is recorded, outside the lock.
	OnUrgent func(Visit, UrgentIssue)
}

// Tracker owns the Day/Visit aggregate and enforces its lifecycle. All
// operations are serialized; every mutation is mirrored to Storage before the
// call returns.
type Tracker struct {
	mu      sync.Mutex
	storage Storage
	logger  *zap.Logger
	opts    Options

	state   Snapshot
	memory  map[string]string
	reports []ReportEntry
}

// New reconstructs a Tracker from storage.
func New(storage Storage, logger *zap.Logger, opts Options) (*Tracker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.TravelBufferMin <= 0 {
		opts.TravelBufferMin = 15
	}
	if opts.DefaultEstMinutes <= 0 {
		opts.DefaultEstMinutes = 35
	}
	if opts.MaxReports <= 0 {
		opts.MaxReports = defaultMaxReports
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}

	t := &Tracker{
		storage: storage,
		logger:  logger,
		opts:    opts,
		memory:  make(map[string]string),
	}

	if _, err := storage.Load(localstate.KeySession, &t.state); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if err := checkSnapshot(t.state); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if _, err := storage.Load(localstate.KeyStoreMemory, &t.memory); err != nil {
		return nil, fmt.Errorf("load store memory: %w", err)
	}
	if t.memory == nil {
		t.memory = make(map[string]string)
	}
	if _, err := storage.Load(localstate.KeyReports, &t.reports); err != nil {
		return nil, fmt.Errorf("load reports: %w", err)
	}

	logger.Info("session restored",
		zap.String("phase", string(t.state.Day.Phase())),
		zap.Int("visits", len(t.state.History)),
		zap.Int("queued", len(t.state.Queue)))
	return t, nil
}

func (t *Tracker) now() time.Time {
	return t.opts.Now().UTC()
}

func (t *Tracker) persistLocked() error {
	if err := t.storage.Save(localstate.KeySession, t.state); err != nil {
		t.logger.Error("failed to persist session", zap.Error(err))
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// checkSnapshot enforces the single-open-visit invariant on loaded state.
func checkSnapshot(s Snapshot) error {
	open := 0
	for _, v := range s.History {
		if v.Open() {
			open++
		}
	}
	if open > 1 {
		return invalid("history", fmt.Sprintf("%d open visits; at most one allowed", open))
	}
	if open == 1 && s.Day.Phase() != DayActive {
		return invalid("history", "open visit without an active day")
	}
	return nil
}

// DayConfig describes a day to start.
type DayConfig struct {
	Date            string        `json:"date"`
	Merchandiser    string        `json:"merchandiser"`
	Route           string        `json:"route"`
	TravelBufferMin int           `json:"travel_buffer_min"`
	Attestations    []Attestation `json:"attestations"`
	Notes           string        `json:"notes"`
	Geo             *Geo          `json:"geo"`
}

// StartDay ensures a day is active. Calling it while a day is active returns
// that day unchanged; created reports whether a new day was made.
func (t *Tracker) StartDay(cfg DayConfig) (day Day, created bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Day.Phase() == DayActive {
		return cloneDay(*t.state.Day), false, nil
	}

	now := t.now()
	date := strings.TrimSpace(cfg.Date)
	if date == "" {
		date = now.In(t.opts.Location).Format(time.DateOnly)
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return Day{}, false, invalid("date", "must be YYYY-MM-DD")
	}

	if prev := t.state.Day; prev.Phase() == DayEnded {
		if prev.Date == date {
			return Day{}, false, badState("start day", fmt.Sprintf("day %s has already ended", date))
		}
		t.state.Day = nil
		t.state.History = nil
	}

	buffer := cfg.TravelBufferMin
	if buffer <= 0 {
		buffer = t.opts.TravelBufferMin
	}
	merch := strings.TrimSpace(cfg.Merchandiser)
	if merch == "" {
		merch = t.opts.Merchandiser
	}
	attest := cfg.Attestations
	if attest == nil {
		attest = DefaultAttestations()
	}

	d := &Day{
		ID:              t.opts.NewID(),
		Date:            date,
		Merchandiser:    merch,
		Route:           strings.TrimSpace(cfg.Route),
		TravelBufferMin: buffer,
		StartedAt:       now,
		Attestations:    append([]Attestation(nil), attest...),
		Stores:          []Store{},
		Notes:           strings.TrimSpace(cfg.Notes),
		GeoStart:        cloneGeo(cfg.Geo),
	}
	t.state.Day = d
	t.enqueueRecordLocked(KindDay, d.ID, d)

	t.logger.Info("day started", zap.String("day_id", d.ID), zap.String("date", d.Date))
	return cloneDay(*d), true, t.persistLocked()
}

// StoreFields is user input for a planned store.
type StoreFields struct {
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	DeliveryHint string   `json:"delivery_hint"`
	EstMinutes   int      `json:"est_min"`
	Reason       string   `json:"reason"`
	Lat          *float64 `json:"lat"`
	Lon          *float64 `json:"lon"`
}

// AddStore appends a user-entered store to the active day's plan. Names that
// resolve to an already planned store code are rejected.
func (t *Tracker) AddStore(fields StoreFields) (Store, error) {
	name := strings.TrimSpace(fields.Name)
	if name == "" {
		return Store{}, invalid("name", "store name is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	d, err := t.activeDayLocked("add store")
	if err != nil {
		return Store{}, err
	}

	id, err := parse.StoreCode(name)
	if err != nil {
		id = strings.ToUpper(t.opts.NewID())
	}
	if indexOfStore(d.Stores, id) >= 0 {
		return Store{}, invalid("name", fmt.Sprintf("store %s is already planned", id))
	}

	s := Store{
		ID:           id,
		Name:         name,
		Address:      strings.TrimSpace(fields.Address),
		DeliveryHint: strings.TrimSpace(fields.DeliveryHint),
		EstMinutes:   fields.EstMinutes,
		Reason:       strings.TrimSpace(fields.Reason),
		Lat:          fields.Lat,
		Lon:          fields.Lon,
	}
	return t.appendStoreLocked(d, s)
}

// AddCatalogStore plans a preset store. Planning the same store twice is a
// validation error.
func (t *Tracker) AddCatalogStore(id string, estMinutes int) (Store, error) {
	s, ok := CatalogStore(id)
	if !ok {
		return Store{}, invalid("store_id", fmt.Sprintf("unknown catalog store %q", id))
	}
	s.EstMinutes = estMinutes

	t.mu.Lock()
	defer t.mu.Unlock()

	d, err := t.activeDayLocked("add store")
	if err != nil {
		return Store{}, err
	}
	if indexOfStore(d.Stores, s.ID) >= 0 {
		return Store{}, invalid("store_id", fmt.Sprintf("store %s is already planned", s.ID))
	}
	return t.appendStoreLocked(d, s)
}

func (t *Tracker) appendStoreLocked(d *Day, s Store) (Store, error) {
	if s.EstMinutes <= 0 {
		s.EstMinutes = t.opts.DefaultEstMinutes
	}
	d.Stores = append(d.Stores, s)
	t.enqueueRecordLocked(KindDay, d.ID, d)
	t.logger.Debug("store added", zap.String("store_id", s.ID), zap.Int("planned", len(d.Stores)))
	return s, t.persistLocked()
}

// ReorderStore swaps a store with its neighbour. Moving past either end, or
// naming an unknown store, changes nothing.
func (t *Tracker) ReorderStore(storeID string, dir Direction) error {
	if dir != Up && dir != Down {
		return invalid("direction", "must be up or down")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	d, err := t.activeDayLocked("reorder store")
	if err != nil {
		return err
	}
	i := indexOfStore(d.Stores, storeID)
	j := i + int(dir)
	if i < 0 || j < 0 || j >= len(d.Stores) {
		return nil
	}
	d.Stores[i], d.Stores[j] = d.Stores[j], d.Stores[i]
	t.enqueueRecordLocked(KindDay, d.ID, d)
	return t.persistLocked()
}

// RemoveStore drops a store from the plan; unknown IDs are a no-op.
func (t *Tracker) RemoveStore(storeID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, err := t.activeDayLocked("remove store")
	if err != nil {
		return err
	}
	i := indexOfStore(d.Stores, storeID)
	if i < 0 {
		return nil
	}
	d.Stores = append(d.Stores[:i], d.Stores[i+1:]...)
	t.enqueueRecordLocked(KindDay, d.ID, d)
	return t.persistLocked()
}

// StartVisit opens a visit at a planned store.
func (t *Tracker) StartVisit(storeID string, geo *Geo) (Visit, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, err := t.activeDayLocked("start visit")
	if err != nil {
		return Visit{}, err
	}
	i := indexOfStore(d.Stores, storeID)
	if i < 0 {
		return Visit{}, badState("start visit", fmt.Sprintf("store %q is not planned for today", storeID))
	}
	if open := t.openVisitLocked(); open != nil {
		return Visit{}, badState("start visit", fmt.Sprintf("visit at %s is still open", open.StoreName))
	}

	store := d.Stores[i]
	v := Visit{
		ID:        t.opts.NewID(),
		DayID:     d.ID,
		StoreID:   store.ID,
		StoreName: store.Name,
		StartedAt: t.now(),
		Equipment: Equipment{Checks: map[string]bool{}},
		Urgent:    []UrgentIssue{},
		Captures:  []Capture{},
		Scans:     []Scan{},
		GeoIn:     cloneGeo(geo),
	}
	t.state.History = append(t.state.History, v)
	t.enqueueVisitLocked(&t.state.History[len(t.state.History)-1])

	t.logger.Info("visit started", zap.String("visit_id", v.ID), zap.String("store_id", v.StoreID))
	return cloneVisit(v), t.persistLocked()
}

// EndVisit closes the open visit and records its report.
func (t *Tracker) EndVisit(geo *Geo) (Visit, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := t.openVisitLocked()
	if v == nil {
		return Visit{}, badState("end visit", "no open visit")
	}
	now := t.now()
	v.EndedAt = &now
	v.GeoOut = cloneGeo(geo)
	t.enqueueVisitLocked(v)
	t.recordReportLocked(ReportVisit, v.StoreName, RenderVisitReport(*v))

	t.logger.Info("visit ended", zap.String("visit_id", v.ID), zap.Duration("duration", now.Sub(v.StartedAt)))
	return cloneVisit(*v), t.persistLocked()
}

// VisitUpdate holds editable visit fields; nil fields are left unchanged.
type VisitUpdate struct {
	Notes     *string    `json:"notes"`
	Concerns  *string    `json:"concerns"`
	Equipment *Equipment `json:"equipment"`
}

// SaveVisit edits a visit's free-text fields. Closed visits may still be
// edited; the lifecycle is not affected.
func (t *Tracker) SaveVisit(visitID string, upd VisitUpdate) (Visit, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := t.visitLocked(visitID)
	if v == nil {
		return Visit{}, badState("save visit", fmt.Sprintf("visit %q not found", visitID))
	}
	if upd.Notes != nil {
		v.Notes = strings.TrimSpace(*upd.Notes)
	}
	if upd.Concerns != nil {
		v.Concerns = strings.TrimSpace(*upd.Concerns)
	}
	if upd.Equipment != nil {
		v.Equipment = cloneEquipment(*upd.Equipment)
	}
	t.enqueueVisitLocked(v)
	return cloneVisit(*v), t.persistLocked()
}

// FlagUrgent appends an urgent issue to an open visit. An empty visitID means
// the currently open visit; a blank severity means High.
func (t *Tracker) FlagUrgent(visitID, note string, sev Severity) (UrgentIssue, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return UrgentIssue{}, invalid("note", "urgent issue note is required")
	}
	if sev == "" {
		sev = SeverityHigh
	}
	if _, ok := ParseSeverity(string(sev)); !ok {
		return UrgentIssue{}, invalid("severity", "must be Low, Med or High")
	}

	t.mu.Lock()
	v, err := t.requireOpenLocked("flag urgent", visitID)
	if err != nil {
		t.mu.Unlock()
		return UrgentIssue{}, err
	}
	issue := UrgentIssue{At: t.now(), Severity: sev, Note: note}
	v.Urgent = append(v.Urgent, issue)
	t.enqueueVisitLocked(v)
	err = t.persistLocked()
	snapshot := cloneVisit(*v)
	hook := t.opts.OnUrgent
	t.mu.Unlock()

	t.logger.Warn("urgent issue flagged",
		zap.String("visit_id", snapshot.ID),
		zap.String("store", snapshot.StoreName),
		zap.String("severity", string(sev)))
	if hook != nil && sev == SeverityHigh {
		hook(snapshot, issue)
	}
	return issue, err
}

// AddCapture records a categorized photo on an open visit and queues it.
func (t *Tracker) AddCapture(visitID, fileRef, category, comment string) (Capture, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, err := t.requireOpenLocked("add capture", visitID)
	if err != nil {
		return Capture{}, err
	}
	fileRef = strings.TrimSpace(fileRef)
	if fileRef == "" {
		return Capture{}, invalid("file", "capture file is required")
	}
	category = strings.TrimSpace(category)
	if category == "" {
		category = defaultCaptureCategory
	}
	comment = truncate(strings.TrimSpace(comment), maxCaptureComment)

	c := Capture{
		ID:        t.opts.NewID(),
		VisitID:   v.ID,
		StoreID:   v.StoreID,
		DayID:     v.DayID,
		Category:  category,
		Comment:   comment,
		FileRef:   fileRef,
		Status:    StatusQueued,
		CreatedAt: t.now(),
	}
	v.Captures = append(v.Captures, c)
	cc := c
	t.enqueueLocked(QueueItem{Kind: KindCapture, RefID: c.ID, Capture: &cc})

	t.logger.Debug("capture added", zap.String("capture_id", c.ID), zap.String("category", c.Category))
	return c, t.persistLocked()
}

// AddScan records a code value on an open visit and queues it.
func (t *Tracker) AddScan(visitID, scanType, value string) (Scan, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, err := t.requireOpenLocked("add scan", visitID)
	if err != nil {
		return Scan{}, err
	}
	code, err := parse.ScanCode(value)
	if err != nil {
		return Scan{}, invalid("value", "scan value is required")
	}
	scanType = strings.TrimSpace(scanType)
	if scanType == "" {
		scanType = defaultScanType
	}

	s := Scan{
		ID:        t.opts.NewID(),
		VisitID:   v.ID,
		StoreID:   v.StoreID,
		DayID:     v.DayID,
		Type:      scanType,
		Value:     code.Value,
		Symbology: code.Symbology,
		Status:    StatusQueued,
		CreatedAt: t.now(),
	}
	v.Scans = append(v.Scans, s)
	sc := s
	t.enqueueLocked(QueueItem{Kind: KindScan, RefID: s.ID, Scan: &sc})

	t.logger.Debug("scan added", zap.String("scan_id", s.ID), zap.String("type", s.Type))
	return s, t.persistLocked()
}

// EndDay closes the active day. An open visit is closed at the same instant.
func (t *Tracker) EndDay() (Day, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, err := t.activeDayLocked("end day")
	if err != nil {
		return Day{}, err
	}
	now := t.now()
	if v := t.openVisitLocked(); v != nil {
		v.EndedAt = &now
		t.enqueueVisitLocked(v)
		t.logger.Warn("open visit closed by end of day", zap.String("visit_id", v.ID), zap.String("store", v.StoreName))
	}
	d.EndedAt = &now
	t.enqueueRecordLocked(KindDay, d.ID, d)
	t.recordReportLocked(ReportEndDay, "", RenderEndOfDaySummary(*d, t.state.History, len(t.state.Queue)))

	archive := Snapshot{Day: d, History: t.state.History}
	if err := t.storage.Save(localstate.DayKey(d.Date), archive); err != nil {
		t.logger.Error("failed to archive day", zap.String("date", d.Date), zap.Error(err))
	}

	t.logger.Info("day ended", zap.String("day_id", d.ID), zap.Int("visits", len(t.state.History)))
	return cloneDay(*d), t.persistLocked()
}

// Status summarizes the session for the UI.
type Status struct {
	Phase       DayPhase `json:"phase"`
	DayID       string   `json:"day_id,omitempty"`
	Date        string   `json:"date,omitempty"`
	OpenVisitID string   `json:"open_visit_id,omitempty"`
	Visits      int      `json:"visits"`
	Queued      int      `json:"queued"`
}

// Status reports the current lifecycle position.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := Status{
		Phase:  t.state.Day.Phase(),
		Visits: len(t.state.History),
		Queued: len(t.state.Queue),
	}
	if d := t.state.Day; d != nil {
		st.DayID = d.ID
		st.Date = d.Date
	}
	if v := t.openVisitLocked(); v != nil {
		st.OpenVisitID = v.ID
	}
	return st
}

// Day returns the current day, if any.
func (t *Tracker) Day() (Day, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Day == nil {
		return Day{}, false
	}
	return cloneDay(*t.state.Day), true
}

// Visits returns the day's visit history in start order.
func (t *Tracker) Visits() []Visit {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Visit, len(t.state.History))
	for i, v := range t.state.History {
		out[i] = cloneVisit(v)
	}
	return out
}

// Visit looks up a visit by ID.
func (t *Tracker) Visit(id string) (Visit, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := t.visitLocked(id)
	if v == nil {
		return Visit{}, false
	}
	return cloneVisit(*v), true
}

// OpenVisit returns the open visit, if any.
func (t *Tracker) OpenVisit() (Visit, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := t.openVisitLocked()
	if v == nil {
		return Visit{}, false
	}
	return cloneVisit(*v), true
}

// RequireOpen fails with a StateError unless visitID (or, when empty, the
// current visit) is open. It lets callers check before doing expensive work.
func (t *Tracker) RequireOpen(visitID string) (Visit, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, err := t.requireOpenLocked("require open visit", visitID)
	if err != nil {
		return Visit{}, err
	}
	return cloneVisit(*v), nil
}

// Capture looks up a capture across the day's visits.
func (t *Tracker) Capture(id string) (Capture, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, v := range t.state.History {
		for _, c := range v.Captures {
			if c.ID == id {
				return c, true
			}
		}
	}
	return Capture{}, false
}

func (t *Tracker) activeDayLocked(op string) (*Day, error) {
	switch t.state.Day.Phase() {
	case DayNotStarted:
		return nil, badState(op, "day not started")
	case DayEnded:
		return nil, badState(op, "day has ended")
	}
	return t.state.Day, nil
}

func (t *Tracker) openVisitLocked() *Visit {
	for i := range t.state.History {
		if t.state.History[i].Open() {
			return &t.state.History[i]
		}
	}
	return nil
}

func (t *Tracker) visitLocked(id string) *Visit {
	for i := range t.state.History {
		if t.state.History[i].ID == id {
			return &t.state.History[i]
		}
	}
	return nil
}

func (t *Tracker) requireOpenLocked(op, visitID string) (*Visit, error) {
	if visitID == "" {
		v := t.openVisitLocked()
		if v == nil {
			return nil, badState(op, "no open visit")
		}
		return v, nil
	}
	v := t.visitLocked(visitID)
	if v == nil {
		return nil, badState(op, fmt.Sprintf("visit %q not found", visitID))
	}
	if !v.Open() {
		return nil, badState(op, fmt.Sprintf("visit %q is closed", visitID))
	}
	return v, nil
}

// truncate shortens s to at most n characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func indexOfStore(stores []Store, id string) int {
	for i, s := range stores {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Export returns the raw session document for backup.
func (t *Tracker) Export() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return json.MarshalIndent(t.state, "", "  ")
}

// Snapshot returns a deep copy of the session document.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return cloneSnapshot(t.state)
}

// Restore replaces the session with an exported document.
func (t *Tracker) Restore(data []byte) error {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return invalid("snapshot", err.Error())
	}
	if err := checkSnapshot(s); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = s
	t.logger.Info("session restored from export", zap.Int("visits", len(s.History)))
	return t.persistLocked()
}
