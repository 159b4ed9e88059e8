package tracker

import (
	"encoding/json"
	"time"
)

// Severity of an urgent issue.
type Severity string

const (
	SeverityLow  Severity = "Low"
	SeverityMed  Severity = "Med"
	SeverityHigh Severity = "High"
)

// ParseSeverity maps user input to a Severity. Blank input defaults to High.
func ParseSeverity(s string) (Severity, bool) {
	switch s {
	case "":
		return SeverityHigh, true
	case "Low", "low", "LOW":
		return SeverityLow, true
	case "Med", "med", "MED", "Medium", "medium":
		return SeverityMed, true
	case "High", "high", "HIGH":
		return SeverityHigh, true
	}
	return "", false
}

// RecordStatus tracks whether a capture or scan reached the backing store.
type RecordStatus string

const (
	StatusQueued RecordStatus = "queued"
	StatusSynced RecordStatus = "synced"
)

// Direction for ReorderStore.
type Direction int

const (
	Up   Direction = -1
	Down Direction = 1
)

// DayPhase is the lifecycle position of the current day.
type DayPhase string

const (
	DayNotStarted DayPhase = "NOT_STARTED"
	DayActive     DayPhase = "ACTIVE"
	DayEnded      DayPhase = "ENDED"
)

// Geo is a single location fix reported by the device.
type Geo struct {
	OK        bool      `json:"ok"`
	Lat       float64   `json:"lat,omitempty"`
	Lon       float64   `json:"lon,omitempty"`
	AccuracyM int       `json:"acc_m,omitempty"`
	Err       string    `json:"err,omitempty"`
	At        time.Time `json:"ts"`
}

// Store is a planned stop. Memory notes are kept separately, keyed by Name.
type Store struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	DeliveryHint string   `json:"delivery_hint,omitempty"`
	EstMinutes   int      `json:"est_min"`
	Reason       string   `json:"reason,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lon          *float64 `json:"lon,omitempty"`
}

// Attestation is one item of the day's checklist.
type Attestation struct {
	Label   string `json:"label"`
	Checked bool   `json:"checked"`
}

// Day is a single field-work session spanning planned store stops.
type Day struct {
	ID              string        `json:"id"`
	Date            string        `json:"date"`
	Merchandiser    string        `json:"merchandiser,omitempty"`
	Route           string        `json:"route,omitempty"`
	TravelBufferMin int           `json:"travel_buffer_min"`
	StartedAt       time.Time     `json:"start_ts"`
	EndedAt         *time.Time    `json:"end_ts,omitempty"`
	Attestations    []Attestation `json:"attestations"`
	Stores          []Store       `json:"stores"`
	Notes           string        `json:"notes,omitempty"`
	GeoStart        *Geo          `json:"geo_start,omitempty"`
}

// Phase reports where the day is in its lifecycle.
func (d *Day) Phase() DayPhase {
	switch {
	case d == nil:
		return DayNotStarted
	case d.EndedAt != nil:
		return DayEnded
	default:
		return DayActive
	}
}

// Equipment is the visit checklist: named booleans plus free text.
type Equipment struct {
	Checks map[string]bool `json:"checks,omitempty"`
	Other  string          `json:"other,omitempty"`
}

// UrgentIssue is an append-only alert attached to a visit.
type UrgentIssue struct {
	At       time.Time `json:"ts"`
	Severity Severity  `json:"severity"`
	Note     string    `json:"note"`
}

// Capture is a categorized photo record.
type Capture struct {
	ID        string       `json:"id"`
	VisitID   string       `json:"visit_id"`
	StoreID   string       `json:"store_id"`
	DayID     string       `json:"day_id"`
	Category  string       `json:"category"`
	Comment   string       `json:"comment,omitempty"`
	FileRef   string       `json:"file_ref"`
	Status    RecordStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// Scan is a decoded or manually entered code.
type Scan struct {
	ID        string       `json:"id"`
	VisitID   string       `json:"visit_id"`
	StoreID   string       `json:"store_id"`
	DayID     string       `json:"day_id"`
	Type      string       `json:"type"`
	Value     string       `json:"value"`
	Symbology string       `json:"symbology,omitempty"`
	Status    RecordStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// Visit is a bounded work interval at one store.
type Visit struct {
	ID        string        `json:"id"`
	DayID     string        `json:"day_id"`
	StoreID   string        `json:"store_id"`
	StoreName string        `json:"store_name"`
	StartedAt time.Time     `json:"start_ts"`
	EndedAt   *time.Time    `json:"end_ts,omitempty"`
	Notes     string        `json:"notes,omitempty"`
	Concerns  string        `json:"concerns,omitempty"`
	Equipment Equipment     `json:"equipment"`
	Urgent    []UrgentIssue `json:"urgent"`
	Captures  []Capture     `json:"captures"`
	Scans     []Scan        `json:"scans"`
	GeoIn     *Geo          `json:"geo_in,omitempty"`
	GeoOut    *Geo          `json:"geo_out,omitempty"`
}

// Open reports whether the visit has not been ended.
func (v *Visit) Open() bool {
	return v.EndedAt == nil
}

// QueueKind identifies what a queue item carries.
type QueueKind string

const (
	KindCapture QueueKind = "capture"
	KindScan    QueueKind = "scan"
	KindDay     QueueKind = "day"
	KindVisit   QueueKind = "visit"
)

// QueueItem is a pending synchronization action.
type QueueItem struct {
	ID            string          `json:"id"`
	Kind          QueueKind       `json:"kind"`
	RefID         string          `json:"ref_id"`
	Capture       *Capture        `json:"capture,omitempty"`
	Scan          *Scan           `json:"scan,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Revision      int             `json:"revision"`
	Attempts      int             `json:"attempts"`
	LastError     string          `json:"last_error,omitempty"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
	NextAttemptAt time.Time       `json:"next_attempt_at"`
}

// ReportEntry is a rendered report kept for the history view.
type ReportEntry struct {
	Kind  string    `json:"type"`
	At    time.Time `json:"ts"`
	Store string    `json:"store,omitempty"`
	Text  string    `json:"text"`
}

// Report kinds.
const (
	ReportMorning = "MORNING"
	ReportVisit   = "EOV"
	ReportEndDay  = "EOD"
	ReportHandoff = "HANDOFF"
)
