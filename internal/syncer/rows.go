package syncer

import (
	"encoding/json"
	"fmt"
	"time"

	"axis-blue-backend/internal/backend"
	"axis-blue-backend/internal/tracker"
)

// RowFor maps a queue item to its collection and row.
func RowFor(item tracker.QueueItem, now time.Time) (string, backend.Row, error) {
	switch item.Kind {
	case tracker.KindCapture:
		c := item.Capture
		if c == nil {
			return "", nil, fmt.Errorf("capture item %s has no record", item.ID)
		}
		return backend.CollectionCaptures, backend.Row{
			"id":         c.ID,
			"visit_id":   c.VisitID,
			"day_id":     c.DayID,
			"store_id":   c.StoreID,
			"category":   c.Category,
			"comment":    c.Comment,
			"file_ref":   c.FileRef,
			"created_at": c.CreatedAt,
		}, nil

	case tracker.KindScan:
		s := item.Scan
		if s == nil {
			return "", nil, fmt.Errorf("scan item %s has no record", item.ID)
		}
		return backend.CollectionScans, backend.Row{
			"id":         s.ID,
			"visit_id":   s.VisitID,
			"day_id":     s.DayID,
			"store_id":   s.StoreID,
			"type":       s.Type,
			"value":      s.Value,
			"symbology":  s.Symbology,
			"created_at": s.CreatedAt,
		}, nil

	case tracker.KindDay:
		var d tracker.Day
		if err := json.Unmarshal(item.Payload, &d); err != nil {
			return "", nil, fmt.Errorf("decode day payload: %w", err)
		}
		return backend.CollectionDays, backend.Row{
			"id":           d.ID,
			"date":         d.Date,
			"merchandiser": d.Merchandiser,
			"route":        d.Route,
			"started_at":   d.StartedAt,
			"ended_at":     optionalTime(d.EndedAt),
			"data":         string(item.Payload),
			"updated_at":   now,
		}, nil

	case tracker.KindVisit:
		var v tracker.Visit
		if err := json.Unmarshal(item.Payload, &v); err != nil {
			return "", nil, fmt.Errorf("decode visit payload: %w", err)
		}
		return backend.CollectionVisits, backend.Row{
			"id":         v.ID,
			"day_id":     v.DayID,
			"store_id":   v.StoreID,
			"store_name": v.StoreName,
			"started_at": v.StartedAt,
			"ended_at":   optionalTime(v.EndedAt),
			"urgent":     len(v.Urgent),
			"data":       string(item.Payload),
			"updated_at": now,
		}, nil
	}
	return "", nil, fmt.Errorf("unknown queue kind %q", item.Kind)
}

func optionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
