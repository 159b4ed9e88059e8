package tracker

import (
	"encoding/json"
	"maps"
)

func cloneGeo(g *Geo) *Geo {
	if g == nil {
		return nil
	}
	c := *g
	return &c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

func cloneDay(d Day) Day {
	d.Attestations = append([]Attestation(nil), d.Attestations...)
	stores := make([]Store, len(d.Stores))
	for i, s := range d.Stores {
		s.Lat = cloneFloat(s.Lat)
		s.Lon = cloneFloat(s.Lon)
		stores[i] = s
	}
	d.Stores = stores
	if d.EndedAt != nil {
		e := *d.EndedAt
		d.EndedAt = &e
	}
	d.GeoStart = cloneGeo(d.GeoStart)
	return d
}

func cloneEquipment(e Equipment) Equipment {
	if e.Checks == nil {
		e.Checks = map[string]bool{}
	} else {
		e.Checks = maps.Clone(e.Checks)
	}
	return e
}

func cloneVisit(v Visit) Visit {
	if v.EndedAt != nil {
		e := *v.EndedAt
		v.EndedAt = &e
	}
	v.Equipment = cloneEquipment(v.Equipment)
	v.Urgent = append([]UrgentIssue{}, v.Urgent...)
	v.Captures = append([]Capture{}, v.Captures...)
	v.Scans = append([]Scan{}, v.Scans...)
	v.GeoIn = cloneGeo(v.GeoIn)
	v.GeoOut = cloneGeo(v.GeoOut)
	return v
}

func cloneQueueItem(q QueueItem) QueueItem {
	if q.Capture != nil {
		c := *q.Capture
		q.Capture = &c
	}
	if q.Scan != nil {
		s := *q.Scan
		q.Scan = &s
	}
	q.Payload = append(json.RawMessage(nil), q.Payload...)
	return q
}

func cloneQueue(items []QueueItem) []QueueItem {
	out := make([]QueueItem, len(items))
	for i, q := range items {
		out[i] = cloneQueueItem(q)
	}
	return out
}

func cloneSnapshot(s Snapshot) Snapshot {
	out := Snapshot{Queue: cloneQueue(s.Queue)}
	if s.Day != nil {
		d := cloneDay(*s.Day)
		out.Day = &d
	}
	out.History = make([]Visit, len(s.History))
	for i, v := range s.History {
		out.History[i] = cloneVisit(v)
	}
	return out
}
