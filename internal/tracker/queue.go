package tracker

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

func (t *Tracker) enqueueLocked(item QueueItem) {
	item.ID = t.opts.NewID()
	item.EnqueuedAt = t.now()
	t.state.Queue = append(t.state.Queue, item)
}

// enqueueRecordLocked queues the latest snapshot of a day or visit. A pending
// item for the same record is refreshed in place rather than duplicated, and
// its revision bumped so an in-flight push of the older payload cannot ack it.
func (t *Tracker) enqueueRecordLocked(kind QueueKind, refID string, record any) {
	payload, err := json.Marshal(record)
	if err != nil {
		t.logger.Error("failed to encode queue payload", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	for i := range t.state.Queue {
		q := &t.state.Queue[i]
		if q.Kind == kind && q.RefID == refID {
			q.Payload = payload
			q.Revision++
			q.NextAttemptAt = time.Time{}
			return
		}
	}
	t.enqueueLocked(QueueItem{Kind: kind, RefID: refID, Payload: payload})
}

func (t *Tracker) enqueueVisitLocked(v *Visit) {
	row := *v
	row.Captures = nil
	row.Scans = nil
	t.enqueueRecordLocked(KindVisit, v.ID, row)
}

// Pending returns every queued item in enqueue order.
func (t *Tracker) Pending() []QueueItem {
	t.mu.Lock()
	defer t.mu.Unlock()

	return cloneQueue(t.state.Queue)
}

// Due returns queued items whose next attempt time has passed.
func (t *Tracker) Due(now time.Time) []QueueItem {
	t.mu.Lock()
	defer t.mu.Unlock()

	var due []QueueItem
	for _, q := range t.state.Queue {
		if !q.NextAttemptAt.After(now) {
			due = append(due, cloneQueueItem(q))
		}
	}
	return due
}

// Ack removes a synchronized item and marks its capture or scan synced.
// revision is the item revision that was pushed; if the item was refreshed
// since, it stays queued and due immediately. Ack reports whether the item
// was removed.
func (t *Tracker) Ack(itemID string, revision int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.queueIndexLocked(itemID)
	if idx < 0 {
		return false, nil
	}
	item := t.state.Queue[idx]
	if item.Revision != revision {
		t.state.Queue[idx].NextAttemptAt = time.Time{}
		t.logger.Debug("queue item changed while in flight",
			zap.String("item_id", itemID), zap.Int("pushed", revision), zap.Int("current", item.Revision))
		return false, t.persistLocked()
	}
	t.state.Queue = append(t.state.Queue[:idx], t.state.Queue[idx+1:]...)

	switch item.Kind {
	case KindCapture:
		t.markCaptureLocked(item.RefID)
	case KindScan:
		t.markScanLocked(item.RefID)
	}
	return true, t.persistLocked()
}

// Nack records a failed attempt and schedules the next one. A failure of a
// stale revision is not held against the refreshed payload.
func (t *Tracker) Nack(itemID string, revision int, cause error, next time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.queueIndexLocked(itemID)
	if idx < 0 {
		return nil
	}
	q := &t.state.Queue[idx]
	if cause != nil {
		q.LastError = cause.Error()
	}
	if q.Revision != revision {
		q.NextAttemptAt = time.Time{}
		return t.persistLocked()
	}
	q.Attempts++
	q.NextAttemptAt = next.UTC()
	return t.persistLocked()
}

func (t *Tracker) queueIndexLocked(itemID string) int {
	for i, q := range t.state.Queue {
		if q.ID == itemID {
			return i
		}
	}
	return -1
}

func (t *Tracker) markCaptureLocked(id string) {
	for i := range t.state.History {
		caps := t.state.History[i].Captures
		for j := range caps {
			if caps[j].ID == id {
				caps[j].Status = StatusSynced
				return
			}
		}
	}
}

func (t *Tracker) markScanLocked(id string) {
	for i := range t.state.History {
		scans := t.state.History[i].Scans
		for j := range scans {
			if scans[j].ID == id {
				scans[j].Status = StatusSynced
				return
			}
		}
	}
}
