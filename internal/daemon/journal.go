package daemon

import (
	"sync"
	"time"

	"github.com/schovi/screenrec/internal/session"
)

// EventRecord is the wire form of a session.Event.
type EventRecord struct {
	Seq       int64             `json:"seq"`
	Type      string            `json:"type"`
	Time      time.Time         `json:"time"`
	SessionID string            `json:"session_id,omitempty"`
	From      string            `json:"from,omitempty"`
	To        string            `json:"to,omitempty"`
	Remaining int               `json:"remaining,omitempty"`
	Artifact  *session.Artifact `json:"artifact,omitempty"`
	Error     string            `json:"error,omitempty"`
	Code      string            `json:"code,omitempty"`
}

// Journal is a bounded in-memory log of controller events. Readers keep a
// cursor (the next sequence number) and poll for newer records.
type Journal struct {
	mu      sync.RWMutex
	records []EventRecord
	next    int64
	max     int
}

func NewJournal(max int) *Journal {
	return &Journal{next: 1, max: max}
}

// OnEvent makes Journal a session.Observer.
func (j *Journal) OnEvent(e session.Event) {
	rec := EventRecord{
		Type:      string(e.Type),
		Time:      e.Time,
		SessionID: e.SessionID,
		From:      string(e.From),
		To:        string(e.To),
		Remaining: e.Remaining,
		Artifact:  e.Artifact,
	}
	if e.Err != nil {
		rec.Error = e.Err.Error()
		rec.Code = session.Code(e.Err)
	}
	j.Append(rec)
}

func (j *Journal) Append(rec EventRecord) EventRecord {
	j.mu.Lock()
	defer j.mu.Unlock()

	rec.Seq = j.next
	j.next++
	j.records = append(j.records, rec)

	if j.max > 0 && len(j.records) > j.max {
		excess := len(j.records) - j.max
		j.records = append([]EventRecord(nil), j.records[excess:]...)
	}
	return rec
}

// ReadFrom returns up to limit records with Seq >= cursor and the cursor
// to pass next time. Records trimmed from the journal are skipped.
func (j *Journal) ReadFrom(cursor int64, limit int) ([]EventRecord, int64) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := []EventRecord{}
	for _, rec := range j.records {
		if rec.Seq < cursor {
			continue
		}
		if limit > 0 && len(out) >= limit {
			return out, rec.Seq
		}
		out = append(out, rec)
	}
	return out, j.next
}

// Last returns the newest n records, oldest first.
func (j *Journal) Last(n int) []EventRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if n <= 0 || n > len(j.records) {
		n = len(j.records)
	}
	return append([]EventRecord(nil), j.records[len(j.records)-n:]...)
}

// Cursor is the sequence number the next record will get.
func (j *Journal) Cursor() int64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.next
}
