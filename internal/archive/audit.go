package archive

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"iiifvault/internal/vault"
)

// AuditRecord is one line of the audit trail.
type AuditRecord struct {
	At             time.Time `json:"at"`
	Action         string    `json:"action"`
	TargetID       string    `json:"target_id,omitempty"`
	EntitiesBefore int       `json:"entities_before"`
	EntitiesAfter  int       `json:"entities_after"`
}

// AuditLog appends one JSON line per committed action. Its Record method
// satisfies the session change observer signature:
//
//	vault.WithChangeObserver(log.Record)
type AuditLog struct {
	mu    sync.Mutex
	w     io.Writer
	nowFn func() time.Time
	err   error
}

// AuditOption customizes an AuditLog.
type AuditOption func(*AuditLog)

// WithAuditClock overrides the timestamp source, for tests.
func WithAuditClock(now func() time.Time) AuditOption {
	return func(l *AuditLog) { l.nowFn = now }
}

// NewAuditLog returns an AuditLog writing JSON lines to w.
func NewAuditLog(w io.Writer, opts ...AuditOption) *AuditLog {
	l := &AuditLog{w: w, nowFn: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends one line for entry. Write failures are sticky and
// reported through Err; the observer signature has no error return.
func (l *AuditLog) Record(entry vault.HistoryEntry) {
	rec := AuditRecord{
		At:       l.nowFn().UTC(),
		Action:   string(entry.Action.Type),
		TargetID: entry.Action.TargetID,
	}
	if entry.Before != nil {
		rec.EntitiesBefore = entry.Before.Len()
	}
	if entry.After != nil {
		rec.EntitiesAfter = entry.After.Len()
	}
	line, err := json.Marshal(rec)
	if err != nil {
		l.setErr(err)
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return
	}
	if _, err := l.w.Write(line); err != nil {
		l.err = err
	}
}

// Err reports the first write failure, if any.
func (l *AuditLog) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *AuditLog) setErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err == nil {
		l.err = err
	}
}

// ReadAuditRecords decodes a JSON-lines audit trail, e.g. for inspection
// after pulling it back from blob storage.
func ReadAuditRecords(r io.Reader) ([]AuditRecord, error) {
	dec := json.NewDecoder(r)
	var out []AuditRecord
	for {
		var rec AuditRecord
		if err := dec.Decode(&rec); err == io.EOF {
			return out, nil
		} else if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}
