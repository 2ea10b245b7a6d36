package archive

import (
	"bytes"
	"context"
	"testing"
	"time"

	"iiifvault/internal/vault"
	"iiifvault/pkg/iiif"
)

func TestAuditLogRecordsCommittedActions(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	log := NewAuditLog(&buf, WithAuditClock(fixedClock(at)))

	session, err := vault.NewSessionFromTree(testTree(), vault.WithChangeObserver(log.Record))
	if err != nil {
		t.Fatalf("session: %v", err)
	}

	if err := session.Dispatch(ctx, vault.NewUpdateLabelAction("m1", iiif.LanguageMap{"en": {"Renamed"}})); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := session.Dispatch(ctx, vault.NewRemoveCanvasAction("m1", "c2")); err != nil {
		t.Fatalf("dispatch remove: %v", err)
	}
	if err := log.Err(); err != nil {
		t.Fatalf("audit error: %v", err)
	}

	records, err := ReadAuditRecords(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Action != string(vault.ActionUpdateLabel) || records[0].TargetID != "m1" {
		t.Fatalf("first record = %+v", records[0])
	}
	if !records[0].At.Equal(at) {
		t.Fatalf("timestamp = %v", records[0].At)
	}
	if records[1].EntitiesBefore != 5 || records[1].EntitiesAfter != 4 {
		t.Fatalf("second record counts = %+v", records[1])
	}
}

func TestAuditLogWriteFailureIsSticky(t *testing.T) {
	log := NewAuditLog(failingWriter{})
	log.Record(vault.HistoryEntry{Action: vault.Action{Type: vault.ActionUpdateLabel}})
	if log.Err() == nil {
		t.Fatalf("expected sticky write error")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, context.DeadlineExceeded
}
