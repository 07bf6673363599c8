package auditlog

import (
	"testing"
	"time"

	"github.com/relaymesh/githook-worker/worker"
)

func TestStoreRecordAndQuery(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	defer s.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recs := []worker.AuditRecord{
		{Topic: "t1", Provider: "github", Type: "push", LogID: "log-1", Status: "SUCCESS", Attempts: 1, Timestamp: now},
		{Topic: "t1", Provider: "github", Type: "push", LogID: "log-1", Status: "FAILED", Error: "boom", Attempts: 2, Timestamp: now.Add(time.Second)},
		{Topic: "t2", Provider: "gitlab", Type: "mr", LogID: "log-2", Status: "SUCCESS", Attempts: 1, Timestamp: now.Add(2 * time.Second)},
	}
	for _, r := range recs {
		if err := s.Record(r); err != nil {
			t.Fatalf("unexpected error recording: %v", err)
		}
	}

	forLog1, err := s.ForLogID("log-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(forLog1) != 2 {
		t.Fatalf("expected 2 records for log-1, got %d", len(forLog1))
	}
	if forLog1[0].Status != "SUCCESS" || forLog1[1].Status != "FAILED" {
		t.Errorf("expected insertion order SUCCESS then FAILED, got %+v", forLog1)
	}
	if forLog1[1].Error != "boom" {
		t.Errorf("expected the failed record to carry its error, got %+v", forLog1[1])
	}

	recent, err := s.Recent(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent records, got %d", len(recent))
	}
	if recent[0].LogID != "log-2" {
		t.Errorf("expected the most recent record first, got %+v", recent[0])
	}
}

func TestStoreRecordIsAppendOnly(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	defer s.Close()

	if err := s.Record(worker.AuditRecord{Topic: "t1", LogID: "log-1", Status: "SUCCESS"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Record(worker.AuditRecord{Topic: "t1", LogID: "log-1", Status: "SUCCESS"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows, err := s.ForLogID("log-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected both records to persist independently, got %d", len(rows))
	}
}
