package audit

import (
	"path/filepath"
	"testing"
)

func TestLogAndReadAllRoundTrip(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(filepath.Join(dir, "nested", "audit.ndjson"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	account := uint32(0)
	entries := []Entry{
		{Operation: OpScan, Zone: "Cyprus1", Account: &account, Status: StatusSuccess},
		{Operation: OpSend, Zone: "Paxos2", Account: &account, Status: StatusFailure, FailureReason: "insufficient funds"},
	}
	for _, e := range entries {
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	got, err := logger.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Operation != OpScan || got[0].Status != StatusSuccess {
		t.Errorf("entry 0 = %+v", got[0])
	}
	if got[1].Operation != OpSend || got[1].FailureReason != "insufficient funds" {
		t.Errorf("entry 1 = %+v", got[1])
	}
}

func TestReadAllOnMissingFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(filepath.Join(dir, "audit.ndjson"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := logger.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty log, got %d entries", len(got))
	}
}
