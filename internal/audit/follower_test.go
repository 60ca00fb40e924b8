package audit

import (
	"path/filepath"
	"testing"
	"time"
)

func TestFollowerDeliversNewEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.ndjson")

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ledger, err := NewLedger(Options{Store: store})
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}

	// Appended before the follower starts: must not be delivered.
	if _, err := ledger.Append(Entry{Type: TypeTrace, Message: "old"}); err != nil {
		t.Fatal(err)
	}

	follower, err := NewFollower(path)
	if err != nil {
		t.Fatalf("NewFollower: %v", err)
	}
	defer follower.Close()

	want, err := ledger.Append(Entry{Type: TypeCommit, TaskID: "t1", Message: "new commit"})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-follower.Entries():
		if got.ID != want.ID || got.Message != "new commit" {
			t.Errorf("delivered entry = %+v, want %+v", got, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("follower did not deliver the appended entry")
	}

	if err := ledger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
