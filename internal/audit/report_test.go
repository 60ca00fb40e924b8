package audit

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func reportLedger(t *testing.T) *Ledger {
	t.Helper()
	ledger, err := NewLedger(Options{})
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })

	appends := []Entry{
		{Type: TypeGeneration, TaskID: "t1", Message: "generated", Cost: 0.04},
		{Type: TypeApproval, TaskID: "t1", Message: "auto-approved", Details: map[string]any{"autoApproved": true}},
		{Type: TypeCommit, TaskID: "t1", Message: "committed"},
		{Type: TypeError, TaskID: "t2", Message: "provider failure"},
	}
	for _, e := range appends {
		if _, err := ledger.Append(e); err != nil {
			t.Fatal(err)
		}
	}
	return ledger
}

func TestBuildReportJSON(t *testing.T) {
	ledger := reportLedger(t)

	report := ledger.BuildReport(time.Time{}, time.Time{}, true)
	if report.Stats.Entries != 4 {
		t.Errorf("Entries = %d, want 4", report.Stats.Entries)
	}
	if len(report.Entries) != 4 {
		t.Errorf("included entries = %d, want 4", len(report.Entries))
	}

	data, err := report.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(data), &decoded); err != nil {
		t.Fatalf("report JSON does not parse: %v", err)
	}
}

func TestBuildReportWithoutEntries(t *testing.T) {
	ledger := reportLedger(t)

	report := ledger.BuildReport(time.Time{}, time.Time{}, false)
	if len(report.Entries) != 0 {
		t.Errorf("entries must be omitted, got %d", len(report.Entries))
	}
	if report.Stats.Entries != 4 {
		t.Errorf("stats must still cover the range, got %d", report.Stats.Entries)
	}
}

func TestNarrativeMentionsKeyFigures(t *testing.T) {
	ledger := reportLedger(t)

	text := ledger.BuildReport(time.Time{}, time.Time{}, false).Narrative()
	for _, want := range []string{"4", "0.04", "1"} {
		if !strings.Contains(text, want) {
			t.Errorf("narrative missing %q:\n%s", want, text)
		}
	}
}
