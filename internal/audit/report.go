package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Report renders a summary of a ledger range. Structured reports are JSON;
// narrative reports are plain text for humans.
type Report struct {
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Stats   Stats     `json:"stats"`
	Entries []Entry   `json:"entries,omitempty"`
}

// BuildReport assembles a report over a range. includeEntries controls
// whether the raw entries ride along with the aggregate.
func (l *Ledger) BuildReport(from, to time.Time, includeEntries bool) Report {
	r := Report{
		From:  from,
		To:    to,
		Stats: l.Stats(from, to),
	}
	if includeEntries {
		r.Entries = l.Range(from, to)
	}
	return r
}

// JSON renders the report as indented JSON.
func (r Report) JSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	return string(data), nil
}

// Narrative renders the report as a human-readable summary.
func (r Report) Narrative() string {
	var b strings.Builder

	period := "all recorded activity"
	if !r.From.IsZero() || !r.To.IsZero() {
		from := "the beginning"
		if !r.From.IsZero() {
			from = r.From.Format(time.RFC3339)
		}
		to := "now"
		if !r.To.IsZero() {
			to = r.To.Format(time.RFC3339)
		}
		period = fmt.Sprintf("%s through %s", from, to)
	}

	fmt.Fprintf(&b, "Audit summary for %s.\n\n", period)
	fmt.Fprintf(&b, "Recorded %d entries at a total model cost of $%.4f.\n", r.Stats.Entries, r.Stats.TotalCost)

	if r.Stats.Unpriced > 0 {
		fmt.Fprintf(&b, "%d entries carry unpriced usage (unknown models priced at zero).\n", r.Stats.Unpriced)
	}

	if r.Stats.Approved+r.Stats.Rejected > 0 {
		fmt.Fprintf(&b, "Approvals: %d (%d automatic), rejections: %d.\n",
			r.Stats.Approved, r.Stats.AutoApproved, r.Stats.Rejected)
	}

	if r.Stats.Errors > 0 {
		fmt.Fprintf(&b, "%d errors were recorded.\n", r.Stats.Errors)
	}

	if len(r.Stats.ByType) > 0 {
		b.WriteString("\nBy type:\n")
		for _, t := range []EntryType{
			TypeGeneration, TypeReview, TypeCommit, TypeApproval,
			TypeRejection, TypeRollback, TypeExecution, TypeTrace, TypeError,
		} {
			if n, ok := r.Stats.ByType[t]; ok {
				fmt.Fprintf(&b, "  %-10s %d\n", t, n)
			}
		}
	}

	return b.String()
}
