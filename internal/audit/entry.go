// Package audit provides the append-only ledger that makes every automated
// decision reconstructable: generations, reviews, commits, approvals,
// rejections, rollbacks, executions, and errors.
package audit

import "time"

// EntryType classifies a ledger entry.
type EntryType string

const (
	TypeGeneration EntryType = "generation"
	TypeReview     EntryType = "review"
	TypeCommit     EntryType = "commit"
	TypeApproval   EntryType = "approval"
	TypeRejection  EntryType = "rejection"
	TypeRollback   EntryType = "rollback"
	TypeExecution  EntryType = "execution"
	TypeTrace      EntryType = "trace"
	TypeError      EntryType = "error"
)

// Entry is one immutable ledger record. ID and Timestamp are assigned by the
// ledger on append; entries are never mutated afterwards.
type Entry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EntryType      `json:"type"`
	TaskID    string         `json:"taskId,omitempty"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Cost      float64        `json:"cost,omitempty"`
}

// Stats aggregates a ledger range.
type Stats struct {
	Entries      int               `json:"entries"`
	TotalCost    float64           `json:"totalCost"`
	ByType       map[EntryType]int `json:"byType"`
	Approved     int               `json:"approved"`
	Rejected     int               `json:"rejected"`
	AutoApproved int               `json:"autoApproved"`
	Errors       int               `json:"errors"`
	Unpriced     int               `json:"unpriced"`
}
