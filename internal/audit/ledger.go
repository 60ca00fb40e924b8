package audit

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxEntries caps the in-memory buffer. The persistent store is
// never trimmed; this bound only protects process memory.
const DefaultMaxEntries = 10000

// Ledger is the append-only audit log. Appends are serialized; reads
// operate on a snapshot and may run concurrently with appends.
//
// Construct one Ledger per process and pass it explicitly to consumers.
type Ledger struct {
	mu      sync.RWMutex
	entries []Entry
	max     int
	store   Store  // optional
	search  *Index // optional
}

// Options configures a Ledger.
type Options struct {
	Store      Store // optional; nil keeps the ledger memory-only
	MaxEntries int   // 0 = DefaultMaxEntries
	Search     bool  // build a full-text index over entry messages
}

// NewLedger creates a ledger, replaying the store's history into memory
// (trimmed to the cap, oldest first) when a store is configured.
func NewLedger(opts Options) (*Ledger, error) {
	max := opts.MaxEntries
	if max <= 0 {
		max = DefaultMaxEntries
	}

	l := &Ledger{max: max, store: opts.Store}

	if opts.Search {
		idx, err := NewIndex()
		if err != nil {
			return nil, fmt.Errorf("failed to create search index: %w", err)
		}
		l.search = idx
	}

	if opts.Store != nil {
		replayed, err := opts.Store.Replay()
		if err != nil {
			return nil, fmt.Errorf("failed to replay ledger: %w", err)
		}
		if len(replayed) > max {
			replayed = replayed[len(replayed)-max:]
		}
		l.entries = replayed
		if l.search != nil {
			for _, e := range replayed {
				if err := l.search.Add(e); err != nil {
					log.Printf("WARNING: failed to index replayed entry %s: %v", e.ID, err)
				}
			}
		}
	}

	return l, nil
}

// Append assigns an ID and timestamp, persists the entry, and adds it to the
// in-memory buffer. The store write happens first: an error event must reach
// durable storage even if the process dies before the buffer is updated.
func (l *Ledger) Append(e Entry) (Entry, error) {
	e.ID = uuid.NewString()
	e.Timestamp = time.Now().UTC()

	if l.store != nil {
		if err := l.store.Append(e); err != nil {
			return Entry{}, fmt.Errorf("failed to persist audit entry: %w", err)
		}
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
	l.mu.Unlock()

	if l.search != nil {
		if err := l.search.Add(e); err != nil {
			log.Printf("WARNING: failed to index audit entry %s: %v", e.ID, err)
		}
	}

	return e, nil
}

// Record is Append with the common fields spelled out.
func (l *Ledger) Record(t EntryType, taskID, component, message string, details map[string]any) Entry {
	e, err := l.Append(Entry{
		Type:      t,
		TaskID:    taskID,
		Component: component,
		Message:   message,
		Details:   details,
	})
	if err != nil {
		// The caller's operation must not fail because auditing did; the
		// loss is logged loudly instead.
		log.Printf("ERROR: audit append failed (type=%s task=%s): %v", t, taskID, err)
	}
	return e
}

// RecordCost is Record with usage accounting attached: the entry carries
// the completion cost, and an unpriced model marks the entry so Stats can
// surface usage that never made it into the bill.
func (l *Ledger) RecordCost(t EntryType, taskID, component, message string, cost float64, unpriced bool, details map[string]any) Entry {
	if unpriced {
		if details == nil {
			details = map[string]any{}
		}
		details["unpriced"] = true
	}
	e, err := l.Append(Entry{
		Type:      t,
		TaskID:    taskID,
		Component: component,
		Message:   message,
		Details:   details,
		Cost:      cost,
	})
	if err != nil {
		log.Printf("ERROR: audit append failed (type=%s task=%s): %v", t, taskID, err)
	}
	return e
}

// snapshot copies the current buffer under the read lock.
func (l *Ledger) snapshot() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// All returns every buffered entry in append order.
func (l *Ledger) All() []Entry {
	return l.snapshot()
}

// ByType returns buffered entries of one type.
func (l *Ledger) ByType(t EntryType) []Entry {
	var out []Entry
	for _, e := range l.snapshot() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// ByTask returns buffered entries for one task.
func (l *Ledger) ByTask(taskID string) []Entry {
	var out []Entry
	for _, e := range l.snapshot() {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out
}

// Range returns buffered entries with from <= timestamp <= to.
// A zero bound is open on that side.
func (l *Ledger) Range(from, to time.Time) []Entry {
	var out []Entry
	for _, e := range l.snapshot() {
		if !from.IsZero() && e.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && e.Timestamp.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Stats aggregates the given range.
func (l *Ledger) Stats(from, to time.Time) Stats {
	s := Stats{ByType: make(map[EntryType]int)}

	for _, e := range l.Range(from, to) {
		s.Entries++
		s.TotalCost += e.Cost
		s.ByType[e.Type]++

		switch e.Type {
		case TypeApproval:
			s.Approved++
			if auto, ok := e.Details["autoApproved"].(bool); ok && auto {
				s.AutoApproved++
			}
		case TypeRejection:
			s.Rejected++
		case TypeError:
			s.Errors++
		}

		if unpriced, ok := e.Details["unpriced"].(bool); ok && unpriced {
			s.Unpriced++
		}
	}

	return s
}

// SearchMessages queries the full-text index over entry messages.
// Returns an error when the ledger was built without search.
func (l *Ledger) SearchMessages(query string) ([]Entry, error) {
	if l.search == nil {
		return nil, fmt.Errorf("ledger search index not enabled")
	}

	ids, err := l.search.Query(query)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Entry)
	for _, e := range l.snapshot() {
		byID[e.ID] = e
	}

	var out []Entry
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// Len returns the number of buffered entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Close releases the search index and the backing store.
func (l *Ledger) Close() error {
	var firstErr error
	if l.search != nil {
		if err := l.search.Close(); err != nil {
			firstErr = err
		}
	}
	if l.store != nil {
		if err := l.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
