package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// UsageRecord is one completed-call accounting row.
type UsageRecord struct {
	Timestamp        time.Time
	TaskID           string
	Kind             TaskKind
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Cost             float64
	Unpriced         bool
}

// UsageTotals aggregates usage rows over a period.
type UsageTotals struct {
	Calls            int
	PromptTokens     int64
	CompletionTokens int64
	Cost             float64
	UnpricedCalls    int
}

// UsageStore persists per-call token and cost accounting in sqlite.
type UsageStore struct {
	db *sql.DB
}

// NewUsageStore opens (or creates) the usage database at dbPath.
func NewUsageStore(ctx context.Context, dbPath string) (*UsageStore, error) {
	// WAL mode for concurrent readers; single writer is enough for this store.
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping usage database: %w", err)
	}

	s := &UsageStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize usage schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *UsageStore) Close() error {
	return s.db.Close()
}

func (s *UsageStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		ts_unix           INTEGER NOT NULL,
		task_id           TEXT NOT NULL DEFAULT '',
		kind              TEXT NOT NULL,
		provider          TEXT NOT NULL,
		model             TEXT NOT NULL,
		prompt_tokens     INTEGER NOT NULL,
		completion_tokens INTEGER NOT NULL,
		cost              REAL NOT NULL,
		unpriced          INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_usage_ts ON usage(ts_unix);
	CREATE INDEX IF NOT EXISTS idx_usage_task ON usage(task_id);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	return nil
}

// Record appends one usage row.
func (s *UsageStore) Record(ctx context.Context, r UsageRecord) error {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	unpriced := 0
	if r.Unpriced {
		unpriced = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage (ts_unix, task_id, kind, provider, model, prompt_tokens, completion_tokens, cost, unpriced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.Unix(), r.TaskID, string(r.Kind), r.Provider, r.Model,
		r.PromptTokens, r.CompletionTokens, r.Cost, unpriced,
	)
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// Totals aggregates usage since the given time (zero time = everything).
func (s *UsageStore) Totals(ctx context.Context, since time.Time) (UsageTotals, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(prompt_tokens), 0),
		       COALESCE(SUM(completion_tokens), 0),
		       COALESCE(SUM(cost), 0),
		       COALESCE(SUM(unpriced), 0)
		FROM usage WHERE ts_unix >= ?`, since.Unix())

	var t UsageTotals
	if err := row.Scan(&t.Calls, &t.PromptTokens, &t.CompletionTokens, &t.Cost, &t.UnpricedCalls); err != nil {
		return UsageTotals{}, fmt.Errorf("failed to aggregate usage: %w", err)
	}
	return t, nil
}

// TotalsByProvider aggregates cost per provider since the given time.
func (s *UsageStore) TotalsByProvider(ctx context.Context, since time.Time) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, COALESCE(SUM(cost), 0)
		FROM usage WHERE ts_unix >= ? GROUP BY provider`, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage by provider: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var provider string
		var cost float64
		if err := rows.Scan(&provider, &cost); err != nil {
			return nil, err
		}
		out[provider] = cost
	}
	return out, rows.Err()
}
