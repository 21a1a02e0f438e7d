// Package store persists campaigns and per-prompt runs in a local SQLite
// database. The schema is created on open; no external migration tooling.
package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/SAM252003/Nehoris/internal/campaign"
	"github.com/SAM252003/Nehoris/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS campaigns (
	id          TEXT PRIMARY KEY,
	spec        TEXT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	campaign_id TEXT NOT NULL REFERENCES campaigns(id),
	prompt      TEXT NOT NULL,
	run_index   INTEGER NOT NULL,
	provider    TEXT NOT NULL,
	model       TEXT NOT NULL,
	response    TEXT NOT NULL,
	mentions    INTEGER NOT NULL,
	rank        INTEGER NOT NULL,
	elapsed_ms  INTEGER NOT NULL,
	cache_hit   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_campaign ON runs(campaign_id);
`

// SQLite implements campaign.Store over a local database file.
type SQLite struct {
	db *sql.DB
}

// Open creates or opens the database at path and ensures the schema.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc's driver is not safe for concurrent writers over multiple
	// connections; serialize through one.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	logging.Store("opened database at %s", path)
	return &SQLite{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error { return s.db.Close() }

// CreateCampaign inserts a new campaign row.
func (s *SQLite) CreateCampaign(ctx context.Context, run *campaign.Run) error {
	spec, err := json.Marshal(run.Spec)
	if err != nil {
		return fmt.Errorf("failed to encode spec: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, spec, status, error, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, string(spec), string(run.Status), run.Error, run.CreatedAt, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert campaign: %w", err)
	}
	return nil
}

// UpdateStatus moves a campaign to a new lifecycle state.
func (s *SQLite) UpdateStatus(ctx context.Context, id string, status campaign.Status, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("campaign %s not found", id)
	}
	return nil
}

// AppendRun inserts one prompt run.
func (s *SQLite) AppendRun(ctx context.Context, rec campaign.RunRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (campaign_id, prompt, run_index, provider, model, response,
			mentions, rank, elapsed_ms, cache_hit, failed, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CampaignID, rec.Prompt, rec.RunIndex, rec.Provider, rec.Model, rec.Response,
		rec.Mentions, rec.Rank, rec.ElapsedMS, boolInt(rec.CacheHit), boolInt(rec.Failed),
		rec.Error, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// GetCampaign loads one campaign's persisted state.
func (s *SQLite) GetCampaign(ctx context.Context, id string) (*campaign.Run, error) {
	var run campaign.Run
	var spec string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, spec, status, error, created_at FROM campaigns WHERE id = ?`, id).
		Scan(&run.ID, &spec, (*string)(&run.Status), &run.Error, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("campaign %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	if err := json.Unmarshal([]byte(spec), &run.Spec); err != nil {
		return nil, fmt.Errorf("failed to decode spec: %w", err)
	}
	return &run, nil
}

// ListRuns returns all persisted runs for a campaign in insertion order.
func (s *SQLite) ListRuns(ctx context.Context, campaignID string) ([]campaign.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT campaign_id, prompt, run_index, provider, model, response,
			mentions, rank, elapsed_ms, cache_hit, failed, error, created_at
		 FROM runs WHERE campaign_id = ? ORDER BY id`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []campaign.RunRecord
	for rows.Next() {
		var rec campaign.RunRecord
		var cacheHit, failed int
		if err := rows.Scan(&rec.CampaignID, &rec.Prompt, &rec.RunIndex, &rec.Provider,
			&rec.Model, &rec.Response, &rec.Mentions, &rec.Rank, &rec.ElapsedMS,
			&cacheHit, &failed, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.CacheHit = cacheHit != 0
		rec.Failed = failed != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ExportRowsCSV writes a campaign's runs as CSV.
func (s *SQLite) ExportRowsCSV(ctx context.Context, campaignID string, w io.Writer) error {
	recs, err := s.ListRuns(ctx, campaignID)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	header := []string{"prompt", "run", "provider", "model", "mentions", "rank",
		"elapsed_ms", "cache_hit", "failed", "error"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range recs {
		row := []string{
			rec.Prompt,
			strconv.Itoa(rec.RunIndex),
			rec.Provider,
			rec.Model,
			strconv.Itoa(rec.Mentions),
			strconv.Itoa(rec.Rank),
			strconv.FormatInt(rec.ElapsedMS, 10),
			strconv.FormatBool(rec.CacheHit),
			strconv.FormatBool(rec.Failed),
			rec.Error,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
