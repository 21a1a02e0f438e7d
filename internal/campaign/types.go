// Package campaign orchestrates full visibility audits: it expands a
// campaign spec into provider requests, dispatches them, runs mention
// detection and ranking over each response, aggregates the metrics, and
// streams progress to subscribers while persisting state.
package campaign

import (
	"context"
	"time"

	"github.com/SAM252003/Nehoris/internal/brand"
	"github.com/SAM252003/Nehoris/internal/metrics"
)

// Status is a campaign lifecycle state.
type Status string

// Lifecycle states. Transitions are strictly forward:
// queued -> running -> done | error.
const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Spec describes one audit campaign.
type Spec struct {
	ID             string        `yaml:"id" json:"id"` // assigned when empty
	Prompts        []string      `yaml:"prompts" json:"prompts"`
	RunsPerPrompt  int           `yaml:"runs_per_prompt" json:"runs_per_prompt"`
	Provider       string        `yaml:"provider" json:"provider"`
	Model          string        `yaml:"model" json:"model"`
	Temperature    float64       `yaml:"temperature" json:"temperature"`
	Brands         []brand.Brand `yaml:"brands" json:"brands"`
	PrimaryBrand   string        `yaml:"primary_brand" json:"primary_brand"`
	FuzzyThreshold int           `yaml:"fuzzy_threshold" json:"fuzzy_threshold"`
}

// Run is the tracked state of one campaign execution.
type Run struct {
	ID           string               `json:"id"`
	Spec         Spec                 `json:"spec"`
	Status       Status               `json:"status"`
	Error        string               `json:"error,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	StartedAt    time.Time            `json:"started_at,omitempty"`
	FinishedAt   time.Time            `json:"finished_at,omitempty"`
	Completed    int                  `json:"completed"`
	Total        int                  `json:"total"`
	Metrics      metrics.BatchMetrics `json:"metrics,omitempty"`
	ShareOfVoice float64              `json:"share_of_voice"`
}

// RunRecord is one persisted prompt run.
type RunRecord struct {
	CampaignID string    `json:"campaign_id"`
	Prompt     string    `json:"prompt"`
	RunIndex   int       `json:"run_index"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	Response   string    `json:"response"`
	Mentions   int       `json:"mentions"`
	Rank       int       `json:"rank"` // 0 means unranked
	ElapsedMS  int64     `json:"elapsed_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Failed     bool      `json:"failed"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists campaigns and their runs. Implementations must tolerate
// concurrent writers for distinct campaigns.
type Store interface {
	CreateCampaign(ctx context.Context, run *Run) error
	UpdateStatus(ctx context.Context, id string, status Status, errMsg string) error
	AppendRun(ctx context.Context, rec RunRecord) error
}
