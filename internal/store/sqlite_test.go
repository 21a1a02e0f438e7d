package store

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAM252003/Nehoris/internal/brand"
	"github.com/SAM252003/Nehoris/internal/campaign"
)

func openTest(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id string) *campaign.Run {
	return &campaign.Run{
		ID: id,
		Spec: campaign.Spec{
			ID:            id,
			Prompts:       []string{"best vendors?"},
			RunsPerPrompt: 2,
			Provider:      "openai",
			Brands:        []brand.Brand{{Name: "ACME"}},
			PrimaryBrand:  "ACME",
		},
		Status:    campaign.StatusQueued,
		CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCampaignRoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.CreateCampaign(ctx, sampleRun("c1")))

	got, err := s.GetCampaign(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)
	assert.Equal(t, campaign.StatusQueued, got.Status)
	assert.Equal(t, "ACME", got.Spec.PrimaryBrand)
	assert.Equal(t, 2, got.Spec.RunsPerPrompt)
}

func TestUpdateStatus(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCampaign(ctx, sampleRun("c1")))

	require.NoError(t, s.UpdateStatus(ctx, "c1", campaign.StatusRunning, ""))
	require.NoError(t, s.UpdateStatus(ctx, "c1", campaign.StatusError, "provider down"))

	got, err := s.GetCampaign(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusError, got.Status)
	assert.Equal(t, "provider down", got.Error)
}

func TestUpdateStatusUnknownCampaign(t *testing.T) {
	s := openTest(t)
	err := s.UpdateStatus(context.Background(), "ghost", campaign.StatusDone, "")
	assert.Error(t, err)
}

func TestAppendAndListRuns(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCampaign(ctx, sampleRun("c1")))

	recs := []campaign.RunRecord{
		{CampaignID: "c1", Prompt: "p1", RunIndex: 0, Provider: "openai", Model: "gpt-4o-mini",
			Response: "ACME wins", Mentions: 1, Rank: 1, ElapsedMS: 840, CreatedAt: time.Now().UTC()},
		{CampaignID: "c1", Prompt: "p1", RunIndex: 1, Provider: "openai", Model: "gpt-4o-mini",
			CacheHit: true, Mentions: 1, ElapsedMS: 2, CreatedAt: time.Now().UTC()},
		{CampaignID: "c1", Prompt: "p2", RunIndex: 0, Provider: "openai", Model: "gpt-4o-mini",
			Failed: true, Error: "timeout", CreatedAt: time.Now().UTC()},
	}
	for _, rec := range recs {
		require.NoError(t, s.AppendRun(ctx, rec))
	}

	got, err := s.ListRuns(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "p1", got[0].Prompt)
	assert.True(t, got[1].CacheHit)
	assert.True(t, got[2].Failed)
	assert.Equal(t, "timeout", got[2].Error)

	other, err := s.ListRuns(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestExportRowsCSV(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCampaign(ctx, sampleRun("c1")))
	require.NoError(t, s.AppendRun(ctx, campaign.RunRecord{
		CampaignID: "c1", Prompt: "best, vendors?", Provider: "openai",
		Model: "gpt-4o-mini", Mentions: 2, Rank: 1, ElapsedMS: 500,
		CreatedAt: time.Now().UTC(),
	}))

	var buf bytes.Buffer
	require.NoError(t, s.ExportRowsCSV(ctx, "c1", &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "prompt,run,provider")
	assert.Contains(t, lines[1], `"best, vendors?"`)
	assert.Contains(t, lines[1], "openai")
}
