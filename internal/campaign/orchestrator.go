package campaign

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SAM252003/Nehoris/internal/brand"
	"github.com/SAM252003/Nehoris/internal/dispatch"
	"github.com/SAM252003/Nehoris/internal/logging"
	"github.com/SAM252003/Nehoris/internal/metrics"
	"github.com/SAM252003/Nehoris/internal/progress"
)

// Orchestrator runs campaigns end to end. A nil Store is allowed: state is
// then kept in memory only and the audit still completes.
type Orchestrator struct {
	pool     *dispatch.Pool
	store    Store
	progress *progress.Registry

	mu   sync.Mutex
	runs map[string]*Run

	now   func() time.Time // test hooks
	newID func() string
}

// NewOrchestrator wires an orchestrator over its collaborators.
func NewOrchestrator(pool *dispatch.Pool, store Store, reg *progress.Registry) *Orchestrator {
	if reg == nil {
		reg = progress.NewRegistry()
	}
	return &Orchestrator{
		pool:     pool,
		store:    store,
		progress: reg,
		runs:     make(map[string]*Run),
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// Validate checks a spec and fills defaults in place.
func Validate(spec *Spec) error {
	if len(spec.Prompts) == 0 {
		return fmt.Errorf("campaign has no prompts")
	}
	if len(spec.Brands) == 0 {
		return fmt.Errorf("campaign has no brands to track")
	}
	if spec.Provider == "" {
		return fmt.Errorf("campaign has no provider")
	}
	if spec.PrimaryBrand == "" {
		spec.PrimaryBrand = spec.Brands[0].Name
	}
	found := false
	for _, b := range spec.Brands {
		if b.Name == spec.PrimaryBrand {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("primary brand %q is not in the tracked brand list", spec.PrimaryBrand)
	}
	if spec.RunsPerPrompt <= 0 {
		spec.RunsPerPrompt = 1
	}
	if spec.FuzzyThreshold < 0 || spec.FuzzyThreshold > 100 {
		return fmt.Errorf("fuzzy threshold %d out of range [0,100]", spec.FuzzyThreshold)
	}
	return nil
}

// Start validates the spec, records the campaign as queued, and launches
// execution in the background. It returns the campaign ID immediately.
func (o *Orchestrator) Start(ctx context.Context, spec Spec) (string, error) {
	if err := Validate(&spec); err != nil {
		return "", err
	}
	if spec.ID == "" {
		spec.ID = o.newID()
	}

	run := &Run{
		ID:        spec.ID,
		Spec:      spec,
		Status:    StatusQueued,
		CreatedAt: o.now(),
		Total:     len(spec.Prompts) * spec.RunsPerPrompt,
	}

	o.mu.Lock()
	if _, exists := o.runs[run.ID]; exists {
		o.mu.Unlock()
		return "", fmt.Errorf("campaign %s already exists", run.ID)
	}
	o.runs[run.ID] = run
	o.mu.Unlock()

	if o.store != nil {
		if err := o.store.CreateCampaign(ctx, run); err != nil {
			// Persistence is best-effort: the audit proceeds in memory.
			logging.CampaignError("campaign %s: persist failed, continuing in memory: %v", run.ID, err)
		}
	}

	logging.Campaign("campaign %s queued: prompts=%d runs_per_prompt=%d provider=%s",
		run.ID, len(spec.Prompts), spec.RunsPerPrompt, spec.Provider)
	go o.execute(run.ID)
	return run.ID, nil
}

// Status returns a copy of the campaign's current state.
func (o *Orchestrator) Status(id string) (Run, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	run, ok := o.runs[id]
	if !ok {
		return Run{}, false
	}
	return *run, true
}

// Subscribe attaches a progress listener for a campaign. Subscribing before
// Start is fine; the broker is created on first use either way.
func (o *Orchestrator) Subscribe(id string) *progress.Subscription {
	return o.progress.GetOrCreate(id).Subscribe()
}

// Rows returns the accumulated result rows for a campaign.
func (o *Orchestrator) Rows(id string) []progress.Row {
	return o.progress.GetOrCreate(id).SnapshotRows()
}

func (o *Orchestrator) execute(id string) {
	ctx := context.Background()
	o.mu.Lock()
	run := o.runs[id]
	o.mu.Unlock()
	spec := run.Spec

	broker := o.progress.GetOrCreate(id)
	o.setStatus(ctx, run, StatusRunning, "")
	broker.Publish(progress.Event{
		Type:    progress.EventStatus,
		Message: string(StatusRunning),
		Total:   run.Total,
	})

	variantMap := brand.VariantMap(spec.Brands)
	summaries := make([]metrics.ResponseSummary, 0, run.Total)
	completed := 0
	failed := 0

	for _, prompt := range spec.Prompts {
		reqs := make([]dispatch.Request, spec.RunsPerPrompt)
		for i := range reqs {
			reqs[i] = dispatch.Request{
				Provider:    spec.Provider,
				Model:       spec.Model,
				Temperature: spec.Temperature,
				Prompt:      prompt,
			}
		}

		batch, err := o.pool.RunBatch(ctx, reqs)
		if err != nil {
			o.fail(ctx, run, broker, fmt.Errorf("dispatch failed: %w", err))
			return
		}

		for _, res := range batch.Results {
			row := o.processResult(ctx, run, variantMap, prompt, res, &summaries)
			completed++
			if row.Failed {
				failed++
			}
			broker.Publish(progress.Event{Type: progress.EventRow, Row: &row})
			broker.Publish(progress.Event{
				Type:      progress.EventProgress,
				Completed: completed,
				Total:     run.Total,
			})
			o.mu.Lock()
			run.Completed = completed
			o.mu.Unlock()
		}
	}

	// No unit produced a response: the provider was unreachable for the
	// whole run, so there is nothing to aggregate.
	if failed == run.Total {
		o.fail(ctx, run, broker, fmt.Errorf("all %d runs failed, no provider response received", run.Total))
		return
	}

	batchMetrics := metrics.Aggregate(summaries)
	sov := metrics.ShareOfVoice(batchMetrics, spec.PrimaryBrand)

	o.mu.Lock()
	run.Metrics = batchMetrics
	run.ShareOfVoice = sov
	o.mu.Unlock()
	o.setStatus(ctx, run, StatusDone, "")

	primary := batchMetrics.ByBrand[spec.PrimaryBrand]
	logging.Campaign("campaign %s done: mention_rate=%.3f share_of_voice=%.3f",
		id, primary.MentionRate, sov)
	broker.Publish(progress.Event{
		Type:    progress.EventDone,
		Message: "campaign complete",
		Payload: map[string]interface{}{
			"metrics":        batchMetrics,
			"share_of_voice": sov,
			"primary_brand":  spec.PrimaryBrand,
		},
	})
}

// processResult turns one dispatch result into a persisted run record and a
// progress row, appending its summary to the batch. Failed results
// contribute an empty summary so the mention rate denominator still counts
// every prompt run.
func (o *Orchestrator) processResult(ctx context.Context, run *Run, variantMap map[string]string,
	prompt string, res dispatch.Result, summaries *[]metrics.ResponseSummary) progress.Row {

	spec := run.Spec
	row := progress.Row{
		Prompt:   prompt,
		Run:      res.Index,
		Provider: res.Provider,
		Model:    spec.Model,
		Elapsed:  res.Elapsed.Seconds(),
		CacheHit: res.CacheHit,
		Failed:   res.Failed,
		Error:    res.Err,
	}

	var summary metrics.ResponseSummary
	if res.Failed {
		summary = metrics.ResponseSummary{}
	} else {
		matches, err := brand.Detect(res.Response, spec.Brands, spec.FuzzyThreshold)
		if err != nil {
			row.Failed = true
			row.Error = err.Error()
			summary = metrics.ResponseSummary{}
		} else {
			summary = metrics.Summarize(matches)
			primary := summary[spec.PrimaryBrand]
			row.Mentioned = primary.Total > 0
			row.Mentions = primary.Total
			row.Rank = brand.ExtractRanking(res.Response, variantMap)[spec.PrimaryBrand]
		}
	}
	*summaries = append(*summaries, summary)

	if o.store != nil {
		rec := RunRecord{
			CampaignID: run.ID,
			Prompt:     prompt,
			RunIndex:   res.Index,
			Provider:   res.Provider,
			Model:      spec.Model,
			Response:   res.Response,
			Mentions:   row.Mentions,
			Rank:       row.Rank,
			ElapsedMS:  res.Elapsed.Milliseconds(),
			CacheHit:   res.CacheHit,
			Failed:     row.Failed,
			Error:      row.Error,
			CreatedAt:  o.now(),
		}
		if err := o.store.AppendRun(ctx, rec); err != nil {
			logging.CampaignError("campaign %s: append run failed: %v", run.ID, err)
		}
	}
	return row
}

func (o *Orchestrator) fail(ctx context.Context, run *Run, broker *progress.Broker, err error) {
	logging.CampaignError("campaign %s failed: %v", run.ID, err)
	o.setStatus(ctx, run, StatusError, err.Error())
	broker.Publish(progress.Event{Type: progress.EventError, Message: err.Error()})
}

func (o *Orchestrator) setStatus(ctx context.Context, run *Run, status Status, errMsg string) {
	o.mu.Lock()
	run.Status = status
	run.Error = errMsg
	switch status {
	case StatusRunning:
		run.StartedAt = o.now()
	case StatusDone, StatusError:
		run.FinishedAt = o.now()
	}
	o.mu.Unlock()

	if o.store != nil {
		if err := o.store.UpdateStatus(ctx, run.ID, status, errMsg); err != nil {
			logging.CampaignError("campaign %s: status update failed: %v", run.ID, err)
		}
	}
}
