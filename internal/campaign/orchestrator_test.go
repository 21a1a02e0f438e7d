package campaign

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SAM252003/Nehoris/internal/brand"
	"github.com/SAM252003/Nehoris/internal/dispatch"
	"github.com/SAM252003/Nehoris/internal/progress"
	"github.com/SAM252003/Nehoris/internal/provider"
	"github.com/SAM252003/Nehoris/internal/resilience"
)

// scriptedProvider answers prompts from a fixed table.
type scriptedProvider struct {
	name    string
	answers map[string]string
	err     error
}

func (s *scriptedProvider) Name() string { return s.name }

func (s *scriptedProvider) Call(ctx context.Context, prompt, model string, temperature float64) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if a, ok := s.answers[prompt]; ok {
		return a, nil
	}
	return "nothing to say", nil
}

// memStore records store calls for assertions.
type memStore struct {
	mu       sync.Mutex
	created  []string
	statuses []Status
	runs     []RunRecord
	failWith error
}

func (m *memStore) CreateCampaign(ctx context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.created = append(m.created, run.ID)
	return nil
}

func (m *memStore) UpdateStatus(ctx context.Context, id string, status Status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *memStore) AppendRun(ctx context.Context, rec RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.runs = append(m.runs, rec)
	return nil
}

func testPool(provs ...provider.Provider) *dispatch.Pool {
	reg := provider.NewRegistry()
	for _, p := range provs {
		reg.Register(p)
	}
	return dispatch.NewPool(dispatch.PoolConfig{
		Workers:      3,
		BatchTimeout: 5 * time.Second,
		Retry:        resilience.RetryConfig{MaxRetries: 0, BackoffBase: 1},
	}, reg, resilience.NewRegistry(resilience.DefaultBreakerConfig()))
}

func testSpec(prompts ...string) Spec {
	return Spec{
		Prompts:        prompts,
		RunsPerPrompt:  1,
		Provider:       "mock",
		Model:          "test-model",
		Brands:         []brand.Brand{{Name: "ACME", Variants: []string{"Acme Inc"}}, {Name: "Globex"}},
		PrimaryBrand:   "ACME",
		FuzzyThreshold: 0,
	}
}

// waitDone consumes the subscription until a done or error event arrives.
func waitDone(t *testing.T, sub *progress.Subscription) []progress.Event {
	t.Helper()
	var events []progress.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				t.Fatal("subscription closed before campaign finished")
			}
			events = append(events, ev)
			if ev.Type == progress.EventDone || ev.Type == progress.EventError {
				return events
			}
		case <-timeout:
			t.Fatal("campaign did not finish in time")
		}
	}
}

func TestCampaignEndToEnd(t *testing.T) {
	prov := &scriptedProvider{name: "mock", answers: map[string]string{
		"best vendors?": "1. Acme\n2. Globex\n",
		"who leads?":    "Globex leads the market.",
	}}
	store := &memStore{}
	orch := NewOrchestrator(testPool(prov), store, progress.NewRegistry())

	// Subscribe before Start so every row event is observed.
	spec := testSpec("best vendors?", "who leads?")
	spec.ID = "e2e-test"
	sub := orch.Subscribe(spec.ID)
	defer sub.Close()

	id, err := orch.Start(context.Background(), spec)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := waitDone(t, sub)

	run, ok := orch.Status(id)
	if !ok || run.Status != StatusDone {
		t.Fatalf("campaign status = %+v", run)
	}

	acme := run.Metrics.ByBrand["ACME"]
	if acme.PromptsWithMention != 1 || acme.MentionRate != 0.5 {
		t.Errorf("ACME metrics = %+v", acme)
	}
	globex := run.Metrics.ByBrand["Globex"]
	if globex.PromptsWithMention != 2 {
		t.Errorf("Globex metrics = %+v", globex)
	}
	if run.ShareOfVoice <= 0 || run.ShareOfVoice >= 1 {
		t.Errorf("share of voice = %v", run.ShareOfVoice)
	}

	var rows int
	for _, ev := range events {
		if ev.Type == progress.EventRow {
			rows++
			if ev.Row.Prompt == "best vendors?" && ev.Row.Rank != 1 {
				t.Errorf("ranked answer should give ACME rank 1: %+v", ev.Row)
			}
		}
	}
	if rows != 2 {
		t.Errorf("row events = %d, want 2", rows)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.created) != 1 || len(store.runs) != 2 {
		t.Errorf("store saw created=%v runs=%d", store.created, len(store.runs))
	}
	final := store.statuses[len(store.statuses)-1]
	if final != StatusDone {
		t.Errorf("final persisted status = %v", final)
	}
}

func TestCampaignRunsPerPrompt(t *testing.T) {
	prov := &scriptedProvider{name: "mock", answers: map[string]string{
		"q": "ACME all the way",
	}}
	orch := NewOrchestrator(testPool(prov), nil, progress.NewRegistry())

	spec := testSpec("q")
	spec.RunsPerPrompt = 3
	id, err := orch.Start(context.Background(), spec)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	sub := orch.Subscribe(id)
	defer sub.Close()
	waitDone(t, sub)

	run, _ := orch.Status(id)
	if run.Total != 3 || run.Completed != 3 {
		t.Errorf("run totals = %d/%d, want 3/3", run.Completed, run.Total)
	}
	if rate := run.Metrics.ByBrand["ACME"].MentionRate; rate != 1 {
		t.Errorf("mention rate = %v, want 1", rate)
	}
}

func TestCampaignFailedUnitsCountInDenominator(t *testing.T) {
	// Mix: 2 prompts mention, 3 prompts fail upstream.
	mixed := &mixedProvider{}
	orch := NewOrchestrator(testPool(mixed), nil, progress.NewRegistry())

	spec := testSpec("m1", "m2", "f1", "f2", "f3")
	id, err := orch.Start(context.Background(), spec)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	sub := orch.Subscribe(id)
	defer sub.Close()
	waitDone(t, sub)

	run, _ := orch.Status(id)
	if run.Status != StatusDone {
		t.Fatalf("failures must not abort the campaign: %+v", run.Status)
	}
	if rate := run.Metrics.ByBrand["ACME"].MentionRate; rate != 0.4 {
		t.Errorf("mention rate = %v, want 0.4 (2 of 5 prompts)", rate)
	}
}

func TestCampaignAllUnitsFailedIsError(t *testing.T) {
	// The provider never answers: total failure must end in the error
	// state with an error event, not a done event over empty metrics.
	prov := &scriptedProvider{name: "mock", err: errors.New("connection refused")}
	store := &memStore{}
	orch := NewOrchestrator(testPool(prov), store, progress.NewRegistry())

	spec := testSpec("q1", "q2")
	spec.ID = "all-failed"
	sub := orch.Subscribe(spec.ID)
	defer sub.Close()

	id, err := orch.Start(context.Background(), spec)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	events := waitDone(t, sub)

	last := events[len(events)-1]
	if last.Type != progress.EventError {
		t.Errorf("final event = %v, want error", last.Type)
	}
	if last.Message == "" {
		t.Error("error event should carry a message")
	}

	run, _ := orch.Status(id)
	if run.Status != StatusError {
		t.Errorf("status = %v, want error", run.Status)
	}
	if run.Error == "" {
		t.Error("run should record the failure reason")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if final := store.statuses[len(store.statuses)-1]; final != StatusError {
		t.Errorf("final persisted status = %v, want error", final)
	}
}

// mixedProvider succeeds with a mention for m* prompts, fails for others.
type mixedProvider struct{}

func (m *mixedProvider) Name() string { return "mock" }

func (m *mixedProvider) Call(ctx context.Context, prompt, model string, temperature float64) (string, error) {
	if prompt[0] == 'm' {
		return "ACME is the answer", nil
	}
	return "", errors.New("upstream down")
}

func TestCampaignNilStore(t *testing.T) {
	prov := &scriptedProvider{name: "mock"}
	orch := NewOrchestrator(testPool(prov), nil, progress.NewRegistry())

	id, err := orch.Start(context.Background(), testSpec("q"))
	if err != nil {
		t.Fatalf("Start with nil store: %v", err)
	}
	sub := orch.Subscribe(id)
	defer sub.Close()
	waitDone(t, sub)
	if run, _ := orch.Status(id); run.Status != StatusDone {
		t.Errorf("status = %v, want done", run.Status)
	}
}

func TestCampaignStoreFailureFallsBack(t *testing.T) {
	prov := &scriptedProvider{name: "mock"}
	store := &memStore{failWith: errors.New("disk full")}
	orch := NewOrchestrator(testPool(prov), store, progress.NewRegistry())

	id, err := orch.Start(context.Background(), testSpec("q"))
	if err != nil {
		t.Fatalf("store failure must not block start: %v", err)
	}
	sub := orch.Subscribe(id)
	defer sub.Close()
	waitDone(t, sub)
	if run, _ := orch.Status(id); run.Status != StatusDone {
		t.Errorf("status = %v, want done despite store failure", run.Status)
	}
}

func TestCampaignValidation(t *testing.T) {
	orch := NewOrchestrator(testPool(&scriptedProvider{name: "mock"}), nil, progress.NewRegistry())

	cases := []struct {
		name   string
		mutate func(*Spec)
	}{
		{"no prompts", func(s *Spec) { s.Prompts = nil }},
		{"no brands", func(s *Spec) { s.Brands = nil }},
		{"no provider", func(s *Spec) { s.Provider = "" }},
		{"unknown primary", func(s *Spec) { s.PrimaryBrand = "Nobody" }},
		{"bad threshold", func(s *Spec) { s.FuzzyThreshold = 150 }},
	}
	for _, tc := range cases {
		spec := testSpec("q")
		tc.mutate(&spec)
		if _, err := orch.Start(context.Background(), spec); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestValidateDefaults(t *testing.T) {
	spec := testSpec("q")
	spec.RunsPerPrompt = 0
	spec.PrimaryBrand = ""
	if err := Validate(&spec); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if spec.RunsPerPrompt != 1 {
		t.Errorf("runs per prompt default = %d, want 1", spec.RunsPerPrompt)
	}
	if spec.PrimaryBrand != "ACME" {
		t.Errorf("primary brand should default to the first brand, got %q", spec.PrimaryBrand)
	}
}

func TestCampaignStatusLifecycle(t *testing.T) {
	block := make(chan struct{})
	prov := &blockingProvider{release: block}
	orch := NewOrchestrator(testPool(prov), nil, progress.NewRegistry())

	id, err := orch.Start(context.Background(), testSpec("q"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Running (or still queued) while the provider blocks.
	deadline := time.Now().Add(2 * time.Second)
	for {
		run, _ := orch.Status(id)
		if run.Status == StatusRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("campaign never reached running, status = %v", run.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	close(block)
	sub := orch.Subscribe(id)
	defer sub.Close()
	waitDone(t, sub)
	if run, _ := orch.Status(id); run.Status != StatusDone {
		t.Errorf("status = %v, want done", run.Status)
	}
}

type blockingProvider struct{ release chan struct{} }

func (b *blockingProvider) Name() string { return "mock" }

func (b *blockingProvider) Call(ctx context.Context, prompt, model string, temperature float64) (string, error) {
	<-b.release
	return "ACME", nil
}
