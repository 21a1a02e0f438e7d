package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/SAM252003/Nehoris/internal/campaign"
	"github.com/SAM252003/Nehoris/internal/config"
	"github.com/SAM252003/Nehoris/internal/dispatch"
	"github.com/SAM252003/Nehoris/internal/logging"
	"github.com/SAM252003/Nehoris/internal/progress"
	"github.com/SAM252003/Nehoris/internal/resilience"
	"github.com/SAM252003/Nehoris/internal/store"
)

func newRunCmd() *cobra.Command {
	var (
		promptsFile string
		prompts     []string
		brandsFlag  string
		primary     string
		providerStr string
		model       string
		temperature float64
		runs        int
		fuzzy       int
		csvOut      string
		noStore     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a visibility audit campaign",
		Long: `Run sends every prompt to the chosen provider (optionally several times),
detects brand mentions in each response, and prints the aggregated
visibility metrics when the campaign completes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			spec := cfg.Campaign
			if promptsFile != "" {
				loaded, err := config.LoadPrompts(promptsFile)
				if err != nil {
					return err
				}
				spec.Prompts = append(spec.Prompts, loaded...)
			}
			spec.Prompts = append(spec.Prompts, prompts...)
			if brandsFlag != "" {
				spec.Brands = config.LoadBrands(brandsFlag)
			}
			if primary != "" {
				spec.PrimaryBrand = primary
			}
			if providerStr != "" {
				spec.Provider = providerStr
			}
			if model != "" {
				spec.Model = model
			}
			if cmd.Flags().Changed("temperature") {
				spec.Temperature = temperature
			}
			if runs > 0 {
				spec.RunsPerPrompt = runs
			}
			if cmd.Flags().Changed("fuzzy-threshold") {
				spec.FuzzyThreshold = fuzzy
			}

			providers := buildProviders(ctx, cfg)
			breakers := resilience.NewRegistry(resilience.BreakerConfig{
				FailureThreshold: cfg.Resilience.FailureThreshold,
				Cooldown:         cfg.Resilience.Cooldown.Std(),
			})
			pool := dispatch.NewPool(dispatch.PoolConfig{
				Workers:      cfg.Dispatch.Workers,
				BatchTimeout: cfg.Dispatch.BatchTimeout.Std(),
				CacheTTL:     cfg.Dispatch.CacheTTL.Std(),
				Retry: resilience.RetryConfig{
					MaxRetries:  cfg.Resilience.MaxRetries,
					BackoffBase: cfg.Resilience.BackoffBase,
				},
			}, providers, breakers)
			defer pool.Close()

			var st campaign.Store
			var db *store.SQLite
			if !noStore && cfg.Store.Path != "" {
				var err error
				db, err = store.Open(cfg.Store.Path)
				if err != nil {
					logging.Boot("store unavailable, running in memory: %v", err)
				} else {
					st = db
					defer db.Close()
				}
			}

			orch := campaign.NewOrchestrator(pool, st, progress.NewRegistry())
			id, err := orch.Start(ctx, spec)
			if err != nil {
				return err
			}
			fmt.Printf("Campaign %s started: %d prompts x %d runs on %s\n",
				id, len(spec.Prompts), spec.RunsPerPrompt, spec.Provider)

			if err := watch(orch, id); err != nil {
				return err
			}

			if csvOut != "" && db != nil {
				f, err := os.Create(csvOut)
				if err != nil {
					return fmt.Errorf("failed to create CSV file: %w", err)
				}
				defer f.Close()
				if err := db.ExportRowsCSV(ctx, id, f); err != nil {
					return err
				}
				fmt.Printf("Rows exported to %s\n", csvOut)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&promptsFile, "prompts", "", "CSV file of prompts (first column)")
	cmd.Flags().StringArrayVar(&prompts, "prompt", nil, "prompt to run (repeatable)")
	cmd.Flags().StringVar(&brandsFlag, "brands", "", `brands to track, e.g. "ACME;Acme Inc,Globex"`)
	cmd.Flags().StringVar(&primary, "primary", "", "primary brand for rate and share-of-voice")
	cmd.Flags().StringVar(&providerStr, "provider", "", "provider name (openai|gemini|perplexity|ollama)")
	cmd.Flags().StringVar(&model, "model", "", "model override")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.7, "sampling temperature")
	cmd.Flags().IntVar(&runs, "runs", 0, "runs per prompt")
	cmd.Flags().IntVar(&fuzzy, "fuzzy-threshold", 85, "fuzzy match threshold 0-100, 0 disables")
	cmd.Flags().StringVar(&csvOut, "csv", "", "export result rows to this CSV file")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not persist results")
	return cmd
}

// watch consumes progress events until the campaign finishes, then prints
// the final metrics.
func watch(orch *campaign.Orchestrator, id string) error {
	sub := orch.Subscribe(id)
	defer sub.Close()

	for event := range sub.Events() {
		switch event.Type {
		case progress.EventRow:
			row := event.Row
			status := "ok"
			if row.Failed {
				status = "FAILED: " + row.Error
			} else if row.Mentioned {
				status = fmt.Sprintf("mentioned x%d", row.Mentions)
				if row.Rank > 0 {
					status += fmt.Sprintf(" rank=%d", row.Rank)
				}
			} else {
				status = "no mention"
			}
			fmt.Printf("  [%s] %.40q  %s (%.1fs)\n", row.Provider, row.Prompt, status, row.Elapsed)
		case progress.EventProgress:
			fmt.Printf("  progress: %d/%d\n", event.Completed, event.Total)
		case progress.EventError:
			return fmt.Errorf("campaign failed: %s", event.Message)
		case progress.EventDone:
			printSummary(orch, id)
			return nil
		}
	}
	return fmt.Errorf("progress stream closed before campaign finished")
}

func printSummary(orch *campaign.Orchestrator, id string) {
	run, ok := orch.Status(id)
	if !ok {
		return
	}
	fmt.Printf("\nCampaign %s complete in %v\n", id, run.FinishedAt.Sub(run.StartedAt).Round(100*time.Millisecond))
	fmt.Printf("Share of voice (%s): %.1f%%\n\n", run.Spec.PrimaryBrand, run.ShareOfVoice*100)

	names := make([]string, 0, len(run.Metrics.ByBrand))
	for name := range run.Metrics.ByBrand {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Printf("%-20s %8s %8s %8s %10s\n", "BRAND", "MENTIONS", "EXACT", "FUZZY", "RATE")
	for _, name := range names {
		m := run.Metrics.ByBrand[name]
		fmt.Printf("%-20s %8d %8d %8d %9.1f%%\n",
			name, m.TotalMentions, m.ExactTotal, m.FuzzyTotal, m.MentionRate*100)
	}
}
