// nehoris measures brand visibility in LLM answers: it sends prompt sets to
// providers, detects brand mentions and rankings in the responses, and
// reports mention rate and share of voice.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/SAM252003/Nehoris/internal/config"
	"github.com/SAM252003/Nehoris/internal/logging"
)

var (
	configPath string
	debugMode  bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "nehoris",
	Short: "Nehoris - LLM brand visibility auditing",
	Long: `Nehoris audits how language models talk about brands.

It runs prompt campaigns against LLM providers (OpenAI, Gemini, Perplexity,
local Ollama), detects exact and fuzzy brand mentions in every response,
extracts rankings from list answers, and aggregates mention rate, first
mention position and share of voice.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if debugMode {
			cfg.Logging.Debug = true
		}
		return logging.Initialize(logging.Options{
			Dir:       cfg.Logging.Dir,
			DebugMode: cfg.Logging.Debug,
			Level:     cfg.Logging.Level,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
	},
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newRunCmd(), newDetectCmd(), newRankCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
