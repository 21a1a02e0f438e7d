package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/SAM252003/Nehoris/internal/brand"
	"github.com/SAM252003/Nehoris/internal/config"
	"github.com/SAM252003/Nehoris/internal/metrics"
)

func newDetectCmd() *cobra.Command {
	var (
		inputFile  string
		brandsFlag string
		fuzzy      int
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect brand mentions in a text",
		Long: `Detect scans a text (file or stdin) for mentions of the given brands and
prints every match with its offset, score and method.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(inputFile)
			if err != nil {
				return err
			}
			brands := cfg.Campaign.Brands
			if brandsFlag != "" {
				brands = config.LoadBrands(brandsFlag)
			}

			matches, err := brand.Detect(text, brands, fuzzy)
			if err != nil {
				return err
			}

			if asJSON {
				out := struct {
					Matches []brand.Match           `json:"matches"`
					Summary metrics.ResponseSummary `json:"summary"`
				}{matches, metrics.Summarize(matches)}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			if len(matches) == 0 {
				fmt.Println("No mentions found.")
				return nil
			}
			for _, m := range matches {
				fmt.Printf("%-20s %-6s score=%-3d @%d..%d  %q\n",
					m.Brand, m.Method, m.Score, m.Start, m.End, m.Context)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "text file to scan (default stdin)")
	cmd.Flags().StringVar(&brandsFlag, "brands", "", `brands to detect, e.g. "ACME;Acme Inc,Globex"`)
	cmd.Flags().IntVar(&fuzzy, "fuzzy-threshold", 85, "fuzzy match threshold 0-100, 0 disables")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func readInput(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
