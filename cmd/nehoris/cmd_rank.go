package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/SAM252003/Nehoris/internal/brand"
	"github.com/SAM252003/Nehoris/internal/config"
)

func newRankCmd() *cobra.Command {
	var (
		inputFile  string
		brandsFlag string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Extract a brand ranking from a text",
		Long: `Rank parses a text (file or stdin) as a ranked answer - numbered list,
bullet list or markdown table - and prints the position of each tracked
brand, falling back to order of first appearance.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(inputFile)
			if err != nil {
				return err
			}
			brands := cfg.Campaign.Brands
			if brandsFlag != "" {
				brands = config.LoadBrands(brandsFlag)
			}
			if len(brands) == 0 {
				return fmt.Errorf("no brands given: use --brands")
			}

			ranking := brand.ExtractRanking(text, brand.VariantMap(brands))
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(ranking)
			}

			if len(ranking) == 0 {
				fmt.Println("No ranked brands found.")
				return nil
			}
			type entry struct {
				name string
				rank int
			}
			entries := make([]entry, 0, len(ranking))
			for name, rank := range ranking {
				entries = append(entries, entry{name, rank})
			}
			sort.Slice(entries, func(i, j int) bool { return entries[i].rank < entries[j].rank })
			for _, e := range entries {
				fmt.Printf("%2d. %s\n", e.rank, e.name)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "text file to parse (default stdin)")
	cmd.Flags().StringVar(&brandsFlag, "brands", "", `brands to rank, e.g. "ACME;Acme Inc,Globex"`)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
