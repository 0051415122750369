package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo corpus into the local store",
	Long: `Loads sample contracts, a sourcing policy, a market brief, and
supplier performance, spend, and SLA records for the IT services category.
Safe to re-run; documents are upserted by ID.`,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.SeedDemoData(ctx); err != nil {
		return err
	}
	fmt.Println("Demo corpus loaded.")
	return nil
}
