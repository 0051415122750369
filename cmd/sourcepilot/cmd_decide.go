package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sourcepilot/internal/types"
)

var decideReason string

var decideCmd = &cobra.Command{
	Use:   "decide [case-id] [approve|reject]",
	Short: "Record a human decision on a waiting case",
	Long: `Records an explicit approval or rejection for a case that is waiting
on a recommendation. Approval advances the case to the next DTP stage;
rejection keeps it where it is so you can ask for a revised analysis.

A reason that acknowledges an active conflict clears that conflict.`,
	Example: `  sourcepilot decide CASE-042 approve
  sourcepilot decide CASE-042 reject --reason "shortlist is missing the incumbent"`,
	Args: cobra.ExactArgs(2),
	RunE: runDecide,
}

func init() {
	decideCmd.Flags().StringVar(&decideReason, "reason", "", "reason for the decision")
}

func runDecide(cmd *cobra.Command, args []string) error {
	var decision types.Decision
	switch strings.ToLower(args[1]) {
	case "approve":
		decision = types.DecisionApprove
	case "reject":
		decision = types.DecisionReject
	default:
		return fmt.Errorf("decision must be approve or reject, got %q", args[1])
	}

	ctx := context.Background()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.service.ProcessDecision(ctx, args[0], decision, decideReason, nil)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%s", result.Message)
	}

	fmt.Println(result.Message)
	fmt.Printf("Case %s is now at %s - %s\n", args[0], result.NewStage, result.NewStage.Name())
	return nil
}
