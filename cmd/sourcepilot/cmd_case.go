package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sourcepilot/internal/types"
)

var (
	caseID       string
	categoryID   string
	supplierID   string
	contractID   string
	listStatus   string
	listStage    string
	listCategory string
	listLimit    int
)

var caseCmd = &cobra.Command{
	Use:   "case",
	Short: "Create, list, and inspect sourcing cases",
}

var caseCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a new sourcing case at DTP-01",
	Example: `  sourcepilot case create --category IT_SERVICES --supplier SUP-001
  sourcepilot case create --case-id CASE-042 --category FACILITIES`,
	RunE: runCaseCreate,
}

var caseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cases, optionally filtered by status, stage, or category",
	RunE:  runCaseList,
}

var caseShowCmd = &cobra.Command{
	Use:   "show [case-id]",
	Short: "Show one case's stage, status, and recent activity",
	Args:  cobra.ExactArgs(1),
	RunE:  runCaseShow,
}

func init() {
	caseCreateCmd.Flags().StringVar(&caseID, "case-id", "", "case identifier (generated when empty)")
	caseCreateCmd.Flags().StringVar(&categoryID, "category", "", "procurement category (required)")
	caseCreateCmd.Flags().StringVar(&supplierID, "supplier", "", "incumbent supplier")
	caseCreateCmd.Flags().StringVar(&contractID, "contract", "", "existing contract reference")
	caseCreateCmd.MarkFlagRequired("category")

	caseListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	caseListCmd.Flags().StringVar(&listStage, "stage", "", "filter by DTP stage")
	caseListCmd.Flags().StringVar(&listCategory, "category", "", "filter by category")
	caseListCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum cases to return")

	caseCmd.AddCommand(caseCreateCmd)
	caseCmd.AddCommand(caseListCmd)
	caseCmd.AddCommand(caseShowCmd)
}

func runCaseCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	id := caseID
	if id == "" {
		id = "CASE-" + strings.ToUpper(uuid.NewString()[:8])
	}

	cs, err := a.service.CreateCase(ctx, id, categoryID, types.TriggerUser, contractID, supplierID)
	if err != nil {
		return err
	}

	fmt.Printf("Created case %s\n", cs.CaseID)
	fmt.Printf("  Category: %s\n", cs.CategoryID)
	if cs.SupplierID != "" {
		fmt.Printf("  Supplier: %s\n", cs.SupplierID)
	}
	if cs.ContractID != "" {
		fmt.Printf("  Contract: %s\n", cs.ContractID)
	}
	fmt.Printf("  Stage:    %s - %s\n", cs.Stage, cs.Stage.Name())
	fmt.Printf("  Status:   %s\n", cs.Status)
	return nil
}

func runCaseList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	cases, err := a.store.ListCases(ctx, types.CaseFilter{
		Status:     types.CaseStatus(listStatus),
		Stage:      types.Stage(listStage),
		CategoryID: listCategory,
		Limit:      listLimit,
	})
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		fmt.Println("No cases found.")
		return nil
	}

	fmt.Printf("%-14s %-8s %-28s %-16s %s\n", "CASE", "STAGE", "STATUS", "CATEGORY", "UPDATED")
	for _, cs := range cases {
		fmt.Printf("%-14s %-8s %-28s %-16s %s\n",
			cs.CaseID, cs.Stage, cs.Status, cs.CategoryID,
			cs.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runCaseShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	cs, err := a.store.LoadCase(ctx, args[0])
	if err != nil {
		return err
	}
	if cs == nil {
		return fmt.Errorf("case %s not found", args[0])
	}

	fmt.Printf("Case %s\n", cs.CaseID)
	fmt.Printf("  Stage:    %s - %s\n", cs.Stage, cs.Stage.Name())
	fmt.Printf("  Status:   %s\n", cs.Status)
	fmt.Printf("  Category: %s\n", cs.CategoryID)
	if cs.SupplierID != "" {
		fmt.Printf("  Supplier: %s\n", cs.SupplierID)
	}
	if cs.ContractID != "" {
		fmt.Printf("  Contract: %s\n", cs.ContractID)
	}
	if cs.WaitingForHuman {
		fmt.Println("  Waiting for human decision")
	}
	if cs.BlockedReason != "" {
		fmt.Printf("  Blocked:  %s\n", cs.BlockedReason)
	}

	mem, err := a.store.LoadMemory(ctx, cs.CaseID)
	if err == nil && mem != nil {
		if mem.CurrentStrategy != "" {
			fmt.Printf("  Strategy: %s\n", mem.CurrentStrategy)
		}
		if len(mem.ActiveContradictions) > 0 {
			fmt.Printf("  Active conflicts: %d\n", len(mem.ActiveContradictions))
		}
	}

	if n := len(cs.ActivityLog); n > 0 {
		fmt.Println("\nRecent activity:")
		start := n - 5
		if start < 0 {
			start = 0
		}
		for _, e := range cs.ActivityLog[start:] {
			line := fmt.Sprintf("  %s  %s", e.Timestamp.Format("2006-01-02 15:04"), e.Action)
			if e.ToStage != "" {
				line += fmt.Sprintf(" (%s -> %s)", e.FromStage, e.ToStage)
			}
			if e.AgentName != "" {
				line += " [" + e.AgentName + "]"
			}
			fmt.Println(line)
		}
	}
	return nil
}
