package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratus-iac/stratus/internal/engine"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show the changes a deploy would make",
	Long: `Synthesizes the selected stack, compares it against recorded state, and
prints the execution plan without applying anything.`,
	RunE: runDiff,
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSetup(ctx)
	if err != nil {
		return err
	}

	if err := loadRequiredProviders(ctx, s.registry, s.config); err != nil {
		return err
	}

	currentState, err := s.backend.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}
	if err := loadStateProviders(ctx, s.registry, currentState); err != nil {
		return err
	}

	eng := engine.New(s.registry)
	plan, err := eng.CreatePlan(ctx, s.config, currentState)
	if err != nil {
		return fmt.Errorf("plan generation failed: %w", err)
	}

	if plan.Empty() {
		fmt.Println("No changes. Infrastructure matches the stack definition.")
		return nil
	}

	fmt.Printf("Stack %s will perform the following actions:\n", s.config.Stack)
	renderPlanChanges(plan)
	renderPlanSummary(plan)
	return nil
}
