package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stratus-iac/stratus/internal/engine"
	"github.com/stratus-iac/stratus/internal/ir"
)

var destroyAutoApprove bool

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Destroy all resources managed by the stack",
	Long: `Deletes every resource recorded in the stack's state, in reverse
dependency order. Resources marked prevent-destroy abort the plan.`,
	RunE: runDestroy,
}

func init() {
	destroyCmd.Flags().BoolVar(&destroyAutoApprove, "auto-approve", false, "Skip interactive approval before destroying")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSetup(ctx)
	if err != nil {
		return err
	}

	if err := s.backend.Lock(); err != nil {
		return err
	}
	defer s.backend.Unlock()

	currentState, err := s.backend.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}
	if len(currentState.Resources) == 0 {
		fmt.Println("No resources in state. Nothing to destroy.")
		return nil
	}

	if err := loadStateProviders(ctx, s.registry, currentState); err != nil {
		return err
	}

	for _, res := range s.config.Resources {
		if res.Lifecycle != nil && res.Lifecycle.PreventDestroy && currentState.Resource(res.Addr()) != nil {
			return fmt.Errorf("resource %s has prevent-destroy set; remove the lifecycle setting before destroying", res.Addr())
		}
	}

	// Planning against an empty config turns every state resource into a
	// delete.
	eng := engine.New(s.registry)
	plan, err := eng.CreatePlan(ctx, &ir.Config{Stack: s.config.Stack}, currentState)
	if err != nil {
		return fmt.Errorf("destroy plan generation failed: %w", err)
	}

	fmt.Printf("Stack %s will destroy the following resources:\n", s.config.Stack)
	renderPlanChanges(plan)
	renderPlanSummary(plan)

	if !destroyAutoApprove {
		if !confirm("\nDo you really want to destroy all resources? (y/n): ") {
			fmt.Println("Destroy cancelled.")
			return nil
		}
	}

	fmt.Printf("\nDestroying %d resource(s)...\n", len(plan.Changes))

	newState, applyErr := eng.ApplyPlanWithCallback(ctx, plan, currentState, func(event engine.ApplyEvent) {
		switch event.Status {
		case "started":
			fmt.Printf("  %s: destroying...\n", event.Address)
		case "completed":
			fmt.Printf("  %s: destroyed (%s)\n", event.Address, event.Duration.Round(time.Millisecond))
		case "failed":
			fmt.Printf("  %s: FAILED: %v\n", event.Address, event.Error)
		}
	})

	if err := s.backend.Write(ctx, newState); err != nil {
		if applyErr != nil {
			return fmt.Errorf("destroy failed (%v) and state write failed: %w", applyErr, err)
		}
		return fmt.Errorf("failed to write state: %w", err)
	}
	if applyErr != nil {
		return fmt.Errorf("destroy failed: %w", applyErr)
	}

	fmt.Println("\nDestroy complete! All resources have been deleted.")
	return nil
}
