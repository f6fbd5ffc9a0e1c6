package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stratus-iac/stratus/internal/engine"
)

var (
	deployAutoApprove     bool
	deployContinueOnError bool
	deployTargets         []string
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the stack",
	Long: `Synthesizes the selected stack, plans the difference against recorded
state, and applies the changes in dependency order.`,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().BoolVar(&deployAutoApprove, "auto-approve", false, "Skip interactive approval of the plan before applying")
	deployCmd.Flags().BoolVar(&deployContinueOnError, "continue-on-error", false, "Keep applying independent resources after a failure")
	deployCmd.Flags().StringSliceVarP(&deployTargets, "target", "t", nil, "Limit the deploy to the given resource addresses (plus dependencies)")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSetup(ctx)
	if err != nil {
		return err
	}

	if err := s.backend.Lock(); err != nil {
		return err
	}
	defer s.backend.Unlock()

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
	eng.ContinueOnError = deployContinueOnError

	plan, err := eng.CreatePlanWithTargets(ctx, s.config, currentState, deployTargets)
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

	if !deployAutoApprove {
		if !confirm("\nDo you want to perform these actions? (y/n): ") {
			fmt.Println("Deploy cancelled.")
			return nil
		}
	}

	fmt.Printf("\nApplying %d change(s)...\n", len(plan.Changes))

	newState, applyErr := eng.ApplyPlanWithCallback(ctx, plan, currentState, func(event engine.ApplyEvent) {
		switch event.Status {
		case "started":
			fmt.Printf("  %s: %s...\n", event.Address, event.Action)
		case "completed":
			fmt.Printf("  %s: done (%s)\n", event.Address, event.Duration.Round(time.Millisecond))
		case "failed":
			fmt.Printf("  %s: FAILED: %v\n", event.Address, event.Error)
		}
	})

	// Persist whatever was applied, even on failure, so completed resources
	// are not orphaned.
	if err := s.backend.Write(ctx, newState); err != nil {
		if applyErr != nil {
			return fmt.Errorf("apply failed (%v) and state write failed: %w", applyErr, err)
		}
		return fmt.Errorf("failed to write state: %w", err)
	}
	if applyErr != nil {
		return fmt.Errorf("deploy failed: %w", applyErr)
	}

	fmt.Printf("\nDeploy complete! Resources: %d added, %d changed, %d destroyed.\n",
		plan.Summary.Create+plan.Summary.Replace, plan.Summary.Update, plan.Summary.Delete)

	if len(newState.Outputs) > 0 {
		fmt.Println("\nOutputs:")
		for k, v := range newState.Outputs {
			fmt.Printf("  %s = %v\n", k, v)
		}
	}
	return nil
}
