package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/stratus-iac/stratus/internal/constructs"
	"github.com/stratus-iac/stratus/internal/ir"
	registry "github.com/stratus-iac/stratus/internal/provider"
	"github.com/stratus-iac/stratus/internal/state"
	"github.com/stratus-iac/stratus/internal/workspace"
	"github.com/stratus-iac/stratus/pkg/provider"
	"github.com/stratus-iac/stratus/stacks"
)

// setup holds everything a command needs to operate on the selected stack.
type setup struct {
	settings *workspace.Settings
	config   *ir.Config
	backend  state.Backend
	registry *registry.Registry
}

// newSetup loads workspace settings, synthesizes the selected stack, and
// builds the state backend and provider registry.
func newSetup(ctx context.Context) (*setup, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	settings, err := workspace.Load(ctx, wd)
	if err != nil {
		return nil, err
	}

	cfg, err := stacks.Synth(rootStack, &constructs.StackProps{
		Env:  &constructs.Environment{Region: settings.Region},
		Tags: settings.Tags,
	})
	if err != nil {
		return nil, err
	}

	backend, err := settings.StateBackend()
	if err != nil {
		return nil, err
	}

	reg := registry.NewRegistry(&provider.ConfigureRequest{Region: settings.Region})

	return &setup{
		settings: settings,
		config:   cfg,
		backend:  backend,
		registry: reg,
	}, nil
}

// loadRequiredProviders loads all providers referenced by config resources.
func loadRequiredProviders(ctx context.Context, reg *registry.Registry, cfg *ir.Config) error {
	seen := make(map[string]bool)
	for _, res := range cfg.Resources {
		if res.Provider != "" && !seen[res.Provider] {
			seen[res.Provider] = true
			if err := reg.LoadProvider(ctx, res.Provider); err != nil {
				return fmt.Errorf("failed to load provider %s: %w", res.Provider, err)
			}
		}
	}
	return nil
}

// loadStateProviders loads all providers referenced by state resources
// (needed for deletes).
func loadStateProviders(ctx context.Context, reg *registry.Registry, st *ir.State) error {
	seen := make(map[string]bool)
	for _, res := range st.Resources {
		if res.Provider != "" && !seen[res.Provider] {
			seen[res.Provider] = true
			if err := reg.LoadProvider(ctx, res.Provider); err != nil {
				return fmt.Errorf("failed to load provider %s: %w", res.Provider, err)
			}
		}
	}
	return nil
}

// confirm prompts for a y/yes answer on stdin.
func confirm(prompt string) bool {
	fmt.Print(prompt)
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "yes"
}

// renderPlanChanges prints the detailed change list for a plan.
func renderPlanChanges(plan *ir.Plan) {
	for _, change := range plan.Changes {
		symbol := "~"
		switch change.Action {
		case "CREATE":
			symbol = "+"
		case "DELETE":
			symbol = "-"
		case "REPLACE":
			symbol = "-/+"
		}

		color := "\033[0m"
		switch change.Action {
		case "CREATE":
			color = "\033[32m"
		case "DELETE":
			color = "\033[31m"
		case "UPDATE", "REPLACE":
			color = "\033[33m"
		}

		var resourceType, resourceName string
		if change.Desired != nil {
			resourceType = change.Desired.Type
			resourceName = change.Desired.Name
		} else if change.Prior != nil {
			resourceType = change.Prior.Type
			resourceName = change.Prior.Name
		}

		fmt.Printf("\n%s  # %s will be %s%s\n", color, change.Address, change.Action, "\033[0m")
		fmt.Printf("%s  %s resource \"%s\" \"%s\" {\n", color, symbol, resourceType, resourceName)

		if len(change.Diff) > 0 {
			renderPropertyDiff(change, color)
		} else {
			fmt.Printf("%s      ...\n", color)
		}
		fmt.Printf("%s    }%s\n", color, "\033[0m")
	}
}

// renderPropertyDiff prints structured property diffs.
func renderPropertyDiff(change *ir.ResourceChange, color string) {
	for key, diff := range change.Diff {
		switch diff.Action {
		case "create":
			fmt.Printf("\033[32m      + %s = %v\033[0m\n", key, formatValue(diff.After))
		case "delete":
			fmt.Printf("\033[31m      - %s = %v\033[0m\n", key, formatValue(diff.Before))
		case "update":
			fmt.Printf("\033[33m      ~ %s = %v -> %v\033[0m\n", key, formatValue(diff.Before), formatValue(diff.After))
		default:
			fmt.Printf("%s        %s = %v\n", color, key, formatValue(diff.After))
		}
	}
}

// formatValue returns a human-readable representation of a value.
func formatValue(v any) string {
	if v == nil {
		return "null"
	}
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// renderPlanSummary prints the plan summary counts.
func renderPlanSummary(plan *ir.Plan) {
	fmt.Println("\nPlan Summary:")
	fmt.Printf("  Create:  %d\n", plan.Summary.Create)
	fmt.Printf("  Update:  %d\n", plan.Summary.Update)
	fmt.Printf("  Delete:  %d\n", plan.Summary.Delete)
	fmt.Printf("  Replace: %d\n", plan.Summary.Replace)
	fmt.Printf("  NoOp:    %d\n", plan.Summary.NoOp)
}
