package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratus-iac/stratus/internal/ir"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect and modify recorded state",
}

var stateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List resources in state",
	RunE:  runStateList,
}

var stateShowCmd = &cobra.Command{
	Use:   "show <address>",
	Short: "Show attributes of a single resource",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateShow,
}

var stateRmCmd = &cobra.Command{
	Use:   "rm <address>",
	Short: "Remove a resource from state (does not destroy it)",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateRm,
}

func init() {
	stateCmd.AddCommand(stateListCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateRmCmd)
}

func runStateList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSetup(ctx)
	if err != nil {
		return err
	}

	st, err := s.backend.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	if len(st.Resources) == 0 {
		fmt.Println("No resources in state.")
		return nil
	}

	fmt.Printf("State version: %d, serial: %d, lineage: %s\n\n", st.Version, st.Serial, st.Lineage)
	for _, res := range st.Resources {
		fmt.Printf("  %s (provider: %s)\n", res.Addr(), res.Provider)
	}
	fmt.Printf("\nTotal: %d resource(s)\n", len(st.Resources))
	return nil
}

func runStateShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSetup(ctx)
	if err != nil {
		return err
	}

	st, err := s.backend.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	res := st.Resource(args[0])
	if res == nil {
		return fmt.Errorf("resource %s not found in state", args[0])
	}

	fmt.Printf("# %s\n", res.Addr())
	fmt.Printf("  provider = %s\n", res.Provider)
	fmt.Printf("  type     = %s\n", res.Type)
	fmt.Printf("  name     = %s\n", res.Name)

	if len(res.Inputs) > 0 {
		fmt.Println("\n  Inputs:")
		for k, v := range res.Inputs {
			fmt.Printf("    %s = %v\n", k, v)
		}
	}
	if len(res.Outputs) > 0 {
		fmt.Println("\n  Outputs:")
		for k, v := range res.Outputs {
			fmt.Printf("    %s = %v\n", k, v)
		}
	}
	if len(res.Dependencies) > 0 {
		fmt.Println("\n  Dependencies:")
		for _, dep := range res.Dependencies {
			fmt.Printf("    %s\n", dep)
		}
	}
	return nil
}

func runStateRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSetup(ctx)
	if err != nil {
		return err
	}

	if err := s.backend.Lock(); err != nil {
		return err
	}
	defer s.backend.Unlock()

	st, err := s.backend.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	var kept []*ir.ResourceState
	found := false
	for _, res := range st.Resources {
		if res.Addr() == args[0] {
			found = true
			continue
		}
		kept = append(kept, res)
	}
	if !found {
		return fmt.Errorf("resource %s not found in state", args[0])
	}

	st.Resources = kept
	st.Serial++
	if err := s.backend.Write(ctx, st); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	fmt.Printf("Removed %s from state.\n", args[0])
	return nil
}
