package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the recorded state of the stack",
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("State version: %d, serial: %d, lineage: %s\n", st.Version, st.Serial, st.Lineage)
	for _, res := range st.Resources {
		fmt.Printf("\n# %s\n", res.Addr())
		fmt.Printf("  provider = %s\n", res.Provider)
		if len(res.Outputs) > 0 {
			for k, v := range res.Outputs {
				fmt.Printf("  %s = %v\n", k, v)
			}
		}
	}

	if len(st.Outputs) > 0 {
		fmt.Println("\nOutputs:")
		for k, v := range st.Outputs {
			fmt.Printf("  %s = %v\n", k, v)
		}
	}
	return nil
}
