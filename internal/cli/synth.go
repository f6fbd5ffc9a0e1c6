package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Synthesize the stack into resource descriptors",
	Long: `Builds the selected stack's construct tree and prints the synthesized
resource descriptors as JSON. No cloud credentials are needed; synthesis
is a pure function of the stack code.`,
	RunE: runSynth,
}

func runSynth(cmd *cobra.Command, args []string) error {
	s, err := newSetup(cmd.Context())
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(s.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal descriptors: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
