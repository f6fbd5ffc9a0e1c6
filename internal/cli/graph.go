package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratus-iac/stratus/internal/engine"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Output the dependency graph in DOT format",
	Long: `Generates a visual representation of the stack's resource dependency
graph in Graphviz DOT format. Pipe the output to 'dot' to render an image:

  stratus graph | dot -Tpng > graph.png`,
	RunE: runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	s, err := newSetup(cmd.Context())
	if err != nil {
		return err
	}

	dag, err := engine.BuildDAG(s.config.Resources)
	if err != nil {
		return fmt.Errorf("failed to build graph: %w", err)
	}

	fmt.Println("digraph stratus {")
	fmt.Println("  rankdir = \"BT\";")
	fmt.Println("  node [shape = rect];")
	fmt.Println()

	for _, res := range s.config.Resources {
		fmt.Printf("  %q;\n", res.Addr())
	}
	fmt.Println()

	for _, res := range s.config.Resources {
		for _, dep := range dag.Dependencies(res.Addr()) {
			fmt.Printf("  %q -> %q;\n", res.Addr(), dep)
		}
	}

	fmt.Println("}")
	return nil
}
