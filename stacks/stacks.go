// Package stacks keeps the by-name registry of deployable stacks the CLI
// consumes.
package stacks

import (
	"fmt"
	"sort"

	"github.com/stratus-iac/stratus/internal/constructs"
	"github.com/stratus-iac/stratus/internal/ir"
	"github.com/stratus-iac/stratus/stacks/learning"
)

// DefaultStack is the stack used when no name is given on the command line.
const DefaultStack = "learning"

// Builder constructs a stack scope ready for synthesis.
type Builder func(props *constructs.StackProps) *constructs.Stack

var builders = map[string]Builder{
	"learning": learning.New,
}

// Names returns the registered stack names, sorted.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Synth builds and synthesizes the named stack.
func Synth(name string, props *constructs.StackProps) (*ir.Config, error) {
	build, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown stack %q (registered: %v)", name, Names())
	}
	return build(props).Synth(), nil
}
