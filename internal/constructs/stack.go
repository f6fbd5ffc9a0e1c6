// Package constructs implements the declarative resource layer: a stack is an
// explicit scope object passed to every construct, and each construct
// registers the descriptors it synthesizes into that scope on creation.
// There is no hidden global registry; two stacks built in the same process
// never share state.
package constructs

import (
	"github.com/stratus-iac/stratus/internal/ir"
)

// Environment pins a stack to a target account and region. Both fields are
// consumed by the provisioning side, never interpreted during synthesis.
type Environment struct {
	Account string
	Region  string
}

// StackProps are optional stack-level settings.
type StackProps struct {
	Env  *Environment
	Tags map[string]string
}

// Stack is the root scope of a construct tree. Constructs register their
// descriptors into it in construction order; Synth returns the accumulated
// descriptor set.
type Stack struct {
	name      string
	props     *StackProps
	resources []*ir.Resource
}

// NewStack creates an empty stack scope.
func NewStack(name string, props *StackProps) *Stack {
	if props == nil {
		props = &StackProps{}
	}
	return &Stack{name: name, props: props}
}

// Name returns the stack name.
func (s *Stack) Name() string {
	return s.name
}

// Region returns the stack's target region, or "" when unpinned.
func (s *Stack) Region() string {
	if s.props.Env == nil {
		return ""
	}
	return s.props.Env.Region
}

// register appends a descriptor to the stack in construction order.
// Constructs call this exactly once per descriptor they synthesize.
func (s *Stack) register(res *ir.Resource) *ir.Resource {
	s.resources = append(s.resources, res)
	return res
}

// Synth returns the stack's full descriptor set. Stack-level tags are merged
// into every taggable descriptor; resource-level tags win on conflict.
func (s *Stack) Synth() *ir.Config {
	for _, res := range s.resources {
		mergeTags(res, s.props.Tags)
	}
	return &ir.Config{
		Stack:     s.name,
		Resources: s.resources,
	}
}

func mergeTags(res *ir.Resource, defaults map[string]string) {
	if len(defaults) == 0 {
		return
	}
	existing, ok := res.Properties["tags"].(map[string]string)
	if !ok {
		return
	}
	for k, v := range defaults {
		if _, set := existing[k]; !set {
			existing[k] = v
		}
	}
}

// ref returns a ptr:// reference to an attribute of a synthesized resource.
// References carry the resource object address, so the engine can both order
// the dependency and substitute the provisioned attribute value at apply time.
func ref(res *ir.Resource, attr string) string {
	return "ptr://" + res.Type + "/" + res.Name + "/" + attr
}
