// Package provider defines the contract between the engine and the concrete
// resource providers. Providers run in-process; configuration and state cross
// the boundary as JSON payloads so each provider owns its own schema.
package provider

import "context"

// Action is the change a provider decided on during planning.
type Action string

const (
	ActionNoop    Action = "NOOP"
	ActionCreate  Action = "CREATE"
	ActionUpdate  Action = "UPDATE"
	ActionReplace Action = "REPLACE"
	ActionDelete  Action = "DELETE"
)

// ConfigureRequest carries provider-level settings such as the target region.
type ConfigureRequest struct {
	Region  string
	Options map[string]string
}

// PlanRequest asks the provider to decide the action for one resource.
// DesiredJSON is nil when the resource is being removed; PriorJSON is nil
// when the resource has never been provisioned. PriorInputsJSON carries the
// inputs the resource was last applied with, for change detection.
type PlanRequest struct {
	Type            string
	Name            string
	DesiredJSON     []byte
	PriorJSON       []byte
	PriorInputsJSON []byte
}

type PlanResponse struct {
	Action            Action
	ChangedAttributes []string
}

// ApplyRequest asks the provider to create or update one resource.
type ApplyRequest struct {
	Type        string
	Name        string
	DesiredJSON []byte
	PriorJSON   []byte
}

// ApplyResponse returns the provider's new state payload for the resource.
type ApplyResponse struct {
	StateJSON []byte
}

// ReadRequest asks the provider to refresh a resource's state from the
// backing service.
type ReadRequest struct {
	Type      string
	Name      string
	StateJSON []byte
}

type ReadResponse struct {
	Exists    bool
	StateJSON []byte
}

// DeleteRequest asks the provider to destroy one resource. InputsJSON carries
// the declared inputs the resource was created from (lifecycle flags such as
// force-destroy live there), StateJSON the provider outputs.
type DeleteRequest struct {
	Type       string
	Name       string
	InputsJSON []byte
	StateJSON  []byte
}

// Interface is implemented by every resource provider.
type Interface interface {
	Configure(ctx context.Context, req *ConfigureRequest) error
	Plan(ctx context.Context, req *PlanRequest) (*PlanResponse, error)
	Apply(ctx context.Context, req *ApplyRequest) (*ApplyResponse, error)
	Read(ctx context.Context, req *ReadRequest) (*ReadResponse, error)
	Delete(ctx context.Context, req *DeleteRequest) error
}
