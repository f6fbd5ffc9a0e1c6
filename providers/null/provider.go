// Package null implements a provider with no backing service. Resources
// carry a triggers map; changing a trigger forces replacement. Useful for
// wiring arbitrary dependencies and for exercising the engine in tests.
package null

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stratus-iac/stratus/pkg/provider"
)

type Config struct {
	Triggers map[string]string `json:"triggers"`
}

type State struct {
	ID       string            `json:"id"`
	Triggers map[string]string `json:"triggers"`
}

type Provider struct{}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) Configure(ctx context.Context, req *provider.ConfigureRequest) error {
	return nil
}

func (p *Provider) Plan(ctx context.Context, req *provider.PlanRequest) (*provider.PlanResponse, error) {
	if req.DesiredJSON == nil && req.PriorJSON != nil {
		return &provider.PlanResponse{Action: provider.ActionDelete}, nil
	}
	if req.PriorJSON == nil {
		return &provider.PlanResponse{Action: provider.ActionCreate}, nil
	}

	var desired Config
	if err := json.Unmarshal(req.DesiredJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired config: %w", err)
	}
	var prior State
	if err := json.Unmarshal(req.PriorJSON, &prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prior state: %w", err)
	}

	if !equal(desired.Triggers, prior.Triggers) {
		return &provider.PlanResponse{
			Action:            provider.ActionReplace,
			ChangedAttributes: []string{"triggers"},
		}, nil
	}
	return &provider.PlanResponse{Action: provider.ActionNoop}, nil
}

func (p *Provider) Apply(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	var desired Config
	if err := json.Unmarshal(req.DesiredJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired config: %w", err)
	}

	state := State{
		ID:       fmt.Sprintf("null-%s", req.Name),
		Triggers: desired.Triggers,
	}
	stateJSON, _ := json.Marshal(state)
	return &provider.ApplyResponse{StateJSON: stateJSON}, nil
}

func (p *Provider) Read(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	return &provider.ReadResponse{Exists: true, StateJSON: req.StateJSON}, nil
}

func (p *Provider) Delete(ctx context.Context, req *provider.DeleteRequest) error {
	return nil
}

func equal(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
