package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stratus-iac/stratus/internal/ir"
	"github.com/stratus-iac/stratus/internal/logging"
	registry "github.com/stratus-iac/stratus/internal/provider"
	"github.com/stratus-iac/stratus/pkg/provider"
)

// Engine drives planning and applying of synthesized configurations.
type Engine struct {
	registry *registry.Registry
	// ContinueOnError keeps applying past individual resource failures and
	// aggregates the errors at the end.
	ContinueOnError bool
}

func New(reg *registry.Registry) *Engine {
	return &Engine{registry: reg}
}

// CreatePlan compares the synthesized configuration against state and
// produces the change set required to converge.
func (e *Engine) CreatePlan(ctx context.Context, cfg *ir.Config, state *ir.State) (*ir.Plan, error) {
	return e.CreatePlanWithTargets(ctx, cfg, state, nil)
}

// CreatePlanWithTargets plans only the given addresses (plus their
// transitive dependencies). Nil or empty targets plan everything.
func (e *Engine) CreatePlanWithTargets(ctx context.Context, cfg *ir.Config, state *ir.State, targets []string) (*ir.Plan, error) {
	logging.Debug("creating plan",
		"stack", cfg.Stack,
		"resources", len(cfg.Resources),
		"state_resources", len(state.Resources),
		"targets", len(targets))

	plan := &ir.Plan{
		Metadata: &ir.PlanMetadata{
			Stack:     cfg.Stack,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
		Changes: []*ir.ResourceChange{},
		Summary: &ir.PlanSummary{},
		Outputs: cfg.Outputs,
	}

	for _, res := range cfg.Resources {
		if err := e.registry.LoadProvider(ctx, res.Provider); err != nil {
			return nil, fmt.Errorf("failed to load provider %s: %w", res.Provider, err)
		}
	}

	dag, err := BuildDAG(cfg.Resources)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}

	stateMap := make(map[string]*ir.ResourceState)
	for _, res := range state.Resources {
		stateMap[res.Addr()] = res
	}
	configByAddr := make(map[string]*ir.Resource)
	for _, res := range cfg.Resources {
		configByAddr[res.Addr()] = res
	}

	var targetSet map[string]bool
	if len(targets) > 0 {
		targetSet = make(map[string]bool)
		for _, t := range targets {
			targetSet[t] = true
			for _, dep := range dag.TransitiveDeps(t) {
				targetSet[dep] = true
			}
		}
	}

	for _, addr := range dag.CreationOrder() {
		res, ok := configByAddr[addr]
		if !ok {
			continue
		}
		if targetSet != nil && !targetSet[addr] {
			plan.Summary.NoOp++
			continue
		}

		prov, err := e.registry.Get(res.Provider)
		if err != nil {
			return nil, err
		}

		desiredJSON, err := json.Marshal(res.Properties)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal properties for %s: %w", addr, err)
		}
		var priorJSON, priorInputsJSON []byte
		if prior, ok := stateMap[addr]; ok {
			priorJSON, _ = json.Marshal(prior.Outputs)
			priorInputsJSON, _ = json.Marshal(prior.Inputs)
		}

		resp, err := prov.Plan(ctx, &provider.PlanRequest{
			Type:            res.Type,
			Name:            res.Name,
			DesiredJSON:     desiredJSON,
			PriorJSON:       priorJSON,
			PriorInputsJSON: priorInputsJSON,
		})
		if err != nil {
			return nil, fmt.Errorf("plan failed for %s: %w", addr, err)
		}

		action := resp.Action
		if action != provider.ActionNoop {
			if err := enforceLifecycle(res, action, addr); err != nil {
				return nil, err
			}
			if res.Lifecycle != nil && len(res.Lifecycle.IgnoreChanges) > 0 && action == provider.ActionUpdate {
				action = filterIgnoredChanges(res, resp)
			}
		}

		if action == provider.ActionNoop {
			plan.Summary.NoOp++
			continue
		}

		change := &ir.ResourceChange{
			Address: addr,
			Action:  string(action),
			Desired: res,
		}
		if prior, ok := stateMap[addr]; ok {
			change.Prior = &ir.Resource{
				Type:       prior.Type,
				Name:       prior.Name,
				Provider:   prior.Provider,
				Properties: prior.Inputs,
			}
			change.Diff = buildPropertyDiff(prior.Inputs, res.Properties)
		} else {
			change.Diff = buildCreateDiff(res.Properties)
		}
		plan.Changes = append(plan.Changes, change)

		switch action {
		case provider.ActionCreate:
			plan.Summary.Create++
		case provider.ActionUpdate:
			plan.Summary.Update++
		case provider.ActionReplace:
			plan.Summary.Replace++
		case provider.ActionDelete:
			plan.Summary.Delete++
		}
	}

	// Resources present in state but absent from config get deleted.
	for _, res := range state.Resources {
		addr := res.Addr()
		if _, ok := configByAddr[addr]; ok {
			continue
		}
		if targetSet != nil && !targetSet[addr] {
			continue
		}
		plan.Changes = append(plan.Changes, &ir.ResourceChange{
			Address: addr,
			Action:  string(provider.ActionDelete),
			Prior: &ir.Resource{
				Type:       res.Type,
				Name:       res.Name,
				Provider:   res.Provider,
				Properties: res.Inputs,
			},
			Diff: buildDeleteDiff(res.Inputs),
		})
		plan.Summary.Delete++
	}

	return plan, nil
}

func enforceLifecycle(res *ir.Resource, action provider.Action, addr string) error {
	if res.Lifecycle == nil {
		return nil
	}
	if res.Lifecycle.PreventDestroy && (action == provider.ActionDelete || action == provider.ActionReplace) {
		return fmt.Errorf("resource %s has prevent-destroy set but plan requires destruction", addr)
	}
	return nil
}

// filterIgnoredChanges downgrades an update to a no-op when every changed
// attribute is listed in the resource's ignore-changes set.
func filterIgnoredChanges(res *ir.Resource, resp *provider.PlanResponse) provider.Action {
	if len(resp.ChangedAttributes) == 0 {
		return resp.Action
	}
	ignored := make(map[string]bool, len(res.Lifecycle.IgnoreChanges))
	for _, attr := range res.Lifecycle.IgnoreChanges {
		ignored[attr] = true
	}
	for _, attr := range resp.ChangedAttributes {
		if !ignored[attr] {
			return resp.Action
		}
	}
	return provider.ActionNoop
}

func buildPropertyDiff(prior, desired map[string]any) map[string]*ir.PropertyDiff {
	diff := make(map[string]*ir.PropertyDiff)

	allKeys := make(map[string]bool)
	for k := range prior {
		allKeys[k] = true
	}
	for k := range desired {
		allKeys[k] = true
	}

	for k := range allKeys {
		priorVal, inPrior := prior[k]
		desiredVal, inDesired := desired[k]

		switch {
		case !inPrior:
			diff[k] = &ir.PropertyDiff{After: desiredVal, Action: "create"}
		case !inDesired:
			diff[k] = &ir.PropertyDiff{Before: priorVal, Action: "delete"}
		case fmt.Sprintf("%v", priorVal) != fmt.Sprintf("%v", desiredVal):
			diff[k] = &ir.PropertyDiff{Before: priorVal, After: desiredVal, Action: "update"}
		}
	}
	return diff
}

func buildCreateDiff(props map[string]any) map[string]*ir.PropertyDiff {
	diff := make(map[string]*ir.PropertyDiff, len(props))
	for k, v := range props {
		diff[k] = &ir.PropertyDiff{After: v, Action: "create"}
	}
	return diff
}

func buildDeleteDiff(props map[string]any) map[string]*ir.PropertyDiff {
	diff := make(map[string]*ir.PropertyDiff, len(props))
	for k, v := range props {
		diff[k] = &ir.PropertyDiff{Before: v, Action: "delete"}
	}
	return diff
}
