package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stratus-iac/stratus/internal/ir"
	"github.com/stratus-iac/stratus/internal/logging"
	"github.com/stratus-iac/stratus/pkg/provider"
)

const defaultParallelism = 10

// ApplyEvent is a progress notification emitted per resource during apply.
type ApplyEvent struct {
	Address  string
	Action   string
	Status   string // "started", "completed", "failed"
	Duration time.Duration
	Error    error
}

// ApplyCallback receives apply events when set.
type ApplyCallback func(event ApplyEvent)

// ApplyPlan executes the plan and mutates state in place.
func (e *Engine) ApplyPlan(ctx context.Context, plan *ir.Plan, state *ir.State) (*ir.State, error) {
	return e.ApplyPlanWithCallback(ctx, plan, state, nil)
}

// ApplyPlanWithCallback executes the plan with progress callbacks. Creates
// and updates run first in dependency order, then deletes; independent
// changes in each phase run in parallel under a bounded semaphore.
func (e *Engine) ApplyPlanWithCallback(ctx context.Context, plan *ir.Plan, state *ir.State, callback ApplyCallback) (*ir.State, error) {
	var mu sync.Mutex
	var errs []error

	emit := func(event ApplyEvent) {
		if callback != nil {
			callback(event)
		}
	}

	stateIndex := make(map[string]int)
	for i, res := range state.Resources {
		stateIndex[res.Addr()] = i
	}

	var createUpdates, deletes []*ir.ResourceChange
	for _, change := range plan.Changes {
		if change.Action == string(provider.ActionDelete) {
			deletes = append(deletes, change)
		} else {
			createUpdates = append(createUpdates, change)
		}
	}

	runPhase := func(changes []*ir.ResourceChange) error {
		if len(changes) > 1 {
			return e.applyParallel(ctx, changes, state, &stateIndex, &mu, emit)
		}
		for _, change := range changes {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("apply cancelled: %w", err)
			}
			start := time.Now()
			emit(ApplyEvent{Address: change.Address, Action: change.Action, Status: "started"})
			if err := e.applyChange(ctx, change, state, &stateIndex, &mu); err != nil {
				emit(ApplyEvent{Address: change.Address, Action: change.Action, Status: "failed", Duration: time.Since(start), Error: err})
				return err
			}
			emit(ApplyEvent{Address: change.Address, Action: change.Action, Status: "completed", Duration: time.Since(start)})
		}
		return nil
	}

	for _, phase := range [][]*ir.ResourceChange{createUpdates, deletes} {
		if err := runPhase(phase); err != nil {
			if !e.ContinueOnError {
				return state, err
			}
			errs = append(errs, err)
		}
	}

	state.Serial++
	state.Outputs = plan.Outputs

	if len(errs) > 0 {
		return state, fmt.Errorf("%d resource(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return state, nil
}

// applyParallel runs changes concurrently. Each goroutine waits on a cond
// var until its in-plan dependencies finished; a failed dependency marks all
// dependents failed without running them.
func (e *Engine) applyParallel(ctx context.Context, changes []*ir.ResourceChange, state *ir.State, stateIndex *map[string]int, mu *sync.Mutex, emit func(ApplyEvent)) error {
	changeMap := make(map[string]*ir.ResourceChange, len(changes))
	for _, c := range changes {
		changeMap[c.Address] = c
	}

	deps := make(map[string]map[string]bool, len(changes))
	for _, c := range changes {
		deps[c.Address] = make(map[string]bool)
	}
	for _, c := range changes {
		if c.Desired != nil {
			for _, d := range c.Desired.DependsOn {
				if _, ok := changeMap[d]; ok {
					deps[c.Address][d] = true
				}
			}
			for _, ref := range extractRefs(c.Desired.Properties) {
				if depAddr := refToAddr(ref); depAddr != "" {
					if _, ok := changeMap[depAddr]; ok {
						deps[c.Address][depAddr] = true
					}
				}
			}
			continue
		}
		// Deletes run in reverse dependency order: a resource's
		// dependencies wait until their dependents are gone.
		if res := state.Resource(c.Address); res != nil {
			for _, d := range res.Dependencies {
				if _, ok := changeMap[d]; ok {
					deps[d][c.Address] = true
				}
			}
		}
	}

	completed := make(map[string]bool)
	failed := make(map[string]bool)
	var trackMu sync.Mutex
	cond := sync.NewCond(&trackMu)
	var firstErr error
	var allErrs []error
	sem := make(chan struct{}, defaultParallelism)

	var wg sync.WaitGroup
	for _, change := range changes {
		wg.Add(1)
		go func(c *ir.ResourceChange) {
			defer wg.Done()

			trackMu.Lock()
			for {
				if firstErr != nil && !e.ContinueOnError {
					trackMu.Unlock()
					return
				}
				ready := true
				depFailed := false
				for dep := range deps[c.Address] {
					if failed[dep] {
						depFailed = true
						break
					}
					if !completed[dep] {
						ready = false
						break
					}
				}
				if depFailed {
					failed[c.Address] = true
					trackMu.Unlock()
					cond.Broadcast()
					return
				}
				if ready {
					break
				}
				cond.Wait()
			}
			trackMu.Unlock()

			if err := ctx.Err(); err != nil {
				trackMu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("apply cancelled: %w", err)
				}
				trackMu.Unlock()
				cond.Broadcast()
				return
			}

			sem <- struct{}{}
			defer func() { <-sem }()

			start := time.Now()
			emit(ApplyEvent{Address: c.Address, Action: c.Action, Status: "started"})

			if err := e.applyChange(ctx, c, state, stateIndex, mu); err != nil {
				emit(ApplyEvent{Address: c.Address, Action: c.Action, Status: "failed", Duration: time.Since(start), Error: err})
				trackMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				allErrs = append(allErrs, err)
				failed[c.Address] = true
				trackMu.Unlock()
				cond.Broadcast()
				return
			}

			emit(ApplyEvent{Address: c.Address, Action: c.Action, Status: "completed", Duration: time.Since(start)})

			trackMu.Lock()
			completed[c.Address] = true
			trackMu.Unlock()
			cond.Broadcast()
		}(change)
	}
	wg.Wait()

	if e.ContinueOnError && len(allErrs) > 0 {
		return fmt.Errorf("%d resource(s) failed: %w", len(allErrs), errors.Join(allErrs...))
	}
	return firstErr
}

func (e *Engine) applyChange(ctx context.Context, change *ir.ResourceChange, state *ir.State, stateIndex *map[string]int, mu *sync.Mutex) error {
	addr := change.Address
	logging.Debug("applying change", "address", addr, "action", change.Action)

	timeout := DefaultTimeout
	if change.Desired != nil && change.Desired.Timeout != "" {
		if d, err := time.ParseDuration(change.Desired.Timeout); err == nil && d > 0 {
			timeout = d
		}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var desiredJSON, priorJSON []byte
	var name, typ, provName string

	if change.Desired != nil {
		name = change.Desired.Name
		typ = change.Desired.Type
		provName = change.Desired.Provider
		mu.Lock()
		resolved := resolveReferences(change.Desired.Properties, state)
		mu.Unlock()
		desiredJSON, _ = json.Marshal(resolved)
	} else if change.Prior != nil {
		name = change.Prior.Name
		typ = change.Prior.Type
		provName = change.Prior.Provider
	}

	mu.Lock()
	if idx, ok := (*stateIndex)[addr]; ok {
		if outputs := state.Resources[idx].Outputs; outputs != nil {
			priorJSON, _ = json.Marshal(outputs)
		}
	}
	mu.Unlock()

	prov, err := e.registry.Get(provName)
	if err != nil {
		return fmt.Errorf("provider not found: %s", provName)
	}

	policy := DefaultRetryPolicy()

	switch change.Action {
	case string(provider.ActionCreate), string(provider.ActionUpdate), string(provider.ActionReplace):
		var resp *provider.ApplyResponse
		err := RetryWithBackoff(ctx, policy, func() error {
			var applyErr error
			resp, applyErr = prov.Apply(ctx, &provider.ApplyRequest{
				Type:        typ,
				Name:        name,
				DesiredJSON: desiredJSON,
				PriorJSON:   priorJSON,
			})
			return applyErr
		}, IsTransientError)
		if err != nil {
			return fmt.Errorf("apply failed for %s: %w", addr, err)
		}

		var outputs map[string]any
		if len(resp.StateJSON) > 0 {
			if err := json.Unmarshal(resp.StateJSON, &outputs); err != nil {
				return fmt.Errorf("failed to unmarshal state for %s: %w", addr, err)
			}
		}

		var dependencies []string
		for _, ref := range extractRefs(change.Desired.Properties) {
			if depAddr := refToAddr(ref); depAddr != "" {
				dependencies = append(dependencies, depAddr)
			}
		}
		dependencies = append(dependencies, change.Desired.DependsOn...)

		newRes := &ir.ResourceState{
			Type:         typ,
			Name:         name,
			Provider:     provName,
			Inputs:       change.Desired.Properties,
			Outputs:      outputs,
			Dependencies: dependencies,
		}

		mu.Lock()
		if idx, ok := (*stateIndex)[addr]; ok {
			state.Resources[idx] = newRes
		} else {
			(*stateIndex)[addr] = len(state.Resources)
			state.Resources = append(state.Resources, newRes)
		}
		mu.Unlock()

	case string(provider.ActionDelete):
		var inputsJSON []byte
		mu.Lock()
		if idx, ok := (*stateIndex)[addr]; ok {
			if inputs := state.Resources[idx].Inputs; inputs != nil {
				inputsJSON, _ = json.Marshal(inputs)
			}
		}
		mu.Unlock()

		err := RetryWithBackoff(ctx, policy, func() error {
			return prov.Delete(ctx, &provider.DeleteRequest{
				Type:       typ,
				Name:       name,
				InputsJSON: inputsJSON,
				StateJSON:  priorJSON,
			})
		}, IsTransientError)
		if err != nil {
			return fmt.Errorf("delete failed for %s: %w", addr, err)
		}

		mu.Lock()
		if idx, ok := (*stateIndex)[addr]; ok {
			state.Resources = append(state.Resources[:idx], state.Resources[idx+1:]...)
			*stateIndex = make(map[string]int, len(state.Resources))
			for i, res := range state.Resources {
				(*stateIndex)[res.Addr()] = i
			}
		}
		mu.Unlock()
	}

	return nil
}

// resolveReferences substitutes ptr:// references with the provisioned
// attribute values recorded in state. Unresolvable references pass through
// unchanged so the provider surfaces a useful error.
func resolveReferences(val any, state *ir.State) any {
	switch v := val.(type) {
	case string:
		if !strings.HasPrefix(v, "ptr://") {
			return v
		}
		for _, res := range state.Resources {
			prefix := "ptr://" + res.Type + "/" + res.Name + "/"
			if attr, ok := strings.CutPrefix(v, prefix); ok {
				if out, ok := res.Outputs[attr]; ok {
					return out
				}
				if in, ok := res.Inputs[attr]; ok {
					return in
				}
				return v
			}
		}
		return v
	case map[string]any:
		resolved := make(map[string]any, len(v))
		for k, item := range v {
			resolved[k] = resolveReferences(item, state)
		}
		return resolved
	case []any:
		resolved := make([]any, len(v))
		for i, item := range v {
			resolved[i] = resolveReferences(item, state)
		}
		return resolved
	default:
		return v
	}
}
