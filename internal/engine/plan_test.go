package engine

import (
	"context"
	"testing"

	"github.com/stratus-iac/stratus/internal/ir"
	registry "github.com/stratus-iac/stratus/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	reg := registry.NewRegistry(nil)
	require.NoError(t, reg.LoadProvider(context.Background(), "null"))
	return New(reg)
}

func nullResource(name string, triggers map[string]any) *ir.Resource {
	return &ir.Resource{
		Type:     "null:Resource",
		Name:     name,
		Provider: "null",
		Properties: map[string]any{
			"triggers": triggers,
		},
	}
}

func TestCreatePlan_AllNew(t *testing.T) {
	eng := newTestEngine(t)

	cfg := &ir.Config{
		Stack: "test",
		Resources: []*ir.Resource{
			nullResource("a", map[string]any{"k": "v"}),
			nullResource("b", nil),
		},
	}

	plan, err := eng.CreatePlan(context.Background(), cfg, ir.NewState())
	require.NoError(t, err)

	assert.Len(t, plan.Changes, 2)
	assert.Equal(t, 2, plan.Summary.Create)
	assert.Equal(t, 0, plan.Summary.Delete)
	for _, change := range plan.Changes {
		assert.Equal(t, "CREATE", change.Action)
	}
}

func TestCreatePlan_NoChanges(t *testing.T) {
	eng := newTestEngine(t)

	cfg := &ir.Config{
		Stack: "test",
		Resources: []*ir.Resource{
			nullResource("a", map[string]any{"k": "v"}),
		},
	}
	state := &ir.State{
		Version: 1,
		Resources: []*ir.ResourceState{
			{
				Type:     "null:Resource",
				Name:     "a",
				Provider: "null",
				Inputs:   map[string]any{"triggers": map[string]any{"k": "v"}},
				Outputs:  map[string]any{"id": "null-a", "triggers": map[string]any{"k": "v"}},
			},
		},
	}

	plan, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)

	assert.True(t, plan.Empty())
	assert.Equal(t, 1, plan.Summary.NoOp)
}

func TestCreatePlan_TriggerChangeReplaces(t *testing.T) {
	eng := newTestEngine(t)

	cfg := &ir.Config{
		Stack: "test",
		Resources: []*ir.Resource{
			nullResource("a", map[string]any{"k": "new"}),
		},
	}
	state := &ir.State{
		Version: 1,
		Resources: []*ir.ResourceState{
			{
				Type:     "null:Resource",
				Name:     "a",
				Provider: "null",
				Inputs:   map[string]any{"triggers": map[string]any{"k": "old"}},
				Outputs:  map[string]any{"id": "null-a", "triggers": map[string]any{"k": "old"}},
			},
		},
	}

	plan, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)

	require.Len(t, plan.Changes, 1)
	assert.Equal(t, "REPLACE", plan.Changes[0].Action)
	assert.Equal(t, 1, plan.Summary.Replace)
	assert.Contains(t, plan.Changes[0].Diff, "triggers")
}

func TestCreatePlan_RemovedResourceDeleted(t *testing.T) {
	eng := newTestEngine(t)

	cfg := &ir.Config{Stack: "test"}
	state := &ir.State{
		Version: 1,
		Resources: []*ir.ResourceState{
			{
				Type:     "null:Resource",
				Name:     "gone",
				Provider: "null",
				Inputs:   map[string]any{"triggers": map[string]any{}},
				Outputs:  map[string]any{"id": "null-gone"},
			},
		},
	}

	plan, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)

	require.Len(t, plan.Changes, 1)
	assert.Equal(t, "DELETE", plan.Changes[0].Action)
	assert.Equal(t, "null:Resource.gone", plan.Changes[0].Address)
	assert.Equal(t, 1, plan.Summary.Delete)
}

func TestCreatePlan_PreventDestroy(t *testing.T) {
	eng := newTestEngine(t)

	res := nullResource("a", map[string]any{"k": "new"})
	res.Lifecycle = &ir.Lifecycle{PreventDestroy: true}

	cfg := &ir.Config{Stack: "test", Resources: []*ir.Resource{res}}
	state := &ir.State{
		Version: 1,
		Resources: []*ir.ResourceState{
			{
				Type:     "null:Resource",
				Name:     "a",
				Provider: "null",
				Inputs:   map[string]any{"triggers": map[string]any{"k": "old"}},
				Outputs:  map[string]any{"id": "null-a", "triggers": map[string]any{"k": "old"}},
			},
		},
	}

	_, err := eng.CreatePlan(context.Background(), cfg, state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prevent-destroy")
}

func TestCreatePlan_IgnoreChanges(t *testing.T) {
	eng := newTestEngine(t)

	res := nullResource("a", map[string]any{"k": "new"})
	res.Lifecycle = &ir.Lifecycle{IgnoreChanges: []string{"triggers"}}

	cfg := &ir.Config{Stack: "test", Resources: []*ir.Resource{res}}
	state := &ir.State{
		Version: 1,
		Resources: []*ir.ResourceState{
			{
				Type:     "null:Resource",
				Name:     "a",
				Provider: "null",
				Inputs:   map[string]any{"triggers": map[string]any{"k": "old"}},
				Outputs:  map[string]any{"id": "null-a", "triggers": map[string]any{"k": "old"}},
			},
		},
	}

	// REPLACE is still destruction, so it is not downgraded; only pure
	// updates with fully ignored attributes become no-ops. The null
	// provider replaces on trigger change, so the plan surfaces it.
	plan, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)
	assert.Equal(t, "REPLACE", plan.Changes[0].Action)
}

func TestCreatePlanWithTargets(t *testing.T) {
	eng := newTestEngine(t)

	resB := nullResource("b", nil)
	resA := nullResource("a", nil)
	resA.DependsOn = []string{"null:Resource.b"}
	resC := nullResource("c", nil)

	cfg := &ir.Config{Stack: "test", Resources: []*ir.Resource{resA, resB, resC}}

	plan, err := eng.CreatePlanWithTargets(context.Background(), cfg, ir.NewState(), []string{"null:Resource.a"})
	require.NoError(t, err)

	addrs := make([]string, 0, len(plan.Changes))
	for _, change := range plan.Changes {
		addrs = append(addrs, change.Address)
	}
	// Targeting a pulls in its dependency b; c stays untouched.
	assert.ElementsMatch(t, []string{"null:Resource.a", "null:Resource.b"}, addrs)
	assert.Equal(t, 1, plan.Summary.NoOp)
}
