package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stratus-iac/stratus/internal/ir"
	registry "github.com/stratus-iac/stratus/internal/provider"
	"github.com/stratus-iac/stratus/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPlan_Create(t *testing.T) {
	eng := newTestEngine(t)

	plan := &ir.Plan{
		Changes: []*ir.ResourceChange{
			{
				Address: "null:Resource.test1",
				Action:  "CREATE",
				Desired: nullResource("test1", map[string]any{"a": "b"}),
			},
		},
		Summary: &ir.PlanSummary{Create: 1},
	}

	state := ir.NewState()
	newState, err := eng.ApplyPlan(context.Background(), plan, state)
	require.NoError(t, err)
	require.Len(t, newState.Resources, 1)
	assert.Equal(t, "null:Resource", newState.Resources[0].Type)
	assert.Equal(t, "test1", newState.Resources[0].Name)
	assert.Equal(t, "null-test1", newState.Resources[0].Outputs["id"])
	assert.Equal(t, 1, newState.Serial)
}

func TestApplyPlan_Delete(t *testing.T) {
	eng := newTestEngine(t)

	plan := &ir.Plan{
		Changes: []*ir.ResourceChange{
			{
				Address: "null:Resource.test1",
				Action:  "DELETE",
				Prior: &ir.Resource{
					Type:     "null:Resource",
					Name:     "test1",
					Provider: "null",
				},
			},
		},
		Summary: &ir.PlanSummary{Delete: 1},
	}

	state := &ir.State{
		Version: 1,
		Resources: []*ir.ResourceState{
			{
				Type:     "null:Resource",
				Name:     "test1",
				Provider: "null",
				Outputs:  map[string]any{"id": "null-test1"},
			},
		},
	}

	newState, err := eng.ApplyPlan(context.Background(), plan, state)
	require.NoError(t, err)
	assert.Len(t, newState.Resources, 0)
}

func TestApplyPlan_Replace_NoDuplicates(t *testing.T) {
	eng := newTestEngine(t)

	plan := &ir.Plan{
		Changes: []*ir.ResourceChange{
			{
				Address: "null:Resource.test1",
				Action:  "REPLACE",
				Desired: nullResource("test1", map[string]any{"a": "new"}),
			},
		},
		Summary: &ir.PlanSummary{Replace: 1},
	}

	state := &ir.State{
		Version: 1,
		Resources: []*ir.ResourceState{
			{
				Type:     "null:Resource",
				Name:     "test1",
				Provider: "null",
				Inputs:   map[string]any{"triggers": map[string]any{"a": "old"}},
				Outputs:  map[string]any{"id": "null-test1"},
			},
		},
	}

	newState, err := eng.ApplyPlan(context.Background(), plan, state)
	require.NoError(t, err)
	require.Len(t, newState.Resources, 1)
	assert.Equal(t, "null-test1", newState.Resources[0].Outputs["id"])
}

func TestApplyPlan_ProgressCallback(t *testing.T) {
	eng := newTestEngine(t)

	plan := &ir.Plan{
		Changes: []*ir.ResourceChange{
			{
				Address: "null:Resource.test1",
				Action:  "CREATE",
				Desired: nullResource("test1", nil),
			},
		},
		Summary: &ir.PlanSummary{Create: 1},
	}

	var mu sync.Mutex
	var events []ApplyEvent
	_, err := eng.ApplyPlanWithCallback(context.Background(), plan, ir.NewState(), func(ev ApplyEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, "started", events[0].Status)
	assert.Equal(t, "completed", events[1].Status)
	assert.Equal(t, "null:Resource.test1", events[1].Address)
}

func TestApplyPlan_ResolvesReferences(t *testing.T) {
	reg := registry.NewRegistry(nil)
	require.NoError(t, reg.LoadProvider(context.Background(), "null"))
	rec := &recordingProvider{}
	reg.Register("rec", rec)
	eng := New(reg)

	plan := &ir.Plan{
		Changes: []*ir.ResourceChange{
			{
				Address: "null:Resource.base",
				Action:  "CREATE",
				Desired: nullResource("base", map[string]any{"a": "b"}),
			},
			{
				Address: "rec:Thing.child",
				Action:  "CREATE",
				Desired: &ir.Resource{
					Type:     "rec:Thing",
					Name:     "child",
					Provider: "rec",
					Properties: map[string]any{
						"parent": "ptr://null:Resource/base/id",
					},
				},
			},
		},
		Summary: &ir.PlanSummary{Create: 2},
	}

	newState, err := eng.ApplyPlan(context.Background(), plan, ir.NewState())
	require.NoError(t, err)
	require.Len(t, newState.Resources, 2)

	// The reference resolved to the provisioned id before reaching the
	// provider, while state keeps the unresolved declaration.
	assert.Contains(t, string(rec.lastDesired), `"parent":"null-base"`)
	child := newState.Resource("rec:Thing.child")
	require.NotNil(t, child)
	assert.Equal(t, "ptr://null:Resource/base/id", child.Inputs["parent"])
	assert.Equal(t, []string{"null:Resource.base"}, child.Dependencies)
}

func TestApplyPlan_DeleteOrderReversed(t *testing.T) {
	reg := registry.NewRegistry(nil)
	rec := &recordingProvider{}
	reg.Register("rec", rec)
	eng := New(reg)

	plan := &ir.Plan{
		Changes: []*ir.ResourceChange{
			{
				Address: "rec:Thing.parent",
				Action:  "DELETE",
				Prior:   &ir.Resource{Type: "rec:Thing", Name: "parent", Provider: "rec"},
			},
			{
				Address: "rec:Thing.child",
				Action:  "DELETE",
				Prior:   &ir.Resource{Type: "rec:Thing", Name: "child", Provider: "rec"},
			},
		},
		Summary: &ir.PlanSummary{Delete: 2},
	}

	state := &ir.State{
		Version: 1,
		Resources: []*ir.ResourceState{
			{Type: "rec:Thing", Name: "parent", Provider: "rec", Outputs: map[string]any{"id": "p"}},
			{Type: "rec:Thing", Name: "child", Provider: "rec", Outputs: map[string]any{"id": "c"},
				Dependencies: []string{"rec:Thing.parent"}},
		},
	}

	newState, err := eng.ApplyPlan(context.Background(), plan, state)
	require.NoError(t, err)
	assert.Len(t, newState.Resources, 0)

	require.Len(t, rec.deleted, 2)
	assert.Equal(t, "child", rec.deleted[0], "dependent should be deleted before its dependency")
	assert.Equal(t, "parent", rec.deleted[1])
}

func TestApplyPlan_FailureMarksDependents(t *testing.T) {
	reg := registry.NewRegistry(nil)
	rec := &recordingProvider{failOn: "base"}
	reg.Register("rec", rec)
	eng := New(reg)

	plan := &ir.Plan{
		Changes: []*ir.ResourceChange{
			{
				Address: "rec:Thing.base",
				Action:  "CREATE",
				Desired: &ir.Resource{Type: "rec:Thing", Name: "base", Provider: "rec"},
			},
			{
				Address: "rec:Thing.child",
				Action:  "CREATE",
				Desired: &ir.Resource{
					Type:     "rec:Thing",
					Name:     "child",
					Provider: "rec",
					Properties: map[string]any{
						"parent": "ptr://rec:Thing/base/id",
					},
				},
			},
		},
		Summary: &ir.PlanSummary{Create: 2},
	}

	newState, err := eng.ApplyPlan(context.Background(), plan, ir.NewState())
	require.Error(t, err)
	assert.Len(t, newState.Resources, 0, "dependent must not apply after its dependency failed")
	assert.NotContains(t, rec.applied, "child")
}

// recordingProvider captures apply and delete calls for assertions. Apply
// fails for the resource named in failOn.
type recordingProvider struct {
	mu          sync.Mutex
	applied     []string
	deleted     []string
	lastDesired []byte
	failOn      string
}

func (p *recordingProvider) Configure(ctx context.Context, req *provider.ConfigureRequest) error {
	return nil
}

func (p *recordingProvider) Plan(ctx context.Context, req *provider.PlanRequest) (*provider.PlanResponse, error) {
	if req.DesiredJSON == nil {
		return &provider.PlanResponse{Action: provider.ActionDelete}, nil
	}
	if req.PriorJSON == nil {
		return &provider.PlanResponse{Action: provider.ActionCreate}, nil
	}
	return &provider.PlanResponse{Action: provider.ActionNoop}, nil
}

func (p *recordingProvider) Apply(ctx context.Context, req *provider.ApplyRequest) (*provider.ApplyResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if req.Name == p.failOn {
		return nil, errors.New("apply rejected")
	}
	p.applied = append(p.applied, req.Name)
	p.lastDesired = req.DesiredJSON
	return &provider.ApplyResponse{StateJSON: []byte(`{"id":"` + req.Name + `-id"}`)}, nil
}

func (p *recordingProvider) Read(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	return &provider.ReadResponse{Exists: true, StateJSON: req.StateJSON}, nil
}

func (p *recordingProvider) Delete(ctx context.Context, req *provider.DeleteRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, req.Name)
	return nil
}
