package docker

import (
	"context"
	"testing"

	"github.com/stratus-iac/stratus/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_NoDaemonNeeded(t *testing.T) {
	// Plan never touches the daemon; a zero Provider works.
	p := New()
	ctx := context.Background()

	resp, err := p.Plan(ctx, &provider.PlanRequest{
		Type:        "docker:Container",
		Name:        "web",
		DesiredJSON: []byte(`{"image":"nginx:1.27","name":"web"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, provider.ActionCreate, resp.Action)
}

func TestPlan_ContainerImageChangeReplaces(t *testing.T) {
	p := New()

	resp, err := p.Plan(context.Background(), &provider.PlanRequest{
		Type:        "docker:Container",
		Name:        "web",
		DesiredJSON: []byte(`{"image":"nginx:1.27","name":"web"}`),
		PriorJSON:   []byte(`{"id":"abc123","name":"web","image":"nginx:1.25"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, provider.ActionReplace, resp.Action)
	assert.Equal(t, []string{"image"}, resp.ChangedAttributes)
}

func TestPlan_UnchangedIsNoop(t *testing.T) {
	p := New()
	desired := []byte(`{"image":"nginx:1.27","name":"web"}`)

	resp, err := p.Plan(context.Background(), &provider.PlanRequest{
		Type:            "docker:Container",
		Name:            "web",
		DesiredJSON:     desired,
		PriorJSON:       []byte(`{"id":"abc123","name":"web","image":"nginx:1.27"}`),
		PriorInputsJSON: desired,
	})
	require.NoError(t, err)
	assert.Equal(t, provider.ActionNoop, resp.Action)
}

func TestPlan_NetworkInputChangeReplaces(t *testing.T) {
	p := New()

	resp, err := p.Plan(context.Background(), &provider.PlanRequest{
		Type:            "docker:Network",
		Name:            "backend",
		DesiredJSON:     []byte(`{"name":"backend","driver":"overlay"}`),
		PriorJSON:       []byte(`{"id":"net123","name":"backend","driver":"bridge"}`),
		PriorInputsJSON: []byte(`{"name":"backend","driver":"bridge"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, provider.ActionReplace, resp.Action)
}

func TestPlan_Delete(t *testing.T) {
	p := New()

	resp, err := p.Plan(context.Background(), &provider.PlanRequest{
		Type:      "docker:Volume",
		Name:      "data",
		PriorJSON: []byte(`{"name":"data","driver":"local"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, provider.ActionDelete, resp.Action)
}
