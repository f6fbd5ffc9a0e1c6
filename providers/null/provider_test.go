package null

import (
	"context"
	"testing"

	"github.com/stratus-iac/stratus/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan(t *testing.T) {
	p := New()
	ctx := context.Background()

	tests := []struct {
		name    string
		desired []byte
		prior   []byte
		want    provider.Action
	}{
		{"create", []byte(`{"triggers":{"a":"b"}}`), nil, provider.ActionCreate},
		{"delete", nil, []byte(`{"id":"null-x"}`), provider.ActionDelete},
		{"noop", []byte(`{"triggers":{"a":"b"}}`), []byte(`{"id":"null-x","triggers":{"a":"b"}}`), provider.ActionNoop},
		{"replace on trigger change", []byte(`{"triggers":{"a":"new"}}`), []byte(`{"id":"null-x","triggers":{"a":"old"}}`), provider.ActionReplace},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := p.Plan(ctx, &provider.PlanRequest{
				Type:        "null:Resource",
				Name:        "x",
				DesiredJSON: tt.desired,
				PriorJSON:   tt.prior,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Action)
		})
	}
}

func TestApplyEchoesTriggers(t *testing.T) {
	p := New()

	resp, err := p.Apply(context.Background(), &provider.ApplyRequest{
		Type:        "null:Resource",
		Name:        "marker",
		DesiredJSON: []byte(`{"triggers":{"rev":"7"}}`),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"null-marker","triggers":{"rev":"7"}}`, string(resp.StateJSON))
}
