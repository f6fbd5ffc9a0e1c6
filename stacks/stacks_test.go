package stacks

import (
	"testing"

	"github.com/stratus-iac/stratus/internal/constructs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynth_Registered(t *testing.T) {
	cfg, err := Synth(DefaultStack, &constructs.StackProps{
		Env: &constructs.Environment{Region: "us-east-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "learning", cfg.Stack)
	assert.NotEmpty(t, cfg.Resources)
}

func TestSynth_UnknownStack(t *testing.T) {
	_, err := Synth("nope", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stack")
	assert.Contains(t, err.Error(), "learning")
}

func TestNames_Sorted(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "learning")
}
