package workspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	settings, err := Load(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", settings.Region)
	assert.Equal(t, ".stratus/state.json", settings.StatePath)
	assert.Nil(t, settings.Backend)
}

func TestStateBackend_DefaultsToLocal(t *testing.T) {
	settings := Defaults()
	backend, err := settings.StateBackend()
	require.NoError(t, err)
	assert.NotNil(t, backend)
}

func TestStateBackend_UnknownType(t *testing.T) {
	settings := Defaults()
	settings.Backend = &BackendSettings{Type: "consul"}

	_, err := settings.StateBackend()
	assert.Error(t, err)
}
