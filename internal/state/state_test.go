package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stratus-iac/stratus/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_ReadWrite(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, "state.json")

	mgr := NewManager(statePath)
	ctx := context.Background()

	// Reading a missing file yields an empty state.
	s, err := mgr.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Version)
	assert.Equal(t, 0, s.Serial)
	assert.Empty(t, s.Resources)

	s.Serial = 3
	s.Resources = []*ir.ResourceState{
		{
			Type:     "aws:S3.Bucket",
			Name:     "scratch",
			Provider: "aws",
			Inputs:   map[string]any{"bucket": "scratch-bucket"},
			Outputs:  map[string]any{"arn": "arn:aws:s3:::scratch-bucket"},
		},
	}

	require.NoError(t, mgr.Write(ctx, s))

	got, err := mgr.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Serial)
	require.Len(t, got.Resources, 1)
	assert.Equal(t, "aws:S3.Bucket", got.Resources[0].Type)
	assert.Equal(t, "arn:aws:s3:::scratch-bucket", got.Resources[0].Outputs["arn"])
	assert.NotEmpty(t, got.Lineage, "lineage is minted on first write")
}

func TestManager_LineageStable(t *testing.T) {
	tmpDir := t.TempDir()
	mgr := NewManager(filepath.Join(tmpDir, "state.json"))
	ctx := context.Background()

	s := ir.NewState()
	require.NoError(t, mgr.Write(ctx, s))
	first, err := mgr.Read(ctx)
	require.NoError(t, err)

	require.NoError(t, mgr.Write(ctx, first))
	second, err := mgr.Read(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.Lineage, second.Lineage)
}

func TestManager_WriteCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	statePath := filepath.Join(tmpDir, ".stratus", "state.json")

	mgr := NewManager(statePath)
	require.NoError(t, mgr.Write(context.Background(), ir.NewState()))

	_, err := os.Stat(statePath)
	require.NoError(t, err)
}

func TestSerializeParse_Roundtrip(t *testing.T) {
	s := &ir.State{
		Version: 1,
		Serial:  7,
		Lineage: "abc123",
		Resources: []*ir.ResourceState{
			{
				Type:         "aws:EC2.Instance",
				Name:         "bastion",
				Provider:     "aws",
				Inputs:       map[string]any{"instanceType": "c5.large"},
				Outputs:      map[string]any{"id": "i-0123456789"},
				Dependencies: []string{"aws:EC2.Subnet.Public"},
			},
		},
		Outputs: map[string]any{"bastionId": "i-0123456789"},
	}

	raw, err := SerializeState(s)
	require.NoError(t, err)

	got, err := ParseState(raw)
	require.NoError(t, err)
	assert.Equal(t, s.Serial, got.Serial)
	assert.Equal(t, s.Lineage, got.Lineage)
	require.Len(t, got.Resources, 1)
	assert.Equal(t, "aws:EC2.Instance.bastion", got.Resources[0].Addr())
	assert.Equal(t, []string{"aws:EC2.Subnet.Public"}, got.Resources[0].Dependencies)
}

func TestManager_Lock(t *testing.T) {
	tmpDir := t.TempDir()
	mgr := NewManager(filepath.Join(tmpDir, "state.json"))

	require.NoError(t, mgr.Lock())

	// A second lock attempt on the same path fails until unlocked.
	other := NewManager(filepath.Join(tmpDir, "state.json"))
	assert.Error(t, other.Lock())

	require.NoError(t, mgr.Unlock())
	assert.NoError(t, other.Lock())
	require.NoError(t, other.Unlock())
}
