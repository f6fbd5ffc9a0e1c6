package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3BackendRequiresBucket(t *testing.T) {
	_, err := newS3Backend(map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}

func TestNewS3BackendDefaults(t *testing.T) {
	b, err := newS3Backend(map[string]string{"bucket": "my-bucket"})
	// AWS config loading can fail in environments without credentials.
	if err != nil {
		t.Skipf("skipping S3 backend test (no AWS credentials): %v", err)
	}
	s3b, ok := b.(*s3Backend)
	require.True(t, ok)
	assert.Equal(t, "my-bucket", s3b.bucket)
	assert.Equal(t, "stratus/state.json", s3b.key)
	assert.Equal(t, "us-east-1", s3b.region)
	assert.Empty(t, s3b.dynamoDBTable)
	assert.False(t, s3b.encrypt)
}

func TestNewS3BackendCustomConfig(t *testing.T) {
	b, err := newS3Backend(map[string]string{
		"bucket":         "custom-bucket",
		"key":            "custom/path/state.json",
		"region":         "eu-west-1",
		"dynamodb_table": "stratus-locks",
		"encrypt":        "true",
		"profile":        "staging",
	})
	if err != nil {
		t.Skipf("skipping S3 backend test (no AWS credentials): %v", err)
	}
	s3b, ok := b.(*s3Backend)
	require.True(t, ok)
	assert.Equal(t, "custom-bucket", s3b.bucket)
	assert.Equal(t, "custom/path/state.json", s3b.key)
	assert.Equal(t, "eu-west-1", s3b.region)
	assert.Equal(t, "stratus-locks", s3b.dynamoDBTable)
	assert.True(t, s3b.encrypt)
}

func TestNewBackend_LocalDefault(t *testing.T) {
	b, err := NewBackend(nil, "state.json")
	require.NoError(t, err)
	_, ok := b.(*Manager)
	assert.True(t, ok)

	b, err = NewBackend(&BackendConfig{Type: "local"}, "state.json")
	require.NoError(t, err)
	_, ok = b.(*Manager)
	assert.True(t, ok)
}

func TestNewBackend_UnknownType(t *testing.T) {
	_, err := NewBackend(&BackendConfig{Type: "redis"}, "state.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend type")
}
