package state

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt_NoKey(t *testing.T) {
	// Without the env var, encryption is a pass-through.
	os.Unsetenv(EncryptionKeyEnvVar)

	content := []byte(`{"version":1,"serial":0}`)
	encrypted, err := EncryptState(content)
	require.NoError(t, err)
	assert.Equal(t, content, encrypted)

	decrypted, err := DecryptState(content)
	require.NoError(t, err)
	assert.Equal(t, content, decrypted)
}

func TestEncryptDecrypt_WithKey(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "my-super-secret-encryption-key!!")

	content := []byte(`{"version":1,"serial":42,"lineage":"test-uuid"}`)

	encrypted, err := EncryptState(content)
	require.NoError(t, err)
	assert.NotEqual(t, content, encrypted)
	assert.True(t, IsEncrypted(encrypted))

	decrypted, err := DecryptState(encrypted)
	require.NoError(t, err)
	assert.Equal(t, content, decrypted)
}

func TestIsEncrypted(t *testing.T) {
	assert.True(t, IsEncrypted([]byte("# STRATUS_ENCRYPTED_STATE\nbase64data")))
	assert.False(t, IsEncrypted([]byte(`{"version":1}`)))
	assert.False(t, IsEncrypted([]byte("")))
}

func TestDecryptState_WrongKey(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "correct-key-for-encryption!!!!!")

	content := []byte("test data")
	encrypted, err := EncryptState(content)
	require.NoError(t, err)

	t.Setenv(EncryptionKeyEnvVar, "wrong-key-for-decryption!!!!!!!")
	_, err = DecryptState(encrypted)
	assert.Error(t, err)
}

func TestManager_EncryptedRoundtrip(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "roundtrip-key-0123456789abcdef!!")

	tmpDir := t.TempDir()
	statePath := tmpDir + "/state.json"
	mgr := NewManager(statePath)

	s, err := mgr.Read(context.Background())
	require.NoError(t, err)
	s.Serial = 5
	require.NoError(t, mgr.Write(context.Background(), s))

	// On disk the payload is opaque.
	raw, err := os.ReadFile(statePath)
	require.NoError(t, err)
	assert.True(t, IsEncrypted(raw))
	assert.NotContains(t, string(raw), `"serial"`)

	got, err := mgr.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, got.Serial)
}
