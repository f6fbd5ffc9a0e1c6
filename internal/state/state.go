package state

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stratus-iac/stratus/internal/ir"
)

// Manager handles reading and writing of state on the local filesystem.
type Manager struct {
	path string
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Read loads the state from the configured path.
// If the state file is encrypted, it is transparently decrypted before loading.
func (m *Manager) Read(ctx context.Context) (*ir.State, error) {
	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		return ir.NewState(), nil
	}

	raw, err := os.ReadFile(m.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file %s: %w", m.path, err)
	}

	if IsEncrypted(raw) {
		raw, err = DecryptState(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt state: %w", err)
		}
	}

	return ParseState(raw)
}

// Write saves the state to the configured path.
// If STRATUS_STATE_ENCRYPTION_KEY is set, the file is transparently encrypted.
func (m *Manager) Write(ctx context.Context, state *ir.State) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	content, err := SerializeState(state)
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	encrypted, err := EncryptState(content)
	if err != nil {
		return fmt.Errorf("failed to encrypt state: %w", err)
	}

	if err := os.WriteFile(m.path, encrypted, 0644); err != nil {
		return fmt.Errorf("failed to write state file %s: %w", m.path, err)
	}

	return nil
}

// SerializeState converts a State to its JSON representation. A lineage is
// minted the first time an unlineaged state is serialized.
func SerializeState(state *ir.State) ([]byte, error) {
	if state.Lineage == "" {
		state.Lineage = newLineage()
	}
	if state.Version == 0 {
		state.Version = 1
	}
	content, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(content, '\n'), nil
}

// ParseState decodes a JSON state document.
func ParseState(raw []byte) (*ir.State, error) {
	var state ir.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state: %w", err)
	}
	if state.Version == 0 {
		state.Version = 1
	}
	return &state, nil
}

func newLineage() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(buf)
}
