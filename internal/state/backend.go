package state

import (
	"context"
	"fmt"

	"github.com/stratus-iac/stratus/internal/ir"
)

// Backend defines the interface for state storage backends.
type Backend interface {
	// Read loads the state from the backend.
	Read(ctx context.Context) (*ir.State, error)

	// Write saves the state to the backend.
	Write(ctx context.Context, state *ir.State) error

	// Lock acquires an exclusive lock on the state.
	Lock() error

	// Unlock releases the lock on the state.
	Unlock() error
}

// BackendConfig holds configuration for a state backend.
type BackendConfig struct {
	Type   string            `json:"type"` // "local", "s3"
	Config map[string]string `json:"config"`
}

// NewBackend creates a state backend from configuration. An empty or
// unspecified type selects the local filesystem backend at localPath.
func NewBackend(cfg *BackendConfig, localPath string) (Backend, error) {
	if cfg == nil {
		return NewManager(localPath), nil
	}

	switch cfg.Type {
	case "local", "":
		if path := cfg.Config["path"]; path != "" {
			return NewManager(path), nil
		}
		return NewManager(localPath), nil
	case "s3":
		return newS3Backend(cfg.Config)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}
