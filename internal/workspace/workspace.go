// Package workspace loads per-project settings from an optional stratus.pkl
// file in the working directory.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apple/pkl-go/pkl"

	"github.com/stratus-iac/stratus/internal/state"
)

// SettingsFile is the name of the workspace settings file.
const SettingsFile = "stratus.pkl"

// Settings holds workspace-level configuration applied to every stack
// operation: the target region, the state backend, and tags merged into
// every provisioned resource.
type Settings struct {
	Region  string            `pkl:"region"`
	Backend *BackendSettings  `pkl:"backend"`
	Tags    map[string]string `pkl:"tags"`

	// StatePath is where local state lives; relative to the workspace dir.
	StatePath string `pkl:"statePath"`
}

type BackendSettings struct {
	Type   string            `pkl:"type"`
	Config map[string]string `pkl:"config"`
}

// Defaults returns the settings used when no stratus.pkl exists.
func Defaults() *Settings {
	return &Settings{
		Region:    "us-east-1",
		StatePath: filepath.Join(".stratus", "state.json"),
	}
}

// Load evaluates the settings file in dir, falling back to Defaults when the
// file is absent.
func Load(ctx context.Context, dir string) (*Settings, error) {
	path := filepath.Join(dir, SettingsFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Defaults(), nil
	}

	evaluator, err := pkl.NewEvaluator(ctx, pkl.PreconfiguredOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create settings evaluator: %w", err)
	}
	defer evaluator.Close()

	var settings Settings
	if err := evaluator.EvaluateModule(ctx, pkl.FileSource(path), &settings); err != nil {
		return nil, fmt.Errorf("failed to evaluate %s: %w", path, err)
	}

	if settings.Region == "" {
		settings.Region = "us-east-1"
	}
	if settings.StatePath == "" {
		settings.StatePath = filepath.Join(".stratus", "state.json")
	}

	return &settings, nil
}

// StateBackend builds the state backend described by the settings.
func (s *Settings) StateBackend() (state.Backend, error) {
	if s.Backend == nil {
		return state.NewManager(s.StatePath), nil
	}
	return state.NewBackend(&state.BackendConfig{
		Type:   s.Backend.Type,
		Config: s.Backend.Config,
	}, s.StatePath)
}
