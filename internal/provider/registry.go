package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/stratus-iac/stratus/pkg/provider"
	"github.com/stratus-iac/stratus/providers/aws"
	"github.com/stratus-iac/stratus/providers/docker"
	"github.com/stratus-iac/stratus/providers/null"
)

// Registry manages the lifecycle of the built-in providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]provider.Interface
	configure *provider.ConfigureRequest
}

// NewRegistry returns a registry. The configure request, if non-nil, is
// forwarded to every provider when it is first loaded.
func NewRegistry(configure *provider.ConfigureRequest) *Registry {
	return &Registry{
		providers: make(map[string]provider.Interface),
		configure: configure,
	}
}

// LoadProvider initializes and registers a provider by name. Loading is
// idempotent; an already-loaded provider is left untouched.
func (r *Registry) LoadProvider(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return nil
	}

	var p provider.Interface
	switch name {
	case "aws":
		p = aws.New()
	case "docker":
		p = docker.New()
	case "null":
		p = null.New()
	default:
		return fmt.Errorf("unknown provider: %s", name)
	}

	if r.configure != nil {
		if err := p.Configure(ctx, r.configure); err != nil {
			return fmt.Errorf("failed to configure provider %s: %w", name, err)
		}
	}

	r.providers[name] = p
	return nil
}

// Register installs an already-constructed provider under the given name,
// replacing any loaded one.
func (r *Registry) Register(name string, p provider.Interface) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get returns a loaded provider.
func (r *Registry) Get(name string) (provider.Interface, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider not loaded: %s", name)
	}
	return p, nil
}
