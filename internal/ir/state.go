package ir

// State is the persisted record of provisioned resources.
type State struct {
	Version   int              `json:"version"`
	Serial    int              `json:"serial"`
	Lineage   string           `json:"lineage"`
	Resources []*ResourceState `json:"resources"`
	Outputs   map[string]any   `json:"outputs,omitempty"`
}

// ResourceState is the persisted record of a single provisioned resource:
// the inputs it was created from and the outputs the provider returned.
type ResourceState struct {
	Type         string         `json:"type"`
	Name         string         `json:"name"`
	Provider     string         `json:"provider"`
	Inputs       map[string]any `json:"inputs"`
	Outputs      map[string]any `json:"outputs"`
	Dependencies []string       `json:"dependencies,omitempty"`
}

// Addr returns the canonical address of the resource (type.name).
func (r *ResourceState) Addr() string {
	return r.Type + "." + r.Name
}

// NewState returns an empty state at version 1.
func NewState() *State {
	return &State{Version: 1, Serial: 0}
}

// Resource returns the resource state with the given address, or nil.
func (s *State) Resource(addr string) *ResourceState {
	for _, res := range s.Resources {
		if res.Addr() == addr {
			return res
		}
	}
	return nil
}
