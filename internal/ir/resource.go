package ir

// Resource is the descriptor for a single declared resource, produced at
// synthesis time and consumed by the planning engine.
type Resource struct {
	Type       string         `json:"type"` // e.g. "aws:S3.Bucket"
	Name       string         `json:"name"`
	Provider   string         `json:"provider"`
	Lifecycle  *Lifecycle     `json:"lifecycle,omitempty"`
	DependsOn  []string       `json:"dependsOn,omitempty"`
	Timeout    string         `json:"timeout,omitempty"`
	Properties map[string]any `json:"properties"`
}

// Lifecycle carries per-resource lifecycle rules enforced during planning.
type Lifecycle struct {
	CreateBeforeDestroy bool     `json:"createBeforeDestroy,omitempty"`
	PreventDestroy      bool     `json:"preventDestroy,omitempty"`
	IgnoreChanges       []string `json:"ignoreChanges,omitempty"`
}

// Addr returns the canonical address of a resource (type.name).
func (r *Resource) Addr() string {
	return r.Type + "." + r.Name
}
