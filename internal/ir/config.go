package ir

// Config is a synthesized resource set: the full descriptor tree of a stack
// flattened into dependency-resolvable resources plus stack outputs.
type Config struct {
	Stack     string         `json:"stack"`
	Resources []*Resource    `json:"resources"`
	Outputs   map[string]any `json:"outputs,omitempty"`
}
