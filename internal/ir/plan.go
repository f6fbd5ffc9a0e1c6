package ir

// Plan is a calculated execution plan: the ordered set of changes required to
// move the provisioned infrastructure to the synthesized configuration.
type Plan struct {
	Metadata *PlanMetadata     `json:"metadata"`
	Changes  []*ResourceChange `json:"changes"`
	Summary  *PlanSummary      `json:"summary"`
	Outputs  map[string]any    `json:"outputs,omitempty"`
}

type PlanMetadata struct {
	Stack     string `json:"stack"`
	Timestamp string `json:"timestamp"`
}

type ResourceChange struct {
	Address string                   `json:"address"`
	Action  string                   `json:"action"` // "CREATE", "UPDATE", "DELETE", "REPLACE", "NOOP"
	Desired *Resource                `json:"resource,omitempty"`
	Prior   *Resource                `json:"prior,omitempty"`
	Diff    map[string]*PropertyDiff `json:"diff,omitempty"`
}

type PropertyDiff struct {
	Before            any    `json:"before,omitempty"`
	After             any    `json:"after,omitempty"`
	ForcesReplacement bool   `json:"forcesReplacement,omitempty"`
	Action            string `json:"action"` // "create", "update", "delete"
}

type PlanSummary struct {
	Create  int `json:"create"`
	Update  int `json:"update"`
	Delete  int `json:"delete"`
	Replace int `json:"replace"`
	NoOp    int `json:"noop"`
}

// Empty reports whether the plan contains no changes.
func (p *Plan) Empty() bool {
	return len(p.Changes) == 0
}
