package engine

import (
	"fmt"
	"strings"

	"github.com/stratus-iac/stratus/internal/ir"
)

// DAG is the dependency graph over resource addresses, with creation and
// destruction orderings precomputed.
type DAG struct {
	nodes    map[string]*dagNode
	order    []string
	revOrder []string
}

type dagNode struct {
	addr     string
	edges    []string // addresses this node depends on
	revEdges []string // addresses depending on this node
}

// BuildDAG constructs the dependency graph from synthesized resources. Edges
// come from explicit DependsOn entries and from implicit ptr:// references
// inside properties; references to addresses outside the set are ignored.
func BuildDAG(resources []*ir.Resource) (*DAG, error) {
	dag := &DAG{nodes: make(map[string]*dagNode)}

	for _, res := range resources {
		dag.nodes[res.Addr()] = &dagNode{addr: res.Addr()}
	}

	for _, res := range resources {
		node := dag.nodes[res.Addr()]
		for _, dep := range res.DependsOn {
			if _, ok := dag.nodes[dep]; ok {
				node.edges = append(node.edges, dep)
			}
		}
		for _, ref := range extractRefs(res.Properties) {
			if depAddr := refToAddr(ref); depAddr != "" {
				if _, ok := dag.nodes[depAddr]; ok {
					node.edges = append(node.edges, depAddr)
				}
			}
		}
	}

	return dag.finish()
}

// BuildDAGFromState constructs the graph from persisted state, for teardown
// ordering. Dependency addresses missing from the state still get nodes so
// partial states order correctly.
func BuildDAGFromState(resources []*ir.ResourceState) (*DAG, error) {
	dag := &DAG{nodes: make(map[string]*dagNode)}

	for _, res := range resources {
		node := &dagNode{addr: res.Addr()}
		node.edges = append(node.edges, res.Dependencies...)
		dag.nodes[res.Addr()] = node
	}
	for _, node := range dag.nodes {
		for _, dep := range node.edges {
			if _, ok := dag.nodes[dep]; !ok {
				dag.nodes[dep] = &dagNode{addr: dep}
			}
		}
	}

	return dag.finish()
}

func (d *DAG) finish() (*DAG, error) {
	for addr, node := range d.nodes {
		for _, dep := range node.edges {
			d.nodes[dep].revEdges = append(d.nodes[dep].revEdges, addr)
		}
	}

	order, err := d.topoSort()
	if err != nil {
		return nil, err
	}
	d.order = order

	d.revOrder = make([]string, len(order))
	for i, addr := range order {
		d.revOrder[len(order)-1-i] = addr
	}
	return d, nil
}

// CreationOrder returns addresses in dependency-respecting creation order.
func (d *DAG) CreationOrder() []string {
	return d.order
}

// DestructionOrder returns addresses in reverse dependency order.
func (d *DAG) DestructionOrder() []string {
	return d.revOrder
}

// Dependencies returns the direct dependencies of an address.
func (d *DAG) Dependencies(addr string) []string {
	if node, ok := d.nodes[addr]; ok {
		return node.edges
	}
	return nil
}

// TransitiveDeps returns every address reachable through dependency edges.
func (d *DAG) TransitiveDeps(addr string) []string {
	seen := make(map[string]bool)
	var walk func(string)
	walk = func(a string) {
		node, ok := d.nodes[a]
		if !ok {
			return
		}
		for _, dep := range node.edges {
			if !seen[dep] {
				seen[dep] = true
				walk(dep)
			}
		}
	}
	walk(addr)

	deps := make([]string, 0, len(seen))
	for dep := range seen {
		deps = append(deps, dep)
	}
	return deps
}

// topoSort runs Kahn's algorithm; a leftover node means a cycle.
func (d *DAG) topoSort() ([]string, error) {
	inDegree := make(map[string]int, len(d.nodes))
	for addr, node := range d.nodes {
		inDegree[addr] = len(node.edges)
	}

	var queue []string
	for addr, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, addr)
		}
	}

	var sorted []string
	for len(queue) > 0 {
		addr := queue[0]
		queue = queue[1:]
		sorted = append(sorted, addr)

		for _, dependent := range d.nodes[addr].revEdges {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(sorted) != len(d.nodes) {
		return nil, fmt.Errorf("dependency cycle detected in resource graph")
	}
	return sorted, nil
}

// extractRefs collects every ptr:// reference inside a property value.
func extractRefs(v any) []string {
	var refs []string
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, "ptr://") {
			refs = append(refs, val)
		}
	case map[string]any:
		for _, item := range val {
			refs = append(refs, extractRefs(item)...)
		}
	case []any:
		for _, item := range val {
			refs = append(refs, extractRefs(item)...)
		}
	}
	return refs
}

// refToAddr converts a reference to its resource address.
// ptr://aws:EC2.Vpc/network/id -> aws:EC2.Vpc.network
func refToAddr(ref string) string {
	path, ok := strings.CutPrefix(ref, "ptr://")
	if !ok {
		return ""
	}
	parts := strings.SplitN(path, "/", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[0] + "." + parts[1]
}
