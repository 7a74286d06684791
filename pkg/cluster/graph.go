package cluster

import (
	"sort"

	"github.com/dmistry/ipdrlens/pkg/ipdr"
)

// Node is one subject in a network graph.
type Node struct {
	Key ipdr.SubjectKey `json:"key"`
	// Depth is the BFS level at which the node was discovered; the center
	// is at depth 0.
	Depth int `json:"depth"`
}

// Edge connects two subjects that share at least one destination endpoint.
// Edges are undirected; A and B are stored in canonical (sorted) order.
// Weight is the count of distinct shared destination addresses.
type Edge struct {
	A      ipdr.SubjectKey `json:"a"`
	B      ipdr.SubjectKey `json:"b"`
	Weight int             `json:"weight"`
}

// edgeKey is the canonical identity of an undirected edge.
type edgeKey struct {
	a, b ipdr.SubjectKey
}

func newEdgeKey(u, v ipdr.SubjectKey) edgeKey {
	if v < u {
		u, v = v, u
	}
	return edgeKey{a: u, b: v}
}

// Graph is a subject-centered relationship graph built by bounded BFS
// expansion. Built fresh per query; never cached across calls.
type Graph struct {
	Center ipdr.SubjectKey           `json:"center"`
	Nodes  map[ipdr.SubjectKey]*Node `json:"nodes"`
	Edges  []Edge                    `json:"edges"`
	Depth  int                       `json:"depth"`

	// Truncated is set when expansion stopped early on a timeout,
	// cancellation, or the node cap, returning the partial graph
	// discovered so far.
	Truncated bool `json:"truncated,omitempty"`
}

// NodeCount returns the number of discovered subjects, center included.
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int {
	return len(g.Edges)
}

// AverageDegree returns 2E/N, or 0 for an empty graph.
func (g *Graph) AverageDegree() float64 {
	if len(g.Nodes) == 0 {
		return 0
	}
	return 2 * float64(len(g.Edges)) / float64(len(g.Nodes))
}

// SortedNodes returns nodes ordered by depth, then key, for deterministic
// rendering.
func (g *Graph) SortedNodes() []*Node {
	out := make([]*Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth < out[j].Depth
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Metrics summarizes the shape of a cluster graph. The suspicious-node
// subset is driven by the caller-supplied predicate: graph shape stays
// independent of risk semantics.
type Metrics struct {
	NodeCount     int               `json:"node_count"`
	EdgeCount     int               `json:"edge_count"`
	AverageDegree float64           `json:"average_degree"`
	Suspicious    []ipdr.SubjectKey `json:"suspicious_nodes,omitempty"`
}

// ComputeMetrics derives cluster metrics, flagging nodes the predicate
// marks suspicious. A nil predicate flags nothing.
func (g *Graph) ComputeMetrics(isSuspicious func(ipdr.SubjectKey) bool) Metrics {
	m := Metrics{
		NodeCount:     g.NodeCount(),
		EdgeCount:     g.EdgeCount(),
		AverageDegree: g.AverageDegree(),
	}
	if isSuspicious == nil {
		return m
	}
	for _, n := range g.SortedNodes() {
		if isSuspicious(n.Key) {
			m.Suspicious = append(m.Suspicious, n.Key)
		}
	}
	return m
}
