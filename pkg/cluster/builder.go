package cluster

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmistry/ipdrlens/pkg/ipdr"
	"github.com/dmistry/ipdrlens/pkg/validation"
)

// PartnerProvider is the capability the external record store exposes for
// graph expansion: the destination set a subject has contacted, and the
// inverse relation used to discover subjects sharing a destination.
type PartnerProvider interface {
	Destinations(ctx context.Context, subject ipdr.SubjectKey) (map[string]struct{}, error)
	SubjectsByDestination(ctx context.Context, destination string) ([]ipdr.SubjectKey, error)
}

// Options bounds a cluster expansion.
type Options struct {
	// Depth is the number of BFS levels expanded from the center.
	// Depth <= 0 yields the single center node.
	Depth int

	// MaxNodes caps the graph size; 0 means uncapped. When the cap is hit
	// the partial graph is returned with Truncated set.
	MaxNodes int

	// Timeout bounds wall-clock expansion time; 0 means no builder-imposed
	// timeout (the caller's context still applies).
	Timeout time.Duration

	// Workers bounds concurrent partner lookups within a level.
	Workers int
}

// DefaultOptions returns the standard expansion bounds.
func DefaultOptions() Options {
	return Options{Depth: 2, MaxNodes: 0, Workers: 4}
}

// Validate checks the expansion bounds. Errors satisfy
// errors.Is(err, ipdr.ErrInvalidConfig).
func (o Options) Validate() error {
	cv := validation.NewConfigValidator("cluster.Options").
		NonNegative("Depth", o.Depth).
		NonNegative("MaxNodes", o.MaxNodes).
		NonNegativeDuration("Timeout", o.Timeout).
		Positive("Workers", o.Workers)
	if err := cv.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ipdr.ErrInvalidConfig, err)
	}
	return nil
}

// Builder performs bounded breadth-first expansion over the partner
// relation. It holds no mutable shared state; a single Builder is safe for
// concurrent use.
type Builder struct {
	provider PartnerProvider
}

// NewBuilder creates a Builder over the given partner capability.
func NewBuilder(provider PartnerProvider) *Builder {
	return &Builder{provider: provider}
}

// destCache memoizes per-subject destination sets during one expansion so
// edge weights never trigger duplicate lookups.
type destCache struct {
	mu       sync.Mutex
	provider PartnerProvider
	dests    map[ipdr.SubjectKey]map[string]struct{}
}

func (c *destCache) get(ctx context.Context, key ipdr.SubjectKey) (map[string]struct{}, error) {
	c.mu.Lock()
	cached, ok := c.dests[key]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}
	dests, err := c.provider.Destinations(ctx, key)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.dests[key] = dests
	c.mu.Unlock()
	return dests, nil
}

// discovery is one neighbor relation found while expanding a frontier node.
type discovery struct {
	from   ipdr.SubjectKey
	to     ipdr.SubjectKey
	weight int
}

// Build expands a subject-centered graph to the configured depth. A visited
// set keyed by subject identity guarantees termination on cyclic relations
// and that no node is expanded twice. On context cancellation, the
// configured timeout, or the node cap, the partial graph discovered so far
// is returned with Truncated set rather than an error.
func (b *Builder) Build(ctx context.Context, center ipdr.SubjectKey, opts Options) (*Graph, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	graph := &Graph{
		Center: center,
		Nodes:  map[ipdr.SubjectKey]*Node{center: {Key: center, Depth: 0}},
		Depth:  opts.Depth,
	}
	if opts.Depth <= 0 {
		return graph, nil
	}

	cache := &destCache{provider: b.provider, dests: make(map[ipdr.SubjectKey]map[string]struct{})}
	edges := make(map[edgeKey]int)
	frontier := []ipdr.SubjectKey{center}

	for level := 1; level <= opts.Depth && len(frontier) > 0; level++ {
		discoveries, err := b.expandLevel(ctx, cache, frontier, opts.Workers)
		if err != nil {
			if ctx.Err() != nil {
				graph.Truncated = true
				break
			}
			return nil, err
		}

		var next []ipdr.SubjectKey
		capped := false
		for _, d := range discoveries {
			key := newEdgeKey(d.from, d.to)
			if _, seen := edges[key]; !seen {
				edges[key] = d.weight
			}
			if _, visited := graph.Nodes[d.to]; visited {
				continue
			}
			if opts.MaxNodes > 0 && len(graph.Nodes) >= opts.MaxNodes {
				capped = true
				continue
			}
			graph.Nodes[d.to] = &Node{Key: d.to, Depth: level}
			next = append(next, d.to)
		}
		if capped {
			graph.Truncated = true
			break
		}
		frontier = next
	}

	graph.Edges = materializeEdges(edges, graph.Nodes)
	return graph, nil
}

// expandLevel discovers the neighbor relations of every frontier node.
// Lookups within a level are independent and run concurrently; the level
// itself is sequential because it depends on the previous level's result.
func (b *Builder) expandLevel(ctx context.Context, cache *destCache, frontier []ipdr.SubjectKey, workers int) ([]discovery, error) {
	if workers > len(frontier) {
		workers = len(frontier)
	}

	work := make(chan ipdr.SubjectKey)
	var mu sync.Mutex
	var discoveries []discovery
	var firstErr error

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range work {
				found, err := b.expandNode(ctx, cache, key)
				mu.Lock()
				if err != nil && firstErr == nil {
					firstErr = err
				}
				discoveries = append(discoveries, found...)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, key := range frontier {
		select {
		case work <- key:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}

	// Concurrent workers return discoveries in arbitrary order; sort so
	// identical inputs always build identical graphs.
	sort.Slice(discoveries, func(i, j int) bool {
		if discoveries[i].from != discoveries[j].from {
			return discoveries[i].from < discoveries[j].from
		}
		return discoveries[i].to < discoveries[j].to
	})
	return discoveries, nil
}

// expandNode finds every subject sharing at least one destination with the
// given subject, weighting each relation by the shared-destination count.
func (b *Builder) expandNode(ctx context.Context, cache *destCache, key ipdr.SubjectKey) ([]discovery, error) {
	dests, err := cache.get(ctx, key)
	if err != nil {
		return nil, err
	}

	neighbors := make(map[ipdr.SubjectKey]struct{})
	for dest := range dests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		subjects, err := b.provider.SubjectsByDestination(ctx, dest)
		if err != nil {
			return nil, err
		}
		for _, s := range subjects {
			if s != key {
				neighbors[s] = struct{}{}
			}
		}
	}

	out := make([]discovery, 0, len(neighbors))
	for neighbor := range neighbors {
		neighborDests, err := cache.get(ctx, neighbor)
		if err != nil {
			return nil, err
		}
		weight := sharedCount(dests, neighborDests)
		if weight == 0 {
			continue
		}
		out = append(out, discovery{from: key, to: neighbor, weight: weight})
	}
	return out, nil
}

func sharedCount(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for dest := range a {
		if _, ok := b[dest]; ok {
			n++
		}
	}
	return n
}

// materializeEdges keeps only edges whose endpoints were both retained in
// the graph, ordered canonically.
func materializeEdges(edges map[edgeKey]int, nodes map[ipdr.SubjectKey]*Node) []Edge {
	out := make([]Edge, 0, len(edges))
	for key, weight := range edges {
		if _, ok := nodes[key.a]; !ok {
			continue
		}
		if _, ok := nodes[key.b]; !ok {
			continue
		}
		out = append(out, Edge{A: key.a, B: key.b, Weight: weight})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}
