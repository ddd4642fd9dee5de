// Package graph builds the dependency index over an inventory snapshot and
// answers blast-radius queries. The index is rebuilt per scan and never
// mutated incrementally.
package graph

// Graph is an undirected adjacency structure over resource ids.
type Graph struct {
	adjacency map[string]map[string]struct{}
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{adjacency: make(map[string]map[string]struct{})}
}

// AddNode registers an id with no edges. Safe to call repeatedly.
func (g *Graph) AddNode(id string) {
	if _, ok := g.adjacency[id]; !ok {
		g.adjacency[id] = make(map[string]struct{})
	}
}

// AddEdge links two ids in both directions. Unknown endpoints are registered.
// Self-edges and duplicates are ignored.
func (g *Graph) AddEdge(a, b string) {
	if a == b || a == "" || b == "" {
		return
	}
	g.AddNode(a)
	g.AddNode(b)
	g.adjacency[a][b] = struct{}{}
	g.adjacency[b][a] = struct{}{}
}

// HasNode reports whether an id is in the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.adjacency[id]
	return ok
}

// NodeCount returns the number of indexed resources.
func (g *Graph) NodeCount() int {
	return len(g.adjacency)
}

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int {
	total := 0
	for _, peers := range g.adjacency {
		total += len(peers)
	}
	return total / 2
}

// Neighbors returns the set of ids directly linked to id. Unknown ids yield
// an empty set.
func (g *Graph) Neighbors(id string) map[string]struct{} {
	out := make(map[string]struct{}, len(g.adjacency[id]))
	for peer := range g.adjacency[id] {
		out[peer] = struct{}{}
	}
	return out
}

// WithinDepth returns all ids reachable from root within depth hops,
// including the root itself. depth < 1 is treated as 1.
func (g *Graph) WithinDepth(root string, depth int) map[string]struct{} {
	if depth < 1 {
		depth = 1
	}
	visited := map[string]struct{}{root: {}}
	frontier := []string{root}
	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for peer := range g.adjacency[id] {
				if _, seen := visited[peer]; seen {
					continue
				}
				visited[peer] = struct{}{}
				next = append(next, peer)
			}
		}
		frontier = next
	}
	return visited
}
