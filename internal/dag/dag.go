// Package dag is a small string-keyed directed acyclic graph used for phase
// dependency analysis: cycle detection with a concrete cycle path, execution
// leveling, and transitive dependent lookup.
//
// Edges point from a node to the node it depends on. Iteration order is the
// order nodes and edges were added, so results are deterministic.
package dag

import (
	"slices"
	"sort"
)

// Graph is a dependency graph. The zero value is not usable; call New.
type Graph struct {
	order      []string
	index      map[string]int
	deps       map[string][]string
	dependents map[string][]string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		index:      make(map[string]int),
		deps:       make(map[string][]string),
		dependents: make(map[string][]string),
	}
}

// AddNode adds id if it is not already present.
func (g *Graph) AddNode(id string) {
	if _, ok := g.index[id]; ok {
		return
	}
	g.index[id] = len(g.order)
	g.order = append(g.order, id)
}

// AddEdge records that node depends on dep, adding either node if needed.
// Duplicate edges are ignored.
func (g *Graph) AddEdge(node, dep string) {
	g.AddNode(node)
	g.AddNode(dep)
	if slices.Contains(g.deps[node], dep) {
		return
	}
	g.deps[node] = append(g.deps[node], dep)
	g.dependents[dep] = append(g.dependents[dep], node)
}

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.order)
}

// Dependencies returns the direct dependencies of id.
func (g *Graph) Dependencies(id string) []string {
	return slices.Clone(g.deps[id])
}

// Dependents returns the nodes that directly depend on id.
func (g *Graph) Dependents(id string) []string {
	return slices.Clone(g.dependents[id])
}

// kahn runs Kahn's algorithm and returns the nodes it could not process.
// An empty result means the graph is acyclic.
func (g *Graph) kahn() []string {
	inDegree := make(map[string]int, len(g.order))
	var queue []string
	for _, id := range g.order {
		inDegree[id] = len(g.deps[id])
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, d := range g.dependents[id] {
			inDegree[d]--
			if inDegree[d] == 0 {
				queue = append(queue, d)
			}
		}
	}

	if processed == len(g.order) {
		return nil
	}
	var remaining []string
	for _, id := range g.order {
		if inDegree[id] > 0 {
			remaining = append(remaining, id)
		}
	}
	return remaining
}

// FindCycle returns one cycle as a path whose first and last elements are
// the same node, with each consecutive pair being an edge (a depends on b).
// It returns nil for an acyclic graph.
//
// Kahn's algorithm narrows the search to nodes that sit on or downstream of
// a cycle; a depth-first walk restricted to that subset then reports the
// first node seen twice on the current path.
func (g *Graph) FindCycle() []string {
	remaining := g.kahn()
	if len(remaining) == 0 {
		return nil
	}

	inSubset := make(map[string]bool, len(remaining))
	for _, id := range remaining {
		inSubset[id] = true
	}

	visited := make(map[string]bool)
	onPath := make(map[string]int)
	var path []string

	var dfs func(id string) []string
	dfs = func(id string) []string {
		if pos, ok := onPath[id]; ok {
			cycle := slices.Clone(path[pos:])
			return append(cycle, id)
		}
		if visited[id] {
			return nil
		}
		visited[id] = true
		onPath[id] = len(path)
		path = append(path, id)

		for _, dep := range g.deps[id] {
			if !inSubset[dep] {
				continue
			}
			if cycle := dfs(dep); cycle != nil {
				return cycle
			}
		}

		path = path[:len(path)-1]
		delete(onPath, id)
		return nil
	}

	for _, id := range remaining {
		if cycle := dfs(id); cycle != nil {
			return cycle
		}
	}
	return nil
}

// Levels groups nodes into execution waves. A node with no dependencies is
// on level 0; any other node is one level above its highest dependency.
// Nodes within a level are sorted by id. It returns nil and the cycle path
// when the graph is cyclic.
func (g *Graph) Levels() ([][]string, []string) {
	if cycle := g.FindCycle(); cycle != nil {
		return nil, cycle
	}

	inDegree := make(map[string]int, len(g.order))
	var wave []string
	for _, id := range g.order {
		inDegree[id] = len(g.deps[id])
		if inDegree[id] == 0 {
			wave = append(wave, id)
		}
	}

	var levels [][]string
	for len(wave) > 0 {
		sort.Strings(wave)
		levels = append(levels, wave)

		var next []string
		for _, id := range wave {
			for _, d := range g.dependents[id] {
				inDegree[d]--
				if inDegree[d] == 0 {
					next = append(next, d)
				}
			}
		}
		wave = next
	}
	return levels, nil
}

// Descendants returns every node that transitively depends on any of ids,
// excluding ids themselves, in breadth-first discovery order. The walk is
// iterative so deep chains do not grow the call stack.
func (g *Graph) Descendants(ids ...string) []string {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}

	queue := slices.Clone(ids)
	var out []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, d := range g.dependents[id] {
			if seen[d] {
				continue
			}
			seen[d] = true
			out = append(out, d)
			queue = append(queue, d)
		}
	}
	return out
}
