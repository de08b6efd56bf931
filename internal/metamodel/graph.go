package metamodel

import (
	"fmt"
	"sort"
	"strings"
)

// DependencyGraph represents the reference graph between document kinds
type DependencyGraph struct {
	nodes []string
	edges map[string][]string // kind -> referenced kinds
}

// NewDependencyGraph creates a graph from each kind's referenced kinds
func NewDependencyGraph(references map[string][]string) *DependencyGraph {
	g := &DependencyGraph{
		edges: make(map[string][]string, len(references)),
	}
	for name, refs := range references {
		g.nodes = append(g.nodes, name)
		deps := append([]string(nil), refs...)
		sort.Strings(deps)
		g.edges[name] = deps
	}
	sort.Strings(g.nodes)
	return g
}

// DetectCycles detects circular references between kinds
func (g *DependencyGraph) DetectCycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	recursionStack := make(map[string]bool)

	var dfs func(node string, path []string)
	dfs = func(node string, path []string) {
		visited[node] = true
		recursionStack[node] = true
		path = append(path, node)

		for _, neighbor := range g.edges[node] {
			if !visited[neighbor] {
				dfs(neighbor, path)
			} else if recursionStack[neighbor] {
				for i, n := range path {
					if n == neighbor {
						cycle := make([]string, len(path)-i)
						copy(cycle, path[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		recursionStack[node] = false
	}

	for _, node := range g.nodes {
		if !visited[node] {
			dfs(node, nil)
		}
	}

	return cycles
}

// Levels groups kinds into dependency tiers. Tier 0 holds kinds that reference
// nothing; every other kind sits one tier above the deepest kind it references.
// Kinds within a tier are sorted by name.
func (g *DependencyGraph) Levels() ([][]string, error) {
	if cycles := g.DetectCycles(); len(cycles) > 0 {
		return nil, fmt.Errorf("circular references detected:\n%s", formatCycles(cycles))
	}

	level := make(map[string]int, len(g.nodes))
	var depth func(node string) int
	depth = func(node string) int {
		if l, ok := level[node]; ok {
			return l
		}
		l := 0
		for _, dep := range g.edges[node] {
			if d := depth(dep) + 1; d > l {
				l = d
			}
		}
		level[node] = l
		return l
	}

	var tiers [][]string
	for _, node := range g.nodes {
		l := depth(node)
		for len(tiers) <= l {
			tiers = append(tiers, nil)
		}
		tiers[l] = append(tiers[l], node)
	}
	return tiers, nil
}

// GetDependencies returns the kinds a kind references directly
func (g *DependencyGraph) GetDependencies(kind string) []string {
	deps, exists := g.edges[kind]
	if !exists {
		return []string{}
	}
	return deps
}

// GetDependents returns the kinds that reference the given kind
func (g *DependencyGraph) GetDependents(kind string) []string {
	dependents := []string{}
	for _, node := range g.nodes {
		for _, dep := range g.edges[node] {
			if dep == kind {
				dependents = append(dependents, node)
				break
			}
		}
	}
	return dependents
}

// formatCycles formats cycle information for error messages
func formatCycles(cycles [][]string) string {
	var b strings.Builder
	for i, cycle := range cycles {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("  Cycle %d: %s -> %s",
			i+1,
			strings.Join(cycle, " -> "),
			cycle[0]))
	}
	return b.String()
}
