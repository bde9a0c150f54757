package ecs

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/multierr"
)

// inferredEdge is an ordering added because two systems touch the same data.
type inferredEdge struct {
	from, to int
	ids      []ComponentID
}

// SystemsGraph is the resolved partial order of one phase's systems. Nodes
// are indexed in registration order.
type SystemsGraph struct {
	phase    Phase
	nodes    []*systemNode
	succ     [][]int
	indegree []int
	order    []int
	levels   [][]int
	inferred []inferredEdge
	registry *ComponentRegistry
}

// buildGraph resolves explicit Before/After constraints, rejects cycles, then
// serializes every pair of conflicting systems that is still unordered in
// registration order.
func buildGraph(phase Phase, nodes []*systemNode, registry *ComponentRegistry) (*SystemsGraph, error) {
	n := len(nodes)
	g := &SystemsGraph{
		phase:    phase,
		nodes:    nodes,
		succ:     make([][]int, n),
		indegree: make([]int, n),
		registry: registry,
	}

	byName := make(map[string]int, n)
	for i, node := range nodes {
		byName[node.name] = i
	}

	edges := make(map[[2]int]bool)
	addEdge := func(from, to int) {
		if from == to || edges[[2]int{from, to}] {
			return
		}
		edges[[2]int{from, to}] = true
		g.succ[from] = append(g.succ[from], to)
		g.indegree[to]++
	}

	var errs error
	for i, node := range nodes {
		for _, name := range node.before {
			j, ok := byName[name]
			if !ok {
				errs = multierr.Append(errs, fmt.Errorf("%s before %q: %w", node.name, name, ErrUnknownSystem))
				continue
			}
			addEdge(i, j)
		}
		for _, name := range node.after {
			j, ok := byName[name]
			if !ok {
				errs = multierr.Append(errs, fmt.Errorf("%s after %q: %w", node.name, name, ErrUnknownSystem))
				continue
			}
			addEdge(j, i)
		}
	}
	if errs != nil {
		return nil, errs
	}

	if cycle := g.findCycle(); cycle != nil {
		names := make([]string, len(cycle))
		for k, idx := range cycle {
			names[k] = nodes[idx].name
		}
		return nil, &CycleError{Phase: phase, Systems: names}
	}

	reach := g.reachability()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a, b := &nodes[i].params.access, &nodes[j].params.access
			if !a.conflicts(b) || reach[i][j] || reach[j][i] {
				continue
			}
			addEdge(i, j)
			g.inferred = append(g.inferred, inferredEdge{from: i, to: j, ids: a.conflictingIDs(b)})
			for x := 0; x < n; x++ {
				if x != i && !reach[x][i] {
					continue
				}
				reach[x][j] = true
				for y := 0; y < n; y++ {
					if reach[j][y] {
						reach[x][y] = true
					}
				}
			}
		}
	}

	for i := range g.succ {
		slices.Sort(g.succ[i])
	}
	g.sort()
	return g, nil
}

// findCycle returns the nodes of one cycle, closed by repeating the first
// node, or nil.
func (g *SystemsGraph) findCycle() []int {
	const (
		white = iota
		grey
		black
	)
	color := make([]int, len(g.nodes))
	stack := make([]int, 0, len(g.nodes))

	var visit func(v int) []int
	visit = func(v int) []int {
		color[v] = grey
		stack = append(stack, v)
		for _, next := range g.succ[v] {
			switch color[next] {
			case grey:
				start := slices.Index(stack, next)
				cycle := append([]int(nil), stack[start:]...)
				return append(cycle, next)
			case white:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[v] = black
		return nil
	}

	for v := range g.nodes {
		if color[v] == white {
			if cycle := visit(v); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// reachability returns reach[a][b] == true when a path leads from a to b.
func (g *SystemsGraph) reachability() [][]bool {
	n := len(g.nodes)
	reach := make([][]bool, n)
	for v := 0; v < n; v++ {
		reach[v] = make([]bool, n)
		queue := append([]int(nil), g.succ[v]...)
		for len(queue) > 0 {
			next := queue[0]
			queue = queue[1:]
			if reach[v][next] {
				continue
			}
			reach[v][next] = true
			queue = append(queue, g.succ[next]...)
		}
	}
	return reach
}

// sort computes a topological order, breaking ties by registration order,
// and the dependency level of every node.
func (g *SystemsGraph) sort() {
	n := len(g.nodes)
	remaining := slices.Clone(g.indegree)
	level := make([]int, n)

	ready := make([]int, 0, n)
	for v := 0; v < n; v++ {
		if remaining[v] == 0 {
			ready = append(ready, v)
		}
	}

	g.order = make([]int, 0, n)
	for len(ready) > 0 {
		v := ready[0]
		ready = ready[1:]
		g.order = append(g.order, v)

		for _, next := range g.succ[v] {
			level[next] = max(level[next], level[v]+1)
			remaining[next]--
			if remaining[next] == 0 {
				pos, _ := slices.BinarySearch(ready, next)
				ready = slices.Insert(ready, pos, next)
			}
		}
	}

	g.levels = nil
	for _, v := range g.order {
		for len(g.levels) <= level[v] {
			g.levels = append(g.levels, nil)
		}
		g.levels[level[v]] = append(g.levels[level[v]], v)
	}
}

// Phase returns the phase the graph was built for.
func (g *SystemsGraph) Phase() Phase {
	return g.phase
}

// Len returns the number of systems in the graph.
func (g *SystemsGraph) Len() int {
	return len(g.nodes)
}

// Order returns the system names in the order a sequential executor runs them.
func (g *SystemsGraph) Order() []string {
	names := make([]string, len(g.order))
	for i, v := range g.order {
		names[i] = g.nodes[v].name
	}
	return names
}

// Levels groups system names by dependency depth. Systems within a level
// have no ordering between them.
func (g *SystemsGraph) Levels() [][]string {
	out := make([][]string, len(g.levels))
	for i, level := range g.levels {
		out[i] = make([]string, len(level))
		for k, v := range level {
			out[i][k] = g.nodes[v].name
		}
	}
	return out
}

// DependsOn reports whether system a is ordered after system b.
func (g *SystemsGraph) DependsOn(a, b string) bool {
	ai, bi := slices.IndexFunc(g.nodes, func(n *systemNode) bool { return n.name == a }),
		slices.IndexFunc(g.nodes, func(n *systemNode) bool { return n.name == b })
	if ai == -1 || bi == -1 {
		return false
	}
	return g.reachability()[bi][ai]
}

// String describes the graph: levels, explicit and inferred edges.
func (g *SystemsGraph) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "phase %s: %d systems\n", g.phase, len(g.nodes))
	for i, level := range g.Levels() {
		fmt.Fprintf(&b, "  level %d: %s\n", i, strings.Join(level, ", "))
	}

	inferred := make(map[[2]int][]ComponentID, len(g.inferred))
	for _, e := range g.inferred {
		inferred[[2]int{e.from, e.to}] = e.ids
	}
	for _, v := range g.order {
		for _, next := range g.succ[v] {
			ids, ok := inferred[[2]int{v, next}]
			if !ok {
				fmt.Fprintf(&b, "  %s -> %s\n", g.nodes[v].name, g.nodes[next].name)
				continue
			}
			fmt.Fprintf(&b, "  %s -> %s (conflict: %s)\n", g.nodes[v].name, g.nodes[next].name, g.typeNames(ids))
		}
	}
	return b.String()
}

func (g *SystemsGraph) typeNames(ids []ComponentID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = g.registry.TypeOf(id).String()
	}
	return strings.Join(names, ", ")
}
