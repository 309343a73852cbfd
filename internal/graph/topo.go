package graph

import "github.com/tz301/kaldi-onnx-tf/internal/ir"

// Sort fills g.Order with a topological order over all nodes, producers
// first, using Kahn's algorithm. Ties in the ready set break by ascending
// node id so the order is deterministic for a given graph.
//
// Returns a CycleError carrying a member cycle path if no order exists.
func Sort(g *ir.Graph) error {
	// 1. Count incoming edges per node. A splice contributes one edge per
	// context entry; Consumers mirrors that, so the counts stay in step.
	indegree := make(map[ir.NodeID]int, g.Len())
	for _, id := range g.IDs() {
		indegree[id] = len(g.Node(id).Inputs)
	}

	// 2. Seed the ready set with nodes that have no producers.
	var ready []ir.NodeID
	for _, id := range g.IDs() {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	consumers := g.Consumers()

	// 3. Repeatedly emit the smallest ready node and release its consumers.
	order := make([]ir.NodeID, 0, g.Len())
	for len(ready) > 0 {
		min := 0
		for i := 1; i < len(ready); i++ {
			if ready[i] < ready[min] {
				min = i
			}
		}
		id := ready[min]
		ready = append(ready[:min], ready[min+1:]...)
		order = append(order, id)

		for _, c := range consumers[id] {
			indegree[c]--
			if indegree[c] == 0 {
				ready = append(ready, c)
			}
		}
	}

	// 4. Any node left over sits on a cycle.
	if len(order) != g.Len() {
		return &CycleError{Path: findCycle(g, indegree)}
	}

	g.Order = order
	return nil
}

// findCycle walks producer edges among the unsorted remainder until a node
// repeats, then returns the member cycle as a name path.
func findCycle(g *ir.Graph, indegree map[ir.NodeID]int) []string {
	remaining := func(id ir.NodeID) bool { return indegree[id] > 0 }

	var start ir.NodeID
	for _, id := range g.IDs() {
		if remaining(id) {
			start = id
			break
		}
	}

	seen := make(map[ir.NodeID]int)
	var walk []ir.NodeID
	cur := start
	for {
		if at, ok := seen[cur]; ok {
			walk = append(walk[at:], cur)
			break
		}
		seen[cur] = len(walk)
		walk = append(walk, cur)

		next := cur
		for _, in := range g.Node(cur).Inputs {
			if remaining(in.Node) {
				next = in.Node
				break
			}
		}
		if next == cur {
			// Self-loop.
			walk = append(walk, cur)
			break
		}
		cur = next
	}

	path := make([]string, len(walk))
	for i, id := range walk {
		path[i] = g.Node(id).Name
	}
	return path
}
