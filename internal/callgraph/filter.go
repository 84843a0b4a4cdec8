package callgraph

// filterByStart retains only nodes reachable by forward traversal from
// start, per the invariant that the filtered subgraph is exactly the
// forward-reachable set.
func filterByStart(g *Graph, start string) {
	adj := make(map[string][]string)
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e.To)
	}

	reachable := make(map[string]bool)
	if _, ok := g.Nodes[start]; !ok {
		// Unknown start symbol: nothing is reachable; emit an empty
		// graph rather than guessing.
		g.Nodes = map[string]*Node{}
		g.Edges = nil
		return
	}

	stack := []string{start}
	reachable[start] = true
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range adj[cur] {
			if reachable[next] {
				continue
			}
			reachable[next] = true
			stack = append(stack, next)
		}
	}

	for id := range g.Nodes {
		if !reachable[id] {
			delete(g.Nodes, id)
		}
	}
	filtered := g.Edges[:0]
	for _, e := range g.Edges {
		if reachable[e.From] && reachable[e.To] {
			filtered = append(filtered, e)
		}
	}
	g.Edges = filtered
}
