package community

import "sort"

// Component returns the ids reachable from id over match edges, id included,
// sorted. An unknown id yields just itself.
func (g *Graph) Component(id string) []string {
	visited := map[string]bool{}
	component := g.collect(id, visited)
	sort.Strings(component)
	return component
}

// Components partitions every known node into match-connected components.
// Members are sorted and components are ordered by their first member.
func (g *Graph) Components() [][]string {
	ids := make([]string, 0, len(g.adj))
	for id := range g.adj {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	visited := make(map[string]bool, len(ids))
	var components [][]string
	for _, id := range ids {
		if visited[id] {
			continue
		}
		component := g.collect(id, visited)
		sort.Strings(component)
		components = append(components, component)
	}
	sort.Slice(components, func(i, j int) bool {
		return components[i][0] < components[j][0]
	})
	return components
}

// Clusters is Components without singletons.
func (g *Graph) Clusters() [][]string {
	var out [][]string
	for _, c := range g.Components() {
		if len(c) >= 2 {
			out = append(out, c)
		}
	}
	return out
}

// collect walks match edges depth-first with an explicit stack, so long
// chains do not grow the goroutine stack.
func (g *Graph) collect(start string, visited map[string]bool) []string {
	visited[start] = true
	component := []string{start}
	stack := []string{start}
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for v, d := range g.adj[u] {
			if !d.isMatch || visited[v] {
				continue
			}
			visited[v] = true
			component = append(component, v)
			stack = append(stack, v)
		}
	}
	return component
}
