package depcheck

// TransitiveClosure returns the roots and every record reachable from them
// through dependency names that resolve in graph. Names missing from graph
// are not followed. The walk uses an explicit stack so hostile dependency
// chains cannot exhaust the goroutine stack.
func TransitiveClosure(roots []*Record, graph Namespace) RecordSet {
	searched := RecordSet{}
	stack := make([]*Record, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) > 0 {
		r := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !searched.Add(r) {
			continue
		}
		for i := len(r.Deps) - 1; i >= 0; i-- {
			dep, ok := graph[r.Deps[i]]
			if ok && !searched.Has(dep) {
				stack = append(stack, dep)
			}
		}
	}
	return searched
}
