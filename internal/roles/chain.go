package roles

// maxChainDepth bounds parent walks as a second line of defence besides the
// visited set.
const maxChainDepth = 64

// Chain walks the parent chain starting at startID and returns the visited
// role ids in order, startID first. parentOf resolves a role id to its
// optional parent; ok=false stops the walk. The walk never revisits a role,
// so corrupt data containing a cycle terminates instead of looping.
func Chain(startID int64, parentOf func(id int64) (parentID *int64, ok bool)) []int64 {
	visited := make(map[int64]struct{}, 4)
	chain := make([]int64, 0, 4)
	current := startID
	for len(chain) < maxChainDepth {
		if _, seen := visited[current]; seen {
			break
		}
		visited[current] = struct{}{}
		chain = append(chain, current)
		parent, ok := parentOf(current)
		if !ok || parent == nil {
			break
		}
		current = *parent
	}
	return chain
}
