package conversation

// TreeNode is a history entry together with every fork derived from it, at any depth.
type TreeNode struct {
	Entry    HistoryEntry
	Children []*TreeNode
	// Orphaned is set on roots whose declared parent is not in the history.
	Orphaned bool
}

// BuildTree turns the history into a multi-level fork tree. Roots and children keep the
// history order. An entry is visited at most once, so parent cycles cannot recurse.
func BuildTree(entries []HistoryEntry) []*TreeNode {
	byID := make(map[string]HistoryEntry, len(entries))
	children := make(map[string][]string)
	for _, e := range entries {
		byID[e.ID] = e
	}
	for _, e := range entries {
		if e.ParentChatID != "" {
			if _, ok := byID[e.ParentChatID]; ok && e.ParentChatID != e.ID {
				children[e.ParentChatID] = append(children[e.ParentChatID], e.ID)
			}
		}
	}

	visited := make(map[string]bool, len(entries))
	var descend func(id string) *TreeNode
	descend = func(id string) *TreeNode {
		visited[id] = true
		node := &TreeNode{Entry: byID[id]}
		for _, childID := range children[id] {
			if visited[childID] {
				continue
			}
			node.Children = append(node.Children, descend(childID))
		}
		return node
	}

	roots := []*TreeNode{}
	for _, e := range entries {
		if visited[e.ID] {
			continue
		}
		_, parentKnown := byID[e.ParentChatID]
		if e.ParentChatID != "" && parentKnown && e.ParentChatID != e.ID {
			continue
		}
		node := descend(e.ID)
		node.Orphaned = e.ParentChatID != ""
		roots = append(roots, node)
	}

	// whatever is left is part of a parent cycle
	for _, e := range entries {
		if visited[e.ID] {
			continue
		}
		node := descend(e.ID)
		node.Orphaned = true
		roots = append(roots, node)
	}

	return roots
}

// Walk visits nodes depth-first, passing the depth of each node.
func Walk(roots []*TreeNode, fn func(node *TreeNode, depth int)) {
	var walk func(n *TreeNode, depth int)
	walk = func(n *TreeNode, depth int) {
		fn(n, depth)
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	for _, r := range roots {
		walk(r, 0)
	}
}
