package tree

import "github.com/nine3/versions/internal/modules/versions"

// Assemble nests records under root. Records are grouped by parent id in the
// order given, so sibling order follows the store's sort order. Records whose
// parent chain does not reach root are ignored. The input slice is not
// modified and the returned nodes share nothing with it.
func Assemble(root versions.Page, records []versions.Page) *versions.Node {
	byParent := make(map[int64][]int, len(records))
	for i, rec := range records {
		byParent[rec.ParentID] = append(byParent[rec.ParentID], i)
	}

	consumed := make(map[int64]bool, len(records)+1)
	consumed[root.ID] = true

	var attach func(node *versions.Node)
	attach = func(node *versions.Node) {
		for _, idx := range byParent[node.ID] {
			rec := records[idx]
			if consumed[rec.ID] {
				continue
			}
			consumed[rec.ID] = true
			child := versions.Summary(rec)
			attach(child)
			node.Children = append(node.Children, child)
		}
	}

	top := versions.Summary(root)
	attach(top)
	return top
}

// Flatten lists the nodes of a hierarchy in pre-order.
func Flatten(root *versions.Node) []*versions.Node {
	if root == nil {
		return nil
	}
	out := []*versions.Node{root}
	for _, child := range root.Children {
		out = append(out, Flatten(child)...)
	}
	return out
}
