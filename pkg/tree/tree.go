// Package tree implements the Tree Engine (§4.5): read-side views over the
// file tree — subtree listings, ancestor chains clipped to a share
// boundary, and the flat-to-nested normalization the client consumes.
package tree

import (
	"context"
	"errors"
	"sort"

	"github.com/vaultd/vaultd/pkg/authz"
	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/store"
)

// MaxDepth is the largest subtree depth a single request may walk (§4.5).
const MaxDepth = 20

// Node is one entry of a flattened tree view: a file plus its distance from
// the view's root.
type Node struct {
	models.File
	Depth int
}

// Subtree returns a depth-ascending listing of rootID's descendants (and
// rootID itself), bounded by depth and paginated by limit/offset. Each
// node's reported size already accounts for the authentication tag
// (models.File.ReportedSize).
func Subtree(ctx context.Context, st store.Store, rootID string, depth, limit, offset int) ([]Node, error) {
	if depth <= 0 || depth > MaxDepth {
		depth = MaxDepth
	}

	root, err := st.GetFile(ctx, rootID)
	if err != nil {
		return nil, err
	}

	nodes := []Node{{File: *root, Depth: 0}}

	descendants, err := st.Descendants(ctx, rootID, depth)
	if err != nil {
		return nil, err
	}
	for _, d := range descendants {
		nodes = append(nodes, Node{File: d.File, Depth: d.Depth})
	}

	if offset > 0 {
		if offset >= len(nodes) {
			return nil, nil
		}
		nodes = nodes[offset:]
	}
	if limit > 0 && limit < len(nodes) {
		nodes = nodes[:limit]
	}
	return nodes, nil
}

// SubtreeVirtualRoot implements the Subtree view's "owner's virtual root"
// variant (§4.5): ownerID's top-level files stand in for a root node, and
// each root directory's own descendants fill out the remaining depth.
// Multiple roots' descendants are merged by depth rather than interleaved
// root-by-root, keeping the overall sequence depth-ascending.
func SubtreeVirtualRoot(ctx context.Context, st store.Store, ownerID string, depth, limit, offset int) ([]Node, error) {
	if depth <= 0 || depth > MaxDepth {
		depth = MaxDepth
	}

	roots, err := st.RootFilesForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	byDepth := make(map[int][]Node)
	for _, r := range roots {
		byDepth[0] = append(byDepth[0], Node{File: *r, Depth: 0})
		if !r.IsDirectory || depth <= 1 {
			continue
		}
		descendants, err := st.Descendants(ctx, r.ID, depth-1)
		if err != nil {
			return nil, err
		}
		for _, d := range descendants {
			byDepth[d.Depth] = append(byDepth[d.Depth], Node{File: d.File, Depth: d.Depth})
		}
	}

	var nodes []Node
	for d := 0; d < depth; d++ {
		nodes = append(nodes, byDepth[d]...)
	}

	if offset > 0 {
		if offset >= len(nodes) {
			return nil, nil
		}
		nodes = nodes[offset:]
	}
	if limit > 0 && limit < len(nodes) {
		nodes = nodes[:limit]
	}
	return nodes, nil
}

// Ancestors returns the ascending-depth chain from fileID to the visible
// root: the caller's own root if they reached fileID as owner, or the
// directly-shared ancestor if they reached it via a share (§4.5 Ancestor
// view). The chain stops at (and includes) that boundary; the boundary
// node's ParentID is nulled so the client can't infer what lies above its
// share root.
func Ancestors(ctx context.Context, st store.Store, fileID string, grant authz.Grant) ([]*models.File, error) {
	chain, err := st.Ancestors(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if grant.Kind == authz.KindOwner {
		return chain, nil
	}

	// grant.GrantDepth indexes into the same ancestor chain Resolve walked;
	// everything past the granting ancestor is above the caller's view.
	if grant.GrantDepth >= len(chain) {
		return nil, errors.New("tree: grant depth exceeds ancestor chain")
	}
	clipped := make([]*models.File, grant.GrantDepth+1)
	copy(clipped, chain[:grant.GrantDepth+1])

	boundary := *clipped[grant.GrantDepth]
	boundary.ParentID = nil
	clipped[grant.GrantDepth] = &boundary

	return clipped, nil
}

// Normalize folds a node sequence into a client-ready shape: every file
// keyed by id, and the ids of nodes with no parent present in the set (the
// view's roots). The first pass keys every node by id and the second links
// each node to its parent, so the input order does not matter.
func Normalize(nodes []Node) (files map[string]*models.TreeNode, roots []string) {
	files = make(map[string]*models.TreeNode, len(nodes))

	for _, n := range nodes {
		file := n.File
		files[file.ID] = &models.TreeNode{File: file}
	}

	for _, n := range nodes {
		if n.ParentID == nil {
			roots = append(roots, n.ID)
			continue
		}
		parent, ok := files[*n.ParentID]
		if !ok {
			// Parent lies outside this view (e.g. the clipped share
			// boundary) — the node is itself a root of the returned set.
			roots = append(roots, n.ID)
			continue
		}
		parent.Children = append(parent.Children, n.ID)
	}

	sort.Strings(roots)
	return files, roots
}
