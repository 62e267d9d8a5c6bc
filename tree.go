package subgrab

import "path"

// maxReplyDepth caps tree reconstruction. Parent chains are acyclic by
// construction (a parent always pre-exists its children upstream), but a
// corrupted store must not cause unbounded recursion.
const maxReplyDepth = 100

// CommentNode is one node of a reconstructed reply tree.
type CommentNode struct {
	ID      string         `json:"comment_id"`
	Text    string         `json:"text"`
	Image   string         `json:"image,omitempty"`
	Replies []*CommentNode `json:"replies"`
}

// BuildCommentTree reconstructs the nested reply structure from a flat
// comment set. When rootIsPost is true, rootID is a post id and the result
// holds its top-level comments; otherwise rootID is a comment id and the
// result holds its direct replies. Comments whose parent was never
// ingested are simply absent from every tree, never an error.
//
// The comment set is indexed once and walked linearly, so reconstruction
// is O(n) in the number of comments.
func BuildCommentTree(comments []*Comment, rootID string, rootIsPost bool) []*CommentNode {
	idx := indexComments(comments)
	if rootIsPost {
		return idx.replies(idx.topLevel[rootID], 0)
	}
	return idx.replies(idx.byParent[rootID], 0)
}

type commentIndex struct {
	// topLevel maps post id to its parentless comments.
	topLevel map[string][]*Comment

	// byParent maps comment id to its direct replies.
	byParent map[string][]*Comment
}

func indexComments(comments []*Comment) *commentIndex {
	idx := &commentIndex{
		topLevel: make(map[string][]*Comment),
		byParent: make(map[string][]*Comment),
	}
	for _, c := range comments {
		if c.ParentID == "" {
			idx.topLevel[c.PostID] = append(idx.topLevel[c.PostID], c)
		} else {
			idx.byParent[c.ParentID] = append(idx.byParent[c.ParentID], c)
		}
	}
	return idx
}

func (idx *commentIndex) replies(children []*Comment, depth int) []*CommentNode {
	if depth >= maxReplyDepth {
		return []*CommentNode{}
	}
	nodes := make([]*CommentNode, 0, len(children))
	for _, c := range children {
		nodes = append(nodes, &CommentNode{
			ID:      c.ID,
			Text:    c.Text,
			Image:   imageFilename(c.ImagePath),
			Replies: idx.replies(idx.byParent[c.ID], depth+1),
		})
	}
	return nodes
}

// imageFilename reduces a stored image path to its filename, which is what
// viewers use to request the binary through the image endpoint.
func imageFilename(imagePath string) string {
	if imagePath == "" {
		return ""
	}
	return path.Base(imagePath)
}
