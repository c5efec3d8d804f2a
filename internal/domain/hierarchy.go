package domain

import "github.com/google/uuid"

// SpecHierarchy is a node in the presentation tree over spec objects.
// ObjectID references SpecObject.SpecID; ParentHierID references another
// node's HierID, or is empty for a root. Multiple roots are permitted —
// the hierarchy is a forest, not a single tree.
type SpecHierarchy struct {
	HierID       string `json:"hier_id"`
	ObjectID     string `json:"object_id"`
	ParentHierID string `json:"parent_hier_id,omitempty"`
}

// NewHierarchyNode creates a hierarchy node with a generated identifier.
// An empty parentHierID makes it a root.
func NewHierarchyNode(objectID, parentHierID string) *SpecHierarchy {
	return &SpecHierarchy{
		HierID:       uuid.NewString(),
		ObjectID:     objectID,
		ParentHierID: parentHierID,
	}
}

// Clone returns a copy of the node.
func (h *SpecHierarchy) Clone() *SpecHierarchy {
	cp := *h
	return &cp
}
