package domain

import "github.com/google/uuid"

// SpecRelation is a directed, typed edge between two spec objects. Source
// and target reference SpecObject.SpecID by key; the relation does not own
// the objects it links.
type SpecRelation struct {
	RelationID   string  `json:"relation_id"`
	SourceID     string  `json:"source_id"`
	TargetID     string  `json:"target_id"`
	RelationType string  `json:"relation_type"`
	Properties   AttrMap `json:"properties"`
}

// NewSpecRelation creates a relation with a generated identifier.
func NewSpecRelation(sourceID, targetID, relationType string) *SpecRelation {
	return &SpecRelation{
		RelationID:   uuid.NewString(),
		SourceID:     sourceID,
		TargetID:     targetID,
		RelationType: relationType,
		Properties:   make(AttrMap),
	}
}

// Clone returns a deep copy of the relation.
func (r *SpecRelation) Clone() *SpecRelation {
	cp := *r
	cp.Properties = r.Properties.Clone()
	return &cp
}
