package domain

import "sort"

// Table names, shared by the stores and by error reporting.
const (
	TableHeader        = "header"
	TableRequirements  = "requirements"
	TableSpecObjects   = "spec_objects"
	TableSpecRelations = "spec_relations"
	TableSpecTypes     = "spec_types"
	TableSpecHierarchy = "spec_hierarchy"
)

// Document is the in-memory ReqIF document graph. It exclusively owns all
// entity instances; relations and hierarchy nodes reference spec objects
// by key only.
//
// A Document is not safe for concurrent mutation; callers needing shared
// access must serialize writers externally.
type Document struct {
	Header        map[string]string         `json:"header"`
	Requirements  map[string]*Requirement   `json:"requirements"`
	SpecObjects   map[string]*SpecObject    `json:"spec_objects"`
	SpecRelations map[string]*SpecRelation  `json:"spec_relations"`
	SpecTypes     map[string]string         `json:"spec_types"`
	Hierarchy     map[string]*SpecHierarchy `json:"spec_hierarchy"`
}

// NewDocument creates an empty document with all maps initialized.
func NewDocument() *Document {
	return &Document{
		Header:        make(map[string]string),
		Requirements:  make(map[string]*Requirement),
		SpecObjects:   make(map[string]*SpecObject),
		SpecRelations: make(map[string]*SpecRelation),
		SpecTypes:     make(map[string]string),
		Hierarchy:     make(map[string]*SpecHierarchy),
	}
}

// Validate checks every reference the relational schema implies but does
// not enforce: relation endpoints, hierarchy object references, hierarchy
// parent references, and hierarchy acyclicity. It returns the first
// violation found; a nil result means the document is internally
// consistent.
func (d *Document) Validate() error {
	for _, id := range sortedKeys(d.SpecRelations) {
		rel := d.SpecRelations[id]
		if _, ok := d.SpecObjects[rel.SourceID]; !ok {
			return &ReferentialIntegrityError{
				Table: TableSpecRelations, Key: id, Ref: rel.SourceID,
				Reason: "source_id does not match any spec object",
			}
		}
		if _, ok := d.SpecObjects[rel.TargetID]; !ok {
			return &ReferentialIntegrityError{
				Table: TableSpecRelations, Key: id, Ref: rel.TargetID,
				Reason: "target_id does not match any spec object",
			}
		}
	}

	for _, id := range sortedKeys(d.Hierarchy) {
		node := d.Hierarchy[id]
		if _, ok := d.SpecObjects[node.ObjectID]; !ok {
			return &ReferentialIntegrityError{
				Table: TableSpecHierarchy, Key: id, Ref: node.ObjectID,
				Reason: "object_id does not match any spec object",
			}
		}
		if node.ParentHierID != "" {
			if _, ok := d.Hierarchy[node.ParentHierID]; !ok {
				return &ReferentialIntegrityError{
					Table: TableSpecHierarchy, Key: id, Ref: node.ParentHierID,
					Reason: "parent_hier_id does not match any hierarchy node",
				}
			}
		}
		if err := d.checkAncestry(id, node.ParentHierID); err != nil {
			return err
		}
	}

	return nil
}

// checkAncestry walks the parent chain upward from parentID and fails if
// it reaches hierID. The walk is bounded by the total node count so it
// terminates even if the stored graph is already cyclic.
func (d *Document) checkAncestry(hierID, parentID string) error {
	cur := parentID
	for steps := 0; cur != ""; steps++ {
		if cur == hierID {
			return &CycleError{HierID: hierID, ParentID: parentID}
		}
		if steps > len(d.Hierarchy) {
			return &CycleError{HierID: hierID, ParentID: parentID}
		}
		next, ok := d.Hierarchy[cur]
		if !ok {
			return nil // dangling parent is reported separately
		}
		cur = next.ParentHierID
	}
	return nil
}

// UpsertRequirement inserts or replaces a requirement by its key.
func (d *Document) UpsertRequirement(req *Requirement) error {
	d.Requirements[req.ReqID] = req
	return nil
}

// AddRequirement inserts a requirement, failing if the key is taken.
func (d *Document) AddRequirement(req *Requirement) error {
	if _, ok := d.Requirements[req.ReqID]; ok {
		return &DuplicateKeyError{Table: TableRequirements, Key: req.ReqID}
	}
	return d.UpsertRequirement(req)
}

// DeleteRequirement removes a requirement. Missing keys are not an error;
// the schema implies no references into requirements.
func (d *Document) DeleteRequirement(reqID string) {
	delete(d.Requirements, reqID)
}

// UpsertSpecObject inserts or replaces a spec object by its key.
func (d *Document) UpsertSpecObject(obj *SpecObject) error {
	d.SpecObjects[obj.SpecID] = obj
	return nil
}

// AddSpecObject inserts a spec object, failing if the key is taken.
func (d *Document) AddSpecObject(obj *SpecObject) error {
	if _, ok := d.SpecObjects[obj.SpecID]; ok {
		return &DuplicateKeyError{Table: TableSpecObjects, Key: obj.SpecID}
	}
	return d.UpsertSpecObject(obj)
}

// DeleteSpecObject removes a spec object. It fails while any relation or
// hierarchy node still references the object; the schema implies no
// cascade, so the caller must remove referrers first. The document is
// unchanged on failure.
func (d *Document) DeleteSpecObject(specID string) error {
	if _, ok := d.SpecObjects[specID]; !ok {
		return &ReferentialIntegrityError{
			Table: TableSpecObjects, Key: specID, Ref: specID,
			Reason: "spec object does not exist",
		}
	}
	for _, id := range sortedKeys(d.SpecRelations) {
		rel := d.SpecRelations[id]
		if rel.SourceID == specID || rel.TargetID == specID {
			return &ReferentialIntegrityError{
				Table: TableSpecRelations, Key: id, Ref: specID,
				Reason: "relation still references spec object",
			}
		}
	}
	for _, id := range sortedKeys(d.Hierarchy) {
		if d.Hierarchy[id].ObjectID == specID {
			return &ReferentialIntegrityError{
				Table: TableSpecHierarchy, Key: id, Ref: specID,
				Reason: "hierarchy node still references spec object",
			}
		}
	}
	delete(d.SpecObjects, specID)
	return nil
}

// UpsertSpecRelation inserts or replaces a relation after checking both
// endpoints exist. The document is unchanged on failure.
func (d *Document) UpsertSpecRelation(rel *SpecRelation) error {
	if _, ok := d.SpecObjects[rel.SourceID]; !ok {
		return &ReferentialIntegrityError{
			Table: TableSpecRelations, Key: rel.RelationID, Ref: rel.SourceID,
			Reason: "source_id does not match any spec object",
		}
	}
	if _, ok := d.SpecObjects[rel.TargetID]; !ok {
		return &ReferentialIntegrityError{
			Table: TableSpecRelations, Key: rel.RelationID, Ref: rel.TargetID,
			Reason: "target_id does not match any spec object",
		}
	}
	d.SpecRelations[rel.RelationID] = rel
	return nil
}

// AddSpecRelation inserts a relation, failing if the key is taken.
func (d *Document) AddSpecRelation(rel *SpecRelation) error {
	if _, ok := d.SpecRelations[rel.RelationID]; ok {
		return &DuplicateKeyError{Table: TableSpecRelations, Key: rel.RelationID}
	}
	return d.UpsertSpecRelation(rel)
}

// DeleteSpecRelation removes a relation.
func (d *Document) DeleteSpecRelation(relationID string) {
	delete(d.SpecRelations, relationID)
}

// UpsertSpecType inserts or replaces a type vocabulary entry.
func (d *Document) UpsertSpecType(key, value string) error {
	d.SpecTypes[key] = value
	return nil
}

// UpsertHierarchyNode inserts or replaces a hierarchy node after checking
// its object reference, its parent reference, and that the new parent link
// does not create a cycle. The document is unchanged on failure.
func (d *Document) UpsertHierarchyNode(node *SpecHierarchy) error {
	if _, ok := d.SpecObjects[node.ObjectID]; !ok {
		return &ReferentialIntegrityError{
			Table: TableSpecHierarchy, Key: node.HierID, Ref: node.ObjectID,
			Reason: "object_id does not match any spec object",
		}
	}
	if node.ParentHierID != "" {
		if _, ok := d.Hierarchy[node.ParentHierID]; !ok {
			return &ReferentialIntegrityError{
				Table: TableSpecHierarchy, Key: node.HierID, Ref: node.ParentHierID,
				Reason: "parent_hier_id does not match any hierarchy node",
			}
		}
		if err := d.checkAncestry(node.HierID, node.ParentHierID); err != nil {
			return err
		}
	}
	d.Hierarchy[node.HierID] = node
	return nil
}

// AddHierarchyNode inserts a hierarchy node, failing if the key is taken.
func (d *Document) AddHierarchyNode(node *SpecHierarchy) error {
	if _, ok := d.Hierarchy[node.HierID]; ok {
		return &DuplicateKeyError{Table: TableSpecHierarchy, Key: node.HierID}
	}
	return d.UpsertHierarchyNode(node)
}

// DeleteHierarchyNode removes a hierarchy node. It fails while other
// nodes still name it as their parent, leaving the document unchanged.
func (d *Document) DeleteHierarchyNode(hierID string) error {
	for _, id := range sortedKeys(d.Hierarchy) {
		if d.Hierarchy[id].ParentHierID == hierID {
			return &ReferentialIntegrityError{
				Table: TableSpecHierarchy, Key: id, Ref: hierID,
				Reason: "node still references parent",
			}
		}
	}
	delete(d.Hierarchy, hierID)
	return nil
}

// Reparent moves a hierarchy node under a new parent. An empty
// newParentHierID makes the node a root. It fails with CycleError if the
// new parent is the node itself or one of its descendants, and the
// hierarchy is unchanged on failure.
func (d *Document) Reparent(hierID, newParentHierID string) error {
	node, ok := d.Hierarchy[hierID]
	if !ok {
		return &ReferentialIntegrityError{
			Table: TableSpecHierarchy, Key: hierID, Ref: hierID,
			Reason: "hierarchy node does not exist",
		}
	}
	if newParentHierID != "" {
		if _, ok := d.Hierarchy[newParentHierID]; !ok {
			return &ReferentialIntegrityError{
				Table: TableSpecHierarchy, Key: hierID, Ref: newParentHierID,
				Reason: "parent_hier_id does not match any hierarchy node",
			}
		}
		if err := d.checkAncestry(hierID, newParentHierID); err != nil {
			return err
		}
	}
	node.ParentHierID = newParentHierID
	return nil
}

// Roots returns the hierarchy nodes with no parent, sorted by id.
func (d *Document) Roots() []*SpecHierarchy {
	var roots []*SpecHierarchy
	for _, id := range sortedKeys(d.Hierarchy) {
		if d.Hierarchy[id].ParentHierID == "" {
			roots = append(roots, d.Hierarchy[id])
		}
	}
	return roots
}

// Children returns the direct children of a hierarchy node, sorted by id.
func (d *Document) Children(hierID string) []*SpecHierarchy {
	var children []*SpecHierarchy
	for _, id := range sortedKeys(d.Hierarchy) {
		if d.Hierarchy[id].ParentHierID == hierID {
			children = append(children, d.Hierarchy[id])
		}
	}
	return children
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := NewDocument()
	for k, v := range d.Header {
		out.Header[k] = v
	}
	for k, v := range d.Requirements {
		out.Requirements[k] = v.Clone()
	}
	for k, v := range d.SpecObjects {
		out.SpecObjects[k] = v.Clone()
	}
	for k, v := range d.SpecRelations {
		out.SpecRelations[k] = v.Clone()
	}
	for k, v := range d.SpecTypes {
		out.SpecTypes[k] = v
	}
	for k, v := range d.Hierarchy {
		out.Hierarchy[k] = v.Clone()
	}
	return out
}

// sortedKeys returns map keys in sorted order so validation reports and
// iteration order are deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
