package domain

// SpecObject is a typed content unit with a dynamic attribute bag.
type SpecObject struct {
	SpecID string  `json:"spec_id"`
	Type   string  `json:"type"`
	Values AttrMap `json:"values"`
}

// NewSpecObject creates a spec object with an initialized attribute bag.
func NewSpecObject(specID, objType string) *SpecObject {
	return &SpecObject{
		SpecID: specID,
		Type:   objType,
		Values: make(AttrMap),
	}
}

// Clone returns a deep copy of the spec object.
func (o *SpecObject) Clone() *SpecObject {
	cp := *o
	cp.Values = o.Values.Clone()
	return &cp
}
