package domain

// Requirement is a leaf content record: an identifier with a title and a
// free-form description. Empty title/description map to NULL columns in
// the relational form.
type Requirement struct {
	ReqID       string `json:"req_id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Clone returns a copy of the requirement.
func (r *Requirement) Clone() *Requirement {
	cp := *r
	return &cp
}
