package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/j-rig/reqifio/internal/domain"
)

// JSONCodec handles whole-document JSON import/export. Attribute bags
// serialize through their tagged triple form, so JSON round-trips keep
// value types intact.
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse imports a document from JSON
func (c *JSONCodec) Parse(r io.Reader) (*domain.Document, error) {
	doc := domain.NewDocument()
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("parse JSON document: %w", err)
	}
	fillMissingMaps(doc)
	normalize(doc)
	return doc, nil
}

// normalize makes sparse input match a programmatically built document:
// entity keys win over any mismatched embedded ids, and absent attribute
// bags become empty ones.
func normalize(doc *domain.Document) {
	for id, req := range doc.Requirements {
		req.ReqID = id
	}
	for id, obj := range doc.SpecObjects {
		obj.SpecID = id
		if obj.Values == nil {
			obj.Values = make(domain.AttrMap)
		}
	}
	for id, rel := range doc.SpecRelations {
		rel.RelationID = id
		if rel.Properties == nil {
			rel.Properties = make(domain.AttrMap)
		}
	}
	for id, node := range doc.Hierarchy {
		node.HierID = id
	}
}

// Export writes a document as indented JSON
func (c *JSONCodec) Export(doc *domain.Document, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("encode JSON document: %w", err)
	}
	return nil
}

// fillMissingMaps replaces maps a sparse input left nil so the parsed
// document matches one built through domain.NewDocument.
func fillMissingMaps(doc *domain.Document) {
	if doc.Header == nil {
		doc.Header = make(map[string]string)
	}
	if doc.Requirements == nil {
		doc.Requirements = make(map[string]*domain.Requirement)
	}
	if doc.SpecObjects == nil {
		doc.SpecObjects = make(map[string]*domain.SpecObject)
	}
	if doc.SpecRelations == nil {
		doc.SpecRelations = make(map[string]*domain.SpecRelation)
	}
	if doc.SpecTypes == nil {
		doc.SpecTypes = make(map[string]string)
	}
	if doc.Hierarchy == nil {
		doc.Hierarchy = make(map[string]*domain.SpecHierarchy)
	}
}
