package codec

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"

	"github.com/j-rig/reqifio/internal/domain"
)

// ReqIFCodec reads and writes the flat REQ-IF XML dialect: a REQ-IF root
// holding a REQ-IF-HEADER of key/value children and a CORE-CONTENT with
// REQUIREMENTS, SPEC-OBJECTS, SPEC-RELATIONS, SPEC-TYPES, and
// SPEC-HIERARCHY sections.
//
// Attribute bag entries are written as ATTRIBUTE elements carrying key and
// type attributes, so arbitrary attribute names and value types survive
// the trip through XML. The parser also accepts the older form where the
// attribute key is the element name itself (untyped, read as string).
type ReqIFCodec struct{}

// NewReqIFCodec creates a new ReqIF XML codec
func NewReqIFCodec() *ReqIFCodec {
	return &ReqIFCodec{}
}

// Format returns the codec format identifier
func (c *ReqIFCodec) Format() string {
	return "reqif"
}

// xmlElement is a generic XML tree node. The dialect has dynamic element
// names (header keys), so parsing goes through a generic tree instead of
// fixed structs.
type xmlElement struct {
	XMLName  xml.Name
	Attrs    []xml.Attr   `xml:",any,attr"`
	Text     string       `xml:",chardata"`
	Children []xmlElement `xml:",any"`
}

func (e *xmlElement) attr(name string) string {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (e *xmlElement) child(name string) *xmlElement {
	for i := range e.Children {
		if e.Children[i].XMLName.Local == name {
			return &e.Children[i]
		}
	}
	return nil
}

func (e *xmlElement) childText(name string) string {
	if c := e.child(name); c != nil {
		return c.Text
	}
	return ""
}

// Parse imports a document from ReqIF XML. Structural validation
// (referential integrity, hierarchy shape) is left to the caller; the
// parser fails only on malformed XML and untranslatable attribute values.
func (c *ReqIFCodec) Parse(r io.Reader) (*domain.Document, error) {
	var root xmlElement
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("parse ReqIF XML: %w", err)
	}
	if root.XMLName.Local != "REQ-IF" {
		return nil, fmt.Errorf("parse ReqIF XML: root element is %q, expected REQ-IF", root.XMLName.Local)
	}

	doc := domain.NewDocument()

	if header := root.child("REQ-IF-HEADER"); header != nil {
		for _, entry := range header.Children {
			doc.Header[entry.XMLName.Local] = entry.Text
		}
	}

	core := root.child("CORE-CONTENT")
	if core == nil {
		return doc, nil
	}

	if reqs := core.child("REQUIREMENTS"); reqs != nil {
		for i := range reqs.Children {
			req := &reqs.Children[i]
			id := req.childText("ID")
			if id == "" {
				return nil, fmt.Errorf("parse ReqIF XML: requirement without ID")
			}
			doc.Requirements[id] = &domain.Requirement{
				ReqID:       id,
				Title:       req.childText("TITLE"),
				Description: req.childText("DESCRIPTION"),
			}
		}
	}

	if objs := core.child("SPEC-OBJECTS"); objs != nil {
		for i := range objs.Children {
			elem := &objs.Children[i]
			id := elem.childText("ID")
			if id == "" {
				return nil, fmt.Errorf("parse ReqIF XML: spec object without ID")
			}
			bag, err := parseBag(elem.child("VALUES"))
			if err != nil {
				return nil, &domain.MalformedValueError{Table: domain.TableSpecObjects, Key: id, Err: err}
			}
			doc.SpecObjects[id] = &domain.SpecObject{
				SpecID: id,
				Type:   elem.childText("TYPE"),
				Values: bag,
			}
		}
	}

	if rels := core.child("SPEC-RELATIONS"); rels != nil {
		for i := range rels.Children {
			elem := &rels.Children[i]
			rel := domain.NewSpecRelation(
				elem.childText("SOURCE-ID"),
				elem.childText("TARGET-ID"),
				elem.childText("RELATION-TYPE"),
			)
			if id := elem.childText("ID"); id != "" {
				rel.RelationID = id
			}
			bag, err := parseBag(elem.child("PROPERTIES"))
			if err != nil {
				return nil, &domain.MalformedValueError{Table: domain.TableSpecRelations, Key: rel.RelationID, Err: err}
			}
			rel.Properties = bag
			doc.SpecRelations[rel.RelationID] = rel
		}
	}

	if types := core.child("SPEC-TYPES"); types != nil {
		for _, entry := range types.Children {
			if entry.XMLName.Local == "SPEC-TYPE" {
				doc.SpecTypes[entry.attr("key")] = entry.Text
				continue
			}
			doc.SpecTypes[entry.XMLName.Local] = entry.Text
		}
	}

	if hier := core.child("SPEC-HIERARCHY"); hier != nil {
		for i := range hier.Children {
			elem := &hier.Children[i]
			node := domain.NewHierarchyNode(
				elem.childText("OBJECT-ID"),
				elem.childText("PARENT-ID"),
			)
			if id := elem.childText("ID"); id != "" {
				node.HierID = id
			}
			doc.Hierarchy[node.HierID] = node
		}
	}

	return doc, nil
}

// parseBag reads an attribute bag section. nil sections are empty bags.
func parseBag(section *xmlElement) (domain.AttrMap, error) {
	bag := make(domain.AttrMap)
	if section == nil {
		return bag, nil
	}
	for i := range section.Children {
		entry := &section.Children[i]
		key := entry.XMLName.Local
		tag := entry.attr("type")
		if key == "ATTRIBUTE" {
			key = entry.attr("key")
		}
		if key == "" {
			return nil, fmt.Errorf("attribute entry without a key")
		}
		if tag == "" {
			tag = "s"
		}
		val, err := domain.DecodeScalar(tag, entry.Text)
		if err != nil {
			return nil, err
		}
		bag[key] = val
	}
	return bag, nil
}

// Export writes a document as ReqIF XML. Sections and entries are emitted
// in sorted key order, so exporting the same document twice produces
// byte-identical output.
func (c *ReqIFCodec) Export(doc *domain.Document, w io.Writer) error {
	root := elem("REQ-IF")

	header := elem("REQ-IF-HEADER")
	for _, key := range sortedKeys(doc.Header) {
		header.Children = append(header.Children, leaf(key, doc.Header[key]))
	}
	root.Children = append(root.Children, header)

	core := elem("CORE-CONTENT")

	reqs := elem("REQUIREMENTS")
	for _, id := range sortedKeys(doc.Requirements) {
		req := doc.Requirements[id]
		entry := elem("REQ-IF-REQUISITE")
		entry.Children = append(entry.Children,
			leaf("ID", id),
			leaf("TITLE", req.Title),
			leaf("DESCRIPTION", req.Description),
		)
		reqs.Children = append(reqs.Children, entry)
	}
	core.Children = append(core.Children, reqs)

	objs := elem("SPEC-OBJECTS")
	for _, id := range sortedKeys(doc.SpecObjects) {
		obj := doc.SpecObjects[id]
		entry := elem("SPEC-OBJECT")
		entry.Children = append(entry.Children, leaf("ID", id), leaf("TYPE", obj.Type))
		values, err := bagSection("VALUES", domain.TableSpecObjects, id, obj.Values)
		if err != nil {
			return err
		}
		entry.Children = append(entry.Children, values)
		objs.Children = append(objs.Children, entry)
	}
	core.Children = append(core.Children, objs)

	rels := elem("SPEC-RELATIONS")
	for _, id := range sortedKeys(doc.SpecRelations) {
		rel := doc.SpecRelations[id]
		entry := elem("SPEC-RELATION")
		entry.Children = append(entry.Children,
			leaf("ID", id),
			leaf("SOURCE-ID", rel.SourceID),
			leaf("TARGET-ID", rel.TargetID),
			leaf("RELATION-TYPE", rel.RelationType),
		)
		props, err := bagSection("PROPERTIES", domain.TableSpecRelations, id, rel.Properties)
		if err != nil {
			return err
		}
		entry.Children = append(entry.Children, props)
		rels.Children = append(rels.Children, entry)
	}
	core.Children = append(core.Children, rels)

	types := elem("SPEC-TYPES")
	for _, key := range sortedKeys(doc.SpecTypes) {
		entry := leaf("SPEC-TYPE", doc.SpecTypes[key])
		entry.Attrs = []xml.Attr{{Name: xml.Name{Local: "key"}, Value: key}}
		types.Children = append(types.Children, entry)
	}
	core.Children = append(core.Children, types)

	hier := elem("SPEC-HIERARCHY")
	for _, id := range sortedKeys(doc.Hierarchy) {
		node := doc.Hierarchy[id]
		entry := elem("SPEC-HIERARCHY-NODE")
		entry.Children = append(entry.Children,
			leaf("ID", id),
			leaf("OBJECT-ID", node.ObjectID),
			leaf("PARENT-ID", node.ParentHierID),
		)
		hier.Children = append(hier.Children, entry)
	}
	core.Children = append(core.Children, hier)

	root.Children = append(root.Children, core)

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write XML declaration: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("encode ReqIF XML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish ReqIF XML: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// bagSection renders an attribute bag as sorted ATTRIBUTE entries.
func bagSection(name, table, key string, bag domain.AttrMap) (xmlElement, error) {
	section := elem(name)
	for _, k := range sortedKeys(bag) {
		tag, text, err := domain.EncodeScalar(bag[k])
		if err != nil {
			return section, &domain.MalformedValueError{Table: table, Key: key, Err: err}
		}
		entry := leaf("ATTRIBUTE", text)
		entry.Attrs = []xml.Attr{
			{Name: xml.Name{Local: "key"}, Value: k},
			{Name: xml.Name{Local: "type"}, Value: tag},
		}
		section.Children = append(section.Children, entry)
	}
	return section, nil
}

func elem(name string) xmlElement {
	return xmlElement{XMLName: xml.Name{Local: name}}
}

func leaf(name, text string) xmlElement {
	return xmlElement{XMLName: xml.Name{Local: name}, Text: text}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
