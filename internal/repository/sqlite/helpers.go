package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/j-rig/reqifio/internal/domain"
)

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// decodeBag decodes an attribute-bag column, treating NULL/empty as an
// empty bag. Decode failures carry the table and key of the offending row.
func decodeBag(table, key string, ns sql.NullString) (domain.AttrMap, error) {
	if !ns.Valid || ns.String == "" {
		return make(domain.AttrMap), nil
	}
	bag, err := domain.DecodeAttrMap(ns.String)
	if err != nil {
		return nil, &domain.MalformedValueError{Table: table, Key: key, Err: err}
	}
	return bag, nil
}

// encodeSpecObjects pre-encodes every spec object's attribute bag, keyed by
// spec_id, so encoding errors surface before the write transaction starts.
func encodeSpecObjects(doc *domain.Document) (map[string]string, error) {
	bags := make(map[string]string, len(doc.SpecObjects))
	for id, obj := range doc.SpecObjects {
		text, err := obj.Values.Encode()
		if err != nil {
			return nil, &domain.MalformedValueError{Table: domain.TableSpecObjects, Key: id, Err: err}
		}
		bags[id] = text
	}
	return bags, nil
}

// encodeSpecRelations pre-encodes every relation's property bag, keyed by
// relation_id.
func encodeSpecRelations(doc *domain.Document) (map[string]string, error) {
	bags := make(map[string]string, len(doc.SpecRelations))
	for id, rel := range doc.SpecRelations {
		text, err := rel.Properties.Encode()
		if err != nil {
			return nil, &domain.MalformedValueError{Table: domain.TableSpecRelations, Key: id, Err: err}
		}
		bags[id] = text
	}
	return bags, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func insertHeader(ctx context.Context, tx *sql.Tx, doc *domain.Document) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO header (key, the_value) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare header insert: %w", err)
	}
	defer stmt.Close()

	for _, key := range sortedKeys(doc.Header) {
		if _, err := stmt.ExecContext(ctx, key, doc.Header[key]); err != nil {
			return fmt.Errorf("insert header %s: %w", key, err)
		}
	}
	return nil
}

func insertRequirements(ctx context.Context, tx *sql.Tx, doc *domain.Document) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO requirements (req_id, title, description) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare requirement insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range sortedKeys(doc.Requirements) {
		req := doc.Requirements[id]
		if _, err := stmt.ExecContext(ctx, id, stringToNull(req.Title), stringToNull(req.Description)); err != nil {
			return fmt.Errorf("insert requirement %s: %w", id, err)
		}
	}
	return nil
}

func insertSpecObjects(ctx context.Context, tx *sql.Tx, doc *domain.Document, bags map[string]string) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO spec_objects (spec_id, type, the_values) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare spec object insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range sortedKeys(doc.SpecObjects) {
		obj := doc.SpecObjects[id]
		if _, err := stmt.ExecContext(ctx, id, stringToNull(obj.Type), bags[id]); err != nil {
			return fmt.Errorf("insert spec object %s: %w", id, err)
		}
	}
	return nil
}

func insertSpecRelations(ctx context.Context, tx *sql.Tx, doc *domain.Document, bags map[string]string) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO spec_relations (relation_id, source_id, target_id, relation_type, properties)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare spec relation insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range sortedKeys(doc.SpecRelations) {
		rel := doc.SpecRelations[id]
		if _, err := stmt.ExecContext(ctx, id, rel.SourceID, rel.TargetID, stringToNull(rel.RelationType), bags[id]); err != nil {
			return fmt.Errorf("insert spec relation %s: %w", id, err)
		}
	}
	return nil
}

func insertSpecTypes(ctx context.Context, tx *sql.Tx, doc *domain.Document) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO spec_types (type_key, type_value) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare spec type insert: %w", err)
	}
	defer stmt.Close()

	for _, key := range sortedKeys(doc.SpecTypes) {
		if _, err := stmt.ExecContext(ctx, key, doc.SpecTypes[key]); err != nil {
			return fmt.Errorf("insert spec type %s: %w", key, err)
		}
	}
	return nil
}

func insertHierarchy(ctx context.Context, tx *sql.Tx, doc *domain.Document) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO spec_hierarchy (hier_id, object_id, parent_hier_id) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare hierarchy insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range sortedKeys(doc.Hierarchy) {
		node := doc.Hierarchy[id]
		if _, err := stmt.ExecContext(ctx, id, node.ObjectID, stringToNull(node.ParentHierID)); err != nil {
			return fmt.Errorf("insert hierarchy node %s: %w", id, err)
		}
	}
	return nil
}
