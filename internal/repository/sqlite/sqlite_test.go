package sqlite

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/j-rig/reqifio/internal/domain"
)

// newTestStore creates an in-memory SQLite store for testing
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// testDocument builds a consistent document exercising every table.
func testDocument(t *testing.T) *domain.Document {
	t.Helper()
	doc := domain.NewDocument()
	doc.Header["TITLE"] = "Sample"
	doc.Header["CREATOR"] = "unit test"
	doc.Requirements["REQ-001"] = &domain.Requirement{
		ReqID: "REQ-001", Title: "Initial Requirement", Description: "Initial description.",
	}
	doc.Requirements["REQ-002"] = &domain.Requirement{ReqID: "REQ-002"}
	doc.SpecObjects["SO1"] = &domain.SpecObject{
		SpecID: "SO1", Type: "REQ",
		Values: domain.AttrMap{"ASIL": "B", "Rationale": "safety", "Weight": int64(3)},
	}
	doc.SpecObjects["SO2"] = &domain.SpecObject{
		SpecID: "SO2", Type: "REQ",
		Values: domain.AttrMap{"Reviewed": true, "Score": 0.75},
	}
	doc.SpecRelations["R1"] = &domain.SpecRelation{
		RelationID: "R1", SourceID: "SO1", TargetID: "SO2",
		RelationType: "refines", Properties: domain.AttrMap{"confidence": 0.9},
	}
	doc.SpecTypes["REQ"] = "Requirement Type"
	doc.Hierarchy["H1"] = &domain.SpecHierarchy{HierID: "H1", ObjectID: "SO1"}
	doc.Hierarchy["H2"] = &domain.SpecHierarchy{HierID: "H2", ObjectID: "SO2", ParentHierID: "H1"}
	return doc
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := testDocument(t)

	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !reflect.DeepEqual(doc, loaded) {
		t.Fatalf("round trip mismatch:\nsaved  %#v\nloaded %#v", doc, loaded)
	}

	// A second cycle through the store must also be lossless.
	if err := s.Save(ctx, loaded); err != nil {
		t.Fatalf("second save: %v", err)
	}
	again, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if !reflect.DeepEqual(loaded, again) {
		t.Fatal("second round trip mismatch")
	}
}

func TestLoadEmptyStore(t *testing.T) {
	s := newTestStore(t)

	doc, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.Header) != 0 || len(doc.SpecObjects) != 0 || len(doc.Hierarchy) != 0 {
		t.Fatalf("expected empty document, got %#v", doc)
	}
}

func TestSaveIsDeterministic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := testDocument(t)

	readBag := func() string {
		t.Helper()
		var text string
		err := s.db.QueryRowContext(ctx, `SELECT the_values FROM spec_objects WHERE spec_id = ?`, "SO1").Scan(&text)
		if err != nil {
			t.Fatalf("read the_values: %v", err)
		}
		return text
	}

	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	first := readBag()
	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("second save: %v", err)
	}
	second := readBag()

	if first != second {
		t.Fatalf("serialized bag text differs between saves:\n%s\n%s", first, second)
	}
}

func TestLoadRejectsDanglingRelation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Write a relation whose source does not exist, bypassing validation.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spec_relations (relation_id, source_id, target_id, relation_type, properties)
		VALUES ('R1', 'SO-MISSING', 'SO-MISSING', 'refines', '[]')
	`)
	if err != nil {
		t.Fatalf("insert bad row: %v", err)
	}

	_, err = s.Load(ctx)
	var refErr *domain.ReferentialIntegrityError
	if !errors.As(err, &refErr) {
		t.Fatalf("expected ReferentialIntegrityError, got %v", err)
	}
	if refErr.Table != domain.TableSpecRelations || refErr.Key != "R1" || refErr.Ref != "SO-MISSING" {
		t.Fatalf("error does not name the offending row: %+v", refErr)
	}
}

func TestLoadRejectsDanglingHierarchy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spec_hierarchy (hier_id, object_id, parent_hier_id)
		VALUES ('H1', 'SO-MISSING', NULL)
	`)
	if err != nil {
		t.Fatalf("insert bad row: %v", err)
	}

	_, err = s.Load(ctx)
	var refErr *domain.ReferentialIntegrityError
	if !errors.As(err, &refErr) {
		t.Fatalf("expected ReferentialIntegrityError, got %v", err)
	}
}

func TestLoadRejectsCyclicHierarchy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spec_objects (spec_id, type, the_values) VALUES ('SO1', 'REQ', '[]');
		INSERT INTO spec_hierarchy (hier_id, object_id, parent_hier_id) VALUES
			('H1', 'SO1', 'H2'),
			('H2', 'SO1', 'H1');
	`)
	if err != nil {
		t.Fatalf("insert cyclic rows: %v", err)
	}

	_, err = s.Load(ctx)
	var cycleErr *domain.CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError, got %v", err)
	}
}

func TestLoadRejectsMalformedBag(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spec_objects (spec_id, type, the_values) VALUES ('SO1', 'REQ', '{broken')
	`)
	if err != nil {
		t.Fatalf("insert bad row: %v", err)
	}

	_, err = s.Load(ctx)
	var valErr *domain.MalformedValueError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected MalformedValueError, got %v", err)
	}
	if valErr.Table != domain.TableSpecObjects || valErr.Key != "SO1" {
		t.Fatalf("error does not name the offending row: %+v", valErr)
	}
}

func TestSaveInvalidDocumentLeavesStoreUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := testDocument(t)

	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("save: %v", err)
	}

	// An inconsistent document must be rejected before any row is touched.
	bad := doc.Clone()
	bad.SpecRelations["R2"] = &domain.SpecRelation{
		RelationID: "R2", SourceID: "SO1", TargetID: "missing",
		RelationType: "refines", Properties: domain.AttrMap{},
	}
	if err := s.Save(ctx, bad); err == nil {
		t.Fatal("expected save of inconsistent document to fail")
	}

	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load after failed save: %v", err)
	}
	if !reflect.DeepEqual(doc, loaded) {
		t.Fatal("failed save must leave the store unchanged")
	}
}

func TestSaveUnsupportedBagValueLeavesStoreUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := testDocument(t)

	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("save: %v", err)
	}

	bad := doc.Clone()
	bad.SpecObjects["SO1"].Values["nested"] = map[string]any{"x": 1}

	err := s.Save(ctx, bad)
	var valErr *domain.MalformedValueError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected MalformedValueError, got %v", err)
	}

	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load after failed save: %v", err)
	}
	if !reflect.DeepEqual(doc, loaded) {
		t.Fatal("failed save must leave the store unchanged")
	}
}

func TestNullableColumnsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := domain.NewDocument()
	doc.Requirements["REQ-1"] = &domain.Requirement{ReqID: "REQ-1"} // title and description NULL
	doc.SpecObjects["SO1"] = &domain.SpecObject{SpecID: "SO1", Type: "REQ", Values: domain.AttrMap{}}
	doc.Hierarchy["H1"] = &domain.SpecHierarchy{HierID: "H1", ObjectID: "SO1"} // root, parent NULL

	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("save: %v", err)
	}

	// The columns must actually be NULL, not empty strings.
	var nulls int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM requirements WHERE title IS NULL AND description IS NULL
	`).Scan(&nulls)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if nulls != 1 {
		t.Fatalf("expected NULL title/description, got %d matching rows", nulls)
	}

	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(doc, loaded) {
		t.Fatal("nullable round trip mismatch")
	}
}
