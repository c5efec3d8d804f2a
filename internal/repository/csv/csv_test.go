package csv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/j-rig/reqifio/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	return s
}

func testDocument(t *testing.T) *domain.Document {
	t.Helper()
	doc := domain.NewDocument()
	doc.Header["TITLE"] = "CSV Sample"
	doc.Requirements["REQ-001"] = &domain.Requirement{
		ReqID: "REQ-001", Title: "A requirement", Description: "With a description.",
	}
	doc.SpecObjects["SO1"] = &domain.SpecObject{
		SpecID: "SO1", Type: "REQ",
		Values: domain.AttrMap{"ASIL": "B", "Weight": int64(3), "Score": 0.5, "Reviewed": true},
	}
	doc.SpecObjects["SO2"] = &domain.SpecObject{SpecID: "SO2", Type: "REQ", Values: domain.AttrMap{}}
	doc.SpecRelations["R1"] = &domain.SpecRelation{
		RelationID: "R1", SourceID: "SO1", TargetID: "SO2",
		RelationType: "refines", Properties: domain.AttrMap{"note": "derived"},
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
}

func TestRoundTripPreservesCarriageReturns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := domain.NewDocument()
	doc.Header["COMMENT"] = "first\r\nsecond"
	doc.Requirements["REQ-1"] = &domain.Requirement{
		ReqID: "REQ-1", Title: "line one\r\nline two", Description: "ends with CR\r",
	}
	doc.SpecObjects["SO1"] = &domain.SpecObject{
		SpecID: "SO1", Type: "REQ",
		Values: domain.AttrMap{"path": `C:\r\new`, "note": "a\r\nb"},
	}

	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(doc, loaded) {
		t.Fatalf("CRLF round trip mismatch:\nsaved  %#v\nloaded %#v",
			doc.Requirements["REQ-1"], loaded.Requirements["REQ-1"])
	}
}

func TestLoadEmptyDirectory(t *testing.T) {
	s := newTestStore(t)

	doc, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.SpecObjects) != 0 || len(doc.Header) != 0 {
		t.Fatalf("expected empty document, got %#v", doc)
	}
}

func TestSaveIsDeterministic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := testDocument(t)

	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	first, err := os.ReadFile(filepath.Join(s.dir, specObjectsFile))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}

	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("second save: %v", err)
	}
	second, err := os.ReadFile(filepath.Join(s.dir, specObjectsFile))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}

	if string(first) != string(second) {
		t.Fatalf("file bytes differ between saves:\n%s\n%s", first, second)
	}
}

func TestLoadRejectsDanglingRelation(t *testing.T) {
	s := newTestStore(t)

	// Hand-write a relations file pointing at a missing spec object.
	content := "relation_id,source_id,target_id,relation_type,properties\n" +
		"R1,SO-MISSING,SO-MISSING,refines,[]\n"
	if err := os.WriteFile(filepath.Join(s.dir, specRelationsFile), []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := s.Load(context.Background())
	var refErr *domain.ReferentialIntegrityError
	if !errors.As(err, &refErr) {
		t.Fatalf("expected ReferentialIntegrityError, got %v", err)
	}
}

func TestLoadRejectsMalformedBag(t *testing.T) {
	s := newTestStore(t)

	content := "spec_id,type,the_values\n" +
		"SO1,REQ,{broken\n"
	if err := os.WriteFile(filepath.Join(s.dir, specObjectsFile), []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := s.Load(context.Background())
	var valErr *domain.MalformedValueError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected MalformedValueError, got %v", err)
	}
	if valErr.Key != "SO1" {
		t.Fatalf("error does not name the offending row: %+v", valErr)
	}
}

func TestSaveInvalidDocumentLeavesFilesUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := testDocument(t)

	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	before, err := os.ReadFile(filepath.Join(s.dir, specObjectsFile))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}

	bad := doc.Clone()
	bad.Hierarchy["H9"] = &domain.SpecHierarchy{HierID: "H9", ObjectID: "missing"}
	if err := s.Save(ctx, bad); err == nil {
		t.Fatal("expected save of inconsistent document to fail")
	}

	after, err := os.ReadFile(filepath.Join(s.dir, specObjectsFile))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("failed save must leave existing files unchanged")
	}

	// No staging or backup leftovers either.
	checkNoScratchFiles(t, s.dir)
}

// checkNoScratchFiles fails if any .tmp or .bak file remains in dir.
func checkNoScratchFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if ext := filepath.Ext(e.Name()); ext == ".tmp" || ext == ".bak" {
			t.Fatalf("scratch file left behind: %s", e.Name())
		}
	}
}

func TestSaveCleansUpScratchFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := testDocument(t)

	// Two saves in a row: the second replaces existing files, which
	// exercises the backup path as well as the staging path.
	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("second save: %v", err)
	}
	checkNoScratchFiles(t, s.dir)
}
