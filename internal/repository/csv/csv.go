// Package csv implements the document store over a directory of CSV
// files, one file per table. The column sets match the relational layout
// exactly; attribute bags are stored in their deterministic text form in a
// single field.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/j-rig/reqifio/internal/domain"
)

// File names, one per table.
const (
	headerFile        = "header.csv"
	requirementsFile  = "requirements.csv"
	specObjectsFile   = "spec_objects.csv"
	specRelationsFile = "spec_relations.csv"
	specTypesFile     = "spec_types.csv"
	hierarchyFile     = "spec_hierarchy.csv"
)

// Store implements repository.Store over a directory of CSV files.
type Store struct {
	dir string
}

// Open prepares a CSV store rooted at dir, creating the directory if
// needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create csv directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Load reads all six CSV files into a document and validates it. Files
// that do not exist yet are treated as empty tables.
func (s *Store) Load(ctx context.Context) (*domain.Document, error) {
	doc := domain.NewDocument()

	if err := s.readTable(headerFile, 2, func(rec []string) error {
		doc.Header[rec[0]] = rec[1]
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.readTable(requirementsFile, 3, func(rec []string) error {
		doc.Requirements[rec[0]] = &domain.Requirement{
			ReqID:       rec[0],
			Title:       rec[1],
			Description: rec[2],
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.readTable(specObjectsFile, 3, func(rec []string) error {
		bag, err := decodeBag(domain.TableSpecObjects, rec[0], rec[2])
		if err != nil {
			return err
		}
		doc.SpecObjects[rec[0]] = &domain.SpecObject{
			SpecID: rec[0],
			Type:   rec[1],
			Values: bag,
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.readTable(specRelationsFile, 5, func(rec []string) error {
		bag, err := decodeBag(domain.TableSpecRelations, rec[0], rec[4])
		if err != nil {
			return err
		}
		doc.SpecRelations[rec[0]] = &domain.SpecRelation{
			RelationID:   rec[0],
			SourceID:     rec[1],
			TargetID:     rec[2],
			RelationType: rec[3],
			Properties:   bag,
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.readTable(specTypesFile, 2, func(rec []string) error {
		doc.SpecTypes[rec[0]] = rec[1]
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.readTable(hierarchyFile, 3, func(rec []string) error {
		doc.Hierarchy[rec[0]] = &domain.SpecHierarchy{
			HierID:       rec[0],
			ObjectID:     rec[1],
			ParentHierID: rec[2],
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Save validates the document and writes all six files. Each file is
// written to a temporary name first and the set is renamed into place only
// after every write succeeded, with the previous files kept as backups
// until the last rename lands, so the directory is unchanged on failure.
func (s *Store) Save(ctx context.Context, doc *domain.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	tables := []struct {
		name    string
		columns []string
		rows    func() ([][]string, error)
	}{
		{headerFile, []string{"key", "the_value"}, func() ([][]string, error) {
			return stringMapRows(doc.Header), nil
		}},
		{requirementsFile, []string{"req_id", "title", "description"}, func() ([][]string, error) {
			rows := make([][]string, 0, len(doc.Requirements))
			for _, id := range sortedKeys(doc.Requirements) {
				req := doc.Requirements[id]
				rows = append(rows, []string{id, req.Title, req.Description})
			}
			return rows, nil
		}},
		{specObjectsFile, []string{"spec_id", "type", "the_values"}, func() ([][]string, error) {
			rows := make([][]string, 0, len(doc.SpecObjects))
			for _, id := range sortedKeys(doc.SpecObjects) {
				obj := doc.SpecObjects[id]
				bag, err := obj.Values.Encode()
				if err != nil {
					return nil, &domain.MalformedValueError{Table: domain.TableSpecObjects, Key: id, Err: err}
				}
				rows = append(rows, []string{id, obj.Type, bag})
			}
			return rows, nil
		}},
		{specRelationsFile, []string{"relation_id", "source_id", "target_id", "relation_type", "properties"}, func() ([][]string, error) {
			rows := make([][]string, 0, len(doc.SpecRelations))
			for _, id := range sortedKeys(doc.SpecRelations) {
				rel := doc.SpecRelations[id]
				bag, err := rel.Properties.Encode()
				if err != nil {
					return nil, &domain.MalformedValueError{Table: domain.TableSpecRelations, Key: id, Err: err}
				}
				rows = append(rows, []string{id, rel.SourceID, rel.TargetID, rel.RelationType, bag})
			}
			return rows, nil
		}},
		{specTypesFile, []string{"type_key", "type_value"}, func() ([][]string, error) {
			return stringMapRows(doc.SpecTypes), nil
		}},
		{hierarchyFile, []string{"hier_id", "object_id", "parent_hier_id"}, func() ([][]string, error) {
			rows := make([][]string, 0, len(doc.Hierarchy))
			for _, id := range sortedKeys(doc.Hierarchy) {
				node := doc.Hierarchy[id]
				rows = append(rows, []string{id, node.ObjectID, node.ParentHierID})
			}
			return rows, nil
		}},
	}

	// Stage every file before renaming any, so a failure mid-save leaves
	// the previous contents intact.
	staged := make([]string, 0, len(tables))
	cleanup := func() {
		for _, tmp := range staged {
			os.Remove(tmp)
		}
	}

	for _, table := range tables {
		rows, err := table.rows()
		if err != nil {
			cleanup()
			return err
		}
		tmp := filepath.Join(s.dir, table.name+".tmp")
		if err := writeCSVFile(tmp, table.columns, rows); err != nil {
			cleanup()
			return err
		}
		staged = append(staged, tmp)
	}

	// Move the current files aside before renaming the staged set into
	// place; if a rename fails partway the backups go back, so earlier
	// renames do not leave the directory half updated.
	var backups []string
	restore := func() {
		for _, bak := range backups {
			os.Rename(bak, strings.TrimSuffix(bak, ".bak"))
		}
	}

	for _, table := range tables {
		final := filepath.Join(s.dir, table.name)
		bak := final + ".bak"
		err := os.Rename(final, bak)
		if err == nil {
			backups = append(backups, bak)
			continue
		}
		if !os.IsNotExist(err) {
			cleanup()
			restore()
			return fmt.Errorf("back up %s: %w", table.name, err)
		}
	}

	for i, table := range tables {
		if err := os.Rename(staged[i], filepath.Join(s.dir, table.name)); err != nil {
			cleanup()
			restore()
			return fmt.Errorf("replace %s: %w", table.name, err)
		}
	}

	for _, bak := range backups {
		os.Remove(bak)
	}
	return nil
}

// Close is a no-op; the store holds no open handles between calls.
func (s *Store) Close() error {
	return nil
}

// readTable streams one CSV file through fn, skipping the header row. A
// missing file is an empty table.
func (s *Store) readTable(name string, columns int, fn func(rec []string) error) error {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = columns

	// Header row.
	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("read %s header: %w", name, err)
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		for i := range rec {
			rec[i] = unescapeField(rec[i])
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// escapeField protects carriage returns from csv.Reader, which folds a
// quoted "\r\n" down to "\n" on read. Backslash is the escape lead-in.
func escapeField(s string) string {
	if !strings.ContainsAny(s, "\\\r") {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "\r", `\r`)
}

func unescapeField(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			if s[i] == 'r' {
				b.WriteByte('\r')
			} else {
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func writeCSVFile(path string, columns []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	for _, row := range rows {
		esc := make([]string, len(row))
		for i, field := range row {
			esc[i] = escapeField(field)
		}
		if err := w.Write(esc); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", filepath.Base(path), err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func decodeBag(table, key, text string) (domain.AttrMap, error) {
	if text == "" {
		return make(domain.AttrMap), nil
	}
	bag, err := domain.DecodeAttrMap(text)
	if err != nil {
		return nil, &domain.MalformedValueError{Table: table, Key: key, Err: err}
	}
	return bag, nil
}

func stringMapRows(m map[string]string) [][]string {
	rows := make([][]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		rows = append(rows, []string{k, m[k]})
	}
	return rows
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
