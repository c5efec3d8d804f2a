package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/j-rig/reqifio/internal/domain"

	_ "modernc.org/sqlite"
)

// Store implements repository.Store over a SQLite database file.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the six-table
// schema exists. Use ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows one writer; a single pooled connection also keeps
	// ":memory:" databases from splitting across connections.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return s, nil
}

// migrate creates the schema. The columns are bare TEXT on purpose: the
// layout mirrors the interchange schema exactly, and every referential
// rule is enforced in the domain layer rather than by the engine.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS header (
		key TEXT PRIMARY KEY,
		the_value TEXT
	);

	CREATE TABLE IF NOT EXISTS requirements (
		req_id TEXT PRIMARY KEY,
		title TEXT,
		description TEXT
	);

	CREATE TABLE IF NOT EXISTS spec_objects (
		spec_id TEXT PRIMARY KEY,
		type TEXT,
		the_values TEXT
	);

	CREATE TABLE IF NOT EXISTS spec_relations (
		relation_id TEXT PRIMARY KEY,
		source_id TEXT,
		target_id TEXT,
		relation_type TEXT,
		properties TEXT
	);

	CREATE TABLE IF NOT EXISTS spec_types (
		type_key TEXT PRIMARY KEY,
		type_value TEXT
	);

	CREATE TABLE IF NOT EXISTS spec_hierarchy (
		hier_id TEXT PRIMARY KEY,
		object_id TEXT,
		parent_hier_id TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Load reads all six tables into a document and validates it. No partial
// document is returned: any dangling reference or undecodable attribute
// bag fails the whole load.
func (s *Store) Load(ctx context.Context) (*domain.Document, error) {
	doc := domain.NewDocument()

	if err := s.loadHeader(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.loadRequirements(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.loadSpecObjects(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.loadSpecRelations(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.loadSpecTypes(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.loadHierarchy(ctx, doc); err != nil {
		return nil, err
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) loadHeader(ctx context.Context, doc *domain.Document) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key, the_value FROM header`)
	if err != nil {
		return fmt.Errorf("query header: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value sql.NullString
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("scan header: %w", err)
		}
		doc.Header[key] = nullToString(value)
	}
	return rows.Err()
}

func (s *Store) loadRequirements(ctx context.Context, doc *domain.Document) error {
	rows, err := s.db.QueryContext(ctx, `SELECT req_id, title, description FROM requirements`)
	if err != nil {
		return fmt.Errorf("query requirements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reqID string
		var title, description sql.NullString
		if err := rows.Scan(&reqID, &title, &description); err != nil {
			return fmt.Errorf("scan requirement: %w", err)
		}
		doc.Requirements[reqID] = &domain.Requirement{
			ReqID:       reqID,
			Title:       nullToString(title),
			Description: nullToString(description),
		}
	}
	return rows.Err()
}

func (s *Store) loadSpecObjects(ctx context.Context, doc *domain.Document) error {
	rows, err := s.db.QueryContext(ctx, `SELECT spec_id, type, the_values FROM spec_objects`)
	if err != nil {
		return fmt.Errorf("query spec_objects: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var specID string
		var objType, values sql.NullString
		if err := rows.Scan(&specID, &objType, &values); err != nil {
			return fmt.Errorf("scan spec object: %w", err)
		}
		bag, err := decodeBag(domain.TableSpecObjects, specID, values)
		if err != nil {
			return err
		}
		doc.SpecObjects[specID] = &domain.SpecObject{
			SpecID: specID,
			Type:   nullToString(objType),
			Values: bag,
		}
	}
	return rows.Err()
}

func (s *Store) loadSpecRelations(ctx context.Context, doc *domain.Document) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT relation_id, source_id, target_id, relation_type, properties
		FROM spec_relations
	`)
	if err != nil {
		return fmt.Errorf("query spec_relations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var relationID string
		var sourceID, targetID, relationType, properties sql.NullString
		if err := rows.Scan(&relationID, &sourceID, &targetID, &relationType, &properties); err != nil {
			return fmt.Errorf("scan spec relation: %w", err)
		}
		bag, err := decodeBag(domain.TableSpecRelations, relationID, properties)
		if err != nil {
			return err
		}
		doc.SpecRelations[relationID] = &domain.SpecRelation{
			RelationID:   relationID,
			SourceID:     nullToString(sourceID),
			TargetID:     nullToString(targetID),
			RelationType: nullToString(relationType),
			Properties:   bag,
		}
	}
	return rows.Err()
}

func (s *Store) loadSpecTypes(ctx context.Context, doc *domain.Document) error {
	rows, err := s.db.QueryContext(ctx, `SELECT type_key, type_value FROM spec_types`)
	if err != nil {
		return fmt.Errorf("query spec_types: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value sql.NullString
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("scan spec type: %w", err)
		}
		doc.SpecTypes[key] = nullToString(value)
	}
	return rows.Err()
}

func (s *Store) loadHierarchy(ctx context.Context, doc *domain.Document) error {
	rows, err := s.db.QueryContext(ctx, `SELECT hier_id, object_id, parent_hier_id FROM spec_hierarchy`)
	if err != nil {
		return fmt.Errorf("query spec_hierarchy: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hierID string
		var objectID, parentHierID sql.NullString
		if err := rows.Scan(&hierID, &objectID, &parentHierID); err != nil {
			return fmt.Errorf("scan hierarchy node: %w", err)
		}
		doc.Hierarchy[hierID] = &domain.SpecHierarchy{
			HierID:       hierID,
			ObjectID:     nullToString(objectID),
			ParentHierID: nullToString(parentHierID),
		}
	}
	return rows.Err()
}

// Save validates the document and then replaces the database contents with
// it in one transaction. The database is unchanged on failure: validation
// and attribute-bag encoding both happen before the first DELETE, and any
// later error rolls the transaction back.
func (s *Store) Save(ctx context.Context, doc *domain.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	objectBags, err := encodeSpecObjects(doc)
	if err != nil {
		return err
	}
	relationBags, err := encodeSpecRelations(doc)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{
		domain.TableHeader,
		domain.TableRequirements,
		domain.TableSpecObjects,
		domain.TableSpecRelations,
		domain.TableSpecTypes,
		domain.TableSpecHierarchy,
	} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := insertHeader(ctx, tx, doc); err != nil {
		return err
	}
	if err := insertRequirements(ctx, tx, doc); err != nil {
		return err
	}
	if err := insertSpecObjects(ctx, tx, doc, objectBags); err != nil {
		return err
	}
	if err := insertSpecRelations(ctx, tx, doc, relationBags); err != nil {
		return err
	}
	if err := insertSpecTypes(ctx, tx, doc); err != nil {
		return err
	}
	if err := insertHierarchy(ctx, tx, doc); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
