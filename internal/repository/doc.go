// Package repository defines the storage abstraction for ReqIF documents.
//
// The Store interface maps a whole document graph to and from the
// six-table relational layout (header, requirements, spec_objects,
// spec_relations, spec_types, spec_hierarchy). Two implementations exist:
//
//   - sqlite: a single SQLite database file, one table per entity
//   - csv: a directory of CSV files, one file per entity
//
// Both implementations validate the document's referential invariants
// before any row is written and after all rows are read, since the
// relational layout itself declares its foreign keys as bare TEXT columns
// with no constraints. Writes are all-or-nothing on every path.
package repository
