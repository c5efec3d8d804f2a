// Package domain defines the in-memory ReqIF document graph: the header
// metadata, requirements, spec objects, spec relations, the type
// vocabulary, and the spec hierarchy forest.
//
// The relational schema backing this model declares its foreign keys as
// bare TEXT columns with no constraints, so every referential rule lives
// here instead: relation endpoints and hierarchy references are validated
// on every mutation and by Document.Validate, and all write paths are
// all-or-nothing: validation fully precedes mutation.
package domain
