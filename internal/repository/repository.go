package repository

import (
	"context"

	"github.com/j-rig/reqifio/internal/domain"
)

// Store is the bidirectional mapping between an in-memory document and a
// persisted six-table layout.
type Store interface {
	// Load reads all six tables and returns a fully validated document.
	// No partial document is ever returned: a dangling reference fails
	// with domain.ReferentialIntegrityError and an undecodable attribute
	// bag fails with domain.MalformedValueError.
	Load(ctx context.Context) (*domain.Document, error)

	// Save validates the document and then replaces the destination's
	// contents with it. The destination is unchanged on failure.
	Save(ctx context.Context, doc *domain.Document) error

	// Close releases the backing resource.
	Close() error
}
