// Package codec provides interchange formats for whole documents: the
// flat REQ-IF XML dialect and a JSON representation. Codecs are lenient
// on structure and strict on values: referential validation belongs to
// the stores and the domain layer, not to parsing.
package codec

import (
	"io"

	"github.com/j-rig/reqifio/internal/domain"
)

// Importer parses a serialized document from a reader.
type Importer interface {
	Parse(r io.Reader) (*domain.Document, error)
	Format() string
}

// Exporter writes a document to a writer.
type Exporter interface {
	Export(doc *domain.Document, w io.Writer) error
	Format() string
}
