// Package service orchestrates the import, export, and validation flows:
// codecs on one side, document stores on the other, with the domain
// layer's validation in between.
package service

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/j-rig/reqifio/internal/codec"
	"github.com/j-rig/reqifio/internal/domain"
	"github.com/j-rig/reqifio/internal/repository"
)

// Stats summarizes a processed document.
type Stats struct {
	HeaderEntries  int
	Requirements   int
	SpecObjects    int
	SpecRelations  int
	SpecTypes      int
	HierarchyNodes int
}

func statsFor(doc *domain.Document) Stats {
	return Stats{
		HeaderEntries:  len(doc.Header),
		Requirements:   len(doc.Requirements),
		SpecObjects:    len(doc.SpecObjects),
		SpecRelations:  len(doc.SpecRelations),
		SpecTypes:      len(doc.SpecTypes),
		HierarchyNodes: len(doc.Hierarchy),
	}
}

// DocumentService wires codecs and stores together.
type DocumentService struct {
	log *zap.SugaredLogger
}

// New creates a document service.
func New(log *zap.SugaredLogger) *DocumentService {
	return &DocumentService{log: log}
}

// Convert parses a document from r and saves it into the store. The save
// validates before writing, so an inconsistent input never reaches the
// destination.
func (s *DocumentService) Convert(ctx context.Context, r io.Reader, imp codec.Importer, store repository.Store) (Stats, error) {
	doc, err := imp.Parse(r)
	if err != nil {
		return Stats{}, fmt.Errorf("parse %s input: %w", imp.Format(), err)
	}

	stats := statsFor(doc)
	s.log.Infow("parsed document",
		"format", imp.Format(),
		"requirements", stats.Requirements,
		"spec_objects", stats.SpecObjects,
		"spec_relations", stats.SpecRelations,
		"hierarchy_nodes", stats.HierarchyNodes,
	)

	if err := store.Save(ctx, doc); err != nil {
		return Stats{}, fmt.Errorf("save document: %w", err)
	}
	return stats, nil
}

// Export loads the store's document and writes it through the exporter.
func (s *DocumentService) Export(ctx context.Context, store repository.Store, exp codec.Exporter, w io.Writer) (Stats, error) {
	doc, err := store.Load(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load document: %w", err)
	}

	if err := exp.Export(doc, w); err != nil {
		return Stats{}, fmt.Errorf("export %s: %w", exp.Format(), err)
	}

	stats := statsFor(doc)
	s.log.Infow("exported document", "format", exp.Format(), "spec_objects", stats.SpecObjects)
	return stats, nil
}

// Validate loads the store's document, which runs the full referential
// check, and returns its stats.
func (s *DocumentService) Validate(ctx context.Context, store repository.Store) (Stats, error) {
	doc, err := store.Load(ctx)
	if err != nil {
		return Stats{}, err
	}
	return statsFor(doc), nil
}
