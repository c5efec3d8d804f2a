// Package command implements undoable edit operations over a document.
// Each command validates through the document's own mutation methods, so
// a failed Execute never leaves a half-applied edit, and Undo restores
// the exact prior state from a captured copy.
package command

import (
	"github.com/j-rig/reqifio/internal/domain"
)

// Command is a single reversible document edit.
type Command interface {
	Execute() error
	Undo() error
}

// AddRequirement inserts a new requirement; the insert fails if the key
// is already taken.
type AddRequirement struct {
	Doc *domain.Document
	Req *domain.Requirement
}

func (c *AddRequirement) Execute() error {
	return c.Doc.AddRequirement(c.Req)
}

func (c *AddRequirement) Undo() error {
	c.Doc.DeleteRequirement(c.Req.ReqID)
	return nil
}

// RemoveRequirement deletes a requirement, remembering it for Undo.
type RemoveRequirement struct {
	Doc   *domain.Document
	ReqID string

	removed *domain.Requirement
}

func (c *RemoveRequirement) Execute() error {
	req, ok := c.Doc.Requirements[c.ReqID]
	if !ok {
		return &domain.ReferentialIntegrityError{
			Table: domain.TableRequirements, Key: c.ReqID, Ref: c.ReqID,
			Reason: "requirement does not exist",
		}
	}
	c.removed = req.Clone()
	c.Doc.DeleteRequirement(c.ReqID)
	return nil
}

func (c *RemoveRequirement) Undo() error {
	if c.removed == nil {
		return nil
	}
	return c.Doc.UpsertRequirement(c.removed)
}

// UpdateRequirement changes the title and/or description of a
// requirement. Nil fields are left untouched.
type UpdateRequirement struct {
	Doc            *domain.Document
	ReqID          string
	NewTitle       *string
	NewDescription *string

	old *domain.Requirement
}

func (c *UpdateRequirement) Execute() error {
	req, ok := c.Doc.Requirements[c.ReqID]
	if !ok {
		return &domain.ReferentialIntegrityError{
			Table: domain.TableRequirements, Key: c.ReqID, Ref: c.ReqID,
			Reason: "requirement does not exist",
		}
	}
	c.old = req.Clone()
	if c.NewTitle != nil {
		req.Title = *c.NewTitle
	}
	if c.NewDescription != nil {
		req.Description = *c.NewDescription
	}
	return nil
}

func (c *UpdateRequirement) Undo() error {
	if c.old == nil {
		return nil
	}
	return c.Doc.UpsertRequirement(c.old)
}

// UpsertSpecObject inserts or replaces a spec object, remembering any
// replaced value for Undo.
type UpsertSpecObject struct {
	Doc *domain.Document
	Obj *domain.SpecObject

	replaced *domain.SpecObject
	existed  bool
}

func (c *UpsertSpecObject) Execute() error {
	if prev, ok := c.Doc.SpecObjects[c.Obj.SpecID]; ok {
		c.replaced = prev.Clone()
		c.existed = true
	}
	return c.Doc.UpsertSpecObject(c.Obj)
}

func (c *UpsertSpecObject) Undo() error {
	if c.existed {
		return c.Doc.UpsertSpecObject(c.replaced)
	}
	return c.Doc.DeleteSpecObject(c.Obj.SpecID)
}

// DeleteSpecObject removes a spec object. Execute fails while relations
// or hierarchy nodes still reference the object.
type DeleteSpecObject struct {
	Doc    *domain.Document
	SpecID string

	removed *domain.SpecObject
}

func (c *DeleteSpecObject) Execute() error {
	prev, ok := c.Doc.SpecObjects[c.SpecID]
	if ok {
		c.removed = prev.Clone()
	}
	return c.Doc.DeleteSpecObject(c.SpecID)
}

func (c *DeleteSpecObject) Undo() error {
	if c.removed == nil {
		return nil
	}
	return c.Doc.UpsertSpecObject(c.removed)
}

// Reparent moves a hierarchy node under a new parent, remembering the old
// parent for Undo. Execute fails with domain.CycleError if the move would
// make the node its own ancestor.
type Reparent struct {
	Doc         *domain.Document
	HierID      string
	NewParentID string

	oldParentID string
	applied     bool
}

func (c *Reparent) Execute() error {
	node, ok := c.Doc.Hierarchy[c.HierID]
	if ok {
		c.oldParentID = node.ParentHierID
	}
	if err := c.Doc.Reparent(c.HierID, c.NewParentID); err != nil {
		return err
	}
	c.applied = true
	return nil
}

func (c *Reparent) Undo() error {
	if !c.applied {
		return nil
	}
	return c.Doc.Reparent(c.HierID, c.oldParentID)
}
