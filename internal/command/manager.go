package command

import "errors"

// Stack state sentinels.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Manager keeps undo/redo stacks of executed commands. A fresh edit
// clears the redo stack, matching the usual editor behavior.
type Manager struct {
	undo []Command
	redo []Command
}

// NewManager creates an empty command manager.
func NewManager() *Manager {
	return &Manager{}
}

// Execute runs a command and pushes it onto the undo stack. A failed
// command is not recorded.
func (m *Manager) Execute(cmd Command) error {
	if err := cmd.Execute(); err != nil {
		return err
	}
	m.undo = append(m.undo, cmd)
	m.redo = nil
	return nil
}

// Undo reverts the most recent command.
func (m *Manager) Undo() error {
	if len(m.undo) == 0 {
		return ErrNothingToUndo
	}
	cmd := m.undo[len(m.undo)-1]
	if err := cmd.Undo(); err != nil {
		return err
	}
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, cmd)
	return nil
}

// Redo re-applies the most recently undone command.
func (m *Manager) Redo() error {
	if len(m.redo) == 0 {
		return ErrNothingToRedo
	}
	cmd := m.redo[len(m.redo)-1]
	if err := cmd.Execute(); err != nil {
		return err
	}
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = append(m.undo, cmd)
	return nil
}

// CanUndo reports whether an undoable command is available.
func (m *Manager) CanUndo() bool {
	return len(m.undo) > 0
}

// CanRedo reports whether a redoable command is available.
func (m *Manager) CanRedo() bool {
	return len(m.redo) > 0
}
