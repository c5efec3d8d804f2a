package domain

import "fmt"

// ReferentialIntegrityError reports a reference whose target key does not
// exist, or a delete that would leave dangling references behind.
type ReferentialIntegrityError struct {
	Table  string // table holding the offending row
	Key    string // primary key of the offending row
	Ref    string // the missing or still-referenced key
	Reason string
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("referential integrity: %s[%s] -> %q: %s", e.Table, e.Key, e.Ref, e.Reason)
}

// CycleError reports a hierarchy mutation that would make a node its own
// ancestor.
type CycleError struct {
	HierID   string
	ParentID string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("hierarchy cycle: node %q cannot be parented under %q", e.HierID, e.ParentID)
}

// MalformedValueError reports an attribute bag column that could not be
// decoded back into a mapping.
type MalformedValueError struct {
	Table string
	Key   string
	Err   error
}

func (e *MalformedValueError) Error() string {
	return fmt.Sprintf("malformed value: %s[%s]: %v", e.Table, e.Key, e.Err)
}

func (e *MalformedValueError) Unwrap() error {
	return e.Err
}

// DuplicateKeyError reports an insert targeting an already-used primary key.
type DuplicateKeyError struct {
	Table string
	Key   string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key: %s[%s] already exists", e.Table, e.Key)
}
