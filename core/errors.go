package core

import "fmt"

// ErrNotFound reports that an Update/Delete/FindByID targeted a document
// id that does not exist. Distinct from ErrOptimisticLock: this means the
// row is simply gone (or never existed), not that it exists under a
// different _vers.
type ErrNotFound struct {
	ID string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("core: document not found: %s", e.ID)
}

// ErrOptimisticLock reports that an Update's filter pinned a _vers value
// that no longer matches the stored document, while the document itself
// still exists under a different version — the disambiguating existence
// check against ErrNotFound happens in Model.resolveUpdateOutcome.
type ErrOptimisticLock struct {
	Expected int64
	Actual   int64
}

func (e *ErrOptimisticLock) Error() string {
	return fmt.Sprintf("core: document version mismatch: expected %d, actual %d", e.Expected, e.Actual)
}

// ErrValidationFailed aggregates per-field errors raised by a
// PreInsert/PreUpdate hook before any SQL is issued.
type ErrValidationFailed struct {
	Fields map[string]error
}

func (e *ErrValidationFailed) Error() string {
	return fmt.Sprintf("core: validation failed for %d field(s)", len(e.Fields))
}

// ErrInvalidOperand mirrors compiler.InvalidOperandError at the model
// layer, for shape checks the model performs before a filter/update ever
// reaches the compiler (e.g. a malformed reference id on Populate).
type ErrInvalidOperand struct {
	Operator string
	Reason   string
}

func (e *ErrInvalidOperand) Error() string {
	return "core: invalid operand for " + e.Operator + ": " + e.Reason
}

// ErrEmptyDestructive guards Remove(empty filter) and
// UpdateOne/UpdateMany(empty filter): a hard error, the statement is
// never issued.
type ErrEmptyDestructive struct {
	Op string
}

func (e *ErrEmptyDestructive) Error() string {
	return "core: refusing " + e.Op + " with an empty filter"
}
