package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField is the cause of a ParsingError for an empty required column.
	ErrMissingField = errors.New("missing required field")

	// ErrIncomplete marks a record whose closing leg never arrived.
	ErrIncomplete = errors.New("incomplete record")

	// ErrStrictAbort is returned when strict policy rejects a batch.
	ErrStrictAbort = errors.New("strict import aborted")
)

// ParsingError reports a row that could not be normalized. It is row scoped:
// the rest of the batch is still processed.
type ParsingError struct {
	Row    int
	Column string
	Cause  error
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("row %d: column %s: %v", e.Row, e.Column, e.Cause)
}

func (e *ParsingError) Unwrap() error { return e.Cause }

// ConflictError reports two legs for one identifier that cannot be merged.
type ConflictError struct {
	ID     string
	Row    int
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s (row %d): %s", e.ID, e.Row, e.Reason)
}

type IssueKind string

const (
	IssueParsing    IssueKind = "parsing"
	IssueConflict   IssueKind = "conflict"
	IssueIncomplete IssueKind = "incomplete"
)

// Issue is one problem found while importing. Issues travel next to the
// records that did import.
type Issue struct {
	Kind IssueKind
	Row  int
	ID   string
	Err  error
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %v", i.Kind, i.Err)
}

// Issues is a list of Issue with counting helpers.
type Issues []Issue

func (is Issues) Count(kind IssueKind) int {
	n := 0
	for _, i := range is {
		if i.Kind == kind {
			n++
		}
	}
	return n
}

// Fatal reports whether strict policy would reject a batch with these issues.
// Parsing issues stay row scoped under both policies.
func (is Issues) Fatal() bool {
	return is.Count(IssueConflict) > 0 || is.Count(IssueIncomplete) > 0
}
