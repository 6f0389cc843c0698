package yt

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned when an index or length falls outside the
	// current text, or splits a UTF-8 encoded code point.
	ErrOutOfRange = errors.New("index out of range")
	// ErrAlreadyIntegrated is returned when attaching a text that already
	// belongs to a document.
	ErrAlreadyIntegrated = errors.New("text is already integrated")
	// ErrPrelimObserve is returned when observing a text that has not been
	// attached to a document yet.
	ErrPrelimObserve = errors.New("cannot observe a preliminary text, attach it to a doc first")
	ErrNameTaken     = errors.New("root name already in use")

	ErrTransactionOpen    = errors.New("a transaction is already open on this doc")
	ErrTransactionClosed  = errors.New("transaction is not open")
	ErrForeignTransaction = errors.New("transaction belongs to another doc")

	// ErrMergeInconsistency is returned when an update references content
	// this doc has never seen, i.e. causal delivery was violated.
	ErrMergeInconsistency = errors.New("update references unknown content")
)

func rangeError(format string, v ...any) error {
	return fmt.Errorf("%w: %s", ErrOutOfRange, fmt.Sprintf(format, v...))
}

func invariant(b bool, v ...any) {
	if !b {
		panic(fmt.Sprint(v...))
	}
}
