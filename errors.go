package csdl

import (
	"errors"
	"fmt"

	"github.com/nlstn/go-csdl/edm"
)

// Sentinel errors. A *ParseError matches ErrNotCSDL with errors.Is.
var (
	ErrNotCSDL       = errors.New("not a CSDL document")
	ErrUnknownFormat = errors.New("unknown document format")
	ErrEmptyDocument = errors.New("empty document")
)

// ParseError reports input from which no model could be produced: the document is not
// well-formed, has the wrong root, or is neither XML nor JSON. Errors holds every problem
// collected before reading stopped.
type ParseError struct {
	Source string
	Errors edm.Errors
	Err    error
}

func (e *ParseError) Error() string {
	msg := "failed to parse CSDL document"
	if e.Source != "" {
		msg += " " + e.Source
	}
	msg = fmt.Sprintf("%s: %v", msg, e.Err)
	if len(e.Errors) > 0 {
		msg += " (" + e.Errors.Error() + ")"
	}
	return msg
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrNotCSDL, e.Err}
}
