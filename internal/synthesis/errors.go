package synthesis

import (
	"errors"
	"fmt"
)

// Failure kinds. Check them with errors.Is.
var (
	ErrGeneration = errors.New("generation failed")
	ErrNoJSON     = errors.New("no JSON object in response")
	ErrMalformed  = errors.New("response is not a JSON object")
	ErrMissingID  = errors.New("record has no id")
	ErrUnroutable = errors.New("record type is not routable")
	ErrSchema     = errors.New("record violates its schema")
)

// Error represents a synthesis failure of a given kind.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("synthesis error: %v: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("synthesis error: %v: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func newError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}
