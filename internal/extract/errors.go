package extract

import (
	"errors"
	"fmt"
)

// Per-document failure classes. Every one of these is contained at the
// document boundary: the pipeline logs, skips the document, and continues.
var (
	// ErrTextAbsent means the document yielded insufficient text to extract from
	ErrTextAbsent = errors.New("document text absent or below minimum length")

	// ErrUnparseable means the model response was not valid structured data
	// after cleanup
	ErrUnparseable = errors.New("model response unparseable")
)

// ModelCallError wraps a network/service failure from the model call.
// The raw payload is retained for diagnosis.
type ModelCallError struct {
	Provider string
	Payload  string
	Err      error
}

func (e *ModelCallError) Error() string {
	return fmt.Sprintf("model call failed (%s): %v", e.Provider, e.Err)
}

func (e *ModelCallError) Unwrap() error {
	return e.Err
}
