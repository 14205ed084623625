package document

import "fmt"

// InvalidDocumentError means a document cannot be parsed at all: empty,
// unreadable, or an unsupported format. It is fatal for that document only.
type InvalidDocumentError struct {
	Name   string
	Reason string
}

func (e *InvalidDocumentError) Error() string {
	return fmt.Sprintf("invalid document %q: %s", e.Name, e.Reason)
}

// SourceUnavailableError means input acquisition failed before the document
// bytes could be read. Treated like InvalidDocumentError for scheduling.
type SourceUnavailableError struct {
	Ref string
	Err error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source unavailable %q: %v", e.Ref, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}
