// Package document defines text extraction from certificate documents.
package document

import "context"

// Extractor extracts plain text from a document file. Unreadable or
// unparsable documents yield "" and a logged warning rather than an error;
// an error means the caller should stop, for example a cancelled context.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}
