// Package textextract defines the boundary to the external OCR service that
// turns raw document bytes into text.
package textextract

import (
	"context"
	"fmt"
)

// Extractor is the OCR collaborator contract. Implementations must be
// bounded: they return extracted text, an ExtractionError, or a timeout
// ExtractionError, never blocking indefinitely.
type Extractor interface {
	ExtractText(ctx context.Context, document []byte, contentType string) (string, error)
}

// ExtractionError reports a failed OCR attempt: decode failure, persistent
// service unavailability, or a job that took too long.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("text extraction failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("text extraction failed: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
