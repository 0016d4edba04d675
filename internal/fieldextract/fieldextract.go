// Package fieldextract defines the boundary to the language-model service
// that turns OCR text into structured identity fields, plus the locally owned
// fallback that recognizes address-shaped text when the service cannot.
package fieldextract

import (
	"context"
	"strings"
)

// Canonical field keys.
const (
	KeyName         = "name"
	KeyAddress      = "address"
	KeyDocumentType = "document_type"
	KeyIDNumber     = "id_number"
	KeyDateOfBirth  = "date_of_birth"
)

// Diagnostic keys set when the extractor output could not be parsed. Records
// containing only diagnostic keys carry no usable fields.
const (
	KeyError     = "error"
	KeyRawOutput = "raw_output"
)

// Fields is a structured field map. Absent fields are simply missing; no
// sentinel values are stored. Presence is checked through Lookup.
type Fields map[string]string

// Lookup returns a field value and whether it is present and non-empty.
func (f Fields) Lookup(key string) (string, bool) {
	value, ok := f[key]
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

// FieldExtractor turns document text into a structured field map. It never
// fails outright: when the underlying service or its output is unusable the
// returned map carries only diagnostic keys.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, text, modelHint string) Fields
}

// AddressExtractor pulls the best-effort postal address out of document
// text. It returns the empty string when no address could be determined,
// after the local pattern fallback has been tried.
type AddressExtractor interface {
	ExtractAddress(ctx context.Context, text, modelHint string) string
}

// sentinelValues are strings extraction services emit in place of missing
// data. They are stripped so the field map encodes absence structurally.
var sentinelValues = map[string]bool{
	"":             true,
	"none":         true,
	"n/a":          true,
	"not provided": true,
	"unknown":      true,
}

// isSentinel reports whether a value stands in for missing data.
func isSentinel(value string) bool {
	return sentinelValues[strings.ToLower(strings.TrimSpace(value))]
}
