package fieldextract

import (
	"regexp"
	"strings"
)

// addressLinePattern matches a line that starts with a house or plot number
// and carries street-like vocabulary or a trailing postal code. It is a
// best-effort recognizer for when the extraction service is unavailable, not
// a parser.
var addressLinePattern = regexp.MustCompile(
	`(?i)\b\d+[a-z]?(?:[/-]\d+)*\s+(?:[a-z0-9.'-]+\s+){0,6}` +
		`(?:street|st|road|rd|avenue|ave|lane|ln|drive|dr|nagar|colony|kovil|block|sector|main)\b[^\n]*`,
)

// postalCodePattern matches an Indian PIN or Canadian postal code used to
// extend a recognized address line.
var postalCodePattern = regexp.MustCompile(`(?i)\b(?:[1-9][0-9]{5}|[a-z][0-9][a-z]\s?[0-9][a-z][0-9])\b`)

// addressLabelPattern matches an explicit "Address:" label on a document.
var addressLabelPattern = regexp.MustCompile(`(?i)^\s*address\s*[:\-]\s*(.+)$`)

// RecognizeAddress scans document text for address-shaped content. It
// prefers an explicitly labeled address line, then the first line that looks
// like a street address, pulling in the following line when it carries a
// postal code. Returns the empty string when nothing matches.
func RecognizeAddress(text string) string {
	lines := strings.Split(text, "\n")

	for _, line := range lines {
		if m := addressLabelPattern.FindStringSubmatch(line); m != nil {
			candidate := strings.TrimSpace(m[1])
			if candidate != "" && !isSentinel(candidate) {
				return candidate
			}
		}
	}

	for i, line := range lines {
		match := addressLinePattern.FindString(line)
		if match == "" {
			continue
		}
		address := strings.TrimSpace(match)
		// A postal code on the next line usually belongs to the address.
		if !postalCodePattern.MatchString(address) && i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			if postalCodePattern.MatchString(next) {
				address = address + ", " + next
			}
		}
		return address
	}

	return ""
}
