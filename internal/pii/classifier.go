// Package pii removes personally identifiable information from telemetry
// events before they leave the process. Field names are classified against a
// fixed pattern table, known event sections get section-specific treatment,
// and free text is scrubbed for email addresses and phone numbers.
package pii

import "regexp"

// Redaction tokens substituted for PII values.
const (
	RedactedToken = "[Redacted]"
	EmailToken    = "[Email]"
	PhoneToken    = "[Phone]"
	MaxDepthToken = "[Max Depth Reached]"
)

// fieldPatterns is the audit table for PII-bearing field names. A field is
// PII when any pattern matches anywhere in its name.
var fieldPatterns = []struct {
	group   string
	pattern *regexp.Regexp
}{
	{"email", regexp.MustCompile(`(?i)email`)},
	{"email", regexp.MustCompile(`(?i)e[-_]?mail`)},
	{"email", regexp.MustCompile(`(?i)mail[-_]?address`)},

	{"phone", regexp.MustCompile(`(?i)phone`)},
	{"phone", regexp.MustCompile(`(?i)tel`)},
	{"phone", regexp.MustCompile(`(?i)mobile`)},
	{"phone", regexp.MustCompile(`(?i)cell`)},
	{"phone", regexp.MustCompile(`(?i)fax`)},

	{"address", regexp.MustCompile(`(?i)address`)},
	{"address", regexp.MustCompile(`(?i)street`)},
	{"address", regexp.MustCompile(`(?i)city`)},
	{"address", regexp.MustCompile(`(?i)state`)},
	{"address", regexp.MustCompile(`(?i)zip`)},
	{"address", regexp.MustCompile(`(?i)postal`)},
	{"address", regexp.MustCompile(`(?i)country`)},

	{"name", regexp.MustCompile(`(?i)first[-_]?name`)},
	{"name", regexp.MustCompile(`(?i)last[-_]?name`)},
	{"name", regexp.MustCompile(`(?i)full[-_]?name`)},
	{"name", regexp.MustCompile(`(?i)display[-_]?name`)},

	{"auth", regexp.MustCompile(`(?i)password`)},
	{"auth", regexp.MustCompile(`(?i)passwd`)},
	{"auth", regexp.MustCompile(`(?i)pwd`)},
	{"auth", regexp.MustCompile(`(?i)secret`)},
	{"auth", regexp.MustCompile(`(?i)token`)},
	{"auth", regexp.MustCompile(`(?i)api[-_]?key`)},
	{"auth", regexp.MustCompile(`(?i)access[-_]?token`)},
	{"auth", regexp.MustCompile(`(?i)refresh[-_]?token`)},
	{"auth", regexp.MustCompile(`(?i)auth`)},

	{"financial", regexp.MustCompile(`(?i)credit[-_]?card`)},
	{"financial", regexp.MustCompile(`(?i)card[-_]?number`)},
	{"financial", regexp.MustCompile(`(?i)cvv`)},
	{"financial", regexp.MustCompile(`(?i)ssn`)},
	{"financial", regexp.MustCompile(`(?i)social[-_]?security`)},
	{"financial", regexp.MustCompile(`(?i)bank[-_]?account`)},
}

// IsField reports whether a field or key name carries PII.
func IsField(name string) bool {
	return fieldGroup(name) != ""
}

// fieldGroup returns the vocabulary group of the first matching pattern, or
// "" when the name is not PII.
func fieldGroup(name string) string {
	for _, fp := range fieldPatterns {
		if fp.pattern.MatchString(name) {
			return fp.group
		}
	}
	return ""
}
