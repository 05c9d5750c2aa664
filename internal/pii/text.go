package pii

import (
	"regexp"
	"strings"

	"github.com/andersoncleaning/telemetry/internal/event"
)

// sensitiveQueryParams are query parameter names whose values are replaced.
var sensitiveQueryParams = []string{
	"email",
	"phone",
	"tel",
	"token",
	"key",
	"secret",
	"password",
	"apikey",
	"api_key",
	"access_token",
	"refresh_token",
}

// sensitiveHeaders are HTTP header names (lower case) whose values are replaced.
var sensitiveHeaders = map[string]bool{
	"authorization":  true,
	"cookie":         true,
	"set-cookie":     true,
	"x-api-key":      true,
	"x-auth-token":   true,
	"x-access-token": true,
	"x-csrf-token":   true,
}

var queryParamPatterns = compileQueryPatterns(sensitiveQueryParams)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)
)

func compileQueryPatterns(names []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(names))
	for i, name := range names {
		out[i] = regexp.MustCompile(`(?i)(` + regexp.QuoteMeta(name) + `)=([^&]+)`)
	}
	return out
}

// ScrubQueryString replaces the values of sensitive parameters in a raw
// query string, leaving every other parameter untouched.
func ScrubQueryString(raw string) string {
	if raw == "" {
		return raw
	}
	scrubbed := raw
	for _, re := range queryParamPatterns {
		scrubbed = re.ReplaceAllString(scrubbed, "${1}="+RedactedToken)
	}
	return scrubbed
}

// ScrubHeaders returns a copy of headers with sensitive header values
// replaced. Header names are matched case-insensitively. A nil map yields an
// empty one.
func ScrubHeaders(headers event.Map) event.Map {
	out := make(event.Map, len(headers))
	for i, f := range headers {
		out[i] = f
		if IsSensitiveHeader(f.Key) {
			out[i].Value = event.String(RedactedToken)
		}
	}
	return out
}

// IsSensitiveHeader reports whether an HTTP header carries credentials.
func IsSensitiveHeader(name string) bool {
	return sensitiveHeaders[strings.ToLower(name)]
}

// scrubHeaderPairs handles the [[name, value], ...] header form. Entries of
// any other shape pass through.
func scrubHeaderPairs(pairs event.List) event.List {
	out := make(event.List, len(pairs))
	for i, item := range pairs {
		out[i] = item
		pair, ok := item.(event.List)
		if !ok || len(pair) != 2 {
			continue
		}
		name, ok := pair[0].(event.String)
		if !ok || !IsSensitiveHeader(string(name)) {
			continue
		}
		out[i] = event.List{name, event.String(RedactedToken)}
	}
	return out
}

// ScrubFreeText replaces email addresses and phone numbers found anywhere in
// prose such as exception messages.
func ScrubFreeText(message string) string {
	message = emailPattern.ReplaceAllString(message, EmailToken)
	return phonePattern.ReplaceAllString(message, PhoneToken)
}
