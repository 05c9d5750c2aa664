package pii

import "strings"

const mask = "***"

// RedactEmail partially masks an email address, keeping up to two leading
// characters of the local part and the full domain:
//
//	john.doe@example.com -> jo***@example.com
//
// Values that are not of the form <local>@<domain> become EmailToken.
func RedactEmail(value string) string {
	at := strings.LastIndexByte(value, '@')
	if at < 1 {
		return EmailToken
	}
	local, domain := value[:at], value[at:]

	// The kept prefix stops at the mask so an already masked address is
	// returned unchanged.
	keep := 0
	for keep < len(local) && keep < 2 && local[keep] != '*' {
		keep++
	}
	return local[:keep] + mask + domain
}

// RedactPhone keeps only the last four digits of a phone number:
//
//	+1-555-123-4567 -> ***-***-4567
//
// Values with fewer than four digits become PhoneToken.
func RedactPhone(value string) string {
	var digits []byte
	for i := 0; i < len(value); i++ {
		if c := value[i]; c >= '0' && c <= '9' {
			digits = append(digits, c)
		}
	}
	if len(digits) < 4 {
		return PhoneToken
	}
	return "***-***-" + string(digits[len(digits)-4:])
}
