package album

import "strings"

// Sanitize maps a user supplied album name onto a valid container name.
// Every rune outside [A-Za-z0-9] becomes a single '-'. Runs are not collapsed.
func Sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if isAlphaNumeric(r) {
			return r
		}
		return '-'
	}, name)
}

func isAlphaNumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
