package recorder

import "strings"

// defaultLabel is used when sanitization leaves nothing usable.
const defaultLabel = "clip"

// SanitizeLabel derives a filename-safe token from operator-supplied text.
// Every rune that is not alphanumeric, '-' or '_' becomes '_', and leading
// and trailing underscores are trimmed. An empty result maps to the
// default token, so a label can never escape the output directory or
// produce a hidden file.
func SanitizeLabel(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	safe := strings.Trim(b.String(), "_")
	if safe == "" {
		return defaultLabel
	}
	return safe
}
