package provision

import "strings"

// doubleQuoteEscaper escapes the characters that stay special inside a POSIX
// double-quoted string. The replacer works in a single pass, so an inserted
// backslash is never escaped a second time.
var doubleQuoteEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`$`, `\$`,
	"`", "\\`",
)

// EscapeDouble escapes s for embedding between double quotes in a POSIX shell.
func EscapeDouble(s string) string {
	return doubleQuoteEscaper.Replace(s)
}

// QuoteDouble returns s as a single double-quoted shell word.
func QuoteDouble(s string) string {
	return `"` + EscapeDouble(s) + `"`
}

// shellSpecial lists the characters that make an unquoted word unsafe.
const shellSpecial = " \t\n\r\"'`$\\;&|<>()*?[]{}#~!"

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, shellSpecial) {
		return QuoteDouble(s)
	}

	return s
}
