// Package envexpr expands ${env.KEY} references in configuration text.
package envexpr

import (
	"os"
	"strings"
	"unicode"
)

const prefix = "${env."

// LookupFunc resolves a variable; tests override it.
var LookupFunc = os.Getenv

// Expand replaces every ${env.KEY} with the value of KEY, empty when unset.
// References with characters other than letters, digits or '_' are kept as is.
func Expand(text string) string {
	if !strings.Contains(text, prefix) {
		return text
	}
	var b strings.Builder
	for {
		idx := strings.Index(text, prefix)
		if idx < 0 {
			b.WriteString(text)
			return b.String()
		}
		b.WriteString(text[:idx])
		rest := text[idx+len(prefix):]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			b.WriteString(text[idx:])
			return b.String()
		}
		key := rest[:end]
		if !isKey(key) {
			// keep the prefix, rescan what follows for nested references
			b.WriteString(prefix)
			text = rest
			continue
		}
		b.WriteString(LookupFunc(key))
		text = rest[end+1:]
	}
}

func isKey(key string) bool {
	for _, r := range key {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return false
		}
	}
	return true
}
