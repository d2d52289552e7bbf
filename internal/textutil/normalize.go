package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fold applies NFKC normalization and Unicode case folding.
// cases.Caser is stateful, so a fresh one is taken per call.
func Fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

// Prepare trims s, normalizes it to NFKC and case-folds it unless
// caseSensitive is set.
func Prepare(s string, caseSensitive bool) string {
	s = strings.TrimSpace(s)
	if caseSensitive {
		return norm.NFKC.String(s)
	}
	return Fold(s)
}

// Identifier turns a free-text variable name into a snake_case-like key:
// runs of whitespace and the separators - . / collapse into a single
// underscore and surrounding underscores are trimmed. "Donor ID" becomes
// "donor_id" when case folding is on.
func Identifier(s string, caseSensitive bool) string {
	s = Prepare(s, caseSensitive)
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		if unicode.IsSpace(r) || r == '_' || r == '-' || r == '.' || r == '/' {
			pendingSep = true
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingSep = false
		b.WriteRune(r)
	}
	return b.String()
}
