package identity

import (
	"strings"
	"unicode"

	"screenlist/pkg/domain"
)

// Normalize maps a raw title to its canonical key.
//
// Rule, applied in order:
//  1. lower-case (unicode.ToLower, locale independent)
//  2. whitespace runes and '_' become a space
//  3. anything that is not a letter, digit, space or '-' is dropped
//  4. runs of spaces collapse to one, then the result is trimmed
//
// Keys are persisted, so this rule must not change between releases.
func Normalize(raw string) domain.CanonicalKey {
	var b strings.Builder
	b.Grow(len(raw))

	pendingSpace := false
	for _, r := range raw {
		r = unicode.ToLower(r)
		switch {
		case unicode.IsSpace(r) || r == '_':
			pendingSpace = true
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-':
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		}
	}

	return domain.CanonicalKey(b.String())
}

// Anchor returns the HTML id for a key. Normalize never emits '_', so mapping
// spaces to it keeps distinct keys on distinct ids; the empty key maps to "_".
func Anchor(key domain.CanonicalKey) string {
	if key == "" {
		return "_"
	}
	return strings.ReplaceAll(string(key), " ", "_")
}

// KeyOf returns the canonical key of a listing item, derived from its search name
func KeyOf(item domain.RawItem) domain.CanonicalKey {
	return Normalize(item.SearchName())
}
