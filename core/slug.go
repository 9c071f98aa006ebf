package core

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrSlugExhausted is returned when no free slug could be found within maxSlugAttempts.
var ErrSlugExhausted = errors.New("could not generate a unique slug")

const maxSlugAttempts = 10000

// strips combining marks left over after NFD decomposition ("Café" -> "Cafe")
var marksRemover = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify normalizes `s` into a lowercase, hyphen-separated, ASCII-safe slug:
// diacritics are folded, runs of non-alphanumeric characters collapse into a
// single hyphen and leading/trailing hyphens are trimmed.
// May return an empty string if `s` contains nothing slugifiable.
func Slugify(s string) string {
	if folded, _, err := transform.String(marksRemover, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	pendingHyphen := false
	for _, r := range s {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingHyphen = b.Len() > 0
			continue
		}
		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// AssignSlug derives a slug from `title` that is unique per the caller-supplied
// `exists` check and never exceeds `maxLen` bytes, the width of the slug
// column it will be persisted into. When `title` slugifies to nothing,
// `fallback` is used as the base. On collision a counter suffix is appended
// ("base-1", "base-2", ...), trimming the base as needed so the suffixed
// candidate still fits within `maxLen`.
//
// The result is only as fresh as the `exists` check: two concurrent creations
// may both pass it, so the storage layer must still enforce a unique index and
// callers should retry on a conflict.
func AssignSlug(title, fallback string, maxLen int, exists func(candidate string) bool) (string, error) {
	base := Slugify(title)
	if base == "" {
		base = fallback
	}

	candidate := trimSlug(base, maxLen)
	for counter := 1; exists(candidate); counter++ {
		if counter > maxSlugAttempts {
			return "", ErrSlugExhausted
		}
		suffix := "-" + strconv.Itoa(counter)
		candidate = trimSlug(base, maxLen-len(suffix)) + suffix
	}
	return candidate, nil
}

// trimSlug caps `s` at `max` bytes and drops any hyphen left dangling at the cut.
func trimSlug(s string, max int) string {
	if max < 1 {
		max = 1
	}
	if len(s) <= max {
		return s
	}
	return strings.TrimRight(Truncate(s, max), "-")
}
