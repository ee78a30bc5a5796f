package models

import (
	"strings"
)

// IdentifierType classifies how a book is keyed in the progress cache and in
// catalog lookups. The priority ordering is fixed: ASIN > ISBN > title/author.
type IdentifierType string

const (
	IdentifierASIN        IdentifierType = "asin"
	IdentifierISBN        IdentifierType = "isbn"
	IdentifierTitleAuthor IdentifierType = "title_author"
)

// Identifier is the closed identifier variant used by both the lookup and
// storage paths. Exactly one canonical identifier is derived per library item
// so the two call sites can never drift apart.
type Identifier struct {
	Type  IdentifierType `json:"type"`
	Value string         `json:"value"`
}

// Priority returns the ordinal rank of the identifier type, lower is better.
func (i Identifier) Priority() int {
	switch i.Type {
	case IdentifierASIN:
		return 0
	case IdentifierISBN:
		return 1
	default:
		return 2
	}
}

// BestIdentifier derives the canonical identifier for a library item using the
// fixed priority ASIN > ISBN-13 > ISBN-10 > synthetic title/author key.
func BestIdentifier(item *LibraryItem) Identifier {
	if item != nil {
		if asin := strings.TrimSpace(item.Identifiers.ASIN); asin != "" {
			return Identifier{Type: IdentifierASIN, Value: asin}
		}
		if isbn := strings.TrimSpace(item.Identifiers.ISBN13); isbn != "" {
			return Identifier{Type: IdentifierISBN, Value: isbn}
		}
		if isbn := strings.TrimSpace(item.Identifiers.ISBN10); isbn != "" {
			return Identifier{Type: IdentifierISBN, Value: isbn}
		}
		return Identifier{Type: IdentifierTitleAuthor, Value: TitleAuthorKey(item.Title, item.Author)}
	}
	return Identifier{Type: IdentifierTitleAuthor, Value: TitleAuthorKey("", "")}
}

// TitleAuthorKey produces the deterministic fallback key for books without a
// usable ASIN or ISBN. Both parts are lower-cased and stripped to an
// alphanumeric alphabet, then joined with a single ':'. A missing title or
// author normalizes to the literal token "unknown", so the degenerate key is
// always "unknown:unknown".
func TitleAuthorKey(title, author string) string {
	return normalizeKeyPart(title) + ":" + normalizeKeyPart(author)
}

func normalizeKeyPart(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
