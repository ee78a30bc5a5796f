package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBestIdentifierPriority(t *testing.T) {
	tests := []struct {
		name     string
		item     LibraryItem
		expected Identifier
	}{
		{
			name: "asin wins over both isbns",
			item: LibraryItem{
				Title:       "Project Hail Mary",
				Author:      "Andy Weir",
				Identifiers: Identifiers{ASIN: "B08G9PRS1K", ISBN13: "9780593135204", ISBN10: "0593135202"},
			},
			expected: Identifier{Type: IdentifierASIN, Value: "B08G9PRS1K"},
		},
		{
			name: "isbn13 wins over isbn10",
			item: LibraryItem{
				Title:       "Project Hail Mary",
				Identifiers: Identifiers{ISBN13: "9780593135204", ISBN10: "0593135202"},
			},
			expected: Identifier{Type: IdentifierISBN, Value: "9780593135204"},
		},
		{
			name: "isbn10 used when alone",
			item: LibraryItem{
				Identifiers: Identifiers{ISBN10: "0593135202"},
			},
			expected: Identifier{Type: IdentifierISBN, Value: "0593135202"},
		},
		{
			name: "title author fallback",
			item: LibraryItem{
				Title:  "Project Hail Mary",
				Author: "Andy Weir",
			},
			expected: Identifier{Type: IdentifierTitleAuthor, Value: "projecthailmary:andyweir"},
		},
		{
			name: "whitespace-only asin falls through",
			item: LibraryItem{
				Title:       "Project Hail Mary",
				Identifiers: Identifiers{ASIN: "   ", ISBN13: "9780593135204"},
			},
			expected: Identifier{Type: IdentifierISBN, Value: "9780593135204"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BestIdentifier(&tt.item))
		})
	}
}

func TestTitleAuthorKey(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		author   string
		expected string
	}{
		{"plain", "Leviathan Wakes", "James S.A. Corey", "leviathanwakes:jamessacorey"},
		{"punctuation stripped", "The Hitchhiker's Guide!", "Douglas Adams", "thehitchhikersguide:douglasadams"},
		{"missing author", "Leviathan Wakes", "", "leviathanwakes:unknown"},
		{"missing title", "", "James S.A. Corey", "unknown:jamessacorey"},
		{"both missing", "", "", "unknown:unknown"},
		{"only punctuation", "!!!", "---", "unknown:unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TitleAuthorKey(tt.title, tt.author))
		})
	}
}

func TestTitleAuthorKeyDeterministic(t *testing.T) {
	// Case and surrounding whitespace must not change the key.
	a := TitleAuthorKey("  Leviathan Wakes ", "JAMES S.A. COREY")
	b := TitleAuthorKey("leviathan wakes", "james s.a. corey")
	assert.Equal(t, a, b)
}

func TestIdentifierPriorityOrdering(t *testing.T) {
	asin := Identifier{Type: IdentifierASIN}
	isbn := Identifier{Type: IdentifierISBN}
	ta := Identifier{Type: IdentifierTitleAuthor}

	assert.Less(t, asin.Priority(), isbn.Priority())
	assert.Less(t, isbn.Priority(), ta.Priority())
}

func TestProgressPercent(t *testing.T) {
	half := 0.5
	over := 1.5
	neg := -0.2

	tests := []struct {
		name       string
		progress   *float64
		expected   float64
		expectedOK bool
	}{
		{"nil progress", nil, 0, false},
		{"half", &half, 50, true},
		{"clamped above", &over, 100, true},
		{"clamped below", &neg, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := LibraryItem{Progress: tt.progress}
			got, ok := item.ProgressPercent()
			assert.Equal(t, tt.expectedOK, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}
