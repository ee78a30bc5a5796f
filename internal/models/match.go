package models

// MatchType identifies which resolution strategy produced a match.
type MatchType string

const (
	MatchTypeASIN             MatchType = "asin"
	MatchTypeISBN             MatchType = "isbn"
	MatchTypeASINCrossEdition MatchType = "asin_cross_edition"
	MatchTypeISBNCrossEdition MatchType = "isbn_cross_edition"
	MatchTypeTitleAuthor      MatchType = "title_author_two_stage"
)

// Match tiers, ordinal rank of the matching strategy.
const (
	TierIdentifier   = 1
	TierCrossEdition = 2
	TierTitleAuthor  = 3
)

// MatchResult is an annotated resolution of a library item against the
// catalog. UserBook is nil when IsSearchResult is true (the book is not yet in
// the user's catalog library). Edition always carries the complete edition
// record when the book is in the user's library, never a search stub, so
// format detection downstream can rely on the extent fields.
type MatchResult struct {
	UserBook       *UserBook `json:"user_book,omitempty"`
	BookID         int64     `json:"book_id"`
	Edition        *Edition  `json:"edition"`
	Type           MatchType `json:"match_type"`
	Tier           int       `json:"tier"`
	IsSearchResult bool      `json:"is_search_result"`
	Confidence     float64   `json:"confidence,omitempty"`
	ConfidenceTag  string    `json:"confidence_tag,omitempty"`
}
