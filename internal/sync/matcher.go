package sync

import (
	"context"
	"fmt"

	"github.com/rohit-purandare/shelfbridge/internal/api/hardcover"
	"github.com/rohit-purandare/shelfbridge/internal/logger"
	"github.com/rohit-purandare/shelfbridge/internal/models"
)

// indexEntry pairs a user book with the specific edition that carried the
// identifier the entry is keyed by.
type indexEntry struct {
	userBook *models.UserBook
	edition  *models.Edition
}

// LibraryIndex is the precomputed lookup table over the user's existing
// catalog editions, built once per run from the GetUserBooks snapshot.
type LibraryIndex struct {
	byASIN    map[string]indexEntry
	byISBN    map[string]indexEntry
	byBookID  map[int64]*models.UserBook
	byEdition map[int64]*models.UserBook
}

// BuildLibraryIndex indexes the user's library by every identifier attached
// to any of its editions.
func BuildLibraryIndex(books []models.UserBook) *LibraryIndex {
	ix := &LibraryIndex{
		byASIN:    make(map[string]indexEntry),
		byISBN:    make(map[string]indexEntry),
		byBookID:  make(map[int64]*models.UserBook),
		byEdition: make(map[int64]*models.UserBook),
	}

	for i := range books {
		ub := &books[i]
		ix.byBookID[ub.BookID] = ub

		editions := ub.Editions
		if len(editions) == 0 && ub.Edition != nil {
			editions = []models.Edition{*ub.Edition}
		}
		for j := range editions {
			ed := &editions[j]
			ix.byEdition[ed.ID] = ub
			if ed.ASIN != "" {
				if _, exists := ix.byASIN[ed.ASIN]; !exists {
					ix.byASIN[ed.ASIN] = indexEntry{userBook: ub, edition: ed}
				}
			}
			if ed.ISBN13 != "" {
				if _, exists := ix.byISBN[ed.ISBN13]; !exists {
					ix.byISBN[ed.ISBN13] = indexEntry{userBook: ub, edition: ed}
				}
			}
			if ed.ISBN10 != "" {
				if _, exists := ix.byISBN[ed.ISBN10]; !exists {
					ix.byISBN[ed.ISBN10] = indexEntry{userBook: ub, edition: ed}
				}
			}
		}
	}

	return ix
}

// UserBookByEdition resolves a user book from an edition ID, used to re-bind
// cached edition references against the current library snapshot.
func (ix *LibraryIndex) UserBookByEdition(editionID int64) *models.UserBook {
	if ix == nil {
		return nil
	}
	return ix.byEdition[editionID]
}

// Matcher resolves a library item to a catalog {book, edition} pair using a
// tiered strategy, terminating at the first tier that produces a match:
//
//  1. direct identifier hit against the library index (ASIN before ISBN),
//  2. cross-edition identifier search against the catalog,
//  3. two-stage title/author search (book first, then best edition).
type Matcher struct {
	catalog hardcover.CatalogClientInterface
	log     *logger.Logger
}

// NewMatcher creates a Matcher backed by the given catalog client.
func NewMatcher(catalog hardcover.CatalogClientInterface, log *logger.Logger) *Matcher {
	if log == nil {
		log = logger.Get()
	}
	return &Matcher{catalog: catalog, log: log}
}

// FindMatch resolves the item against the index and, when needed, the
// catalog. A missing client or an item with no identifiers and no title
// yields no match, not an error. Low-confidence title/author results return
// ErrAmbiguousMatch so the caller skips instead of guessing.
func (m *Matcher) FindMatch(ctx context.Context, item *models.LibraryItem, index *LibraryIndex) (*models.MatchResult, error) {
	if item == nil {
		return nil, nil
	}

	if match := m.matchDirect(item, index); match != nil {
		return match, nil
	}

	if m.catalog == nil {
		return nil, nil
	}

	match, err := m.matchCrossEdition(ctx, item, index)
	if err != nil {
		return nil, err
	}
	if match != nil {
		return match, nil
	}

	return m.matchTitleAuthor(ctx, item, index)
}

// matchDirect is tier 1: an identifier hit against the precomputed index.
func (m *Matcher) matchDirect(item *models.LibraryItem, index *LibraryIndex) *models.MatchResult {
	if index == nil {
		return nil
	}

	if asin := item.Identifiers.ASIN; asin != "" {
		if entry, ok := index.byASIN[asin]; ok {
			return &models.MatchResult{
				UserBook: entry.userBook,
				BookID:   entry.userBook.BookID,
				Edition:  entry.edition,
				Type:     models.MatchTypeASIN,
				Tier:     models.TierIdentifier,
			}
		}
	}

	for _, isbn := range []string{item.Identifiers.ISBN13, item.Identifiers.ISBN10} {
		if isbn == "" {
			continue
		}
		if entry, ok := index.byISBN[isbn]; ok {
			return &models.MatchResult{
				UserBook: entry.userBook,
				BookID:   entry.userBook.BookID,
				Edition:  entry.edition,
				Type:     models.MatchTypeISBN,
				Tier:     models.TierIdentifier,
			}
		}
	}

	return nil
}

// matchCrossEdition is tier 2: the user has a different edition of the same
// book, found by searching the catalog by identifier. When the matched book
// is in the user's library the edition is re-fetched from the library
// snapshot so every catalog field (including the extent) is present; the
// search stub alone is never enough for format detection downstream.
func (m *Matcher) matchCrossEdition(ctx context.Context, item *models.LibraryItem, index *LibraryIndex) (*models.MatchResult, error) {
	type lookup struct {
		value     string
		search    func(context.Context, string) ([]models.Edition, error)
		matchType models.MatchType
	}

	lookups := []lookup{
		{item.Identifiers.ASIN, m.catalog.SearchByASIN, models.MatchTypeASINCrossEdition},
		{item.Identifiers.ISBN13, m.catalog.SearchByISBN, models.MatchTypeISBNCrossEdition},
		{item.Identifiers.ISBN10, m.catalog.SearchByISBN, models.MatchTypeISBNCrossEdition},
	}

	for _, lk := range lookups {
		if lk.value == "" {
			continue
		}

		candidates, err := lk.search(ctx, lk.value)
		if err != nil {
			return nil, fmt.Errorf("cross-edition search failed: %w", err)
		}
		if len(candidates) == 0 {
			continue
		}

		cand := candidates[0]

		if index != nil {
			if ub, ok := index.byBookID[cand.BookID]; ok {
				edition := ub.FindEdition(cand.ID)
				if edition == nil {
					// The user owns the book through yet another edition;
					// use their edition's complete record.
					edition = ub.Edition
					if edition == nil && len(ub.Editions) > 0 {
						edition = &ub.Editions[0]
					}
				}
				if edition != nil {
					m.log.Debug("Cross-edition match in user library", map[string]interface{}{
						"identifier": lk.value,
						"book_id":    cand.BookID,
						"edition_id": edition.ID,
					})
					return &models.MatchResult{
						UserBook: ub,
						BookID:   ub.BookID,
						Edition:  edition,
						Type:     lk.matchType,
						Tier:     models.TierCrossEdition,
					}, nil
				}
			}
		}

		// Book not in the user's library: a search-only match.
		edition := cand
		return &models.MatchResult{
			BookID:         cand.BookID,
			Edition:        &edition,
			Type:           lk.matchType,
			Tier:           models.TierCrossEdition,
			IsSearchResult: true,
		}, nil
	}

	return nil, nil
}

// matchTitleAuthor is tier 3, the two-stage fallback: stage 1 picks the most
// likely book by scoring title/author (and series/year when present); stage 2
// picks the best edition of that book by format compatibility with the
// source item, then popularity.
func (m *Matcher) matchTitleAuthor(ctx context.Context, item *models.LibraryItem, index *LibraryIndex) (*models.MatchResult, error) {
	if item.Title == "" {
		return nil, nil
	}

	results, err := m.catalog.SearchBooks(ctx, item.Title, item.Author)
	if err != nil {
		return nil, fmt.Errorf("title/author search failed: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	target := ScoreTarget{
		Title:  item.Title,
		Author: item.Author,
	}

	var best *models.BookSearchResult
	var bestScore MatchScore
	for i := range results {
		score := ScoreCandidate(&results[i], target)
		if best == nil || score.Score > bestScore.Score {
			best = &results[i]
			bestScore = score
		}
	}

	if bestScore.Confidence == ConfidenceLow || bestScore.Confidence == ConfidenceNone {
		m.log.Debug("Best title/author candidate below confidence floor", map[string]interface{}{
			"title": item.Title,
			"score": bestScore.Score,
		})
		return nil, fmt.Errorf("%w: best candidate %q scored %.0f", ErrAmbiguousMatch, best.Title, bestScore.Score)
	}

	// Stage 2: edition selection.
	var userBook *models.UserBook
	editions := best.Editions
	isSearchResult := true
	if index != nil {
		if ub, ok := index.byBookID[best.BookID]; ok {
			userBook = ub
			isSearchResult = false
			if len(ub.Editions) > 0 {
				editions = ub.Editions
			} else if ub.Edition != nil {
				editions = []models.Edition{*ub.Edition}
			}
		}
	}
	if len(editions) == 0 {
		return nil, nil
	}

	edition := pickEdition(editions, item.Kind)

	return &models.MatchResult{
		UserBook:       userBook,
		BookID:         best.BookID,
		Edition:        edition,
		Type:           models.MatchTypeTitleAuthor,
		Tier:           models.TierTitleAuthor,
		IsSearchResult: isSearchResult,
		Confidence:     bestScore.Score,
		ConfidenceTag:  string(bestScore.Confidence),
	}, nil
}

// pickEdition prefers editions matching the source item's media kind, then
// the most popular one.
func pickEdition(editions []models.Edition, kind models.MediaKind) *models.Edition {
	var best *models.Edition
	bestRank := -1
	for i := range editions {
		ed := &editions[i]
		rank := ed.UsersCount
		if ed.Kind() == kind {
			// Format compatibility outweighs any popularity difference.
			rank += 1 << 30
		}
		if rank > bestRank {
			best = ed
			bestRank = rank
		}
	}
	return best
}
