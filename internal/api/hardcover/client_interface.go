package hardcover

import (
	"context"
	"time"

	"github.com/rohit-purandare/shelfbridge/internal/models"
)

// UpdateProgressInput carries one reading-progress write to the catalog.
// CurrentValue is seconds for audio editions and pages for text editions.
type UpdateProgressInput struct {
	UserBookID      int64
	CurrentValue    int
	ProgressPercent float64
	EditionID       int64
	UseSeconds      bool
	StartedAt       *time.Time
}

// UpdateProgressResult is the catalog's acknowledgement of a progress write.
type UpdateProgressResult struct {
	ID       int64
	StatusID int
}

// MarkCompletedInput marks a user book as finished at its full extent.
type MarkCompletedInput struct {
	UserBookID int64
	EditionID  int64
	Total      int
	UseSeconds bool
	FinishedAt *time.Time
	StartedAt  *time.Time
}

// CatalogClientInterface is the functional contract the sync engine consumes
// from the social book-tracking service.
type CatalogClientInterface interface {
	// GetUserBooks returns the user's catalog library with full edition
	// records.
	GetUserBooks(ctx context.Context) ([]models.UserBook, error)

	// SearchByISBN searches the catalog for editions carrying the ISBN.
	SearchByISBN(ctx context.Context, isbn string) ([]models.Edition, error)

	// SearchByASIN searches the catalog for editions carrying the ASIN.
	SearchByASIN(ctx context.Context, asin string) ([]models.Edition, error)

	// SearchBooks searches catalog books by title and author.
	SearchBooks(ctx context.Context, title, author string) ([]models.BookSearchResult, error)

	// AddBookToLibrary adds a book to the user's library and returns the new
	// user book ID.
	AddBookToLibrary(ctx context.Context, bookID int64, statusID int, editionID int64) (int64, error)

	// UpdateReadingProgress writes a progress value for a user book.
	UpdateReadingProgress(ctx context.Context, input UpdateProgressInput) (*UpdateProgressResult, error)

	// MarkBookCompleted marks a user book as read at its full extent.
	MarkBookCompleted(ctx context.Context, input MarkCompletedInput) (bool, error)

	// UpdateBookStatus moves a user book to a different status shelf.
	UpdateBookStatus(ctx context.Context, userBookID int64, statusID int) error

	// TestConnection verifies the API is reachable with the configured token.
	TestConnection(ctx context.Context) error
}
