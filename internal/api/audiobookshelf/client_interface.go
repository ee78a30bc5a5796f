package audiobookshelf

import (
	"context"

	"github.com/rohit-purandare/shelfbridge/internal/models"
)

// LibraryClientInterface is the functional contract the sync engine consumes
// from the media library server.
type LibraryClientInterface interface {
	// GetReadingProgress returns every library item with known consumption
	// progress for the authenticated user.
	GetReadingProgress(ctx context.Context) ([]models.LibraryItem, error)

	// TestConnection verifies the server is reachable with the configured
	// credentials.
	TestConnection(ctx context.Context) error
}
