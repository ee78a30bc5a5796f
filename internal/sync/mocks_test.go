package sync

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/rohit-purandare/shelfbridge/internal/api/hardcover"
	"github.com/rohit-purandare/shelfbridge/internal/models"
)

// mockCatalogClient is a testify mock of the catalog client.
type mockCatalogClient struct {
	mock.Mock
}

func (m *mockCatalogClient) GetUserBooks(ctx context.Context) ([]models.UserBook, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UserBook), args.Error(1)
}

func (m *mockCatalogClient) SearchByISBN(ctx context.Context, isbn string) ([]models.Edition, error) {
	args := m.Called(ctx, isbn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Edition), args.Error(1)
}

func (m *mockCatalogClient) SearchByASIN(ctx context.Context, asin string) ([]models.Edition, error) {
	args := m.Called(ctx, asin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Edition), args.Error(1)
}

func (m *mockCatalogClient) SearchBooks(ctx context.Context, title, author string) ([]models.BookSearchResult, error) {
	args := m.Called(ctx, title, author)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BookSearchResult), args.Error(1)
}

func (m *mockCatalogClient) AddBookToLibrary(ctx context.Context, bookID int64, statusID int, editionID int64) (int64, error) {
	args := m.Called(ctx, bookID, statusID, editionID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCatalogClient) UpdateReadingProgress(ctx context.Context, input hardcover.UpdateProgressInput) (*hardcover.UpdateProgressResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hardcover.UpdateProgressResult), args.Error(1)
}

func (m *mockCatalogClient) MarkBookCompleted(ctx context.Context, input hardcover.MarkCompletedInput) (bool, error) {
	args := m.Called(ctx, input)
	return args.Bool(0), args.Error(1)
}

func (m *mockCatalogClient) UpdateBookStatus(ctx context.Context, userBookID int64, statusID int) error {
	args := m.Called(ctx, userBookID, statusID)
	return args.Error(0)
}

func (m *mockCatalogClient) TestConnection(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// mockLibraryClient is a testify mock of the media library client.
type mockLibraryClient struct {
	mock.Mock
}

func (m *mockLibraryClient) GetReadingProgress(ctx context.Context) ([]models.LibraryItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LibraryItem), args.Error(1)
}

func (m *mockLibraryClient) TestConnection(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
