package hardcover

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	graphql "github.com/hasura/go-graphql-client"

	"github.com/rohit-purandare/shelfbridge/internal/cache"
	"github.com/rohit-purandare/shelfbridge/internal/logger"
	"github.com/rohit-purandare/shelfbridge/internal/models"
	"github.com/rohit-purandare/shelfbridge/internal/util"
)

// Common errors
var (
	ErrBookNotFound     = errors.New("book not found")
	ErrUserBookNotFound = errors.New("user book not found")
)

const (
	// DefaultBaseURL is the default base URL for the Hardcover API
	DefaultBaseURL = "https://api.hardcover.app/v1/graphql"
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries is the default number of retries for failed requests
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the default delay between retries
	DefaultRetryDelay = 500 * time.Millisecond
	// searchCacheTTL bounds how long identifier search results are memoized
	searchCacheTTL = 1 * time.Hour
)

// ClientConfig holds configuration for the Hardcover client
type ClientConfig struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	RateLimit     time.Duration
	Burst         int
	MaxConcurrent int
}

// headerAddingTransport is an http.RoundTripper that adds the required
// headers for authenticating with the Hardcover API.
type headerAddingTransport struct {
	token string
	rt    http.RoundTripper
}

func (t *headerAddingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := strings.TrimSpace(t.token)
	if token != "" && !strings.HasPrefix(token, "Bearer ") {
		token = "Bearer " + token
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")
	return t.rt.RoundTrip(req)
}

// Client is a client for the Hardcover GraphQL API
type Client struct {
	gqlClient   *graphql.Client
	logger      *logger.Logger
	rateLimiter *util.RateLimiter
	maxRetries  int
	retryDelay  time.Duration

	// searchCache memoizes identifier lookups within a run so repeated syncs
	// of the same book do not hit the search endpoint again.
	searchCache cache.Cache[string, []models.Edition]
}

// NewClient creates a new Hardcover client
func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Get()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	childLog := log.With(map[string]interface{}{
		"component": "hardcover_client",
	})

	authClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &headerAddingTransport{
			token: cfg.Token,
			rt:    http.DefaultTransport,
		},
	}

	return &Client{
		gqlClient:   graphql.NewClient(cfg.BaseURL, authClient),
		logger:      childLog,
		rateLimiter: util.NewRateLimiter(cfg.RateLimit, cfg.Burst, cfg.MaxConcurrent, childLog),
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		searchCache: cache.WithTTL[string, []models.Edition](
			cache.NewMemoryCache[string, []models.Edition](childLog),
			searchCacheTTL,
		),
	}
}

// exec runs a GraphQL operation with rate limiting and retries.
func (c *Client) exec(ctx context.Context, query string, result interface{}, variables map[string]interface{}) error {
	if err := c.rateLimiter.Acquire(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	defer c.rateLimiter.Release()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		err := c.gqlClient.Exec(ctx, query, result, variables)
		if err == nil {
			return nil
		}
		lastErr = err

		if strings.Contains(err.Error(), "429") {
			c.rateLimiter.OnRateLimit(0)
		}

		c.logger.Warn("GraphQL operation failed", map[string]interface{}{
			"error":   err.Error(),
			"attempt": attempt + 1,
		})
	}

	return fmt.Errorf("graphql operation failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// wire shapes shared by the queries below

type editionWire struct {
	ID           int64    `json:"id" graphql:"id"`
	BookID       int64    `json:"book_id" graphql:"book_id"`
	Title        *string  `json:"title" graphql:"title"`
	ISBN10       *string  `json:"isbn_10" graphql:"isbn_10"`
	ISBN13       *string  `json:"isbn_13" graphql:"isbn_13"`
	ASIN         *string  `json:"asin" graphql:"asin"`
	Pages        *int     `json:"pages" graphql:"pages"`
	AudioSeconds *int     `json:"audio_seconds" graphql:"audio_seconds"`
	UsersCount   *int     `json:"users_count" graphql:"users_count"`
	ReleaseDate  *string  `json:"release_date" graphql:"release_date"`
}

func (w editionWire) toModel() models.Edition {
	e := models.Edition{
		ID:     w.ID,
		BookID: w.BookID,
	}
	if w.Title != nil {
		e.Title = *w.Title
	}
	if w.ISBN10 != nil {
		e.ISBN10 = *w.ISBN10
	}
	if w.ISBN13 != nil {
		e.ISBN13 = *w.ISBN13
	}
	if w.ASIN != nil {
		e.ASIN = *w.ASIN
	}
	if w.Pages != nil {
		e.Pages = *w.Pages
	}
	if w.AudioSeconds != nil {
		e.AudioSeconds = *w.AudioSeconds
	}
	if w.UsersCount != nil {
		e.UsersCount = *w.UsersCount
	}
	if w.ReleaseDate != nil && len(*w.ReleaseDate) >= 4 {
		var year int
		if _, err := fmt.Sscanf((*w.ReleaseDate)[:4], "%d", &year); err == nil {
			e.ReleaseYear = year
		}
	}
	return e
}

// TestConnection verifies the API is reachable with the configured token.
func (c *Client) TestConnection(ctx context.Context) error {
	const query = `query { me { id username } }`
	var result struct {
		Me []struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
		} `json:"me"`
	}
	if err := c.exec(ctx, query, &result, nil); err != nil {
		return fmt.Errorf("hardcover connection test failed: %w", err)
	}
	if len(result.Me) == 0 {
		return fmt.Errorf("hardcover connection test failed: empty me response")
	}
	return nil
}

// GetUserBooks returns the user's library with full edition records,
// paginating until the server returns a short page.
func (c *Client) GetUserBooks(ctx context.Context) ([]models.UserBook, error) {
	const pageSize = 100
	const query = `query GetUserBooks($limit: Int!, $offset: Int!) {
		me {
			user_books(limit: $limit, offset: $offset) {
				id
				book_id
				status_id
				book {
					title
					contributions { author { name } }
					editions {
						id book_id title isbn_10 isbn_13 asin pages audio_seconds users_count release_date
					}
				}
				edition {
					id book_id title isbn_10 isbn_13 asin pages audio_seconds users_count release_date
				}
			}
		}
	}`

	var books []models.UserBook
	for offset := 0; ; offset += pageSize {
		var result struct {
			Me []struct {
				UserBooks []struct {
					ID       int64 `json:"id" graphql:"id"`
					BookID   int64 `json:"book_id" graphql:"book_id"`
					StatusID int   `json:"status_id" graphql:"status_id"`
					Book     struct {
						Title         string `json:"title" graphql:"title"`
						Contributions []struct {
							Author struct {
								Name string `json:"name" graphql:"name"`
							} `json:"author" graphql:"author"`
						} `json:"contributions" graphql:"contributions"`
						Editions []editionWire `json:"editions" graphql:"editions"`
					} `json:"book" graphql:"book"`
					Edition *editionWire `json:"edition" graphql:"edition"`
				} `json:"user_books" graphql:"user_books"`
			} `json:"me" graphql:"me"`
		}

		vars := map[string]interface{}{
			"limit":  pageSize,
			"offset": offset,
		}
		if err := c.exec(ctx, query, &result, vars); err != nil {
			return nil, fmt.Errorf("failed to fetch user books: %w", err)
		}
		if len(result.Me) == 0 {
			break
		}

		page := result.Me[0].UserBooks
		for _, ub := range page {
			book := models.UserBook{
				ID:       ub.ID,
				BookID:   ub.BookID,
				StatusID: ub.StatusID,
				Title:    ub.Book.Title,
			}
			if len(ub.Book.Contributions) > 0 {
				book.Author = ub.Book.Contributions[0].Author.Name
			}
			for _, ew := range ub.Book.Editions {
				book.Editions = append(book.Editions, ew.toModel())
			}
			if ub.Edition != nil {
				e := ub.Edition.toModel()
				book.Edition = &e
			}
			books = append(books, book)
		}

		if len(page) < pageSize {
			break
		}
	}

	c.logger.Info("Fetched user books", map[string]interface{}{
		"count": len(books),
	})
	return books, nil
}

// SearchByASIN searches the catalog for editions carrying the given ASIN.
func (c *Client) SearchByASIN(ctx context.Context, asin string) ([]models.Edition, error) {
	if asin == "" {
		return nil, nil
	}
	return c.searchEditions(ctx, "asin", asin)
}

// SearchByISBN searches the catalog for editions carrying the given ISBN
// (10 or 13).
func (c *Client) SearchByISBN(ctx context.Context, isbn string) ([]models.Edition, error) {
	if isbn == "" {
		return nil, nil
	}
	field := "isbn_13"
	if len(isbn) == 10 {
		field = "isbn_10"
	}
	return c.searchEditions(ctx, field, isbn)
}

func (c *Client) searchEditions(ctx context.Context, field, value string) ([]models.Edition, error) {
	cacheKey := field + ":" + value
	if cached, ok := c.searchCache.Get(cacheKey); ok {
		return cached, nil
	}

	query := fmt.Sprintf(`query SearchEditions($value: String!) {
		editions(where: { %s: { _eq: $value } }, limit: 10) {
			id book_id title isbn_10 isbn_13 asin pages audio_seconds users_count release_date
		}
	}`, field)

	var result struct {
		Editions []editionWire `json:"editions"`
	}
	vars := map[string]interface{}{"value": value}
	if err := c.exec(ctx, query, &result, vars); err != nil {
		return nil, fmt.Errorf("failed to search editions by %s: %w", field, err)
	}

	editions := make([]models.Edition, 0, len(result.Editions))
	for _, ew := range result.Editions {
		editions = append(editions, ew.toModel())
	}

	c.searchCache.Set(cacheKey, editions, searchCacheTTL)
	return editions, nil
}

// SearchBooks searches catalog books by title and author, returning enough
// metadata to score each candidate and to pick an edition afterwards.
func (c *Client) SearchBooks(ctx context.Context, title, author string) ([]models.BookSearchResult, error) {
	if strings.TrimSpace(title) == "" {
		return nil, nil
	}

	const query = `query SearchBooks($title: String!) {
		books(where: { title: { _ilike: $title } }, order_by: { users_count: desc }, limit: 10) {
			id
			title
			users_count
			release_year
			book_series { series { name } }
			contributions { author { name } }
			editions {
				id book_id title isbn_10 isbn_13 asin pages audio_seconds users_count release_date
			}
		}
	}`

	var result struct {
		Books []struct {
			ID          int64  `json:"id" graphql:"id"`
			Title       string `json:"title" graphql:"title"`
			UsersCount  *int   `json:"users_count" graphql:"users_count"`
			ReleaseYear *int   `json:"release_year" graphql:"release_year"`
			BookSeries  []struct {
				Series struct {
					Name string `json:"name" graphql:"name"`
				} `json:"series" graphql:"series"`
			} `json:"book_series" graphql:"book_series"`
			Contributions []struct {
				Author struct {
					Name string `json:"name" graphql:"name"`
				} `json:"author" graphql:"author"`
			} `json:"contributions" graphql:"contributions"`
			Editions []editionWire `json:"editions" graphql:"editions"`
		} `json:"books" graphql:"books"`
	}

	vars := map[string]interface{}{
		"title": "%" + strings.TrimSpace(title) + "%",
	}
	if err := c.exec(ctx, query, &result, vars); err != nil {
		return nil, fmt.Errorf("failed to search books: %w", err)
	}

	results := make([]models.BookSearchResult, 0, len(result.Books))
	for _, b := range result.Books {
		res := models.BookSearchResult{
			BookID: b.ID,
			Title:  b.Title,
		}
		if b.UsersCount != nil {
			res.UsersCount = *b.UsersCount
		}
		if b.ReleaseYear != nil {
			res.Year = *b.ReleaseYear
		}
		if len(b.BookSeries) > 0 {
			res.Series = b.BookSeries[0].Series.Name
		}
		if len(b.Contributions) > 0 {
			res.Author = b.Contributions[0].Author.Name
		}
		for _, ew := range b.Editions {
			res.Editions = append(res.Editions, ew.toModel())
		}
		results = append(results, res)
	}

	return results, nil
}

// AddBookToLibrary adds a book to the user's library with the given status
// and edition, returning the new user book ID.
func (c *Client) AddBookToLibrary(ctx context.Context, bookID int64, statusID int, editionID int64) (int64, error) {
	const mutation = `mutation AddBook($object: UserBookCreateInput!) {
		insert_user_book(object: $object) {
			id
			user_book { id status_id }
		}
	}`

	object := map[string]interface{}{
		"book_id":   bookID,
		"status_id": statusID,
	}
	if editionID != 0 {
		object["edition_id"] = editionID
	}

	var result struct {
		InsertUserBook *struct {
			ID       int64 `json:"id" graphql:"id"`
			UserBook *struct {
				ID       int64 `json:"id" graphql:"id"`
				StatusID int   `json:"status_id" graphql:"status_id"`
			} `json:"user_book" graphql:"user_book"`
		} `json:"insert_user_book" graphql:"insert_user_book"`
	}

	vars := map[string]interface{}{"object": object}
	if err := c.exec(ctx, mutation, &result, vars); err != nil {
		return 0, fmt.Errorf("failed to add book to library: %w", err)
	}
	if result.InsertUserBook == nil {
		return 0, fmt.Errorf("add book to library returned no result")
	}

	id := result.InsertUserBook.ID
	if result.InsertUserBook.UserBook != nil {
		id = result.InsertUserBook.UserBook.ID
	}

	c.logger.Info("Added book to library", map[string]interface{}{
		"book_id":      bookID,
		"edition_id":   editionID,
		"status_id":    statusID,
		"user_book_id": id,
	})
	return id, nil
}

// UpdateReadingProgress writes a progress value for a user book. The catalog
// keeps one open read per user book; an existing open read is updated,
// otherwise a new one is inserted.
func (c *Client) UpdateReadingProgress(ctx context.Context, input UpdateProgressInput) (*UpdateProgressResult, error) {
	if input.UserBookID == 0 {
		return nil, ErrUserBookNotFound
	}

	readID, err := c.findOpenRead(ctx, input.UserBookID)
	if err != nil {
		return nil, err
	}

	object := map[string]interface{}{
		"progress": input.ProgressPercent,
	}
	if input.UseSeconds {
		object["progress_seconds"] = input.CurrentValue
	} else {
		object["progress_pages"] = input.CurrentValue
	}
	if input.EditionID != 0 {
		object["edition_id"] = input.EditionID
	}
	if input.StartedAt != nil {
		object["started_at"] = input.StartedAt.Format("2006-01-02")
	}

	if readID != 0 {
		const mutation = `mutation UpdateRead($id: Int!, $object: DatesReadInput!) {
			update_user_book_read(id: $id, object: $object) {
				id
				user_book_read { id user_book { status_id } }
			}
		}`
		var result struct {
			UpdateUserBookRead *struct {
				ID           int64 `json:"id" graphql:"id"`
				UserBookRead *struct {
					ID       int64 `json:"id" graphql:"id"`
					UserBook *struct {
						StatusID int `json:"status_id" graphql:"status_id"`
					} `json:"user_book" graphql:"user_book"`
				} `json:"user_book_read" graphql:"user_book_read"`
			} `json:"update_user_book_read" graphql:"update_user_book_read"`
		}
		vars := map[string]interface{}{"id": readID, "object": object}
		if err := c.exec(ctx, mutation, &result, vars); err != nil {
			return nil, fmt.Errorf("failed to update reading progress: %w", err)
		}
		out := &UpdateProgressResult{ID: readID}
		if result.UpdateUserBookRead != nil && result.UpdateUserBookRead.UserBookRead != nil &&
			result.UpdateUserBookRead.UserBookRead.UserBook != nil {
			out.StatusID = result.UpdateUserBookRead.UserBookRead.UserBook.StatusID
		}
		return out, nil
	}

	const mutation = `mutation InsertRead($userBookId: Int!, $object: DatesReadInput!) {
		insert_user_book_read(user_book_id: $userBookId, user_book_read: $object) {
			id
			user_book_read { id user_book { status_id } }
		}
	}`
	var result struct {
		InsertUserBookRead *struct {
			ID           int64 `json:"id" graphql:"id"`
			UserBookRead *struct {
				ID       int64 `json:"id" graphql:"id"`
				UserBook *struct {
					StatusID int `json:"status_id" graphql:"status_id"`
				} `json:"user_book" graphql:"user_book"`
			} `json:"user_book_read" graphql:"user_book_read"`
		} `json:"insert_user_book_read" graphql:"insert_user_book_read"`
	}
	vars := map[string]interface{}{"userBookId": input.UserBookID, "object": object}
	if err := c.exec(ctx, mutation, &result, vars); err != nil {
		return nil, fmt.Errorf("failed to insert reading progress: %w", err)
	}
	if result.InsertUserBookRead == nil {
		return nil, fmt.Errorf("insert reading progress returned no result")
	}
	out := &UpdateProgressResult{ID: result.InsertUserBookRead.ID}
	if result.InsertUserBookRead.UserBookRead != nil && result.InsertUserBookRead.UserBookRead.UserBook != nil {
		out.StatusID = result.InsertUserBookRead.UserBookRead.UserBook.StatusID
	}
	return out, nil
}

// findOpenRead returns the ID of the user book's unfinished read, zero when
// none exists.
func (c *Client) findOpenRead(ctx context.Context, userBookID int64) (int64, error) {
	const query = `query FindOpenRead($userBookId: Int!) {
		user_book_reads(
			where: { user_book_id: { _eq: $userBookId }, finished_at: { _is_null: true } }
			order_by: { id: desc }
			limit: 1
		) { id }
	}`
	var result struct {
		UserBookReads []struct {
			ID int64 `json:"id" graphql:"id"`
		} `json:"user_book_reads" graphql:"user_book_reads"`
	}
	vars := map[string]interface{}{"userBookId": userBookID}
	if err := c.exec(ctx, query, &result, vars); err != nil {
		return 0, fmt.Errorf("failed to look up open read: %w", err)
	}
	if len(result.UserBookReads) == 0 {
		return 0, nil
	}
	return result.UserBookReads[0].ID, nil
}

// MarkBookCompleted marks a user book as read at its full extent and records
// the finish date.
func (c *Client) MarkBookCompleted(ctx context.Context, input MarkCompletedInput) (bool, error) {
	if input.UserBookID == 0 {
		return false, ErrUserBookNotFound
	}

	object := map[string]interface{}{
		"progress": 100.0,
	}
	if input.UseSeconds {
		object["progress_seconds"] = input.Total
	} else {
		object["progress_pages"] = input.Total
	}
	if input.EditionID != 0 {
		object["edition_id"] = input.EditionID
	}
	finishedAt := time.Now()
	if input.FinishedAt != nil {
		finishedAt = *input.FinishedAt
	}
	object["finished_at"] = finishedAt.Format("2006-01-02")
	if input.StartedAt != nil {
		object["started_at"] = input.StartedAt.Format("2006-01-02")
	}

	readID, err := c.findOpenRead(ctx, input.UserBookID)
	if err != nil {
		return false, err
	}

	if readID != 0 {
		const mutation = `mutation FinishRead($id: Int!, $object: DatesReadInput!) {
			update_user_book_read(id: $id, object: $object) { id }
		}`
		var result struct {
			UpdateUserBookRead *struct {
				ID int64 `json:"id" graphql:"id"`
			} `json:"update_user_book_read" graphql:"update_user_book_read"`
		}
		vars := map[string]interface{}{"id": readID, "object": object}
		if err := c.exec(ctx, mutation, &result, vars); err != nil {
			return false, fmt.Errorf("failed to finish read: %w", err)
		}
	} else {
		const mutation = `mutation InsertFinishedRead($userBookId: Int!, $object: DatesReadInput!) {
			insert_user_book_read(user_book_id: $userBookId, user_book_read: $object) { id }
		}`
		var result struct {
			InsertUserBookRead *struct {
				ID int64 `json:"id" graphql:"id"`
			} `json:"insert_user_book_read" graphql:"insert_user_book_read"`
		}
		vars := map[string]interface{}{"userBookId": input.UserBookID, "object": object}
		if err := c.exec(ctx, mutation, &result, vars); err != nil {
			return false, fmt.Errorf("failed to insert finished read: %w", err)
		}
	}

	if err := c.UpdateBookStatus(ctx, input.UserBookID, models.StatusRead); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateBookStatus moves a user book to a different status shelf.
func (c *Client) UpdateBookStatus(ctx context.Context, userBookID int64, statusID int) error {
	if userBookID == 0 {
		return ErrUserBookNotFound
	}

	const mutation = `mutation UpdateStatus($id: Int!, $object: UserBookUpdateInput!) {
		update_user_book(id: $id, object: $object) { id }
	}`
	var result struct {
		UpdateUserBook *struct {
			ID int64 `json:"id" graphql:"id"`
		} `json:"update_user_book" graphql:"update_user_book"`
	}
	vars := map[string]interface{}{
		"id":     userBookID,
		"object": map[string]interface{}{"status_id": statusID},
	}
	if err := c.exec(ctx, mutation, &result, vars); err != nil {
		return fmt.Errorf("failed to update book status: %w", err)
	}
	if result.UpdateUserBook == nil {
		return fmt.Errorf("update book status returned no result")
	}

	c.logger.Debug("Updated book status", map[string]interface{}{
		"user_book_id": userBookID,
		"status_id":    statusID,
	})
	return nil
}
