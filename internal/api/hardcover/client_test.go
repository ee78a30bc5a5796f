package hardcover

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohit-purandare/shelfbridge/internal/logger"
)

// gqlHandler answers GraphQL POSTs by matching a substring of the query.
type gqlHandler struct {
	responses map[string]string
	requests  atomic.Int64
	lastBody  atomic.Value
}

func (h *gqlHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.requests.Add(1)
	body, _ := io.ReadAll(r.Body)
	h.lastBody.Store(string(body))

	for needle, response := range h.responses {
		if strings.Contains(string(body), needle) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, response)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, `{"data":{}}`)
}

func newGQLClient(t *testing.T, handler *gqlHandler) *Client {
	t.Helper()
	logger.Setup(logger.Config{Level: "debug"})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(ClientConfig{
		BaseURL:    srv.URL,
		Token:      "test-token",
		MaxRetries: 1,
	}, logger.Get())
}

func TestTestConnection(t *testing.T) {
	handler := &gqlHandler{responses: map[string]string{
		"me {": `{"data":{"me":[{"id":1,"username":"alice"}]}}`,
	}}
	client := newGQLClient(t, handler)

	assert.NoError(t, client.TestConnection(context.Background()))
	assert.Contains(t, handler.lastBody.Load().(string), "username")
}

func TestTestConnectionEmptyMe(t *testing.T) {
	handler := &gqlHandler{responses: map[string]string{
		"me {": `{"data":{"me":[]}}`,
	}}
	client := newGQLClient(t, handler)

	assert.Error(t, client.TestConnection(context.Background()))
}

func TestSearchByISBNFieldDispatch(t *testing.T) {
	handler := &gqlHandler{responses: map[string]string{
		"SearchEditions": `{"data":{"editions":[{"id":5,"book_id":3,"isbn_10":"0593135202","pages":496}]}}`,
	}}
	client := newGQLClient(t, handler)

	editions, err := client.SearchByISBN(context.Background(), "0593135202")
	require.NoError(t, err)
	require.Len(t, editions, 1)
	assert.Equal(t, int64(5), editions[0].ID)
	assert.Equal(t, 496, editions[0].Pages)

	// A 10-character ISBN queries the isbn_10 column.
	assert.Contains(t, handler.lastBody.Load().(string), "isbn_10")
}

func TestSearchMemoized(t *testing.T) {
	handler := &gqlHandler{responses: map[string]string{
		"SearchEditions": `{"data":{"editions":[{"id":7,"book_id":4,"asin":"B001"}]}}`,
	}}
	client := newGQLClient(t, handler)

	first, err := client.SearchByASIN(context.Background(), "B001")
	require.NoError(t, err)
	second, err := client.SearchByASIN(context.Background(), "B001")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), handler.requests.Load(), "second lookup must come from the memo")
}

func TestSearchByEmptyIdentifier(t *testing.T) {
	handler := &gqlHandler{responses: map[string]string{}}
	client := newGQLClient(t, handler)

	editions, err := client.SearchByASIN(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, editions)

	editions, err = client.SearchByISBN(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, editions)

	assert.Equal(t, int64(0), handler.requests.Load())
}

func TestGetUserBooks(t *testing.T) {
	handler := &gqlHandler{responses: map[string]string{
		"GetUserBooks": `{"data":{"me":[{"user_books":[
			{
				"id": 100,
				"book_id": 1,
				"status_id": 2,
				"book": {
					"title": "Leviathan Wakes",
					"contributions": [{"author":{"name":"James S.A. Corey"}}],
					"editions": [
						{"id":10,"book_id":1,"asin":"B00A2DPPSI","audio_seconds":72000,"release_date":"2012-06-01"},
						{"id":11,"book_id":1,"isbn_13":"9780316129084","pages":592}
					]
				},
				"edition": {"id":10,"book_id":1,"asin":"B00A2DPPSI","audio_seconds":72000}
			}
		]}]}}`,
	}}
	client := newGQLClient(t, handler)

	books, err := client.GetUserBooks(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 1)

	book := books[0]
	assert.Equal(t, int64(100), book.ID)
	assert.Equal(t, "James S.A. Corey", book.Author)
	require.Len(t, book.Editions, 2)
	assert.Equal(t, 72000, book.Editions[0].AudioSeconds)
	assert.Equal(t, 2012, book.Editions[0].ReleaseYear)
	require.NotNil(t, book.Edition)
	assert.Equal(t, int64(10), book.Edition.ID)

	// One short page means no second request.
	assert.Equal(t, int64(1), handler.requests.Load())
}

func TestUpdateProgressRequiresUserBook(t *testing.T) {
	handler := &gqlHandler{responses: map[string]string{}}
	client := newGQLClient(t, handler)

	_, err := client.UpdateReadingProgress(context.Background(), UpdateProgressInput{})
	assert.ErrorIs(t, err, ErrUserBookNotFound)

	_, err = client.MarkBookCompleted(context.Background(), MarkCompletedInput{})
	assert.ErrorIs(t, err, ErrUserBookNotFound)

	err = client.UpdateBookStatus(context.Background(), 0, 2)
	assert.ErrorIs(t, err, ErrUserBookNotFound)

	assert.Equal(t, int64(0), handler.requests.Load())
}

func TestUpdateProgressUpdatesOpenRead(t *testing.T) {
	handler := &gqlHandler{responses: map[string]string{
		"FindOpenRead": `{"data":{"user_book_reads":[{"id":900}]}}`,
		"UpdateRead":   `{"data":{"update_user_book_read":{"id":900,"user_book_read":{"id":900,"user_book":{"status_id":2}}}}}`,
	}}
	client := newGQLClient(t, handler)

	result, err := client.UpdateReadingProgress(context.Background(), UpdateProgressInput{
		UserBookID:      100,
		CurrentValue:    30960,
		ProgressPercent: 43,
		EditionID:       10,
		UseSeconds:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(900), result.ID)
	assert.Equal(t, 2, result.StatusID)

	assert.Contains(t, handler.lastBody.Load().(string), "progress_seconds")
}

func TestUpdateProgressInsertsWhenNoOpenRead(t *testing.T) {
	handler := &gqlHandler{responses: map[string]string{
		"FindOpenRead": `{"data":{"user_book_reads":[]}}`,
		"InsertRead":   `{"data":{"insert_user_book_read":{"id":901,"user_book_read":{"id":901,"user_book":{"status_id":2}}}}}`,
	}}
	client := newGQLClient(t, handler)

	result, err := client.UpdateReadingProgress(context.Background(), UpdateProgressInput{
		UserBookID:   100,
		CurrentValue: 120,
		UseSeconds:   false,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(901), result.ID)
	assert.Contains(t, handler.lastBody.Load().(string), "progress_pages")
}

func TestMarkBookCompletedSetsReadStatus(t *testing.T) {
	handler := &gqlHandler{responses: map[string]string{
		"FindOpenRead": `{"data":{"user_book_reads":[{"id":902}]}}`,
		"FinishRead":   `{"data":{"update_user_book_read":{"id":902}}}`,
		"UpdateStatus": `{"data":{"update_user_book":{"id":100}}}`,
	}}
	client := newGQLClient(t, handler)

	ok, err := client.MarkBookCompleted(context.Background(), MarkCompletedInput{
		UserBookID: 100,
		EditionID:  10,
		Total:      72000,
		UseSeconds: true,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	// The final request moves the shelf to read.
	assert.Contains(t, handler.lastBody.Load().(string), "UpdateStatus")
}
