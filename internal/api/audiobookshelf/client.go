package audiobookshelf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rohit-purandare/shelfbridge/internal/logger"
	"github.com/rohit-purandare/shelfbridge/internal/models"
	"github.com/rohit-purandare/shelfbridge/internal/util"
)

const apiPath = "/api"

// Client is a client for the Audiobookshelf API
type Client struct {
	baseURL     string
	token       string
	client      *http.Client
	rateLimiter *util.RateLimiter
	logger      *logger.Logger

	includeLibraries map[string]struct{}
	excludeLibraries map[string]struct{}
}

// ClientConfig holds configuration for the Audiobookshelf client
type ClientConfig struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration
	RateLimit     time.Duration
	Burst         int
	MaxConcurrent int

	// IncludeLibraries/ExcludeLibraries filter libraries by name or ID. An
	// empty include list means every book library is eligible.
	IncludeLibraries []string
	ExcludeLibraries []string
}

// NewClient creates a new Audiobookshelf client
func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Get()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	childLog := log.With(map[string]interface{}{
		"component": "audiobookshelf_client",
	})

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter:      util.NewRateLimiter(cfg.RateLimit, cfg.Burst, cfg.MaxConcurrent, childLog),
		logger:           childLog,
		includeLibraries: librarySet(cfg.IncludeLibraries),
		excludeLibraries: librarySet(cfg.ExcludeLibraries),
	}
}

func librarySet(names []string) map[string]struct{} {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
	return set
}

// libraryAllowed applies the include/exclude filters against both the
// library's name and its ID.
func (c *Client) libraryAllowed(lib absLibrary) bool {
	name := strings.ToLower(lib.Name)
	id := strings.ToLower(lib.ID)

	if c.includeLibraries != nil {
		_, byName := c.includeLibraries[name]
		_, byID := c.includeLibraries[id]
		if !byName && !byID {
			return false
		}
	}
	if _, ok := c.excludeLibraries[name]; ok {
		return false
	}
	if _, ok := c.excludeLibraries[id]; ok {
		return false
	}
	return true
}

// get executes an authenticated GET request and returns the response body.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.rateLimiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	defer c.rateLimiter.Release()

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiPath+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := c.rateLimiter.OnRateLimit(0)
		return nil, fmt.Errorf("rate limited by server, retry after %s", retryAfter)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Unexpected status code", map[string]interface{}{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		})
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return body, nil
}

// absLibrary is a library on the Audiobookshelf server.
type absLibrary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
}

// absLibraryItem is the wire shape of a library item with metadata.
type absLibraryItem struct {
	ID        string `json:"id"`
	MediaType string `json:"mediaType"`
	Media     struct {
		Duration float64 `json:"duration"`
		Metadata struct {
			Title      string `json:"title"`
			AuthorName string `json:"authorName"`
			ISBN       string `json:"isbn"`
			ASIN       string `json:"asin"`
		} `json:"metadata"`
	} `json:"media"`
}

// absMediaProgress is one entry of the user's media progress.
type absMediaProgress struct {
	LibraryItemID string  `json:"libraryItemId"`
	Progress      float64 `json:"progress"`
	IsFinished    bool    `json:"isFinished"`
	HideFromUI    bool    `json:"hideFromContinueListening"`
	StartedAt     int64   `json:"startedAt"`
	FinishedAt    int64   `json:"finishedAt"`
	LastUpdate    int64   `json:"lastUpdate"`
}

// TestConnection verifies the server is reachable with the configured token.
func (c *Client) TestConnection(ctx context.Context) error {
	if _, err := c.get(ctx, "/me"); err != nil {
		return fmt.Errorf("audiobookshelf connection test failed: %w", err)
	}
	return nil
}

// GetReadingProgress returns every library item the user has progress on,
// merging the item metadata from the library endpoints with the user's media
// progress from /me.
func (c *Client) GetReadingProgress(ctx context.Context) ([]models.LibraryItem, error) {
	progressByItem, err := c.getMediaProgress(ctx)
	if err != nil {
		return nil, err
	}
	if len(progressByItem) == 0 {
		c.logger.Info("No media progress reported by server", nil)
		return nil, nil
	}

	libraries, err := c.getLibraries(ctx)
	if err != nil {
		return nil, err
	}

	var items []models.LibraryItem
	for _, lib := range libraries {
		if lib.MediaType != "" && lib.MediaType != "book" {
			continue
		}
		if !c.libraryAllowed(lib) {
			c.logger.Debug("Skipping filtered library", map[string]interface{}{
				"library": lib.Name,
			})
			continue
		}
		libItems, err := c.getLibraryItems(ctx, lib.ID)
		if err != nil {
			return nil, err
		}

		for _, it := range libItems {
			prog, ok := progressByItem[it.ID]
			if !ok {
				continue
			}

			kind := models.MediaKindAudio
			if it.Media.Duration == 0 {
				kind = models.MediaKindText
			}

			item := models.LibraryItem{
				ID:     it.ID,
				Title:  it.Media.Metadata.Title,
				Author: it.Media.Metadata.AuthorName,
				Identifiers: models.Identifiers{
					ASIN: it.Media.Metadata.ASIN,
				},
				IsFinished:    prog.IsFinished,
				Kind:          kind,
				TotalDuration: it.Media.Duration,
			}

			isbn := strings.ReplaceAll(it.Media.Metadata.ISBN, "-", "")
			switch len(isbn) {
			case 13:
				item.Identifiers.ISBN13 = isbn
			case 10:
				item.Identifiers.ISBN10 = isbn
			}

			p := prog.Progress
			item.Progress = &p
			item.StartedAt = msToTime(prog.StartedAt)
			item.FinishedAt = msToTime(prog.FinishedAt)
			item.LastActivityAt = msToTime(prog.LastUpdate)

			items = append(items, item)
		}
	}

	c.logger.Info("Fetched reading progress", map[string]interface{}{
		"items": len(items),
	})
	return items, nil
}

func (c *Client) getMediaProgress(ctx context.Context) (map[string]absMediaProgress, error) {
	body, err := c.get(ctx, "/me")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user progress: %w", err)
	}

	var me struct {
		MediaProgress []absMediaProgress `json:"mediaProgress"`
	}
	if err := json.Unmarshal(body, &me); err != nil {
		return nil, fmt.Errorf("failed to decode user progress: %w", err)
	}

	progress := make(map[string]absMediaProgress, len(me.MediaProgress))
	for _, p := range me.MediaProgress {
		progress[p.LibraryItemID] = p
	}
	return progress, nil
}

func (c *Client) getLibraries(ctx context.Context) ([]absLibrary, error) {
	body, err := c.get(ctx, "/libraries")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch libraries: %w", err)
	}

	var result struct {
		Libraries []absLibrary `json:"libraries"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode libraries: %w", err)
	}
	return result.Libraries, nil
}

func (c *Client) getLibraryItems(ctx context.Context, libraryID string) ([]absLibraryItem, error) {
	if libraryID == "" {
		return nil, fmt.Errorf("library ID is required")
	}
	endpoint := fmt.Sprintf("/libraries/%s/items?minified=0", libraryID)

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch library items: %w", err)
	}

	var result struct {
		Results []absLibraryItem `json:"results"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode library items: %w", err)
	}
	return result.Results, nil
}

func msToTime(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms)
	return &t
}
