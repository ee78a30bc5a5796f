package models

// Hardcover status IDs for a user book.
const (
	StatusWantToRead       = 1
	StatusCurrentlyReading = 2
	StatusRead             = 3
	StatusDidNotFinish     = 5
)

// Edition is a specific published form of a book in the catalog. Exactly one
// of Pages/AudioSeconds is normally set and determines the format.
type Edition struct {
	ID           int64    `json:"id"`
	BookID       int64    `json:"book_id"`
	Title        string   `json:"title,omitempty"`
	ISBN10       string   `json:"isbn_10,omitempty"`
	ISBN13       string   `json:"isbn_13,omitempty"`
	ASIN         string   `json:"asin,omitempty"`
	Pages        int      `json:"pages,omitempty"`
	AudioSeconds int      `json:"audio_seconds,omitempty"`
	ReleaseYear  int      `json:"release_year,omitempty"`
	UsersCount   int      `json:"users_count,omitempty"`
	Contributors []string `json:"contributors,omitempty"`
}

// IsAudio reports whether this edition is an audiobook edition.
func (e *Edition) IsAudio() bool {
	return e != nil && e.AudioSeconds > 0
}

// Kind returns the media kind implied by the edition's extent.
func (e *Edition) Kind() MediaKind {
	if e.IsAudio() {
		return MediaKindAudio
	}
	return MediaKindText
}

// UserBook is a book in the user's catalog library together with its known
// editions. Edition is the user's currently selected edition.
type UserBook struct {
	ID       int64     `json:"id"`
	BookID   int64     `json:"book_id"`
	StatusID int       `json:"status_id"`
	Title    string    `json:"title"`
	Author   string    `json:"author,omitempty"`
	Edition  *Edition  `json:"edition,omitempty"`
	Editions []Edition `json:"editions,omitempty"`
}

// FindEdition returns the full edition record with the given ID from the user
// book's edition list, or nil when absent.
func (u *UserBook) FindEdition(editionID int64) *Edition {
	if u == nil {
		return nil
	}
	if u.Edition != nil && u.Edition.ID == editionID {
		return u.Edition
	}
	for i := range u.Editions {
		if u.Editions[i].ID == editionID {
			return &u.Editions[i]
		}
	}
	return nil
}

// BookSearchResult is a catalog book returned by a title/author search,
// carrying enough metadata to score it and to pick an edition afterwards.
type BookSearchResult struct {
	BookID     int64     `json:"book_id"`
	Title      string    `json:"title"`
	Author     string    `json:"author,omitempty"`
	Series     string    `json:"series,omitempty"`
	Year       int       `json:"year,omitempty"`
	UsersCount int       `json:"users_count,omitempty"`
	Editions   []Edition `json:"editions,omitempty"`
}
