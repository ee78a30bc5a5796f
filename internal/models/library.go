package models

import "time"

// MediaKind describes the format of a library item.
type MediaKind string

const (
	MediaKindAudio MediaKind = "audio"
	MediaKindText  MediaKind = "text"
)

// Identifiers holds the external identifiers attached to a library item.
// Any of them may be absent.
type Identifiers struct {
	ISBN10 string `json:"isbn10,omitempty"`
	ISBN13 string `json:"isbn13,omitempty"`
	ASIN   string `json:"asin,omitempty"`
}

// LibraryItem is a single in-progress (or finished) book reported by the
// media library server. Progress is a fraction in [0,1]; a nil Progress means
// the server reported no usable progress value at all, which is treated as
// invalid input downstream. An explicit 0 is a valid observation.
type LibraryItem struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Author      string      `json:"author"`
	Identifiers Identifiers `json:"identifiers"`

	Progress   *float64 `json:"progress,omitempty"`
	IsFinished bool     `json:"isFinished"`

	StartedAt      *time.Time `json:"startedAt,omitempty"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
	LastActivityAt *time.Time `json:"lastActivityAt,omitempty"`

	Kind MediaKind `json:"kind"`

	// TotalDuration is the audio length in seconds for audio items, zero for
	// text items.
	TotalDuration float64 `json:"totalDuration,omitempty"`
}

// ProgressPercent returns the observed progress as a percentage in [0,100]
// and whether a progress value was present at all.
func (i *LibraryItem) ProgressPercent() (float64, bool) {
	if i == nil || i.Progress == nil {
		return 0, false
	}
	p := *i.Progress * 100
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return p, true
}
