package models

import "time"

// BookOutcome is the terminal state of one book in a sync run.
type BookOutcome string

const (
	OutcomeSynced    BookOutcome = "synced"
	OutcomeCompleted BookOutcome = "completed"
	OutcomeAutoAdded BookOutcome = "auto_added"
	OutcomeSkipped   BookOutcome = "skipped"
	OutcomeDelayed   BookOutcome = "delayed"
	OutcomeError     BookOutcome = "error"
)

// BookResult is the per-book detail record kept for diagnostics. Reason is a
// human-readable explanation for skips and errors.
type BookResult struct {
	ItemID   string      `json:"item_id"`
	Title    string      `json:"title"`
	Outcome  BookOutcome `json:"outcome"`
	Reason   string      `json:"reason,omitempty"`
	Progress float64     `json:"progress,omitempty"`
	Err      error       `json:"-"`
}

// RunResult aggregates the outcomes of a full sync run. A single book's
// failure never aborts the run; it is counted here instead.
type RunResult struct {
	Processed  int           `json:"processed"`
	Synced     int           `json:"synced"`
	Completed  int           `json:"completed"`
	AutoAdded  int           `json:"auto_added"`
	Skipped    int           `json:"skipped"`
	Delayed    int           `json:"delayed"`
	Errors     int           `json:"errors"`
	Duplicates int           `json:"duplicates"`
	Duration   time.Duration `json:"duration"`
	Books      []BookResult  `json:"books"`
}

// Add records a per-book result and bumps the matching counter.
func (r *RunResult) Add(res BookResult) {
	r.Processed++
	switch res.Outcome {
	case OutcomeSynced:
		r.Synced++
	case OutcomeCompleted:
		r.Completed++
	case OutcomeAutoAdded:
		r.AutoAdded++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeDelayed:
		r.Delayed++
	case OutcomeError:
		r.Errors++
	}
	r.Books = append(r.Books, res)
}
