package models

// ReviewLogEntry records a single completed review. IntervalDays
// carries the interval that was in effect before this review, so an
// entry together with its rating reconstructs the scheduler input.
type ReviewLogEntry struct {
	ReviewedAt   int64 `json:"reviewedAt"`
	Rating       int   `json:"rating"`
	IntervalDays int   `json:"intervalDaysBeforeThisReview"`
}

// ReviewState is the spaced-repetition scheduling record owned
// one-to-one by a vocabulary item; ID equals the owning item's ID.
// History is append-only and only ever grows.
type ReviewState struct {
	ID           string           `json:"id"`
	NextReviewAt int64            `json:"nextReviewAt"`
	IntervalDays int              `json:"intervalDays"`
	EaseFactor   float64          `json:"easeFactor"`
	Repetitions  int              `json:"repetitions"`
	History      []ReviewLogEntry `json:"history"`
}

// ReviewStats summarizes review activity relative to a reference time.
type ReviewStats struct {
	Total          int `json:"total"`
	DueToday       int `json:"dueToday"`
	CompletedToday int `json:"completedToday"`
}
