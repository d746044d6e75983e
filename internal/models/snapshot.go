package models

// BackupDocument is the portable full-export document. It round-trips
// through JSON byte-for-byte on the fields defined here.
type BackupDocument struct {
	Version      string           `json:"version"`
	ExportedAt   int64            `json:"exportedAt"`
	Words        []VocabularyItem `json:"words"`
	ReviewStates []ReviewState    `json:"reviewStates"`
	Metadata     BackupMetadata   `json:"metadata"`
}

// BackupMetadata carries collection counts for reconciliation summaries.
type BackupMetadata struct {
	TotalWords        int `json:"totalWords"`
	TotalReviewStates int `json:"totalReviewStates"`
}

// RemoteProgress is one remotely-recorded scheduling record, keyed by
// the derived item identity in a ProgressPayload. It carries only the
// fields the progress-dominance merge compares and overwrites; history
// is never transported and never fabricated.
type RemoteProgress struct {
	NextReviewAt int64   `json:"nextReviewAt"`
	IntervalDays int     `json:"intervalDays"`
	EaseFactor   float64 `json:"easeFactor"`
	Repetitions  int     `json:"repetitions"`
}

// ProgressPayload is the keyed reconciliation payload exchanged with
// the remote service and handed to a second device as a quiz snapshot.
type ProgressPayload struct {
	Records   map[string]RemoteProgress `json:"records"`
	CreatedAt int64                     `json:"createdAt"`
	ExpiresAt int64                     `json:"expiresAt"`
}

// Expired reports whether the payload is past its expiry at the given
// unix time. Expired payloads are treated as absent, never as errors.
func (p *ProgressPayload) Expired(now int64) bool {
	return p.ExpiresAt != 0 && p.ExpiresAt <= now
}
