// Package sync reconciles divergent copies of the learner's state: a
// full-document import merged into the local stores, and cross-device
// progress records folded back under a progress-dominance rule.
//
// The engine owns no state of its own; it reads and writes through the
// stores' public contracts and never bypasses their uniqueness
// invariants. One bad record never aborts a batch: it is counted and
// iteration continues, so callers always get exact reconciliation
// counts.
package sync

import (
	"time"

	"github.com/wordstash/wordstash/internal/clock"
	"github.com/wordstash/wordstash/internal/db"
	apperrors "github.com/wordstash/wordstash/internal/errors"
	"github.com/wordstash/wordstash/internal/logging"
	"github.com/wordstash/wordstash/internal/models"
	"github.com/wordstash/wordstash/internal/snapshot"
)

// Engine merges external state into the local stores.
type Engine struct {
	words   *db.WordStore
	reviews *db.ReviewStore
	clk     clock.Clock
	log     *logging.Logger
}

// NewEngine creates an Engine. A nil clock falls back to the system
// clock; a nil logger stays silent.
func NewEngine(words *db.WordStore, reviews *db.ReviewStore, clk clock.Clock, log *logging.Logger) *Engine {
	if clk == nil {
		clk = clock.System
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{words: words, reviews: reviews, clk: clk, log: log}
}

// ImportResult reports exact per-collection reconciliation counts.
type ImportResult struct {
	WordsImported   int `json:"wordsImported"`
	WordsSkipped    int `json:"wordsSkipped"`
	WordsFailed     int `json:"wordsFailed"`
	ReviewsImported int `json:"reviewsImported"`
	ReviewsSkipped  int `json:"reviewsSkipped"`
	ReviewsFailed   int `json:"reviewsFailed"`
}

// ImportDocument merges a backup document into the local stores.
//
// The document's shape is validated before anything is written; a shape
// problem aborts atomically with the full issue list. Per record:
// missing locally → insert as-is; existing word → overwrite only when
// the incoming updatedAt is newer (last writer wins); existing review
// state → overwrite only when the incoming history is strictly longer.
// Importing the same document twice imports nothing on the second pass.
func (e *Engine) ImportDocument(doc *models.BackupDocument) (*ImportResult, error) {
	if issues := snapshot.Validate(doc); len(issues) > 0 {
		return nil, apperrors.Structural(issues)
	}

	result := &ImportResult{}

	for i := range doc.Words {
		incoming := doc.Words[i]
		local, err := e.words.FindByID(incoming.ID)
		switch {
		case apperrors.Is(err, apperrors.ErrNotFound):
			if putErr := e.words.Put(&incoming); putErr != nil {
				result.WordsFailed++
				e.log.Warn("failed to import word", map[string]interface{}{"id": incoming.ID, "error": putErr.Error()})
				continue
			}
			result.WordsImported++
		case err != nil:
			result.WordsFailed++
			e.log.Warn("failed to read local word", map[string]interface{}{"id": incoming.ID, "error": err.Error()})
		case incoming.UpdatedAt > local.UpdatedAt:
			if putErr := e.words.Put(&incoming); putErr != nil {
				result.WordsFailed++
				continue
			}
			result.WordsImported++
		default:
			result.WordsSkipped++
		}
	}

	for i := range doc.ReviewStates {
		incoming := doc.ReviewStates[i]
		local, err := e.reviews.FindByOwner(incoming.ID)
		switch {
		case apperrors.Is(err, apperrors.ErrNotFound):
			if putErr := e.reviews.Put(&incoming); putErr != nil {
				result.ReviewsFailed++
				e.log.Warn("failed to import review state", map[string]interface{}{"id": incoming.ID, "error": putErr.Error()})
				continue
			}
			result.ReviewsImported++
		case err != nil:
			result.ReviewsFailed++
			e.log.Warn("failed to read local review state", map[string]interface{}{"id": incoming.ID, "error": err.Error()})
		case len(incoming.History) > len(local.History):
			if putErr := e.reviews.Put(&incoming); putErr != nil {
				result.ReviewsFailed++
				continue
			}
			result.ReviewsImported++
		default:
			result.ReviewsSkipped++
		}
	}

	e.log.Info("import completed", map[string]interface{}{
		"words_imported":   result.WordsImported,
		"words_skipped":    result.WordsSkipped,
		"reviews_imported": result.ReviewsImported,
		"reviews_skipped":  result.ReviewsSkipped,
	})
	return result, nil
}

// Dominates reports whether a strictly dominates b under the
// progress-dominance total order: repetitions first, then interval,
// then ease factor. A full tie does not dominate, which keeps the
// existing record and makes the merge idempotent.
func Dominates(a, b models.RemoteProgress) bool {
	if a.Repetitions != b.Repetitions {
		return a.Repetitions > b.Repetitions
	}
	if a.IntervalDays != b.IntervalDays {
		return a.IntervalDays > b.IntervalDays
	}
	return a.EaseFactor > b.EaseFactor
}

// MergeResult reports the outcome of a progress merge.
type MergeResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// MergeRemoteProgress folds remotely-recorded progress into the local
// review states. A nil, expired or empty payload is a soft outcome and
// yields a zero result. Missing local records are created from the
// remote values with an empty history; history is never fabricated.
// Existing records are overwritten only when the remote strictly
// dominates, so applying the same payload twice never regresses
// progress.
func (e *Engine) MergeRemoteProgress(payload *models.ProgressPayload) (*MergeResult, error) {
	result := &MergeResult{}
	if payload == nil || payload.Expired(e.clk().Unix()) || len(payload.Records) == 0 {
		return result, nil
	}

	for id, remote := range payload.Records {
		local, err := e.reviews.FindByOwner(id)
		switch {
		case apperrors.Is(err, apperrors.ErrNotFound):
			state := models.ReviewState{
				ID:           id,
				NextReviewAt: remote.NextReviewAt,
				IntervalDays: remote.IntervalDays,
				EaseFactor:   remote.EaseFactor,
				Repetitions:  remote.Repetitions,
			}
			if createErr := e.reviews.Create(id, state); createErr != nil {
				result.Failed++
				e.log.Warn("failed to create review state from remote", map[string]interface{}{"id": id, "error": createErr.Error()})
				continue
			}
			result.Created++
		case err != nil:
			result.Failed++
			e.log.Warn("failed to read local review state", map[string]interface{}{"id": id, "error": err.Error()})
		case Dominates(remote, progressOf(local)):
			local.NextReviewAt = remote.NextReviewAt
			local.IntervalDays = remote.IntervalDays
			local.EaseFactor = remote.EaseFactor
			local.Repetitions = remote.Repetitions
			if putErr := e.reviews.Put(local); putErr != nil {
				result.Failed++
				continue
			}
			result.Updated++
		default:
			result.Skipped++
		}
	}

	e.log.Info("remote progress merged", map[string]interface{}{
		"created": result.Created,
		"updated": result.Updated,
		"skipped": result.Skipped,
	})
	return result, nil
}

// BuildProgressPayload produces an outgoing keyed payload from review
// states, valid for ttl from now. A zero ttl makes a payload without
// expiry.
func (e *Engine) BuildProgressPayload(states []*models.ReviewState, ttl time.Duration) *models.ProgressPayload {
	now := e.clk()
	payload := &models.ProgressPayload{
		Records:   make(map[string]models.RemoteProgress, len(states)),
		CreatedAt: now.Unix(),
	}
	if ttl > 0 {
		payload.ExpiresAt = now.Add(ttl).Unix()
	}
	for _, state := range states {
		payload.Records[state.ID] = progressOf(state)
	}
	return payload
}

// progressOf projects a review state onto its comparable scheduling
// fields.
func progressOf(state *models.ReviewState) models.RemoteProgress {
	return models.RemoteProgress{
		NextReviewAt: state.NextReviewAt,
		IntervalDays: state.IntervalDays,
		EaseFactor:   state.EaseFactor,
		Repetitions:  state.Repetitions,
	}
}
