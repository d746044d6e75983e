// ReviewStore: scheduling records and their append-only history.
package db

import (
	"database/sql"
	"time"

	"github.com/wordstash/wordstash/internal/clock"
	apperrors "github.com/wordstash/wordstash/internal/errors"
	"github.com/wordstash/wordstash/internal/logging"
	"github.com/wordstash/wordstash/internal/models"
	"github.com/wordstash/wordstash/internal/srs"
)

// ReviewStore owns ReviewState records, keyed by the owning item's id.
type ReviewStore struct {
	db  *sql.DB
	clk clock.Clock
	log *logging.Logger
}

// NewReviewStore creates a ReviewStore. A nil clock falls back to the
// system clock; a nil logger stays silent.
func NewReviewStore(db *sql.DB, clk clock.Clock, log *logging.Logger) *ReviewStore {
	if clk == nil {
		clk = clock.System
	}
	if log == nil {
		log = logging.Nop()
	}
	return &ReviewStore{db: db, clk: clk, log: log}
}

// Create inserts a new review state for ownerID. It fails with
// DUPLICATE when a record already exists; history entries on the
// initial state are rejected because history only grows through
// RecordReview.
func (s *ReviewStore) Create(ownerID string, initial models.ReviewState) error {
	if len(initial.History) > 0 {
		return apperrors.New(apperrors.ErrValidation, "initial review state must have empty history")
	}

	var exists bool
	err := s.db.QueryRow("SELECT EXISTS(SELECT 1 FROM review_states WHERE id = ?)", ownerID).Scan(&exists)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to check review state", err)
	}
	if exists {
		return apperrors.Newf(apperrors.ErrDuplicate, "review state already exists: %s", ownerID)
	}

	_, err = s.db.Exec(
		"INSERT INTO review_states (id, next_review_at, interval_days, ease_factor, repetitions) VALUES (?, ?, ?, ?, ?)",
		ownerID, initial.NextReviewAt, initial.IntervalDays, initial.EaseFactor, initial.Repetitions)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to create review state", err)
	}
	return nil
}

// FindByOwner loads the review state for ownerID including its history.
func (s *ReviewStore) FindByOwner(ownerID string) (*models.ReviewState, error) {
	var state models.ReviewState
	err := s.db.QueryRow(
		"SELECT id, next_review_at, interval_days, ease_factor, repetitions FROM review_states WHERE id = ?",
		ownerID,
	).Scan(&state.ID, &state.NextReviewAt, &state.IntervalDays, &state.EaseFactor, &state.Repetitions)
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "review state not found: %s", ownerID)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to load review state", err)
	}

	history, err := s.loadHistory(ownerID)
	if err != nil {
		return nil, err
	}
	state.History = history
	return &state, nil
}

// FindDue returns up to limit states with nextReviewAt at or before
// now, soonest first. States of soft-deleted words are excluded so a
// deleted word never resurfaces in the due queue.
func (s *ReviewStore) FindDue(limit int, now time.Time) ([]*models.ReviewState, error) {
	rows, err := s.db.Query(`
	SELECT rs.id, rs.next_review_at, rs.interval_days, rs.ease_factor, rs.repetitions
	FROM review_states rs
	JOIN words w ON w.id = rs.id
	WHERE rs.next_review_at <= ? AND w.deleted_at = 0
	ORDER BY rs.next_review_at ASC LIMIT ?`,
		now.Unix(), limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to query due reviews", err)
	}
	defer rows.Close()

	states, err := scanStates(rows)
	if err != nil {
		return nil, err
	}
	for _, state := range states {
		history, err := s.loadHistory(state.ID)
		if err != nil {
			return nil, err
		}
		state.History = history
	}
	return states, nil
}

// All returns every review state with full history, used by export and
// the remote sync payload builder.
func (s *ReviewStore) All() ([]*models.ReviewState, error) {
	rows, err := s.db.Query(
		"SELECT id, next_review_at, interval_days, ease_factor, repetitions FROM review_states ORDER BY id")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to query review states", err)
	}
	defer rows.Close()

	states, err := scanStates(rows)
	if err != nil {
		return nil, err
	}
	for _, state := range states {
		history, err := s.loadHistory(state.ID)
		if err != nil {
			return nil, err
		}
		state.History = history
	}
	return states, nil
}

// RecordReview appends one history entry carrying the pre-update
// interval and overwrites the scheduling fields from the scheduler
// output. Both writes happen in one transaction so a reader never
// observes one without the other.
func (s *ReviewStore) RecordReview(ownerID string, rating int, out srs.Result) error {
	tx, err := s.db.Begin()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	var intervalBefore int
	err = tx.QueryRow("SELECT interval_days FROM review_states WHERE id = ?", ownerID).Scan(&intervalBefore)
	if err == sql.ErrNoRows {
		return apperrors.Newf(apperrors.ErrNotFound, "review state not found: %s", ownerID)
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to load review state", err)
	}

	if _, err := tx.Exec(
		"INSERT INTO review_history (owner_id, reviewed_at, rating, interval_before) VALUES (?, ?, ?, ?)",
		ownerID, s.clk().Unix(), rating, intervalBefore,
	); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to append review history", err)
	}

	if _, err := tx.Exec(
		"UPDATE review_states SET next_review_at = ?, interval_days = ?, ease_factor = ?, repetitions = ? WHERE id = ?",
		out.NextReviewAt.Unix(), out.IntervalDays, out.EaseFactor, out.Repetitions, ownerID,
	); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to update review state", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to commit review", err)
	}

	s.log.Debug("review recorded", map[string]interface{}{
		"owner_id": ownerID,
		"rating":   rating,
	})
	return nil
}

// Put replaces the state and its history wholesale. It is the merge
// engine's import path; normal review flows go through RecordReview.
func (s *ReviewStore) Put(state *models.ReviewState) error {
	tx, err := s.db.Begin()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO review_states (id, next_review_at, interval_days, ease_factor, repetitions) VALUES (?, ?, ?, ?, ?)",
		state.ID, state.NextReviewAt, state.IntervalDays, state.EaseFactor, state.Repetitions,
	); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to write review state", err)
	}

	if _, err := tx.Exec("DELETE FROM review_history WHERE owner_id = ?", state.ID); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to clear review history", err)
	}
	for _, entry := range state.History {
		if _, err := tx.Exec(
			"INSERT INTO review_history (owner_id, reviewed_at, rating, interval_before) VALUES (?, ?, ?, ?)",
			state.ID, entry.ReviewedAt, entry.Rating, entry.IntervalDays,
		); err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, "failed to write review history", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to commit review state", err)
	}
	return nil
}

// Stats computes review totals relative to now. Soft-deleted words are
// excluded from every count; export keeps seeing them through All.
func (s *ReviewStore) Stats(now time.Time) (*models.ReviewStats, error) {
	stats := &models.ReviewStats{}

	if err := s.db.QueryRow(`
	SELECT COUNT(*) FROM review_states rs
	JOIN words w ON w.id = rs.id
	WHERE w.deleted_at = 0`,
	).Scan(&stats.Total); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to count review states", err)
	}

	if err := s.db.QueryRow(`
	SELECT COUNT(*) FROM review_states rs
	JOIN words w ON w.id = rs.id
	WHERE w.deleted_at = 0 AND rs.next_review_at <= ?`, now.Unix(),
	).Scan(&stats.DueToday); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to count due reviews", err)
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Unix()
	if err := s.db.QueryRow(`
	SELECT COUNT(*) FROM review_states rs
	JOIN words w ON w.id = rs.id
	WHERE w.deleted_at = 0
	AND (SELECT MAX(reviewed_at) FROM review_history h WHERE h.owner_id = rs.id) >= ?`,
		startOfDay,
	).Scan(&stats.CompletedToday); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to count completed reviews", err)
	}

	return stats, nil
}

// loadHistory loads the append-only history for one owner, oldest first.
func (s *ReviewStore) loadHistory(ownerID string) ([]models.ReviewLogEntry, error) {
	rows, err := s.db.Query(
		"SELECT reviewed_at, rating, interval_before FROM review_history WHERE owner_id = ? ORDER BY id ASC",
		ownerID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to query review history", err)
	}
	defer rows.Close()

	var history []models.ReviewLogEntry
	for rows.Next() {
		var entry models.ReviewLogEntry
		if err := rows.Scan(&entry.ReviewedAt, &entry.Rating, &entry.IntervalDays); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan review history", err)
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to iterate review history", err)
	}
	return history, nil
}

// scanStates scans review state rows without history.
func scanStates(rows *sql.Rows) ([]*models.ReviewState, error) {
	var states []*models.ReviewState
	for rows.Next() {
		var state models.ReviewState
		if err := rows.Scan(&state.ID, &state.NextReviewAt, &state.IntervalDays,
			&state.EaseFactor, &state.Repetitions); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan review state", err)
		}
		states = append(states, &state)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to iterate review states", err)
	}
	return states, nil
}
