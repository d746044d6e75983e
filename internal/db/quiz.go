// QuizStore: short-lived progress snapshots issued to a second device.
package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/wordstash/wordstash/internal/clock"
	apperrors "github.com/wordstash/wordstash/internal/errors"
	"github.com/wordstash/wordstash/internal/logging"
	"github.com/wordstash/wordstash/internal/models"
)

// QuizStore persists issued quiz snapshots until they expire.
type QuizStore struct {
	db  *sql.DB
	clk clock.Clock
	log *logging.Logger
}

// NewQuizStore creates a QuizStore. A nil clock falls back to the
// system clock; a nil logger stays silent.
func NewQuizStore(db *sql.DB, clk clock.Clock, log *logging.Logger) *QuizStore {
	if clk == nil {
		clk = clock.System
	}
	if log == nil {
		log = logging.Nop()
	}
	return &QuizStore{db: db, clk: clk, log: log}
}

// Put stores a payload under key, replacing any previous session.
func (s *QuizStore) Put(key string, payload *models.ProgressPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "failed to encode quiz payload", err)
	}
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO quiz_sessions (key, payload, created_at, expires_at) VALUES (?, ?, ?, ?)",
		key, string(data), payload.CreatedAt, payload.ExpiresAt)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to store quiz session", err)
	}
	return nil
}

// Get returns the payload stored under key, or (nil, nil) when the
// session is absent or past its expiry. Expiry is a soft outcome, not
// an error.
func (s *QuizStore) Get(key string, now time.Time) (*models.ProgressPayload, error) {
	var data string
	var expiresAt int64
	err := s.db.QueryRow(
		"SELECT payload, expires_at FROM quiz_sessions WHERE key = ?", key,
	).Scan(&data, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to load quiz session", err)
	}
	if expiresAt != 0 && expiresAt <= now.Unix() {
		return nil, nil
	}

	var payload models.ProgressPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "failed to decode quiz payload", err)
	}
	return &payload, nil
}

// Sweep deletes all expired sessions and returns how many were removed.
func (s *QuizStore) Sweep(now time.Time) (int, error) {
	result, err := s.db.Exec("DELETE FROM quiz_sessions WHERE expires_at != 0 AND expires_at <= ?", now.Unix())
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to sweep quiz sessions", err)
	}
	removed, _ := result.RowsAffected()
	if removed > 0 {
		s.log.Info("expired quiz sessions removed", map[string]interface{}{"count": removed})
	}
	return int(removed), nil
}
