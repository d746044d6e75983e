package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/wordstash/wordstash/internal/clock"
	"github.com/wordstash/wordstash/internal/db"
	"github.com/wordstash/wordstash/internal/logging"
	"github.com/wordstash/wordstash/internal/models"
	syncpkg "github.com/wordstash/wordstash/internal/sync"
)

// QuizService issues short-lived progress snapshots for a second
// device and folds their results back into the local review state.
type QuizService struct {
	reviews *db.ReviewStore
	quizzes *db.QuizStore
	engine  *syncpkg.Engine
	ttl     time.Duration
	clk     clock.Clock
	log     *logging.Logger
}

// NewQuizService creates a QuizService. A zero ttl defaults to 24h.
func NewQuizService(reviews *db.ReviewStore, quizzes *db.QuizStore, engine *syncpkg.Engine,
	ttl time.Duration, clk clock.Clock, log *logging.Logger) *QuizService {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	if clk == nil {
		clk = clock.System
	}
	if log == nil {
		log = logging.Nop()
	}
	return &QuizService{
		reviews: reviews,
		quizzes: quizzes,
		engine:  engine,
		ttl:     ttl,
		clk:     clk,
		log:     log,
	}
}

// Create snapshots up to limit due review states into a quiz session
// and returns its key and payload.
func (s *QuizService) Create(limit int) (string, *models.ProgressPayload, error) {
	states, err := s.reviews.FindDue(limit, s.clk())
	if err != nil {
		return "", nil, err
	}

	payload := s.engine.BuildProgressPayload(states, s.ttl)
	key := uuid.New().String()
	if err := s.quizzes.Put(key, payload); err != nil {
		return "", nil, err
	}

	s.log.Info("quiz session created", map[string]interface{}{
		"key":   key,
		"words": len(payload.Records),
	})
	return key, payload, nil
}

// Merge folds the progress recorded under a quiz session back into the
// local review states. A missing or expired session is a soft outcome
// and yields a zero result.
func (s *QuizService) Merge(key string) (*syncpkg.MergeResult, error) {
	payload, err := s.quizzes.Get(key, s.clk())
	if err != nil {
		return nil, err
	}
	return s.engine.MergeRemoteProgress(payload)
}

// MergePayload folds an externally supplied payload (e.g. carried back
// from the second device) into the local review states.
func (s *QuizService) MergePayload(payload *models.ProgressPayload) (*syncpkg.MergeResult, error) {
	return s.engine.MergeRemoteProgress(payload)
}

// Sweep removes expired quiz sessions; the daemon runs it periodically.
func (s *QuizService) Sweep() (int, error) {
	return s.quizzes.Sweep(s.clk())
}
