package services

import (
	"context"
	"testing"
	"time"

	"github.com/wordstash/wordstash/internal/models"
	syncpkg "github.com/wordstash/wordstash/internal/sync"
)

func TestQuizCreateAndMerge(t *testing.T) {
	e := setupEnv(t)
	collect := NewCollectService(CollectConfig{Words: e.words, Reviews: e.reviews, Clock: e.clk})
	quiz := NewQuizService(e.reviews, e.quizzes, e.engine, time.Hour, e.clk, nil)

	item, err := collect.Collect(context.Background(), testDraft())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	key, payload, err := quiz.Create(10)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if key == "" {
		t.Fatal("empty session key")
	}
	if len(payload.Records) != 1 {
		t.Fatalf("records = %d, want the due item", len(payload.Records))
	}

	// The second device advances progress; merging folds it back.
	advanced := payload.Records[item.ID]
	advanced.Repetitions = 2
	advanced.IntervalDays = 6
	advanced.EaseFactor = 2.36
	payload.Records[item.ID] = advanced

	result, err := quiz.MergePayload(payload)
	if err != nil {
		t.Fatalf("MergePayload failed: %v", err)
	}
	if result.Updated != 1 {
		t.Errorf("result = %+v", result)
	}

	state, err := e.reviews.FindByOwner(item.ID)
	if err != nil {
		t.Fatalf("FindByOwner failed: %v", err)
	}
	if state.Repetitions != 2 || state.IntervalDays != 6 {
		t.Errorf("state = %+v", state)
	}
}

func TestQuizMergeByKey(t *testing.T) {
	e := setupEnv(t)
	collect := NewCollectService(CollectConfig{Words: e.words, Reviews: e.reviews, Clock: e.clk})
	quiz := NewQuizService(e.reviews, e.quizzes, e.engine, time.Hour, e.clk, nil)

	if _, err := collect.Collect(context.Background(), testDraft()); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	key, _, err := quiz.Create(10)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Merging the untouched stored payload is a no-op but not an error.
	result, err := quiz.Merge(key)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if result.Skipped != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestQuizMergeMissingSession(t *testing.T) {
	e := setupEnv(t)
	quiz := NewQuizService(e.reviews, e.quizzes, e.engine, time.Hour, e.clk, nil)

	result, err := quiz.Merge("no-such-session")
	if err != nil {
		t.Fatalf("missing session should be soft: %v", err)
	}
	if *result != (syncpkg.MergeResult{}) {
		t.Errorf("result = %+v, want zero", result)
	}
}

func TestQuizSweep(t *testing.T) {
	e := setupEnv(t)
	quiz := NewQuizService(e.reviews, e.quizzes, e.engine, time.Hour, e.clk, nil)

	// Store an already-expired session directly.
	expired := &models.ProgressPayload{
		Records:   map[string]models.RemoteProgress{"x::": {Repetitions: 1}},
		CreatedAt: testNow.Add(-2 * time.Hour).Unix(),
		ExpiresAt: testNow.Add(-time.Hour).Unix(),
	}
	if err := e.quizzes.Put("stale", expired); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	removed, err := quiz.Sweep()
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
}
