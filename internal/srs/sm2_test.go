package srs

import (
	"testing"
	"time"

	apperrors "github.com/wordstash/wordstash/internal/errors"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestAdvanceFirstReviews(t *testing.T) {
	cfg := Config{}

	// First successful review: one repetition, first interval.
	out, err := Advance(InitialState(), 3, testNow, cfg)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if out.Repetitions != 1 {
		t.Errorf("repetitions = %d, want 1", out.Repetitions)
	}
	if out.IntervalDays != 1 {
		t.Errorf("interval = %d, want 1", out.IntervalDays)
	}
	if want := testNow.AddDate(0, 0, 1); !out.NextReviewAt.Equal(want) {
		t.Errorf("nextReviewAt = %v, want %v", out.NextReviewAt, want)
	}

	// Second successful review: second interval.
	out, err = Advance(State{IntervalDays: out.IntervalDays, EaseFactor: out.EaseFactor, Repetitions: out.Repetitions}, 4, testNow, cfg)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if out.Repetitions != 2 {
		t.Errorf("repetitions = %d, want 2", out.Repetitions)
	}
	if out.IntervalDays != 6 {
		t.Errorf("interval = %d, want 6", out.IntervalDays)
	}
}

func TestAdvanceGrowsByEase(t *testing.T) {
	state := State{IntervalDays: 6, EaseFactor: 2.5, Repetitions: 2}
	out, err := Advance(state, 5, testNow, Config{})
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	// Rating 5 leaves a max-ease state at max ease; 6 * 2.5 rounds to 15.
	if out.EaseFactor != 2.5 {
		t.Errorf("ease = %g, want 2.5", out.EaseFactor)
	}
	if out.IntervalDays != 15 {
		t.Errorf("interval = %d, want 15", out.IntervalDays)
	}
	if out.Repetitions != 3 {
		t.Errorf("repetitions = %d, want 3", out.Repetitions)
	}
}

func TestAdvanceFailureResetsStreak(t *testing.T) {
	state := State{IntervalDays: 15, EaseFactor: 2.5, Repetitions: 3}
	out, err := Advance(state, 1, testNow, Config{})
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if out.Repetitions != 0 {
		t.Errorf("repetitions = %d, want 0 after failure", out.Repetitions)
	}
	if out.IntervalDays != 1 {
		t.Errorf("interval = %d, want 1 after failure", out.IntervalDays)
	}
	// Failure still lowers the ease factor.
	if out.EaseFactor >= 2.5 {
		t.Errorf("ease = %g, want below 2.5", out.EaseFactor)
	}
}

func TestAdvanceEaseStaysClamped(t *testing.T) {
	cfg := Config{}
	for rating := 1; rating <= 5; rating++ {
		for _, ease := range []float64{1.3, 1.8, 2.5} {
			out, err := Advance(State{IntervalDays: 10, EaseFactor: ease, Repetitions: 5}, rating, testNow, cfg)
			if err != nil {
				t.Fatalf("Advance(rating=%d) failed: %v", rating, err)
			}
			if out.EaseFactor < 1.3 || out.EaseFactor > 2.5 {
				t.Errorf("rating %d from ease %g: result %g outside [1.3, 2.5]", rating, ease, out.EaseFactor)
			}
		}
	}
}

func TestAdvanceRejectsInvalidRating(t *testing.T) {
	for _, rating := range []int{0, -1, 6, 100} {
		_, err := Advance(InitialState(), rating, testNow, Config{})
		if !apperrors.Is(err, apperrors.ErrValidation) {
			t.Errorf("rating %d: expected validation error, got %v", rating, err)
		}
	}
}

func TestAdvanceDoesNotMutateInput(t *testing.T) {
	state := State{IntervalDays: 6, EaseFactor: 2.0, Repetitions: 2}
	before := state
	if _, err := Advance(state, 4, testNow, Config{}); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if state != before {
		t.Errorf("input state mutated: %+v -> %+v", before, state)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	want := DefaultConfig()
	if cfg != want {
		t.Errorf("withDefaults() = %+v, want %+v", cfg, want)
	}

	// Explicit values are preserved.
	custom := Config{FirstInterval: 2}.withDefaults()
	if custom.FirstInterval != 2 {
		t.Errorf("FirstInterval = %d, want 2", custom.FirstInterval)
	}
	if custom.SecondInterval != 6 {
		t.Errorf("SecondInterval = %d, want 6", custom.SecondInterval)
	}
}
