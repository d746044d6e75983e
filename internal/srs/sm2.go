// Package srs implements the SM-2 spaced-repetition update rule.
//
// Advance is a pure function: no I/O, no shared state, the input is
// never mutated. That property is what makes "more advanced" review
// state a total order the merge engine can rely on.
package srs

import (
	"math"
	"time"

	apperrors "github.com/wordstash/wordstash/internal/errors"
)

// PassThreshold is the lowest rating that counts as a successful
// recall. Ratings below it reset the repetition streak.
const PassThreshold = 3

// Config holds the scheduling constants. Zero values produce the
// defaults; see field comments.
type Config struct {
	MinEase        float64 // zero → 1.3
	MaxEase        float64 // zero → 2.5
	FirstInterval  int     // zero → 1 day
	SecondInterval int     // zero → 6 days
}

// DefaultConfig returns the standard SM-2 constants.
func DefaultConfig() Config {
	return Config{
		MinEase:        1.3,
		MaxEase:        2.5,
		FirstInterval:  1,
		SecondInterval: 6,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinEase == 0 {
		c.MinEase = d.MinEase
	}
	if c.MaxEase == 0 {
		c.MaxEase = d.MaxEase
	}
	if c.FirstInterval == 0 {
		c.FirstInterval = d.FirstInterval
	}
	if c.SecondInterval == 0 {
		c.SecondInterval = d.SecondInterval
	}
	return c
}

// State is the scheduling input: the fields of a review state that the
// update rule reads.
type State struct {
	IntervalDays int
	EaseFactor   float64
	Repetitions  int
}

// Result is the scheduling output applied back onto a review state.
type Result struct {
	NextReviewAt time.Time
	IntervalDays int
	EaseFactor   float64
	Repetitions  int
}

// InitialState returns the scheduling fields of a freshly created
// review state: due immediately, never repeated, default ease.
func InitialState() State {
	return State{
		IntervalDays: 0,
		EaseFactor:   2.5,
		Repetitions:  0,
	}
}

// Advance applies one review with the given rating (1..5) at now.
//
// The ease factor moves by the SM-2 delta and is clamped to
// [MinEase, MaxEase]. A failing rating (below PassThreshold) resets the
// repetition streak and schedules the first interval again; a passing
// rating grows the interval 1 → FirstInterval, 2 → SecondInterval,
// then round(interval · ease).
func Advance(state State, rating int, now time.Time, cfg Config) (Result, error) {
	if rating < 1 || rating > 5 {
		return Result{}, apperrors.Newf(apperrors.ErrValidation, "rating %d out of range 1..5", rating)
	}
	cfg = cfg.withDefaults()

	q := float64(rating)
	ease := state.EaseFactor + (0.1 - (5-q)*(0.08+(5-q)*0.02))
	if ease < cfg.MinEase {
		ease = cfg.MinEase
	}
	if ease > cfg.MaxEase {
		ease = cfg.MaxEase
	}

	result := Result{EaseFactor: ease}

	if rating < PassThreshold {
		result.Repetitions = 0
		result.IntervalDays = cfg.FirstInterval
	} else {
		result.Repetitions = state.Repetitions + 1
		switch result.Repetitions {
		case 1:
			result.IntervalDays = cfg.FirstInterval
		case 2:
			result.IntervalDays = cfg.SecondInterval
		default:
			result.IntervalDays = int(math.Round(float64(state.IntervalDays) * ease))
		}
	}

	result.NextReviewAt = now.AddDate(0, 0, result.IntervalDays)
	return result, nil
}
