// Package retry provides bounded retry with exponential backoff for
// remote network operations. Only errors the taxonomy marks retryable
// (transient network failures) are attempted again; validation and
// not-found failures surface immediately.
package retry

import (
	"context"
	"time"

	apperrors "github.com/wordstash/wordstash/internal/errors"
)

// Config bounds the retry loop. Zero values produce the defaults.
type Config struct {
	Attempts   int           // zero → 3
	BaseDelay  time.Duration // zero → 1s
	Multiplier float64       // zero → 2
	MaxDelay   time.Duration // zero → 10s
}

// DefaultConfig returns the standard retry policy.
func DefaultConfig() Config {
	return Config{
		Attempts:   3,
		BaseDelay:  time.Second,
		Multiplier: 2,
		MaxDelay:   10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Attempts == 0 {
		c.Attempts = d.Attempts
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.Multiplier == 0 {
		c.Multiplier = d.Multiplier
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = d.MaxDelay
	}
	return c
}

// Do runs op, retrying on retryable errors until the attempt budget is
// spent or ctx is done. The last error is returned unchanged so callers
// keep the full error detail.
func Do(ctx context.Context, cfg Config, op func() error) error {
	cfg = cfg.withDefaults()

	delay := cfg.BaseDelay
	var err error
	for attempt := 1; ; attempt++ {
		err = op()
		if err == nil || !apperrors.Retryable(err) || attempt >= cfg.Attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}
