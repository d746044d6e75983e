// Package services wires the stores, the scheduler and the external
// collaborators into the user-facing workflows.
package services

import (
	"context"

	"github.com/wordstash/wordstash/internal/bus"
	"github.com/wordstash/wordstash/internal/clock"
	"github.com/wordstash/wordstash/internal/db"
	"github.com/wordstash/wordstash/internal/dictionary"
	"github.com/wordstash/wordstash/internal/logging"
	"github.com/wordstash/wordstash/internal/models"
	"github.com/wordstash/wordstash/internal/srs"
)

// Lookuper resolves definitions for a word. *dictionary.Client
// satisfies it; tests substitute fakes.
type Lookuper interface {
	Lookup(ctx context.Context, word string) (*dictionary.Entry, error)
}

// CollectService drives the collection and review workflows.
type CollectService struct {
	words   *db.WordStore
	reviews *db.ReviewStore
	dict    Lookuper
	bus     *bus.Bus
	sender  string
	changed func()
	srsCfg  srs.Config
	clk     clock.Clock
	log     *logging.Logger
}

// CollectConfig wires a CollectService. Dict, Bus and Changed are
// optional; a nil clock falls back to the system clock.
type CollectConfig struct {
	Words   *db.WordStore
	Reviews *db.ReviewStore
	Dict    Lookuper
	Bus     *bus.Bus
	Changed func() // debounced sync trigger, called after each mutation
	SRS     srs.Config
	Clock   clock.Clock
	Logger  *logging.Logger
}

// NewCollectService creates a CollectService.
func NewCollectService(cfg CollectConfig) *CollectService {
	if cfg.Clock == nil {
		cfg.Clock = clock.System
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	s := &CollectService{
		words:   cfg.Words,
		reviews: cfg.Reviews,
		dict:    cfg.Dict,
		bus:     cfg.Bus,
		changed: cfg.Changed,
		srsCfg:  cfg.SRS,
		clk:     cfg.Clock,
		log:     cfg.Logger,
	}
	if s.bus != nil {
		s.sender = s.bus.NewSender()
	}
	return s
}

// Collect creates a vocabulary item from a draft and schedules it for
// review. Definition lookup and review-state creation are best-effort:
// the item persists even when either step fails. Duplicate and
// validation failures surface to the caller untouched.
func (s *CollectService) Collect(ctx context.Context, draft db.Draft) (*models.VocabularyItem, error) {
	if len(draft.Definitions) == 0 && s.dict != nil {
		entry, err := s.dict.Lookup(ctx, draft.Text)
		if err != nil {
			s.log.Debug("definition lookup failed", map[string]interface{}{
				"word":  draft.Text,
				"error": err.Error(),
			})
		} else {
			draft.Definitions = entry.Definitions
			if draft.Phonetic == "" {
				draft.Phonetic = entry.Phonetic
			}
			if draft.AudioURL == "" {
				draft.AudioURL = entry.AudioURL
			}
		}
	}

	item, err := s.words.Create(draft)
	if err != nil {
		return nil, err
	}

	initial := srs.InitialState()
	state := models.ReviewState{
		ID:           item.ID,
		NextReviewAt: s.clk().Unix(), // due immediately
		IntervalDays: initial.IntervalDays,
		EaseFactor:   initial.EaseFactor,
		Repetitions:  initial.Repetitions,
	}
	if err := s.reviews.Create(item.ID, state); err != nil {
		s.log.Warn("failed to create review state, item kept", map[string]interface{}{
			"id":    item.ID,
			"error": err.Error(),
		})
	}

	s.publish(bus.EventWordSaved, map[string]interface{}{
		"id":   item.ID,
		"text": item.DisplayText,
	})
	s.notifyChanged()
	return item, nil
}

// Review records one review: it advances the scheduling state through
// the pure update rule and persists history entry and field update as
// one unit. The updated state is returned.
func (s *CollectService) Review(ownerID string, rating int) (*models.ReviewState, error) {
	state, err := s.reviews.FindByOwner(ownerID)
	if err != nil {
		return nil, err
	}

	out, err := srs.Advance(srs.State{
		IntervalDays: state.IntervalDays,
		EaseFactor:   state.EaseFactor,
		Repetitions:  state.Repetitions,
	}, rating, s.clk(), s.srsCfg)
	if err != nil {
		return nil, err
	}

	if err := s.reviews.RecordReview(ownerID, rating, out); err != nil {
		return nil, err
	}

	s.publish(bus.EventReviewRecorded, map[string]interface{}{
		"id":     ownerID,
		"rating": rating,
	})
	s.notifyChanged()
	return s.reviews.FindByOwner(ownerID)
}

// Delete soft-deletes an item and announces it.
func (s *CollectService) Delete(id string) error {
	if err := s.words.SoftDelete(id); err != nil {
		return err
	}
	s.publish(bus.EventWordDeleted, map[string]interface{}{"id": id})
	s.notifyChanged()
	return nil
}

func (s *CollectService) publish(msgType string, payload map[string]interface{}) {
	if s.bus != nil {
		s.bus.Publish(s.sender, msgType, payload)
	}
}

func (s *CollectService) notifyChanged() {
	if s.changed != nil {
		s.changed()
	}
}
