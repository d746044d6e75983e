package services

import (
	"context"
	"time"

	"github.com/wordstash/wordstash/internal/bus"
	"github.com/wordstash/wordstash/internal/clock"
	"github.com/wordstash/wordstash/internal/db"
	"github.com/wordstash/wordstash/internal/logging"
	syncpkg "github.com/wordstash/wordstash/internal/sync"
)

// RemoteSyncService reconciles the local review state with the remote
// authoritative copy for one account: fetch the remote payload, merge
// it under progress dominance, then push the merged local state back.
type RemoteSyncService struct {
	remote  syncpkg.RemoteStore
	reviews *db.ReviewStore
	engine  *syncpkg.Engine
	account string
	ttl     time.Duration
	bus     *bus.Bus
	sender  string
	clk     clock.Clock
	log     *logging.Logger
}

// NewRemoteSyncService creates a RemoteSyncService. A zero ttl defaults
// to 7 days for the pushed payload's expiry.
func NewRemoteSyncService(remote syncpkg.RemoteStore, reviews *db.ReviewStore, engine *syncpkg.Engine,
	account string, ttl time.Duration, eventBus *bus.Bus, clk clock.Clock, log *logging.Logger) *RemoteSyncService {
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	if clk == nil {
		clk = clock.System
	}
	if log == nil {
		log = logging.Nop()
	}
	s := &RemoteSyncService{
		remote:  remote,
		reviews: reviews,
		engine:  engine,
		account: account,
		ttl:     ttl,
		bus:     eventBus,
		clk:     clk,
		log:     log,
	}
	if s.bus != nil {
		s.sender = s.bus.NewSender()
	}
	return s
}

// Run performs one full sync. An absent or expired remote record is a
// soft outcome: nothing is merged and the local state is still pushed.
func (s *RemoteSyncService) Run(ctx context.Context) (*syncpkg.MergeResult, error) {
	payload, err := s.remote.Fetch(ctx, s.account)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.MergeRemoteProgress(payload)
	if err != nil {
		return nil, err
	}

	states, err := s.reviews.All()
	if err != nil {
		return nil, err
	}
	outgoing := s.engine.BuildProgressPayload(states, s.ttl)
	if err := s.remote.Push(ctx, s.account, outgoing); err != nil {
		return nil, err
	}

	if s.bus != nil {
		s.bus.Publish(s.sender, bus.EventSyncCompleted, map[string]interface{}{
			"created": result.Created,
			"updated": result.Updated,
			"skipped": result.Skipped,
		})
	}
	s.log.Info("remote sync completed", map[string]interface{}{
		"account": s.account,
		"pushed":  len(outgoing.Records),
	})
	return result, nil
}
