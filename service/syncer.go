// fedisync - a federated social network synchronization daemon.
// Copyright (C) 2026 Fedisync contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fedisync/fedisync/accounts"
	"github.com/fedisync/fedisync/database"
	"github.com/fedisync/fedisync/origins"
	"github.com/fedisync/fedisync/pumpio"
	"github.com/fedisync/fedisync/timelines"
)

// ProtocolClient is the adapter surface the syncer drives. pumpio.Client
// implements it; tests substitute fakes.
type ProtocolClient interface {
	Supports(routine origins.Routine) bool
	FetchTimeline(ctx context.Context, routine origins.Routine, since pumpio.Position, limit int, actorOID string) ([]pumpio.TimelineItem, error)
	FetchFollowed(ctx context.Context, actorOID string) ([]pumpio.User, error)
}

// SyncConfig tunes the drain loops.
type SyncConfig struct {
	SleepBetweenCommands time.Duration `yaml:"sleep_between_commands"`
	MaxIdleSleep         time.Duration `yaml:"max_idle_sleep"`
	FetchLimit           int           `yaml:"fetch_limit"`
	MaxRetries           int64         `yaml:"max_retries"`
}

func (sc *SyncConfig) applyDefaults() {
	if sc.SleepBetweenCommands <= 0 {
		sc.SleepBetweenCommands = 2 * time.Second
	}
	if sc.MaxIdleSleep <= 0 {
		sc.MaxIdleSleep = time.Minute
	}
	if sc.FetchLimit <= 0 {
		sc.FetchLimit = 20
	}
	if sc.MaxRetries <= 0 {
		sc.MaxRetries = 10
	}
}

// Syncer drains the command queues. One drain goroutine runs per queue
// type, so one sync proceeds at a time within a queue while queue types
// drain concurrently.
type Syncer struct {
	db        *database.Database
	queue     *Queue
	timelines *timelines.Registry
	accounts  *accounts.Registry
	log       zerolog.Logger
	cfg       SyncConfig

	clientLock sync.Mutex
	clients    map[int64]ProtocolClient
	newClient  func(account *accounts.Account) ProtocolClient

	followedLock sync.Mutex
	followed     map[int64][]pumpio.User
}

func NewSyncer(db *database.Database, queue *Queue, timelineReg *timelines.Registry, accountReg *accounts.Registry, cfg SyncConfig, log zerolog.Logger) *Syncer {
	cfg.applyDefaults()
	s := &Syncer{
		db:        db,
		queue:     queue,
		timelines: timelineReg,
		accounts:  accountReg,
		log:       log.With().Str("component", "syncer").Logger(),
		cfg:       cfg,
		clients:   make(map[int64]ProtocolClient),
		followed:  make(map[int64][]pumpio.User),
	}
	s.newClient = func(account *accounts.Account) ProtocolClient {
		return pumpio.NewClient(account.Origin, account, s.log)
	}
	return s
}

// RequestSync enqueues a fetch command for the timeline on the current
// queue.
func (s *Syncer) RequestSync(ctx context.Context, timeline *timelines.Timeline) error {
	return s.queue.Enqueue(ctx, QueueTypeCurrent, NewCommand(CommandFetchTimeline, timeline.ToReference()))
}

// Run drains all queue types until the context is cancelled.
func (s *Syncer) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, queueType := range DrainedQueueTypes {
		wg.Add(1)
		go func(qt QueueType) {
			defer wg.Done()
			s.drainLoop(ctx, qt)
		}(queueType)
	}
	wg.Wait()
}

// drainLoop processes one queue type. An empty queue grows the poll sleep
// up to the configured cap; any activity resets it.
func (s *Syncer) drainLoop(ctx context.Context, queueType QueueType) {
	log := s.log.With().Str("queue_type", string(queueType)).Logger()
	ctx = log.WithContext(ctx)
	log.Debug().Msg("Drain loop started")
	defer func() {
		log.Debug().Msg("Drain loop stopped")
	}()
	var extraTime time.Duration
	for {
		select {
		case <-time.After(s.cfg.SleepBetweenCommands + extraTime):
		case <-ctx.Done():
			return
		}

		entry := s.queue.DequeueNext(ctx, queueType)
		if entry.IsEmpty() {
			if extraTime < s.cfg.MaxIdleSleep {
				extraTime += 5 * time.Second
			}
			continue
		}
		extraTime = 0
		log.Debug().Str("entry", entry.SharedSubject()).Msg("Processing command")
		if err := s.process(ctx, entry); err != nil {
			if ctx.Err() != nil {
				// Cancelled mid-flight: the entry stays queued untouched.
				return
			}
			log.Err(err).Str("entry", entry.SharedSubject()).Msg("Command failed")
		}
	}
}

func (s *Syncer) clientFor(account *accounts.Account) ProtocolClient {
	s.clientLock.Lock()
	defer s.clientLock.Unlock()
	if client, ok := s.clients[account.ID]; ok {
		return client
	}
	client := s.newClient(account)
	s.clients[account.ID] = client
	return client
}

// process executes one queued command. Fetch failures keep the command
// queued: it is demoted one queue tier instead of dropped, up to the retry
// bound.
func (s *Syncer) process(ctx context.Context, entry QueueEntry) error {
	timeline := s.timelines.FromReference(ctx, entry.Command.Timeline)
	if timeline.IsEmpty() || !timeline.Account.IsValid() {
		s.log.Error().Str("entry", entry.SharedSubject()).Msg("Dropping command for unresolvable timeline")
		return s.queue.Remove(ctx, entry)
	}
	client := s.clientFor(timeline.Account)

	switch entry.Command.Code {
	case CommandFetchTimeline:
		return s.fetchTimeline(ctx, entry, timeline, client)
	case CommandFetchFollowed:
		return s.fetchFollowed(ctx, entry, timeline, client)
	default:
		s.log.Error().Str("entry", entry.SharedSubject()).Msg("Dropping command with unknown code")
		return s.queue.Remove(ctx, entry)
	}
}

func (s *Syncer) fetchTimeline(ctx context.Context, entry QueueEntry, timeline *timelines.Timeline, client ProtocolClient) error {
	routine := timeline.TimelineType().Routine()
	if !client.Supports(routine) {
		s.log.Warn().
			Str("routine", string(routine)).
			Str("timeline", timeline.String()).
			Msg("Origin does not support routine, parking command in error queue")
		return s.moveEntry(ctx, entry, QueueTypeError)
	}

	// Both drain goroutines can hold commands for the same timeline; the
	// watermark read below and the counter update in the transaction must
	// not interleave with another sync of the same record.
	timeline.SyncLock.Lock()
	defer timeline.SyncLock.Unlock()

	items, err := client.FetchTimeline(ctx, routine,
		pumpio.Position(timeline.YoungestPosition), s.cfg.FetchLimit, timeline.Account.ActorOID)
	if ctx.Err() != nil {
		// At-least-once: a cancelled fetch must not mark the timeline synced.
		return ctx.Err()
	}
	if err != nil {
		var connErr *pumpio.ConnectionError
		if errors.As(err, &connErr) {
			return s.recordFailure(ctx, entry, timeline, connErr.Cause)
		}
		return s.recordFailure(ctx, entry, timeline, err.Error())
	}

	youngest, youngestAt := youngestMessage(items)
	now := time.Now()
	// Counters, watermarks and the queue removal land in one transaction so
	// a crash never leaves watermarks newer than recorded content.
	return s.db.DoTxn(ctx, nil, func(ctx context.Context) error {
		timeline.RecordSyncSuccess(items, youngest, youngestAt, now)
		if _, err := timeline.Save(ctx); err != nil {
			return err
		}
		return s.queue.Remove(ctx, entry)
	})
}

func (s *Syncer) fetchFollowed(ctx context.Context, entry QueueEntry, timeline *timelines.Timeline, client ProtocolClient) error {
	timeline.SyncLock.Lock()
	defer timeline.SyncLock.Unlock()

	users, err := client.FetchFollowed(ctx, timeline.Account.ActorOID)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return s.recordFailure(ctx, entry, timeline, err.Error())
	}
	s.log.Debug().
		Int("user_count", len(users)).
		Str("account", timeline.Account.Name).
		Msg("Fetched followed users")
	now := time.Now()
	err = s.db.DoTxn(ctx, nil, func(ctx context.Context) error {
		timeline.SyncedAt = now
		timeline.SyncedCount++
		timeline.SyncedCountTotal++
		if _, err := timeline.Save(ctx); err != nil {
			return err
		}
		return s.queue.Remove(ctx, entry)
	})
	if err != nil {
		return err
	}
	s.followedLock.Lock()
	s.followed[timeline.Account.ID] = users
	s.followedLock.Unlock()
	return nil
}

// FollowedUsers returns the followed-user list recorded by the most recent
// successful fetch_followed command for the account, or nil when no fetch
// has completed yet.
func (s *Syncer) FollowedUsers(accountID int64) []pumpio.User {
	s.followedLock.Lock()
	defer s.followedLock.Unlock()
	return s.followed[accountID]
}

// recordFailure persists the failure counters and demotes the command one
// queue tier (current -> retry -> error) so it is retried by policy rather
// than dropped.
func (s *Syncer) recordFailure(ctx context.Context, entry QueueEntry, timeline *timelines.Timeline, cause string) error {
	now := time.Now()
	err := s.db.DoTxn(ctx, nil, func(ctx context.Context) error {
		timeline.RecordSyncFailure(cause, now)
		_, saveErr := timeline.Save(ctx)
		return saveErr
	})
	if err != nil {
		s.log.Err(err).Msg("Failed to record sync failure")
	}

	target := QueueTypeRetry
	if entry.Type == QueueTypeRetry || entry.Command.Retries+1 >= s.cfg.MaxRetries {
		target = QueueTypeError
	}
	return s.moveEntry(ctx, entry, target)
}

// moveEntry reinserts the entry under another queue type before removing
// the old one, so a crash in between duplicates instead of losing it.
func (s *Syncer) moveEntry(ctx context.Context, entry QueueEntry, target QueueType) error {
	moved := entry.Command
	moved.Retries++
	if err := s.queue.Enqueue(ctx, target, moved); err != nil {
		return err
	}
	return s.queue.Remove(ctx, entry)
}

// youngestMessage extracts the watermark from the first message item, the
// newest one in remote order.
func youngestMessage(items []pumpio.TimelineItem) (pumpio.Position, time.Time) {
	for _, item := range items {
		if item.Type == pumpio.ItemTypeMessage && item.Message.OID != "" {
			return pumpio.Position(item.Message.OID), item.Message.SentAt
		}
	}
	return "", time.Time{}
}
