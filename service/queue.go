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

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fedisync/fedisync/accounts"
	"github.com/fedisync/fedisync/database"
	"github.com/fedisync/fedisync/timelines"
)

// Queue is the durable command queue. Entries survive restarts once the
// write returns; an unavailable store degrades operations to logged no-ops
// instead of crashing the caller.
type Queue struct {
	db       *database.Database
	accounts *accounts.Registry
	log      zerolog.Logger
}

func NewQueue(db *database.Database, accountReg *accounts.Registry, log zerolog.Logger) *Queue {
	return &Queue{
		db:       db,
		accounts: accountReg,
		log:      log.With().Str("component", "command_queue").Logger(),
	}
}

func (q *Queue) toRow(queueType QueueType, cmd CommandData) *database.QueueCommand {
	row := q.db.Queue.New()
	row.QueueType = string(queueType)
	row.CreatedAt = cmd.CreatedAt
	row.UUID = cmd.UUID.String()
	row.Code = string(cmd.Code)
	row.TimelineID = cmd.Timeline.TimelineID
	row.TimelineType = string(cmd.Timeline.Type)
	row.AccountID = q.accounts.FromName(cmd.Timeline.AccountName).ID
	row.UserID = cmd.Timeline.UserID
	row.SearchQuery = cmd.Timeline.SearchQuery
	row.NumRetries = cmd.Retries
	return row
}

func entryFromRow(row *database.QueueCommand, accountName string) QueueEntry {
	cmd := CommandData{
		Code:      CommandCode(row.Code),
		CreatedAt: row.CreatedAt,
		Retries:   row.NumRetries,
		Timeline: timelines.Reference{
			TimelineID:  row.TimelineID,
			Type:        timelines.LoadType(row.TimelineType),
			AccountName: accountName,
			SearchQuery: row.SearchQuery,
			UserID:      row.UserID,
		},
	}
	if parsed, err := uuid.Parse(row.UUID); err == nil {
		cmd.UUID = parsed
	}
	return QueueEntry{Type: QueueType(row.QueueType), Command: cmd}
}

// Enqueue durably inserts or replaces the entry identified by the queue
// type and the command's creation instant.
func (q *Queue) Enqueue(ctx context.Context, queueType QueueType, cmd CommandData) error {
	if q.db == nil {
		q.log.Warn().Str("command", cmd.Summary()).Msg("Enqueue; store is unavailable")
		return nil
	}
	row := q.toRow(queueType, cmd)
	if err := row.Upsert(ctx); err != nil {
		q.log.Err(err).Str("command", cmd.Summary()).Msg("Failed to enqueue command")
		return err
	}
	q.log.Debug().
		Str("queue_type", string(queueType)).
		Str("command", cmd.Summary()).
		Msg("Enqueued command")
	return nil
}

// DequeueNext returns the most recently created entry for the queue type
// without removing it, or the empty sentinel when the queue is empty.
func (q *Queue) DequeueNext(ctx context.Context, queueType QueueType) QueueEntry {
	if q.db == nil {
		q.log.Warn().Msg("DequeueNext; store is unavailable")
		return EmptyEntry()
	}
	row, err := q.db.Queue.GetNext(ctx, string(queueType))
	if err != nil {
		q.log.Err(err).Str("queue_type", string(queueType)).Msg("Failed to read queue")
		return EmptyEntry()
	} else if row == nil {
		return EmptyEntry()
	}
	return entryFromRow(row, q.accounts.FromID(row.AccountID).Name)
}

// Remove deletes one processed entry.
func (q *Queue) Remove(ctx context.Context, entry QueueEntry) error {
	if q.db == nil || entry.IsEmpty() {
		return nil
	}
	row := q.toRow(entry.Type, entry.Command)
	if err := row.Delete(ctx); err != nil {
		q.log.Err(err).Str("entry", entry.SharedSubject()).Msg("Failed to remove queue entry")
		return err
	}
	return nil
}

// Purge removes every entry of the queue type.
func (q *Queue) Purge(ctx context.Context, queueType QueueType) error {
	if q.db == nil {
		q.log.Warn().Msg("Purge; store is unavailable")
		return nil
	}
	if err := q.db.Queue.Purge(ctx, string(queueType)); err != nil {
		q.log.Err(err).Str("queue_type", string(queueType)).Msg("Failed to purge queue")
		return err
	}
	q.log.Debug().Str("queue_type", string(queueType)).Msg("Purged queue")
	return nil
}

// Count returns the number of entries in the queue type.
func (q *Queue) Count(ctx context.Context, queueType QueueType) int {
	if q.db == nil {
		return 0
	}
	count, err := q.db.Queue.Count(ctx, string(queueType))
	if err != nil {
		q.log.Err(err).Str("queue_type", string(queueType)).Msg("Failed to count queue")
		return 0
	}
	return count
}

// SharedSubjects returns export labels for every entry of the queue type,
// newest first.
func (q *Queue) SharedSubjects(ctx context.Context, queueType QueueType) []string {
	if q.db == nil {
		return nil
	}
	rows, err := q.db.Queue.GetAll(ctx, string(queueType))
	if err != nil {
		q.log.Err(err).Str("queue_type", string(queueType)).Msg("Failed to list queue")
		return nil
	}
	subjects := make([]string, len(rows))
	for i, row := range rows {
		subjects[i] = entryFromRow(row, q.accounts.FromID(row.AccountID).Name).SharedSubject()
	}
	return subjects
}
