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

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/util/dbutil"
)

const (
	putQueueCommand = `
		INSERT INTO command_queue (
			queue_type, created_date, command_uuid, command_code,
			timeline_id, timeline_type, account_id, user_id, search_query, num_retries
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (queue_type, created_date) DO UPDATE
			SET command_uuid=excluded.command_uuid, command_code=excluded.command_code,
			    timeline_id=excluded.timeline_id, timeline_type=excluded.timeline_type,
			    account_id=excluded.account_id, user_id=excluded.user_id,
			    search_query=excluded.search_query, num_retries=excluded.num_retries
	`
	queueCommandBaseSelect = `
		SELECT queue_type, created_date, command_uuid, command_code,
		       timeline_id, timeline_type, account_id, user_id, search_query, num_retries
		FROM command_queue
	`
	getNextQueueCommand = queueCommandBaseSelect + `
		WHERE queue_type=$1 ORDER BY created_date DESC LIMIT 1
	`
	getAllQueueCommands    = queueCommandBaseSelect + `WHERE queue_type=$1 ORDER BY created_date DESC`
	countQueueCommands     = `SELECT COUNT(*) FROM command_queue WHERE queue_type=$1`
	deleteQueueCommand     = `DELETE FROM command_queue WHERE queue_type=$1 AND created_date=$2`
	purgeQueueCommandsType = `DELETE FROM command_queue WHERE queue_type=$1`
)

type QueueCommandQuery struct {
	*dbutil.QueryHelper[*QueueCommand]
}

// QueueCommand is one durably queued synchronization command. The
// (QueueType, CreatedAt) pair is the row identity: enqueuing a command with
// the same queue type and creation instant replaces the stored entry.
type QueueCommand struct {
	qh *dbutil.QueryHelper[*QueueCommand]

	QueueType string
	CreatedAt time.Time
	UUID      string
	Code      string

	TimelineID   int64
	TimelineType string
	AccountID    int64
	UserID       int64
	SearchQuery  string
	NumRetries   int64
}

func newQueueCommand(qh *dbutil.QueryHelper[*QueueCommand]) *QueueCommand {
	return &QueueCommand{qh: qh}
}

func (qq *QueueCommandQuery) New() *QueueCommand {
	return newQueueCommand(qq.QueryHelper)
}

// GetNext returns the most recently created entry for the queue type, or
// nil when the queue is empty. Draining is newest-first.
func (qq *QueueCommandQuery) GetNext(ctx context.Context, queueType string) (*QueueCommand, error) {
	return qq.QueryOne(ctx, getNextQueueCommand, queueType)
}

func (qq *QueueCommandQuery) GetAll(ctx context.Context, queueType string) ([]*QueueCommand, error) {
	return qq.QueryMany(ctx, getAllQueueCommands, queueType)
}

func (qq *QueueCommandQuery) Count(ctx context.Context, queueType string) (count int, err error) {
	err = qq.GetDB().QueryRow(ctx, countQueueCommands, queueType).Scan(&count)
	return
}

// Purge removes every entry of the queue type.
func (qq *QueueCommandQuery) Purge(ctx context.Context, queueType string) error {
	_, err := qq.GetDB().Exec(ctx, purgeQueueCommandsType, queueType)
	return err
}

func (qc *QueueCommand) Scan(row dbutil.Scannable) (*QueueCommand, error) {
	var createdAt int64
	err := row.Scan(
		&qc.QueueType, &createdAt, &qc.UUID, &qc.Code,
		&qc.TimelineID, &qc.TimelineType, &qc.AccountID, &qc.UserID,
		&qc.SearchQuery, &qc.NumRetries,
	)
	if err != nil {
		return nil, err
	}
	qc.CreatedAt = timeFromUnixMilli(createdAt)
	return qc, nil
}

func (qc *QueueCommand) sqlVariables() []any {
	return []any{
		qc.QueueType,
		unixMilliOrZero(qc.CreatedAt),
		qc.UUID,
		qc.Code,
		qc.TimelineID,
		qc.TimelineType,
		qc.AccountID,
		qc.UserID,
		qc.SearchQuery,
		qc.NumRetries,
	}
}

// Upsert durably writes the entry, retrying transient failures so a
// requested sync is not silently dropped.
func (qc *QueueCommand) Upsert(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < writeAttempts; attempt++ {
		lastErr = qc.qh.Exec(ctx, putQueueCommand, qc.sqlVariables()...)
		if lastErr == nil {
			return nil
		}
		zerolog.Ctx(ctx).Warn().Err(lastErr).
			Str("queue_type", qc.QueueType).
			Int64("created_date", unixMilliOrZero(qc.CreatedAt)).
			Int("attempt", attempt+1).
			Msg("Failed to write queue entry, retrying")
	}
	return fmt.Errorf("%w: %w", ErrStorage, lastErr)
}

// Delete removes this entry from its queue.
func (qc *QueueCommand) Delete(ctx context.Context) error {
	return qc.qh.Exec(ctx, deleteQueueCommand, qc.QueueType, unixMilliOrZero(qc.CreatedAt))
}
