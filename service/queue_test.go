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
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/util/dbutil"

	"github.com/fedisync/fedisync/accounts"
	"github.com/fedisync/fedisync/database"
	"github.com/fedisync/fedisync/origins"
	"github.com/fedisync/fedisync/timelines"
)

type testEnv struct {
	db        *database.Database
	queue     *Queue
	timelines *timelines.Registry
	accounts  *accounts.Registry
	account   *accounts.Account
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	raw, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// An in-memory sqlite database exists per connection.
	raw.SetMaxOpenConns(1)
	inner, err := dbutil.NewWithDB(raw, "sqlite3")
	require.NoError(t, err)
	inner.Log = dbutil.ZeroLogger(zerolog.Nop())
	db := database.New(inner)
	require.NoError(t, db.Upgrade(context.Background()))
	t.Cleanup(func() {
		_ = db.Close()
	})

	origin := origins.New(1, "identica", "identi.ca", true, nil)
	originReg := origins.NewRegistry([]*origins.Origin{origin})
	account := &accounts.Account{
		ID:       1,
		Name:     "t131t@identi.ca",
		ActorOID: "acct:t131t@identi.ca",
		Origin:   origin,
	}
	accountReg := accounts.NewRegistry([]*accounts.Account{account})
	return &testEnv{
		db:        db,
		queue:     NewQueue(db, accountReg, zerolog.Nop()),
		timelines: timelines.NewRegistry(db, accountReg, originReg, zerolog.Nop()),
		accounts:  accountReg,
		account:   account,
	}
}

func (env *testEnv) command(createdAt time.Time) CommandData {
	cmd := NewCommand(CommandFetchTimeline, timelines.Reference{
		Type:        timelines.TypeHome,
		AccountName: env.account.Name,
	})
	cmd.CreatedAt = createdAt
	return cmd
}

func TestEnqueueDeduplicatesByCreationInstant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	createdAt := time.UnixMilli(1388178600000)

	require.NoError(t, env.queue.Enqueue(ctx, QueueTypeCurrent, env.command(createdAt)))
	replacement := env.command(createdAt)
	replacement.Retries = 4
	require.NoError(t, env.queue.Enqueue(ctx, QueueTypeCurrent, replacement))

	assert.Equal(t, 1, env.queue.Count(ctx, QueueTypeCurrent))
	entry := env.queue.DequeueNext(ctx, QueueTypeCurrent)
	require.False(t, entry.IsEmpty())
	assert.Equal(t, replacement.UUID, entry.Command.UUID)
	assert.EqualValues(t, 4, entry.Command.Retries)
	assert.Equal(t, entry.Key(), QueueEntry{Type: QueueTypeCurrent, Command: replacement}.Key())
}

func TestDequeueNewestFirstWithoutRemoving(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, offset := range []int64{100, 300, 200} {
		require.NoError(t, env.queue.Enqueue(ctx, QueueTypeCurrent, env.command(time.UnixMilli(offset))))
	}

	entry := env.queue.DequeueNext(ctx, QueueTypeCurrent)
	assert.EqualValues(t, 300, entry.Command.CreatedAt.UnixMilli())
	assert.Equal(t, 3, env.queue.Count(ctx, QueueTypeCurrent), "dequeue must not remove the entry")

	var drained []int64
	for {
		entry := env.queue.DequeueNext(ctx, QueueTypeCurrent)
		if entry.IsEmpty() {
			break
		}
		drained = append(drained, entry.Command.CreatedAt.UnixMilli())
		require.NoError(t, env.queue.Remove(ctx, entry))
	}
	assert.Equal(t, []int64{300, 200, 100}, drained)
}

func TestDequeueResolvesAccountName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.queue.Enqueue(ctx, QueueTypeCurrent, env.command(time.UnixMilli(1000))))
	entry := env.queue.DequeueNext(ctx, QueueTypeCurrent)
	assert.Equal(t, env.account.Name, entry.Command.Timeline.AccountName)
	assert.Equal(t, timelines.TypeHome, entry.Command.Timeline.Type)
}

func TestPurge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.queue.Enqueue(ctx, QueueTypeCurrent, env.command(time.UnixMilli(1000))))
	require.NoError(t, env.queue.Enqueue(ctx, QueueTypeRetry, env.command(time.UnixMilli(1000))))
	require.NoError(t, env.queue.Purge(ctx, QueueTypeCurrent))

	assert.Zero(t, env.queue.Count(ctx, QueueTypeCurrent))
	assert.Equal(t, 1, env.queue.Count(ctx, QueueTypeRetry), "purge is scoped to one queue type")
}

func TestSharedSubjects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.queue.Enqueue(ctx, QueueTypeCurrent, env.command(time.UnixMilli(1000))))
	subjects := env.queue.SharedSubjects(ctx, QueueTypeCurrent)
	require.Len(t, subjects, 1)
	assert.Equal(t, "C; fetch_timeline home of t131t@identi.ca", subjects[0])
}

func TestQueueWithoutStoreDegradesToNoOps(t *testing.T) {
	queue := NewQueue(nil, accounts.NewRegistry(nil), zerolog.Nop())
	ctx := context.Background()

	assert.NoError(t, queue.Enqueue(ctx, QueueTypeCurrent, NewCommand(CommandFetchTimeline, timelines.Reference{})))
	assert.True(t, queue.DequeueNext(ctx, QueueTypeCurrent).IsEmpty())
	assert.Zero(t, queue.Count(ctx, QueueTypeCurrent))
	assert.NoError(t, queue.Purge(ctx, QueueTypeCurrent))
	assert.Nil(t, queue.SharedSubjects(ctx, QueueTypeCurrent))
}

func TestSharedTextAndSummary(t *testing.T) {
	assert.Equal(t, "U; empty command", EmptyEntry().SharedSubject())

	cmd := NewCommand(CommandFetchTimeline, timelines.Reference{
		Type:        timelines.TypeSearch,
		AccountName: "t131t@identi.ca",
		SearchQuery: "cats",
	})
	assert.Equal(t, `fetch_timeline search of t131t@identi.ca search:"cats"`, cmd.Summary())

	entry := QueueEntry{Type: QueueTypeError, Command: cmd}
	assert.Contains(t, entry.SharedText(), "E; fetch_timeline search")
	assert.Contains(t, entry.SharedText(), cmd.UUID.String())
}
