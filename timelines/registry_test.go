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

package timelines

import (
	"context"
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/util/dbutil"

	"github.com/fedisync/fedisync/accounts"
	"github.com/fedisync/fedisync/database"
	"github.com/fedisync/fedisync/origins"
)

func newTestRegistry(t *testing.T) (*Registry, *accounts.Account) {
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
	account := &accounts.Account{
		ID:       1,
		Name:     "t131t@identi.ca",
		ActorOID: "acct:t131t@identi.ca",
		Origin:   origin,
	}
	reg := NewRegistry(db,
		accounts.NewRegistry([]*accounts.Account{account}),
		origins.NewRegistry([]*origins.Origin{origin}),
		zerolog.Nop())
	return reg, account
}

func TestFromReferencePersistsAndDeduplicates(t *testing.T) {
	reg, account := newTestRegistry(t)
	ctx := context.Background()

	first := reg.FromReference(ctx, Reference{Type: TypeHome, AccountName: account.Name})
	require.True(t, first.IsValid())
	assert.True(t, first.Synced)

	second := reg.FromReference(ctx, Reference{Type: TypeHome, AccountName: account.Name})
	assert.Same(t, first, second, "same composite key resolves to the same instance")

	byID := reg.FromID(ctx, first.ID)
	assert.Same(t, first, byID)
}

func TestFromReferenceRequiresUserForUserTimelines(t *testing.T) {
	reg, account := newTestRegistry(t)
	ctx := context.Background()

	missing := reg.FromReference(ctx, Reference{Type: TypeUser, AccountName: account.Name})
	assert.False(t, missing.IsValid())
	assert.False(t, missing.Synced)
	assert.Zero(t, missing.ID, "invalid reference must not be persisted")

	withUser := reg.FromReference(ctx, Reference{
		Type:        TypeUser,
		AccountName: account.Name,
		UserID:      46155,
	})
	require.True(t, withUser.IsValid())
	assert.EqualValues(t, 46155, withUser.UserID)
}

func TestFromParsedURIRequiresUserForUserTimelines(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	parsed, err := ParseURI("fedisync://timeline/user?account_id=1")
	require.NoError(t, err)
	missing := reg.FromParsedURI(ctx, parsed, "")
	assert.False(t, missing.IsValid())
	assert.False(t, missing.Synced)

	parsed, err = ParseURI("fedisync://timeline/user?account_id=1&user_id=46155")
	require.NoError(t, err)
	resolved := reg.FromParsedURI(ctx, parsed, "")
	require.True(t, resolved.IsValid())
	assert.EqualValues(t, 46155, resolved.UserID)
}

func TestFromReferenceUnknownAccountYieldsPlaceholder(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	placeholder := reg.FromReference(ctx, Reference{Type: TypeHome, AccountName: "nobody@nowhere.example"})
	assert.False(t, placeholder.IsValid())
	assert.False(t, placeholder.Synced)
	assert.False(t, placeholder.Account.IsValid())
}

func TestAddDefaultsForAccount(t *testing.T) {
	reg, account := newTestRegistry(t)
	ctx := context.Background()

	created, err := reg.AddDefaultsForAccount(ctx, account)
	require.NoError(t, err)
	require.Len(t, created, len(DefaultTypes))
	for i, timeline := range created {
		assert.True(t, timeline.IsValid())
		assert.Equal(t, DefaultTypes[i], timeline.TimelineType())
		assert.Equal(t, DefaultTypes[i].SyncableByDefault(), timeline.Synced)
		assert.Equal(t, DefaultTypes[i].DefaultRank(), timeline.SelectorOrder)
	}
	assert.Len(t, reg.All(), len(DefaultTypes))
}
