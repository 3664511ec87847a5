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
	"sync"

	"github.com/rs/zerolog"

	"github.com/fedisync/fedisync/accounts"
	"github.com/fedisync/fedisync/database"
	"github.com/fedisync/fedisync/origins"
)

// Registry is the persistent-timelines registry: a cache over the timeline
// table with account and origin references resolved. Lookups never fail on
// dangling references; they substitute empty placeholders and log instead.
type Registry struct {
	db       *database.Database
	log      zerolog.Logger
	accounts *accounts.Registry
	origins  *origins.Registry

	lock  sync.Mutex
	byID  map[int64]*Timeline
	byKey map[database.TimelineKey]*Timeline
}

func NewRegistry(db *database.Database, accountReg *accounts.Registry, originReg *origins.Registry, log zerolog.Logger) *Registry {
	return &Registry{
		db:       db,
		log:      log.With().Str("component", "timelines").Logger(),
		accounts: accountReg,
		origins:  originReg,
		byID:     make(map[int64]*Timeline),
		byKey:    make(map[database.TimelineKey]*Timeline),
	}
}

// wrap resolves the account and origin references of a row. A reference to
// an account that no longer exists resolves to the empty account so loads
// never fail outright.
func (reg *Registry) wrap(row *database.Timeline) *Timeline {
	account := reg.accounts.FromID(row.AccountID)
	if row.AccountID != 0 && !account.IsValid() {
		reg.log.Error().
			Int64("timeline_id", row.ID).
			Int64("account_id", row.AccountID).
			Msg("Timeline references unknown account, using empty placeholder")
	}
	return &Timeline{
		Timeline: row,
		Account:  account,
		Origin:   reg.origins.FromID(row.OriginID),
	}
}

// Empty returns the unsaved unknown-kind sentinel owned by the account.
func (reg *Registry) Empty(account *accounts.Account) *Timeline {
	if account == nil {
		account = accounts.Empty()
	}
	return &Timeline{
		Timeline: reg.db.Timeline.New(),
		Account:  account,
		Origin:   origins.Empty(),
	}
}

// New constructs a transient timeline of the given kind for the account.
func (reg *Registry) New(timelineType Type, account *accounts.Account) *Timeline {
	t := reg.Empty(account)
	t.Type = string(timelineType)
	if account.IsValid() {
		t.AccountID = account.ID
		t.Origin = account.Origin
		if account.Origin.IsValid() {
			t.OriginID = account.Origin.ID
		}
	}
	t.Synced = true
	t.DisplayedInSelector = true
	t.SelectorOrder = timelineType.DefaultRank()
	return t
}

func (reg *Registry) cache(t *Timeline) {
	if t.ID != 0 {
		reg.byID[t.ID] = t
	}
	reg.byKey[t.Key()] = t
}

// LoadAll fills the cache from storage.
func (reg *Registry) LoadAll(ctx context.Context) error {
	rows, err := reg.db.Timeline.GetAll(ctx)
	if err != nil {
		return err
	}
	reg.lock.Lock()
	defer reg.lock.Unlock()
	reg.byID = make(map[int64]*Timeline, len(rows))
	reg.byKey = make(map[database.TimelineKey]*Timeline, len(rows))
	for _, row := range rows {
		reg.cache(reg.wrap(row))
	}
	reg.log.Debug().Int("count", len(rows)).Msg("Loaded timelines")
	return nil
}

// All returns the cached timelines in selector order.
func (reg *Registry) All() []*Timeline {
	reg.lock.Lock()
	defer reg.lock.Unlock()
	list := make([]*Timeline, 0, len(reg.byKey))
	for _, t := range reg.byKey {
		list = append(list, t)
	}
	SortBySelectorOrder(list)
	return list
}

// FromID resolves a timeline by row id, reading through to storage on a
// cache miss. Unknown ids yield the empty sentinel.
func (reg *Registry) FromID(ctx context.Context, id int64) *Timeline {
	if id == 0 {
		return reg.Empty(nil)
	}
	reg.lock.Lock()
	if t, ok := reg.byID[id]; ok {
		reg.lock.Unlock()
		return t
	}
	reg.lock.Unlock()

	row, err := reg.db.Timeline.GetByID(ctx, id)
	if err != nil {
		reg.log.Err(err).Int64("timeline_id", id).Msg("Failed to load timeline")
		return reg.Empty(nil)
	} else if row == nil {
		return reg.Empty(nil)
	}
	t := reg.wrap(row)
	reg.lock.Lock()
	reg.cache(t)
	reg.lock.Unlock()
	return t
}

// FromNew resolves a transient timeline to the matching persisted one by
// composite key, persisting the new record when none matches yet.
func (reg *Registry) FromNew(ctx context.Context, t *Timeline) *Timeline {
	if t.IsEmpty() {
		return t
	}
	key := t.Key()
	reg.lock.Lock()
	if existing, ok := reg.byKey[key]; ok {
		reg.lock.Unlock()
		return existing
	}
	reg.lock.Unlock()

	row, err := reg.db.Timeline.GetByKey(ctx, key)
	if err != nil {
		reg.log.Err(err).Str("timeline", t.String()).Msg("Failed to look up timeline by key")
		return t
	}
	if row != nil {
		stored := reg.wrap(row)
		reg.lock.Lock()
		reg.cache(stored)
		reg.lock.Unlock()
		return stored
	}
	if _, err = t.Save(ctx); err != nil {
		reg.log.Err(err).Str("timeline", t.String()).Msg("Failed to persist new timeline")
		return t
	}
	reg.lock.Lock()
	reg.cache(t)
	reg.lock.Unlock()
	return t
}

// FromReference reconstructs a timeline from its transport form. A
// resolvable id wins; otherwise the composite fields are matched or
// persisted fresh. Resolution failure yields a transient placeholder.
func (reg *Registry) FromReference(ctx context.Context, ref Reference) *Timeline {
	if ref.TimelineID != 0 {
		if t := reg.FromID(ctx, ref.TimelineID); !t.IsEmpty() {
			return t
		}
	}
	account := reg.accounts.FromName(ref.AccountName)
	t := reg.New(ref.Type, account)
	t.SearchQuery = ref.SearchQuery
	t.UserID = ref.UserID
	// User timelines without a target user are as unresolvable as an
	// unknown kind.
	if t.IsEmpty() || !account.IsValid() || (ref.Type == TypeUser && ref.UserID == 0) {
		reg.log.Error().
			Str("timeline_type", string(ref.Type)).
			Str("account", ref.AccountName).
			Int64("user_id", ref.UserID).
			Msg("Failed to resolve timeline reference")
		t.Synced = false
		return t
	}
	return reg.FromNew(ctx, t)
}

// FromParsedURI resolves a timeline descriptor URI the same way,
// defaulting the search query when the descriptor has none.
func (reg *Registry) FromParsedURI(ctx context.Context, parsed ParsedURI, searchQuery string) *Timeline {
	account := reg.accounts.FromID(parsed.AccountID)
	t := reg.New(parsed.Type, account)
	t.UserID = parsed.UserID
	if !parsed.Type.IsValid() || !account.IsValid() || (parsed.Type == TypeUser && parsed.UserID == 0) {
		reg.log.Error().
			Str("uri", parsed.URI).
			Str("timeline_type", string(parsed.Type)).
			Int64("account_id", parsed.AccountID).
			Msg("Failed to resolve timeline URI")
		t.Synced = false
		return t
	}
	t.SearchQuery = parsed.SearchQuery
	if t.SearchQuery == "" {
		t.SearchQuery = searchQuery
	}
	return reg.FromNew(ctx, t)
}

// AddDefaultsForAccount creates and persists the default timeline set for
// a freshly configured account, one record per default kind.
func (reg *Registry) AddDefaultsForAccount(ctx context.Context, account *accounts.Account) ([]*Timeline, error) {
	created := make([]*Timeline, 0, len(DefaultTypes))
	for _, timelineType := range DefaultTypes {
		t := reg.New(timelineType, account)
		t.Synced = timelineType.SyncableByDefault()
		if _, err := t.Save(ctx); err != nil {
			return created, err
		}
		reg.lock.Lock()
		reg.cache(t)
		reg.lock.Unlock()
		created = append(created, t)
	}
	reg.log.Info().
		Str("account", account.Name).
		Int("count", len(created)).
		Msg("Created default timelines")
	return created, nil
}

// Delete removes the timeline best-effort: failures are logged, never
// propagated.
func (reg *Registry) Delete(ctx context.Context, t *Timeline) {
	if t.ID == 0 {
		return
	}
	if err := t.Timeline.Delete(ctx); err != nil {
		reg.log.Err(err).Int64("timeline_id", t.ID).Msg("Failed to delete timeline")
		return
	}
	reg.lock.Lock()
	delete(reg.byID, t.ID)
	delete(reg.byKey, t.Key())
	reg.lock.Unlock()
	reg.log.Debug().Str("timeline", t.String()).Msg("Timeline deleted")
}
