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
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/fedisync/fedisync/accounts"
	"github.com/fedisync/fedisync/database"
	"github.com/fedisync/fedisync/origins"
	"github.com/fedisync/fedisync/pumpio"
)

// Timeline is one sync target with its owning account and origin resolved.
// Identity for deduplication is the composite Key, never the row id or the
// counters.
type Timeline struct {
	*database.Timeline

	Account *accounts.Account
	Origin  *origins.Origin

	// SyncLock serializes syncs of one timeline across queue drain
	// goroutines: the since-watermark read and the counter update must not
	// interleave. The registry hands out one shared instance per record,
	// so the lock covers every concurrent resolver of the same timeline.
	SyncLock sync.Mutex
}

// TimelineType returns the parsed kind of the underlying row.
func (t *Timeline) TimelineType() Type {
	return LoadType(t.Type)
}

func (t *Timeline) IsEmpty() bool {
	return !t.TimelineType().IsValid()
}

// IsValid reports whether the timeline is a persisted, known-kind record.
func (t *Timeline) IsValid() bool {
	return t.TimelineType().IsValid() && t.ID != 0
}

// DisplayName resolves the explicit name override, falling back to the
// kind's default title.
func (t *Timeline) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.TimelineType().Title()
}

// Compare orders timelines by selector order only.
func (t *Timeline) Compare(other *Timeline) int {
	return cmp.Compare(t.SelectorOrder, other.SelectorOrder)
}

// SortBySelectorOrder sorts the slice in the stable user-chosen order.
func SortBySelectorOrder(list []*Timeline) {
	slices.SortStableFunc(list, func(a, b *Timeline) int {
		return a.Compare(b)
	})
}

func (t *Timeline) String() string {
	base := fmt.Sprintf("Timeline{%s, type:%s", t.Account.Name, t.Type)
	if t.Name != "" {
		base += fmt.Sprintf(", name:%q", t.Name)
	}
	if t.UserID != 0 {
		base += fmt.Sprintf(", userId:%d", t.UserID)
	}
	return base + "}"
}

// RecordSyncSuccess applies the results of one completed fetch: counters,
// watermarks and the last-success timestamp. The caller persists the
// record inside the same transaction that removes the drained command.
func (t *Timeline) RecordSyncSuccess(items []pumpio.TimelineItem, youngest pumpio.Position, youngestAt time.Time, syncedAt time.Time) {
	t.SyncedAt = syncedAt
	t.ErrorMessage = ""
	t.SyncedCount++
	t.SyncedCountTotal++
	t.NewItemsCount += int64(len(items))
	t.NewItemsCountTotal += int64(len(items))
	if t.CountSince.IsZero() {
		t.CountSince = syncedAt
	}
	if !youngest.IsEmpty() {
		t.YoungestPosition = string(youngest)
		t.YoungestItemAt = youngestAt
		t.YoungestSyncedAt = syncedAt
		if t.OldestPosition == "" {
			t.OldestPosition = string(youngest)
			t.OldestItemAt = youngestAt
			t.OldestSyncedAt = syncedAt
		}
	}
}

// RecordSyncFailure applies a failed fetch to the counters.
func (t *Timeline) RecordSyncFailure(cause string, failedAt time.Time) {
	t.SyncFailedAt = failedAt
	t.ErrorMessage = cause
	t.SyncFailedCount++
	t.SyncFailedCountTotal++
	if t.CountSince.IsZero() {
		t.CountSince = failedAt
	}
}

// ResetCounters starts a new "since" counting window, keeping totals.
func (t *Timeline) ResetCounters(since time.Time) {
	t.SyncedCount = 0
	t.SyncFailedCount = 0
	t.NewItemsCount = 0
	t.CountSince = since
}
