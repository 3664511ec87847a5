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
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/util/dbutil"
)

// ErrStorage wraps persistence failures that survived the retry policy.
var ErrStorage = errors.New("storage operation failed")

// writeAttempts is how many times a row write is tried before giving up.
const writeAttempts = 3

const (
	timelineBaseSelect = `
		SELECT _id, timeline_type, timeline_name, description, all_origins,
		       origin_id, account_id, user_id, search_query,
		       synced, display_in_selector, selector_order,
		       synced_date, sync_failed_date, error_message,
		       synced_times_count, sync_failed_times_count, new_items_count, count_since,
		       synced_times_count_total, sync_failed_times_count_total, new_items_count_total,
		       youngest_position, youngest_item_date, youngest_synced_date,
		       oldest_position, oldest_item_date, oldest_synced_date
		FROM timeline
	`
	getTimelineByIDQuery  = timelineBaseSelect + `WHERE _id=$1`
	getAllTimelinesQuery  = timelineBaseSelect + `ORDER BY selector_order`
	getTimelineByKeyQuery = timelineBaseSelect + `
		WHERE timeline_type=$1 AND all_origins=$2 AND origin_id=$3
		  AND account_id=$4 AND user_id=$5 AND search_query=$6
	`
	// The computed id can collide when two inserts race on the same MAX;
	// the collided insert fails on the primary key and the save retry
	// re-reads MAX on the next attempt. Timeline inserts come from
	// config-time setup and single drain transactions, never in parallel
	// bulk.
	insertTimelineQuery = `
		INSERT INTO timeline (
			_id, timeline_type, timeline_name, description, all_origins,
			origin_id, account_id, user_id, search_query,
			synced, display_in_selector, selector_order,
			synced_date, sync_failed_date, error_message,
			synced_times_count, sync_failed_times_count, new_items_count, count_since,
			synced_times_count_total, sync_failed_times_count_total, new_items_count_total,
			youngest_position, youngest_item_date, youngest_synced_date,
			oldest_position, oldest_item_date, oldest_synced_date
		) VALUES (
			(SELECT COALESCE(MAX(_id), 0) + 1 FROM timeline),
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
		) RETURNING _id
	`
	updateTimelineQuery = `
		UPDATE timeline SET
			timeline_type=$1, timeline_name=$2, description=$3, all_origins=$4,
			origin_id=$5, account_id=$6, user_id=$7, search_query=$8,
			synced=$9, display_in_selector=$10, selector_order=$11,
			synced_date=$12, sync_failed_date=$13, error_message=$14,
			synced_times_count=$15, sync_failed_times_count=$16, new_items_count=$17, count_since=$18,
			synced_times_count_total=$19, sync_failed_times_count_total=$20, new_items_count_total=$21,
			youngest_position=$22, youngest_item_date=$23, youngest_synced_date=$24,
			oldest_position=$25, oldest_item_date=$26, oldest_synced_date=$27
		WHERE _id=$28
	`
	deleteTimelineQuery = `DELETE FROM timeline WHERE _id=$1`
)

type TimelineQuery struct {
	*dbutil.QueryHelper[*Timeline]
}

// TimelineKey is the composite identity of a timeline row. Counters,
// watermarks and the row id are deliberately not part of it.
type TimelineKey struct {
	Type        string
	AllOrigins  bool
	OriginID    int64
	AccountID   int64
	UserID      int64
	SearchQuery string
}

// Timeline is one persisted sync target plus its accumulated sync
// statistics and position watermarks.
type Timeline struct {
	qh *dbutil.QueryHelper[*Timeline]

	ID          int64
	Type        string
	Name        string
	Description string
	AllOrigins  bool
	OriginID    int64
	AccountID   int64
	UserID      int64
	SearchQuery string

	Synced              bool
	DisplayedInSelector bool
	SelectorOrder       int64

	SyncedAt     time.Time
	SyncFailedAt time.Time
	ErrorMessage string

	SyncedCount     int64
	SyncFailedCount int64
	NewItemsCount   int64
	CountSince      time.Time

	SyncedCountTotal     int64
	SyncFailedCountTotal int64
	NewItemsCountTotal   int64

	YoungestPosition string
	YoungestItemAt   time.Time
	YoungestSyncedAt time.Time
	OldestPosition   string
	OldestItemAt     time.Time
	OldestSyncedAt   time.Time
}

func newTimeline(qh *dbutil.QueryHelper[*Timeline]) *Timeline {
	return &Timeline{qh: qh}
}

// New returns an unsaved timeline attached to this query helper.
func (tq *TimelineQuery) New() *Timeline {
	return newTimeline(tq.QueryHelper)
}

func (tq *TimelineQuery) GetByID(ctx context.Context, id int64) (*Timeline, error) {
	return tq.QueryOne(ctx, getTimelineByIDQuery, id)
}

// GetByKey looks a row up by the composite identity.
func (tq *TimelineQuery) GetByKey(ctx context.Context, key TimelineKey) (*Timeline, error) {
	return tq.QueryOne(ctx, getTimelineByKeyQuery,
		key.Type, key.AllOrigins, key.OriginID, key.AccountID, key.UserID, key.SearchQuery)
}

// GetAll returns every stored timeline ordered by selector order.
func (tq *TimelineQuery) GetAll(ctx context.Context) ([]*Timeline, error) {
	return tq.QueryMany(ctx, getAllTimelinesQuery)
}

func (t *Timeline) Key() TimelineKey {
	return TimelineKey{
		Type:        t.Type,
		AllOrigins:  t.AllOrigins,
		OriginID:    t.OriginID,
		AccountID:   t.AccountID,
		UserID:      t.UserID,
		SearchQuery: t.SearchQuery,
	}
}

func (t *Timeline) Scan(row dbutil.Scannable) (*Timeline, error) {
	var syncedAt, syncFailedAt, countSince int64
	var youngestItemAt, youngestSyncedAt, oldestItemAt, oldestSyncedAt int64
	err := row.Scan(
		&t.ID, &t.Type, &t.Name, &t.Description, &t.AllOrigins,
		&t.OriginID, &t.AccountID, &t.UserID, &t.SearchQuery,
		&t.Synced, &t.DisplayedInSelector, &t.SelectorOrder,
		&syncedAt, &syncFailedAt, &t.ErrorMessage,
		&t.SyncedCount, &t.SyncFailedCount, &t.NewItemsCount, &countSince,
		&t.SyncedCountTotal, &t.SyncFailedCountTotal, &t.NewItemsCountTotal,
		&t.YoungestPosition, &youngestItemAt, &youngestSyncedAt,
		&t.OldestPosition, &oldestItemAt, &oldestSyncedAt,
	)
	if err != nil {
		return nil, err
	}
	t.SyncedAt = timeFromUnixMilli(syncedAt)
	t.SyncFailedAt = timeFromUnixMilli(syncFailedAt)
	t.CountSince = timeFromUnixMilli(countSince)
	t.YoungestItemAt = timeFromUnixMilli(youngestItemAt)
	t.YoungestSyncedAt = timeFromUnixMilli(youngestSyncedAt)
	t.OldestItemAt = timeFromUnixMilli(oldestItemAt)
	t.OldestSyncedAt = timeFromUnixMilli(oldestSyncedAt)
	return t, nil
}

func (t *Timeline) sqlVariables() []any {
	return []any{
		t.Type, t.Name, t.Description, t.AllOrigins,
		t.OriginID, t.AccountID, t.UserID, t.SearchQuery,
		t.Synced, t.DisplayedInSelector, t.SelectorOrder,
		unixMilliOrZero(t.SyncedAt), unixMilliOrZero(t.SyncFailedAt), t.ErrorMessage,
		t.SyncedCount, t.SyncFailedCount, t.NewItemsCount, unixMilliOrZero(t.CountSince),
		t.SyncedCountTotal, t.SyncFailedCountTotal, t.NewItemsCountTotal,
		t.YoungestPosition, unixMilliOrZero(t.YoungestItemAt), unixMilliOrZero(t.YoungestSyncedAt),
		t.OldestPosition, unixMilliOrZero(t.OldestItemAt), unixMilliOrZero(t.OldestSyncedAt),
	}
}

// Save inserts the timeline (assigning a new id) when ID is zero, or
// updates the existing row otherwise. The write is attempted up to three
// times; the final failure is wrapped as a storage error.
func (t *Timeline) Save(ctx context.Context) (int64, error) {
	var lastErr error
	for attempt := 0; attempt < writeAttempts; attempt++ {
		if t.ID == 0 {
			var id int64
			err := t.qh.GetDB().QueryRow(ctx, insertTimelineQuery, t.sqlVariables()...).Scan(&id)
			if err == nil {
				t.ID = id
				return id, nil
			}
			lastErr = err
		} else {
			err := t.qh.Exec(ctx, updateTimelineQuery, append(t.sqlVariables(), t.ID)...)
			if err == nil {
				return t.ID, nil
			}
			lastErr = err
		}
		zerolog.Ctx(ctx).Warn().Err(lastErr).
			Int64("timeline_id", t.ID).
			Int("attempt", attempt+1).
			Msg("Failed to save timeline, retrying")
	}
	return 0, fmt.Errorf("%w: %w", ErrStorage, lastErr)
}

// Delete removes the persisted row. Deletion is best-effort: callers are
// expected to log the returned error rather than propagate it.
func (t *Timeline) Delete(ctx context.Context) error {
	return t.qh.Exec(ctx, deleteTimelineQuery, t.ID)
}
