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
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/util/dbutil"

	"github.com/fedisync/fedisync/database/upgrades"
)

type Database struct {
	*dbutil.Database

	Timeline *TimelineQuery
	Queue    *QueueCommandQuery
}

func New(db *dbutil.Database) *Database {
	db.UpgradeTable = upgrades.Table
	return &Database{
		Database: db,
		Timeline: &TimelineQuery{dbutil.MakeQueryHelper(db, newTimeline)},
		Queue:    &QueueCommandQuery{dbutil.MakeQueryHelper(db, newQueueCommand)},
	}
}

func timeFromUnixMilli(unix int64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	return time.UnixMilli(unix)
}

func unixMilliOrZero(time time.Time) int64 {
	if time.IsZero() {
		return 0
	}
	return time.UnixMilli()
}
