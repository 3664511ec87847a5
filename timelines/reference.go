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
	"fmt"
	"net/url"
	"strconv"
)

// Reference is the cross-component handoff form of a timeline: enough to
// reconstruct the record on the other side of a process boundary.
type Reference struct {
	TimelineID  int64
	Type        Type
	AccountName string
	SearchQuery string
	UserID      int64
}

func (r Reference) IsEmpty() bool {
	return r.TimelineID == 0 && !r.Type.IsValid()
}

// ToReference builds the transport form of this timeline.
func (t *Timeline) ToReference() Reference {
	ref := Reference{
		TimelineID:  t.ID,
		Type:        t.TimelineType(),
		SearchQuery: t.SearchQuery,
		UserID:      t.UserID,
	}
	if t.Account.IsValid() {
		ref.AccountName = t.Account.Name
	}
	return ref
}

// URIScheme is the scheme of timeline descriptor URIs.
const URIScheme = "fedisync"

// ParsedURI is a decoded timeline descriptor URI.
type ParsedURI struct {
	URI         string
	Type        Type
	AccountID   int64
	UserID      int64
	SearchQuery string
}

// ParseURI decodes a fedisync://timeline/<type> descriptor with
// account_id, user_id and search query parameters.
func ParseURI(raw string) (ParsedURI, error) {
	parsed := ParsedURI{URI: raw}
	u, err := url.Parse(raw)
	if err != nil {
		return parsed, fmt.Errorf("failed to parse timeline URI: %w", err)
	}
	if u.Scheme != URIScheme || u.Host != "timeline" {
		return parsed, fmt.Errorf("not a timeline URI: %s", raw)
	}
	if len(u.Path) > 1 {
		parsed.Type = LoadType(u.Path[1:])
	}
	q := u.Query()
	parsed.AccountID, _ = strconv.ParseInt(q.Get("account_id"), 10, 64)
	parsed.UserID, _ = strconv.ParseInt(q.Get("user_id"), 10, 64)
	parsed.SearchQuery = q.Get("search")
	return parsed, nil
}
