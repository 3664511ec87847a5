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

// Package pumpio is the protocol adapter for pump.io style origins. It
// translates remote JSON activity payloads into a normalized sequence of
// typed timeline items and answers capability and identifier
// classification queries.
package pumpio

import (
	"time"
)

// TriState is an explicit three-valued flag for reader relationships.
// The zero value is unknown.
type TriState int8

const (
	TriStateUnknown TriState = iota
	TriStateTrue
	TriStateFalse
)

func TriStateFromBool(value bool) TriState {
	if value {
		return TriStateTrue
	}
	return TriStateFalse
}

func (ts TriState) String() string {
	switch ts {
	case TriStateTrue:
		return "true"
	case TriStateFalse:
		return "false"
	default:
		return "unknown"
	}
}

// Position is an opaque item-position token from the remote protocol,
// used as the since-watermark for incremental fetches.
type Position string

func (p Position) IsEmpty() bool {
	return p == ""
}

// ItemType tags the variant carried by a TimelineItem.
type ItemType int

const (
	ItemTypeEmpty ItemType = iota
	ItemTypeMessage
	ItemTypeUser
)

func (it ItemType) String() string {
	switch it {
	case ItemTypeMessage:
		return "message"
	case ItemTypeUser:
		return "user"
	default:
		return "empty"
	}
}

// User is a normalized remote user record. Reader identifies the account
// from whose perspective FollowedByReader was evaluated.
type User struct {
	OID         string
	Username    string
	RealName    string
	Description string

	FollowedByReader TriState
	Reader           *User
}

// Message is a normalized remote message record.
type Message struct {
	OID    string
	Body   string
	SentAt time.Time

	FavoritedByReader bool
	Reader            *User
}

// TimelineItem is the tagged union produced by timeline fetches, carrying
// either a message or a user depending on Type.
type TimelineItem struct {
	Type    ItemType
	Message *Message
	User    *User
}
