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

// Package timelines models synchronization targets: which timeline of
// which account against which origin, plus the sync bookkeeping that a
// drained command updates.
package timelines

import (
	"github.com/fedisync/fedisync/origins"
)

// Type is the enumerated timeline kind. The zero value is unknown and
// marks the empty timeline sentinel.
type Type string

const (
	TypeUnknown   Type = ""
	TypeHome      Type = "home"
	TypeMentions  Type = "mentions"
	TypeDirect    Type = "direct"
	TypeFavorites Type = "favorites"
	TypeSent      Type = "sent"
	TypeUser      Type = "user"
	TypePublic    Type = "public"
	TypeSearch    Type = "search"
)

// DefaultTypes are the kinds created for every account at setup time, in
// selector-rank order.
var DefaultTypes = []Type{TypeHome, TypeMentions, TypeDirect, TypeFavorites, TypeSent}

// LoadType parses a stored type code, falling back to unknown.
func LoadType(code string) Type {
	switch t := Type(code); t {
	case TypeHome, TypeMentions, TypeDirect, TypeFavorites, TypeSent, TypeUser, TypePublic, TypeSearch:
		return t
	default:
		return TypeUnknown
	}
}

func (t Type) IsValid() bool {
	return t != TypeUnknown
}

// Title is the default display title for the kind, used when a timeline
// has no explicit name override.
func (t Type) Title() string {
	switch t {
	case TypeHome:
		return "Home"
	case TypeMentions:
		return "Mentions"
	case TypeDirect:
		return "Direct messages"
	case TypeFavorites:
		return "Favorites"
	case TypeSent:
		return "Sent"
	case TypeUser:
		return "User"
	case TypePublic:
		return "Public"
	case TypeSearch:
		return "Search"
	default:
		return "Unknown"
	}
}

// DefaultRank is the fixed selector order assigned to default timelines.
func (t Type) DefaultRank() int64 {
	switch t {
	case TypeHome:
		return 1
	case TypeMentions:
		return 2
	case TypeDirect:
		return 3
	case TypeFavorites:
		return 4
	case TypeSent:
		return 5
	case TypeUser:
		return 6
	case TypePublic:
		return 7
	case TypeSearch:
		return 8
	default:
		return 0
	}
}

// SyncableByDefault reports whether new timelines of this kind are
// eligible for automatic sync without the user opting in.
func (t Type) SyncableByDefault() bool {
	switch t {
	case TypeHome, TypeMentions, TypeDirect:
		return true
	default:
		return false
	}
}

// Routine maps the kind to the protocol adapter routine that syncs it.
func (t Type) Routine() origins.Routine {
	switch t {
	case TypeHome:
		return origins.RoutineHomeTimeline
	case TypeMentions:
		return origins.RoutineMentionsTimeline
	case TypeDirect:
		return origins.RoutineDirectTimeline
	case TypeFavorites:
		return origins.RoutineFavoritesTimeline
	case TypeSent, TypeUser:
		return origins.RoutineUserTimeline
	case TypePublic:
		return origins.RoutinePublicTimeline
	case TypeSearch:
		return origins.RoutineSearchMessages
	default:
		return origins.RoutineUnknown
	}
}
