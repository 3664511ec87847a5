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

// Package origins models the remote federated-network deployments that
// accounts are registered against, including which API routines each
// deployment actually implements.
package origins

import (
	"fmt"
)

// Routine identifies one remote API call the protocol adapter can issue.
type Routine string

const (
	RoutineUnknown           Routine = ""
	RoutineHomeTimeline      Routine = "home_timeline"
	RoutineMentionsTimeline  Routine = "mentions_timeline"
	RoutineUserTimeline      Routine = "user_timeline"
	RoutineDirectTimeline    Routine = "direct_timeline"
	RoutinePublicTimeline    Routine = "public_timeline"
	RoutineFavoritesTimeline Routine = "favorites_timeline"
	RoutineSearchMessages    Routine = "search_messages"
	RoutineGetFriends        Routine = "get_friends"
	RoutineGetFriendsIDs     Routine = "get_friends_ids"
)

// pumpioRoutines is the capability set of a stock pump.io deployment.
// Search and the firehose are not part of the pump.io API surface.
var pumpioRoutines = map[Routine]struct{}{
	RoutineHomeTimeline:     {},
	RoutineMentionsTimeline: {},
	RoutineUserTimeline:     {},
	RoutineDirectTimeline:   {},
	RoutineGetFriends:       {},
	RoutineGetFriendsIDs:    {},
}

// Origin is one remote deployment (a server peer). The zero value is the
// invalid "unknown" origin used in place of nil references.
type Origin struct {
	ID   int64
	Name string
	Host string
	TLS  bool

	disabled map[Routine]struct{}
}

// New builds an origin. Routines listed in disabledRoutines are treated as
// unsupported even when the protocol normally implements them, so a single
// misbehaving deployment can be cut down in config.
func New(id int64, name, host string, tls bool, disabledRoutines []Routine) *Origin {
	o := &Origin{ID: id, Name: name, Host: host, TLS: tls}
	if len(disabledRoutines) > 0 {
		o.disabled = make(map[Routine]struct{}, len(disabledRoutines))
		for _, routine := range disabledRoutines {
			o.disabled[routine] = struct{}{}
		}
	}
	return o
}

// Empty returns the invalid origin placeholder.
func Empty() *Origin {
	return &Origin{}
}

func (o *Origin) IsValid() bool {
	return o != nil && o.ID != 0 && o.Host != ""
}

// Supports reports whether this origin implements the given API routine.
// Callers must check before dispatching a fetch.
func (o *Origin) Supports(routine Routine) bool {
	if !o.IsValid() {
		return false
	}
	if _, ok := o.disabled[routine]; ok {
		return false
	}
	_, ok := pumpioRoutines[routine]
	return ok
}

// BaseURL returns the scheme+host prefix for API requests.
func (o *Origin) BaseURL() string {
	scheme := "https"
	if !o.TLS {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, o.Host)
}

func (o *Origin) String() string {
	if !o.IsValid() {
		return "Origin{unknown}"
	}
	return fmt.Sprintf("Origin{%s, host:%s}", o.Name, o.Host)
}

// Registry resolves origins by row id and by name. Lookups for missing
// origins return the empty placeholder rather than nil.
type Registry struct {
	byID   map[int64]*Origin
	byName map[string]*Origin
}

func NewRegistry(all []*Origin) *Registry {
	reg := &Registry{
		byID:   make(map[int64]*Origin, len(all)),
		byName: make(map[string]*Origin, len(all)),
	}
	for _, o := range all {
		reg.byID[o.ID] = o
		reg.byName[o.Name] = o
	}
	return reg
}

func (reg *Registry) FromID(id int64) *Origin {
	if o, ok := reg.byID[id]; ok {
		return o
	}
	return Empty()
}

func (reg *Registry) FromName(name string) *Origin {
	if o, ok := reg.byName[name]; ok {
		return o
	}
	return Empty()
}
