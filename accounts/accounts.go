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

// Package accounts holds the local accounts on whose behalf timelines are
// synchronized. Accounts come from configuration; persisted rows reference
// them by id only, and a dangling reference resolves to the empty account
// instead of failing the load.
package accounts

import (
	"fmt"

	"github.com/fedisync/fedisync/origins"
)

// Account is one local account registered against an origin.
// ActorOID is the opaque protocol-level actor id (acct:user@host form).
type Account struct {
	ID       int64
	Name     string
	ActorOID string
	Origin   *origins.Origin

	AccessToken string
}

// Empty returns the invalid account placeholder substituted for dangling
// references.
func Empty() *Account {
	return &Account{Origin: origins.Empty()}
}

func (a *Account) IsValid() bool {
	return a != nil && a.ID != 0 && a.Name != ""
}

func (a *Account) String() string {
	if !a.IsValid() {
		return "Account{empty}"
	}
	return fmt.Sprintf("Account{%s}", a.Name)
}

// Registry resolves accounts by id and by account name.
type Registry struct {
	byID   map[int64]*Account
	byName map[string]*Account
	all    []*Account
}

func NewRegistry(all []*Account) *Registry {
	reg := &Registry{
		byID:   make(map[int64]*Account, len(all)),
		byName: make(map[string]*Account, len(all)),
		all:    all,
	}
	for _, a := range all {
		reg.byID[a.ID] = a
		reg.byName[a.Name] = a
	}
	return reg
}

// FromID returns the account with the given id, or the empty account when
// the id is unknown. It never returns nil.
func (reg *Registry) FromID(id int64) *Account {
	if a, ok := reg.byID[id]; ok {
		return a
	}
	return Empty()
}

func (reg *Registry) FromName(name string) *Account {
	if a, ok := reg.byName[name]; ok {
		return a
	}
	return Empty()
}

func (reg *Registry) All() []*Account {
	return reg.all
}
