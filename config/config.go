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

package config

import (
	"fmt"
	"os"

	"go.mau.fi/util/dbutil"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"

	"github.com/fedisync/fedisync/accounts"
	"github.com/fedisync/fedisync/origins"
	"github.com/fedisync/fedisync/pumpio"
	"github.com/fedisync/fedisync/service"
)

type OriginConfig struct {
	ID               int64    `yaml:"id"`
	Name             string   `yaml:"name"`
	Host             string   `yaml:"host"`
	Insecure         bool     `yaml:"insecure"`
	DisabledRoutines []string `yaml:"disabled_routines"`
}

type AccountConfig struct {
	ID          int64  `yaml:"id"`
	Name        string `yaml:"name"`
	ActorOID    string `yaml:"actor_oid"`
	Origin      string `yaml:"origin"`
	AccessToken string `yaml:"access_token"`
}

type Config struct {
	Logging  zeroconfig.Config  `yaml:"logging"`
	Database dbutil.Config      `yaml:"database"`
	Sync     service.SyncConfig `yaml:"sync"`
	Origins  []OriginConfig     `yaml:"origins"`
	Accounts []AccountConfig    `yaml:"accounts"`
}

// Load reads and validates the YAML config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err = yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err = cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) validate() error {
	switch cfg.Database.Type {
	case "sqlite3-fk-wal", "postgres":
	case "":
		return fmt.Errorf("database.type is required")
	default:
		return fmt.Errorf("unsupported database type %q", cfg.Database.Type)
	}
	if cfg.Database.URI == "" {
		return fmt.Errorf("database.uri is required")
	}
	originNames := make(map[string]struct{}, len(cfg.Origins))
	for i, origin := range cfg.Origins {
		if origin.ID == 0 || origin.Name == "" || origin.Host == "" {
			return fmt.Errorf("origins[%d]: id, name and host are required", i)
		}
		originNames[origin.Name] = struct{}{}
	}
	for i, account := range cfg.Accounts {
		if account.ID == 0 || account.Name == "" {
			return fmt.Errorf("accounts[%d]: id and name are required", i)
		}
		if account.Origin != "" {
			if _, ok := originNames[account.Origin]; !ok {
				return fmt.Errorf("accounts[%d]: unknown origin %q", i, account.Origin)
			}
		} else if pumpio.HostFromUsername(account.Name) == "" {
			return fmt.Errorf("accounts[%d]: origin is required when the name has no host part", i)
		}
	}
	return nil
}

// OriginRegistry builds the origin registry from config.
func (cfg *Config) OriginRegistry() *origins.Registry {
	all := make([]*origins.Origin, len(cfg.Origins))
	for i, oc := range cfg.Origins {
		disabled := make([]origins.Routine, len(oc.DisabledRoutines))
		for j, routine := range oc.DisabledRoutines {
			disabled[j] = origins.Routine(routine)
		}
		all[i] = origins.New(oc.ID, oc.Name, oc.Host, !oc.Insecure, disabled)
	}
	return origins.NewRegistry(all)
}

// AccountRegistry builds the account registry, resolving each account's
// origin by explicit name or by the host part of the account name.
func (cfg *Config) AccountRegistry(originReg *origins.Registry) *accounts.Registry {
	all := make([]*accounts.Account, len(cfg.Accounts))
	for i, ac := range cfg.Accounts {
		origin := originReg.FromName(ac.Origin)
		if !origin.IsValid() {
			if host := pumpio.HostFromUsername(ac.Name); host != "" {
				for _, oc := range cfg.Origins {
					if oc.Host == host {
						origin = originReg.FromName(oc.Name)
						break
					}
				}
			}
		}
		actorOID := ac.ActorOID
		if actorOID == "" {
			actorOID = pumpio.ActorPrefix + ac.Name
		}
		all[i] = &accounts.Account{
			ID:          ac.ID,
			Name:        ac.Name,
			ActorOID:    actorOID,
			Origin:      origin,
			AccessToken: ac.AccessToken,
		}
	}
	return accounts.NewRegistry(all)
}
