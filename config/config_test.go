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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedisync/fedisync/origins"
)

const sampleConfig = `
database:
    type: sqlite3-fk-wal
    uri: file:fedisync.db?_txlock=immediate
sync:
    sleep_between_commands: 5s
    fetch_limit: 40
origins:
-   id: 1
    name: identica
    host: identi.ca
-   id: 2
    name: localdev
    host: pump.local
    insecure: true
    disabled_routines: [direct_timeline]
accounts:
-   id: 1
    name: t131t@identi.ca
    access_token: secret
-   id: 2
    name: evanp
    origin: localdev
    actor_oid: acct:evanp@pump.local
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "sqlite3-fk-wal", cfg.Database.Type)
	assert.Equal(t, 5*time.Second, cfg.Sync.SleepBetweenCommands)
	assert.Equal(t, 40, cfg.Sync.FetchLimit)
	require.Len(t, cfg.Origins, 2)
	require.Len(t, cfg.Accounts, 2)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
		errPart string
	}{{
		name:    "missing database type",
		content: "database:\n    uri: file:x.db\n",
		errPart: "database.type is required",
	}, {
		name:    "unsupported database type",
		content: "database:\n    type: mysql\n    uri: x\n",
		errPart: "unsupported database type",
	}, {
		name:    "missing uri",
		content: "database:\n    type: postgres\n",
		errPart: "database.uri is required",
	}, {
		name: "origin without host",
		content: "database:\n    type: postgres\n    uri: x\n" +
			"origins:\n-   id: 1\n    name: broken\n",
		errPart: "origins[0]",
	}, {
		name: "account with unknown origin",
		content: "database:\n    type: postgres\n    uri: x\n" +
			"accounts:\n-   id: 1\n    name: someone@identi.ca\n    origin: nowhere\n",
		errPart: `unknown origin "nowhere"`,
	}, {
		name: "hostless account without origin",
		content: "database:\n    type: postgres\n    uri: x\n" +
			"accounts:\n-   id: 1\n    name: someone\n",
		errPart: "origin is required",
	}}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.errPart)
		})
	}
}

func TestRegistries(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	originReg := cfg.OriginRegistry()
	identica := originReg.FromName("identica")
	require.True(t, identica.IsValid())
	assert.Equal(t, "https://identi.ca", identica.BaseURL())
	localdev := originReg.FromName("localdev")
	assert.Equal(t, "http://pump.local", localdev.BaseURL())
	assert.False(t, localdev.Supports(origins.RoutineDirectTimeline))
	assert.True(t, localdev.Supports(origins.RoutineHomeTimeline))

	accountReg := cfg.AccountRegistry(originReg)
	first := accountReg.FromName("t131t@identi.ca")
	require.True(t, first.IsValid())
	assert.Same(t, identica, first.Origin, "origin resolved from the host part of the name")
	assert.Equal(t, "acct:t131t@identi.ca", first.ActorOID)
	assert.Equal(t, "secret", first.AccessToken)

	second := accountReg.FromID(2)
	assert.Same(t, localdev, second.Origin)
	assert.Equal(t, "acct:evanp@pump.local", second.ActorOID)
}
