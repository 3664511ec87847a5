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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"go.mau.fi/util/dbutil"
	"go.mau.fi/util/exzerolog"

	"github.com/fedisync/fedisync/accounts"
	"github.com/fedisync/fedisync/config"
	"github.com/fedisync/fedisync/database"
	"github.com/fedisync/fedisync/service"
	"github.com/fedisync/fedisync/timelines"
)

var configPath = flag.String("config", "config.yaml", "path to the config file")

func main() {
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := compileLogger(cfg)
	exzerolog.SetupDefaults(&log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	rawDB, err := dbutil.NewFromConfig("fedisync", cfg.Database, dbutil.ZeroLogger(log))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	db := database.New(rawDB)
	if err = db.Upgrade(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to upgrade database schema")
	}

	originReg := cfg.OriginRegistry()
	accountReg := cfg.AccountRegistry(originReg)
	timelineReg := timelines.NewRegistry(db, accountReg, originReg, log)
	if err = timelineReg.LoadAll(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load timelines")
	}
	ensureDefaultTimelines(ctx, timelineReg, accountReg, log)

	queue := service.NewQueue(db, accountReg, log)
	syncer := service.NewSyncer(db, queue, timelineReg, accountReg, cfg.Sync, log)

	for _, timeline := range timelineReg.All() {
		if timeline.Synced && timeline.Account.IsValid() {
			if err = syncer.RequestSync(ctx, timeline); err != nil {
				log.Warn().Err(err).Str("timeline", timeline.String()).Msg("Failed to enqueue initial sync")
			}
		}
	}

	log.Info().Int("accounts", len(accountReg.All())).Msg("fedisync started")
	syncer.Run(ctx)
	log.Info().Msg("fedisync stopped")
	if err = db.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close database")
	}
}

func compileLogger(cfg *config.Config) zerolog.Logger {
	log, err := cfg.Logging.Compile()
	if err == nil {
		return *log
	}
	fallback := zerolog.New(zerolog.ConsoleWriter{
		Out:        colorable.NewColorableStderr(),
		TimeFormat: time.Stamp,
	}).With().Timestamp().Logger()
	fallback.Warn().Err(err).Msg("Failed to compile logging config, using fallback console logger")
	return fallback
}

// ensureDefaultTimelines creates the default timeline set for accounts
// that have none yet.
func ensureDefaultTimelines(ctx context.Context, timelineReg *timelines.Registry, accountReg *accounts.Registry, log zerolog.Logger) {
	existing := make(map[int64]bool)
	for _, timeline := range timelineReg.All() {
		existing[timeline.AccountID] = true
	}
	for _, account := range accountReg.All() {
		if existing[account.ID] {
			continue
		}
		if _, err := timelineReg.AddDefaultsForAccount(ctx, account); err != nil {
			log.Err(err).Str("account", account.Name).Msg("Failed to create default timelines")
		}
	}
}
