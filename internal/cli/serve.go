/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lifeboard/internal/backend"
	"lifeboard/internal/config"
	"lifeboard/internal/domain"
	"lifeboard/internal/storage"
	"lifeboard/internal/ui"
)

func newServeCmd(app *App) *cobra.Command {
	var addr, dsn, secret string
	var backups bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board over HTTP for remote editing",
		Long: `Serves the local board, or a Postgres database with --pg.

Requests to /api must carry the secret (or a token minted from it) as a
bearer token. The secret defaults to LB_SERVER_SECRET, then to the token in
the OS keyring. With no secret at all the API is open.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireLocal("serve"); err != nil {
				return writeErr(cmd, err)
			}
			ctx, stop := signal.NotifyContext(app.context(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = app.cfg.Backend.Addr
			}
			if dsn == "" {
				dsn = app.cfg.Backend.PGDSN
			}
			if secret == "" {
				secret = envOr(EnvSecret, "")
			}
			if secret == "" {
				secret = app.Token
			}
			if secret == "" {
				secret, _ = config.Token()
			}

			var (
				store domain.ItemStore
				ping  func(context.Context) error
			)
			if dsn != "" {
				pg, err := backend.OpenPG(ctx, dsn)
				if err != nil {
					return writeErr(cmd, err)
				}
				defer func() { _ = pg.Close() }()
				store, ping = pg, pg.Ping
			} else {
				st, err := app.openStore(ctx)
				if err != nil {
					return writeErr(cmd, err)
				}
				defer app.closer(st)()
				store, ping = st, func(ctx context.Context) error {
					ok, err := st.QuickCheck(ctx)
					if err == nil && !ok {
						err = errors.New("integrity check failed")
					}
					return err
				}
				if backups && app.cfg.Storage.BackupCron != "" {
					b := storage.NewBackupScheduler(st, storage.BackupDir(st.Path()), app.cfg.Storage.BackupsKeep)
					b.Extent = st.Extent()
					if err := b.Start(ctx, app.cfg.Storage.BackupCron); err != nil {
						return writeErr(cmd, err)
					}
					defer b.Stop()
				}
			}

			cfg := backend.ServerConfig{Addr: addr, Secret: secret, Ping: ping}
			err := backend.Serve(ctx, store, cfg, func(bound string) {
				_ = writeOut(cmd, app, map[string]any{"addr": bound, "auth": secret != ""})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config backend.addr)")
	cmd.Flags().StringVar(&dsn, "pg", "", "Postgres DSN to serve instead of the local board (default from config backend.pg_dsn)")
	cmd.Flags().StringVar(&secret, "secret", "", "Shared secret protecting /api")
	cmd.Flags().BoolVar(&backups, "backups", true, "Run scheduled JSON backups of the local board")
	return cmd
}

func newWatchCmd(app *App) *cobra.Command {
	var once bool
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print a line whenever another process changes the board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireLocal("watch"); err != nil {
				return writeErr(cmd, err)
			}
			ctx, stop := signal.NotifyContext(app.context(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			st, err := app.openStore(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer app.closer(st)()
			if debounce <= 0 {
				debounce = app.cfg.Storage.WatchDebounce()
			}
			w, err := storage.NewWatcher(st.Path(), debounce)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer func() { _ = w.Close() }()

			err = w.Run(ctx, func(path string) {
				items, err := st.Items(ctx)
				if err != nil {
					app.log.Warn("reload after change", slog.Any("err", err))
					return
				}
				_ = writeOut(cmd, app, map[string]any{"changed": path, "items": len(items), "at": time.Now().UTC()})
				if once {
					cancel()
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Exit after the first change")
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "Quiet period before reporting (default from config)")
	return cmd
}

func newUICmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Open the board in the desktop window (build with -tags fyne)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireLocal("ui"); err != nil {
				return writeErr(cmd, err)
			}
			if err := ui.Run(ui.Options{Board: app.Board, Config: app.cfg, Crash: app.crash}); err != nil {
				return writeErr(cmd, fmt.Errorf("ui: %w", err))
			}
			return nil
		},
	}
}
