/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package cli is the lifeboard command line: board editing, layering,
// gestures driven by synthetic pointer events, import/export and the sync
// server.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lifeboard/internal/backend"
	"lifeboard/internal/config"
	"lifeboard/internal/crash"
	"lifeboard/internal/domain"
	applog "lifeboard/internal/log"
	"lifeboard/internal/storage"
	"lifeboard/internal/telemetry"
)

// Environment variables for the persistent flags.
const (
	EnvRemote = "LB_REMOTE"
	EnvToken  = "LB_TOKEN"
	EnvSecret = "LB_SERVER_SECRET"
)

type App struct {
	Board      string
	ConfigPath string
	Remote     string
	Token      string
	Pretty     bool

	cfg   config.AppConfig
	crash *crash.Board
	log   *slog.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command { return newRootCmd(&App{crash: &crash.Board{}}) }

// Execute runs the CLI with args. Board details are recorded in b so a
// deferred crash.Recover can autosave the open board.
func Execute(args []string, b *crash.Board) error {
	cmd := newRootCmd(&App{crash: b})
	cmd.SetArgs(args)
	err := cmd.Execute()
	var rep reportedError
	if err != nil && !errors.As(err, &rep) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "lifeboard",
		Short:         "Vision board canvas: place, move, resize, rotate and layer items",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Create a board and add an item
  lifeboard --board home.db init
  lifeboard --board home.db add --kind photo --x 400 --y 300

  # Drag it 120 screen pixels right at 50% zoom (240 logical units)
  lifeboard --board home.db move <item-id> --dx 120 --zoom 0.5

  # Layering
  lifeboard --board home.db front <item-id>

  # Export a wireframe
  lifeboard --board home.db export board.png
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.setup(cmd)
	}
	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		telemetry.InitDefault().Flush(cmd.Context())
	}

	cmd.PersistentFlags().StringVar(&app.Board, "board", envOr(config.EnvBoard, ""), "Path to the board database (default from config storage.board)")
	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr(config.EnvConfigPath, ""), "Path to config.yaml")
	cmd.PersistentFlags().StringVar(&app.Remote, "remote", envOr(EnvRemote, ""), "Base URL of a sync server to edit instead of a local board")
	cmd.PersistentFlags().StringVar(&app.Token, "token", envOr(EnvToken, ""), "Bearer token for --remote (default from the OS keyring)")
	cmd.PersistentFlags().BoolVar(&app.Pretty, "pretty", false, "Pretty-print JSON output")

	cmd.AddCommand(newVersionCmd(app))
	cmd.AddCommand(newInitCmd(app))
	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newAddCmd(app))
	cmd.AddCommand(newDeleteCmd(app))
	cmd.AddCommand(newMoveCmd(app))
	cmd.AddCommand(newResizeCmd(app))
	cmd.AddCommand(newRotateCmd(app))
	for _, c := range newLayerCmds(app) {
		cmd.AddCommand(c)
	}
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newImportCmd(app))
	cmd.AddCommand(newBackupCmd(app))
	cmd.AddCommand(newTokenCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newWatchCmd(app))
	cmd.AddCommand(newUICmd(app))
	return cmd
}

// setup loads the config, then points logging and telemetry at it.
func (app *App) setup(cmd *cobra.Command) error {
	path := app.ConfigPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	app.cfg = cfg

	opts := cfg.Logging.LogOptions()
	opts.Writer = cmd.ErrOrStderr()
	applog.Init(opts)
	app.log = applog.WithComponent("cli")

	tc := telemetry.FromEnv()
	tc.OptIn = cfg.General.TelemetryOptIn
	telemetry.SetDefault(tc)

	if app.Board == "" {
		app.Board = cfg.Storage.Board
	}
	return nil
}

func (app *App) context(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return applog.WithBoard(ctx, app.Board)
}

// openStore opens the local board, rebuilding it from the newest snapshot
// when the database is damaged.
func (app *App) openStore(ctx context.Context) (*storage.Store, error) {
	st, rebuilt, err := storage.OpenOrRecover(ctx, app.Board)
	if err != nil {
		return nil, err
	}
	if rebuilt {
		app.log.WarnContext(ctx, "board was damaged and has been rebuilt from its newest snapshot")
	}
	if app.crash != nil {
		app.crash.Path, app.crash.Store, app.crash.Extent = st.Path(), st, st.Extent()
	}
	return st, nil
}

// openItems returns the board to edit: the sync server named by --remote or
// the local database. The returned func releases it.
func (app *App) openItems(ctx context.Context) (domain.ItemStore, float64, func(), error) {
	if app.Remote != "" {
		tok := app.Token
		if tok == "" {
			tok, _ = config.Token()
		}
		c := backend.NewClient(app.Remote, tok, backend.ClientOptions{
			Timeout:     app.cfg.Backend.Timeout(),
			TLSInsecure: app.cfg.Backend.TLSInsecure,
		})
		return c, app.cfg.Canvas.Extent, func() {}, nil
	}
	st, err := app.openStore(ctx)
	if err != nil {
		return nil, 0, nil, err
	}
	return st, st.Extent(), app.closer(st), nil
}

func (app *App) closer(st *storage.Store) func() {
	return func() {
		if app.crash != nil && app.crash.Store == st {
			app.crash.Store = nil
		}
		if err := st.Close(); err != nil {
			app.log.Warn("close board", slog.Any("err", err))
		}
	}
}

func (app *App) requireLocal(what string) error {
	if app.Remote != "" {
		return fmt.Errorf("%s works on a local board only; drop --remote", what)
	}
	return nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if app.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(map[string]any{"data": v})
}

// reportedError marks an error writeErr already printed.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return reportedError{err}
}
