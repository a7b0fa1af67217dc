/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"lifeboard/internal/backend"
	"lifeboard/internal/config"
	"lifeboard/internal/domain"
	"lifeboard/internal/storage"
	"lifeboard/internal/version"
)

func newVersionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeOut(cmd, app, map[string]any{"version": version.String()})
		},
	}
}

func newInitCmd(app *App) *cobra.Command {
	var extent float64
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the board database (or open an existing one)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireLocal("init"); err != nil {
				return writeErr(cmd, err)
			}
			ctx := app.context(cmd)
			st, err := app.openStore(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer app.closer(st)()
			if cmd.Flags().Changed("extent") {
				if err := st.SetExtent(ctx, extent); err != nil {
					return writeErr(cmd, err)
				}
			}
			sv, err := st.SchemaVersion(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			app.log.InfoContext(ctx, "board ready", slog.Float64("extent", st.Extent()))
			return writeOut(cmd, app, map[string]any{
				"board":         st.Path(),
				"extent":        st.Extent(),
				"schemaVersion": sv,
			})
		},
	}
	cmd.Flags().Float64Var(&extent, "extent", domain.DefaultCanvasExtent, "Canvas side length in logical units")
	return cmd
}

func newListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List items bottom to top",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.context(cmd)
			store, _, done, err := app.openItems(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer done()
			items, err := store.Items(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, domain.PaintOrder(items))
		},
	}
}

func newAddCmd(app *App) *cobra.Command {
	var (
		n       domain.NewItem
		g       domain.Geometry
		payload string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an item; unset geometry falls back to the canvas defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.context(cmd)
			store, extent, done, err := app.openItems(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer done()
			if payload != "" {
				if !json.Valid([]byte(payload)) {
					return writeErr(cmd, errors.New("--payload must be valid JSON"))
				}
				n.Payload = json.RawMessage(payload)
			}
			if f := cmd.Flags(); f.Changed("x") || f.Changed("y") || f.Changed("w") || f.Changed("h") || f.Changed("rot") || f.Changed("z") {
				def := domain.DefaultGeometry(extent)
				if !f.Changed("x") {
					g.Position.X = def.Position.X
				}
				if !f.Changed("y") {
					g.Position.Y = def.Position.Y
				}
				if !f.Changed("w") {
					g.Size.Width = def.Size.Width
				}
				if !f.Changed("h") {
					g.Size.Height = def.Size.Height
				}
				if !f.Changed("z") {
					g.ZIndex = def.ZIndex
				}
				n.Geometry = &g
			}
			it, err := store.CreateItem(ctx, n)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, it)
		},
	}
	cmd.Flags().StringVar(&n.ID, "id", "", "Item id (generated when empty)")
	cmd.Flags().StringVar(&n.Kind, "kind", "note", "Item kind")
	cmd.Flags().Float64Var(&g.Position.X, "x", 0, "Left edge in logical units")
	cmd.Flags().Float64Var(&g.Position.Y, "y", 0, "Top edge in logical units")
	cmd.Flags().Float64Var(&g.Size.Width, "w", domain.DefaultWidth, "Width")
	cmd.Flags().Float64Var(&g.Size.Height, "h", domain.DefaultHeight, "Height")
	cmd.Flags().Float64Var(&g.Rotation, "rot", 0, "Rotation in degrees, clockwise")
	cmd.Flags().IntVar(&g.ZIndex, "z", domain.DefaultZIndex, "Stacking order")
	cmd.Flags().StringVar(&payload, "payload", "", "Opaque JSON payload")
	return cmd
}

func newDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <item-id>",
		Short: "Remove an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.context(cmd)
			store, _, done, err := app.openItems(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer done()
			if err := store.DeleteItem(ctx, args[0]); err != nil {
				return writeErr(cmd, fmt.Errorf("delete %s: %w", args[0], err))
			}
			return writeOut(cmd, app, map[string]any{"id": args[0], "deleted": true})
		},
	}
}

func newBackupCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a JSON snapshot of the board next to it now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireLocal("backup"); err != nil {
				return writeErr(cmd, err)
			}
			ctx := app.context(cmd)
			st, err := app.openStore(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer app.closer(st)()
			b := storage.NewBackupScheduler(st, storage.BackupDir(st.Path()), app.cfg.Storage.BackupsKeep)
			b.Extent = st.Extent()
			path, err := b.Snapshot(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			all, _ := b.Snapshots()
			return writeOut(cmd, app, map[string]any{"path": path, "kept": len(all)})
		},
	}
}

func newTokenCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the sync token kept in the OS keyring",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <token>",
		Short: "Store a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.SetToken(args[0]); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"stored": true})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Report whether a token is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := config.Token()
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"stored": tok != ""})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.DeleteToken(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"stored": false})
		},
	})
	var (
		subject string
		ttl     time.Duration
		save    bool
	)
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Mint a short-lived token from --remote using the configured secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Remote == "" {
				return writeErr(cmd, errors.New("mint needs --remote"))
			}
			secret := app.Token
			if secret == "" {
				secret, _ = config.Token()
			}
			c := backend.NewClient(app.Remote, secret, backend.ClientOptions{
				Timeout:     app.cfg.Backend.Timeout(),
				TLSInsecure: app.cfg.Backend.TLSInsecure,
			})
			tok, err := c.MintToken(app.context(cmd), subject, ttl)
			if err != nil {
				return writeErr(cmd, err)
			}
			if save {
				if err := config.SetToken(tok); err != nil {
					return writeErr(cmd, err)
				}
			}
			return writeOut(cmd, app, map[string]any{"token": tok, "stored": save})
		},
	}
	mint.Flags().StringVar(&subject, "subject", "cli", "Token subject")
	mint.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	mint.Flags().BoolVar(&save, "save", false, "Store the minted token in the keyring")
	cmd.AddCommand(mint)
	return cmd
}
