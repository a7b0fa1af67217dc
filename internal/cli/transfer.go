/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"lifeboard/internal/export"
	"lifeboard/internal/storage"
)

func newExportCmd(app *App) *cobra.Command {
	var (
		preset  string
		opts    export.Options
		formats []string
	)
	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Export the board as board JSON (.json), PNG, SVG or PDF",
		Long: strings.TrimSpace(`
The output format follows the file extension. A .json path writes the
portable board manifest that import reads back.

With --preset the path is a directory and every format of the preset is
written into it as board.<format>.`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.context(cmd)
			store, extent, done, err := app.openItems(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer done()
			out := args[0]

			if strings.EqualFold(filepath.Ext(out), ".json") && preset == "" {
				m, err := storage.ExportJSON(ctx, store, out, extent)
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, map[string]any{"path": out, "items": len(m.Items)})
			}

			items, err := store.Items(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			if preset != "" {
				p, err := export.ParsePreset(preset)
				if err != nil {
					return writeErr(cmd, err)
				}
				bo := export.BatchOptions{Preset: p, Formats: formats, Extent: extent, OutDir: out, Scale: opts.Scale}
				if cmd.Flags().Changed("canvas") {
					bo.IncludeCanvas = &opts.IncludeCanvas
				}
				if !filepath.IsAbs(out) {
					abs, err := filepath.Abs(out)
					if err != nil {
						return writeErr(cmd, err)
					}
					bo.OutDir = abs
				}
				written, err := export.BatchExport(items, bo)
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, map[string]any{"paths": written, "items": len(items)})
			}

			opts.Extent = extent
			if err := export.ExportFile(items, out, opts); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"path": out, "items": len(items)})
		},
	}
	cmd.Flags().StringVar(&preset, "preset", "", "Export preset (web, print, thumb); path is then a directory")
	cmd.Flags().StringSliceVar(&formats, "formats", nil, "Formats for --preset (png, svg, pdf)")
	cmd.Flags().Float64Var(&opts.Scale, "scale", 0, "Output units per logical unit")
	cmd.Flags().Float64Var(&opts.Padding, "padding", 20, "Padding around the items in logical units")
	cmd.Flags().BoolVar(&opts.IncludeCanvas, "canvas", false, "Include the canvas square")
	cmd.Flags().BoolVar(&opts.Labels, "labels", true, "Label items with their kind")
	return cmd
}

func newImportCmd(app *App) *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "import <board.json>",
		Short: "Import items from a board manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.context(cmd)
			store, _, done, err := app.openItems(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer done()
			res, err := storage.ImportJSON(ctx, store, args[0], storage.ImportOptions{Replace: replace})
			if err != nil {
				return writeErr(cmd, err)
			}
			if st, ok := store.(*storage.Store); ok && res.Extent > 0 && res.Extent != st.Extent() {
				if err := st.SetExtent(ctx, res.Extent); err != nil {
					return writeErr(cmd, err)
				}
			}
			return writeOut(cmd, app, map[string]any{
				"created":  res.Created,
				"skipped":  res.Skipped,
				"repaired": res.Repaired,
				"extent":   res.Extent,
			})
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace items whose id already exists instead of skipping them")
	return cmd
}
