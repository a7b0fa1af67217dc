/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"github.com/spf13/cobra"

	"lifeboard/internal/commit"
	"lifeboard/internal/layering"
	applog "lifeboard/internal/log"
	"lifeboard/internal/telemetry"
)

func newLayerCmds(app *App) []*cobra.Command {
	short := map[layering.Op]string{
		layering.Front:    "Bring an item above every other item",
		layering.Back:     "Send an item below every other item",
		layering.Forward:  "Move an item just above the next higher item",
		layering.Backward: "Move an item just below the next lower item",
	}
	var cmds []*cobra.Command
	for _, op := range []layering.Op{layering.Front, layering.Back, layering.Forward, layering.Backward} {
		cmds = append(cmds, &cobra.Command{
			Use:   op.String() + " <item-id>",
			Short: short[op],
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := applog.WithItem(app.context(cmd), args[0])
				store, _, done, err := app.openItems(ctx)
				if err != nil {
					return writeErr(cmd, err)
				}
				defer done()
				e := layering.New(store, commit.New(store))
				e.Limit = app.cfg.Layering.Limit
				e.OnChange = func(ch layering.Change) { telemetry.LayerChange(ch.Op.String(), ch.Renumbered > 0) }
				ch, err := e.Apply(ctx, op, args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, map[string]any{
					"id":         ch.ItemID,
					"op":         ch.Op.String(),
					"applied":    ch.Applied,
					"from":       ch.From,
					"to":         ch.To,
					"renumbered": ch.Renumbered,
				})
			},
		})
	}
	return cmds
}
