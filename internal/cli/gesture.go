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
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"lifeboard/internal/commit"
	"lifeboard/internal/domain"
	"lifeboard/internal/gesture"
	applog "lifeboard/internal/log"
	"lifeboard/internal/telemetry"
	"lifeboard/internal/vector"
	"lifeboard/internal/viewport"
)

// drag holds the flags shared by the gesture commands. Pointer travel is in
// screen pixels, so the logical change is travel divided by the zoom.
type drag struct {
	zoom   float64
	steps  int
	cancel bool
}

func (d *drag) bind(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&d.zoom, "zoom", 1, "View zoom the pointer moves at (clamped to the configured range)")
	cmd.Flags().IntVar(&d.steps, "steps", 8, "Number of pointer-move samples")
	cmd.Flags().BoolVar(&d.cancel, "cancel", false, "End with pointer-cancel instead of pointer-up")
}

// path returns the pointer position for progress t in (0, 1].
type path func(start domain.Point, t float64) domain.Point

// pathFor builds the pointer path once the viewport and item are known,
// together with the fewest samples that trace it faithfully.
type pathFor func(vp *viewport.Viewport, it domain.Item) (path, int)

// run replays one gesture on item id through a controller fed by a
// synthetic pointer dispatcher and returns its result.
func (d drag) run(ctx context.Context, app *App, store domain.ItemStore, extent float64, id string, kind gesture.State, mk pathFor) (gesture.Result, *viewport.Viewport, error) {
	ctx = applog.WithItem(ctx, id)
	items, err := store.Items(ctx)
	if err != nil {
		return gesture.Result{}, nil, err
	}
	it, ok := domain.FindItem(items, id)
	if !ok {
		return gesture.Result{}, nil, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}

	vc := app.cfg.Canvas.Viewport()
	vc.Extent = extent
	vp := viewport.New(vc)
	vp.SetZoom(d.zoom)

	disp := gesture.NewDispatcher()
	ctl := gesture.NewController(vp, disp, commit.New(store), gesture.Options{
		CancelPolicy: app.cfg.Gesture.Policy(),
		Context:      ctx,
	})
	defer ctl.Close()

	var res gesture.Result
	ended := false
	ctl.OnEnd = func(r gesture.Result) {
		res, ended = r, true
		telemetry.GestureCommit(r.Kind.String(), r.Moves, r.Cancelled)
	}

	start := grabPoint(vp, it, kind)
	p, minSteps := mk(vp, it)
	if !ctl.Begin(it, kind, start) {
		return res, vp, fmt.Errorf("could not start %s on %s", kind, id)
	}
	steps := max(d.steps, minSteps, 1)
	for i := 1; i <= steps; i++ {
		disp.Move(p(start, float64(i)/float64(steps)))
	}
	if d.cancel {
		disp.Cancel()
	} else {
		disp.Up(p(start, 1))
	}
	if !ended {
		return res, vp, fmt.Errorf("%s on %s did not finish", kind, id)
	}
	return res, vp, res.Err
}

// grabPoint is where a user would press to start kind on it.
func grabPoint(vp *viewport.Viewport, it domain.Item, kind gesture.State) domain.Point {
	resize, rotate := gesture.HandlePositions(vp, it.Geometry())
	switch kind {
	case gesture.Resizing:
		return resize
	case gesture.Rotating:
		return rotate
	default:
		return vp.ScreenCenterOf(it.Geometry())
	}
}

func linear(dx, dy float64) path {
	return func(s domain.Point, t float64) domain.Point {
		return domain.Point{X: s.X + dx*t, Y: s.Y + dy*t}
	}
}

// orbit swings the pointer around center by deg degrees, clockwise on screen.
func orbit(center domain.Point, deg float64) path {
	return func(s domain.Point, t float64) domain.Point {
		r := math.Hypot(s.X-center.X, s.Y-center.Y)
		a := math.Atan2(s.Y-center.Y, s.X-center.X) + vector.Deg2Rad(deg*t)
		return domain.Point{X: center.X + r*math.Cos(a), Y: center.Y + r*math.Sin(a)}
	}
}

func gestureOut(res gesture.Result, vp *viewport.Viewport) map[string]any {
	return map[string]any{
		"id":        res.ItemID,
		"gesture":   res.Kind.String(),
		"zoom":      vp.Zoom(),
		"moves":     res.Moves,
		"cancelled": res.Cancelled,
		"geometry":  res.Geometry,
	}
}

func gestureCmd(app *App, use, short string, kind gesture.State, bind func(*cobra.Command), mk pathFor) *cobra.Command {
	var d drag
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := app.context(cmd)
			store, extent, done, err := app.openItems(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer done()
			res, vp, err := d.run(ctx, app, store, extent, args[0], kind, mk)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, gestureOut(res, vp))
		},
	}
	d.bind(cmd)
	bind(cmd)
	return cmd
}

func newMoveCmd(app *App) *cobra.Command {
	var dx, dy float64
	return gestureCmd(app, "move <item-id>", "Drag an item by --dx/--dy screen pixels", gesture.Translating,
		func(cmd *cobra.Command) {
			cmd.Flags().Float64Var(&dx, "dx", 0, "Horizontal pointer travel in screen pixels")
			cmd.Flags().Float64Var(&dy, "dy", 0, "Vertical pointer travel in screen pixels")
		},
		func(*viewport.Viewport, domain.Item) (path, int) { return linear(dx, dy), 1 })
}

func newResizeCmd(app *App) *cobra.Command {
	var dw, dh float64
	return gestureCmd(app, "resize <item-id>", "Drag the resize handle by --dw/--dh screen pixels", gesture.Resizing,
		func(cmd *cobra.Command) {
			cmd.Flags().Float64Var(&dw, "dw", 0, "Horizontal handle travel in screen pixels")
			cmd.Flags().Float64Var(&dh, "dh", 0, "Vertical handle travel in screen pixels")
		},
		func(*viewport.Viewport, domain.Item) (path, int) { return linear(dw, dh), 1 })
}

func newRotateCmd(app *App) *cobra.Command {
	var deg float64
	return gestureCmd(app, "rotate <item-id>", "Swing the rotate handle by --deg degrees around the item center", gesture.Rotating,
		func(cmd *cobra.Command) {
			cmd.Flags().Float64Var(&deg, "deg", 0, "Clockwise rotation in degrees")
		},
		func(vp *viewport.Viewport, it domain.Item) (path, int) {
			// keep each sample well under half a turn so the unwrapped angle is exact
			return orbit(vp.ScreenCenterOf(it.Geometry()), deg), int(math.Ceil(math.Abs(deg) / 90))
		})
}
