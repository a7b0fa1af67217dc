//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"lifeboard/internal/backend"
	"lifeboard/internal/config"
	"lifeboard/internal/domain"
	"lifeboard/internal/export"
	"lifeboard/internal/layering"
	applog "lifeboard/internal/log"
	"lifeboard/internal/storage"
	"lifeboard/internal/version"
	"lifeboard/internal/viewport"
)

// Run opens the board window and blocks until it is closed.
func Run(opts Options) error {
	opts = opts.withDefaults()
	cfg := opts.Config
	l := applog.WithComponent("ui")
	start := time.Now()
	l.Info("starting UI", slog.String("board", opts.Board))

	ctx, cancel := context.WithCancel(applog.WithBoard(context.Background(), opts.Board))
	defer cancel()

	st, recovered, err := storage.OpenOrRecover(ctx, opts.Board)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			l.Warn("close board", slog.Any("err", err))
		}
	}()
	if opts.Crash != nil {
		opts.Crash.Path, opts.Crash.Extent, opts.Crash.Store = st.Path(), st.Extent(), st
		defer func() { opts.Crash.Store = nil }()
	}

	fyneApp := app.NewWithID("lifeboard")
	w := fyneApp.NewWindow("Lifeboard: " + filepath.Base(opts.Board))
	prefs := fyneApp.Preferences()
	winW := max(prefs.IntWithFallback("window.width", 1200), 800)
	winH := max(prefs.IntWithFallback("window.height", 800), 600)
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Ready")
	if recovered {
		status.SetText("Board was damaged and has been rebuilt from the latest backup")
	}
	zoomLabel := widget.NewLabel("")
	inspector := widget.NewLabel("Nothing selected")
	inspector.Wrapping = fyne.TextWrapWord

	bc := NewBoardCanvas(ctx, st, CanvasOptions{
		Viewport:     cfg.Canvas.Viewport(),
		CancelPolicy: cfg.Gesture.Policy(),
		LayerLimit:   cfg.Layering.Limit,
	})
	bc.Viewport().SetExtent(st.Extent())
	bc.OnStatus = status.SetText

	// item list, topmost first
	var listed []domain.Item
	list := widget.NewList(
		func() int { return len(listed) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if i >= 0 && i < len(listed) {
				it := listed[i]
				o.(*widget.Label).SetText(fmt.Sprintf("%s  z=%d", itemLabel(it), it.ZIndex))
			}
		},
	)
	syncing := false
	list.OnSelected = func(id widget.ListItemID) {
		if syncing || id < 0 || id >= len(listed) {
			return
		}
		bc.Select(listed[id].ID)
	}
	describe := func() {
		it, ok := domain.FindItem(bc.Items(), bc.Selected())
		if !ok {
			inspector.SetText("Nothing selected")
			return
		}
		inspector.SetText(fmt.Sprintf("%s\nid: %s\nx %.1f  y %.1f\nw %.1f  h %.1f\nrotation %.1f°\nzIndex %d",
			itemLabel(it), it.ID, it.Position.X, it.Position.Y, it.Size.Width, it.Size.Height, it.Rotation, it.ZIndex))
	}
	selectInList := func() {
		syncing = true
		defer func() { syncing = false }()
		for i, it := range listed {
			if it.ID == bc.Selected() {
				list.Select(i)
				return
			}
		}
		list.UnselectAll()
	}
	bc.OnItems = func(items []domain.Item) {
		ordered := domain.PaintOrder(items)
		listed = listed[:0]
		for i := len(ordered) - 1; i >= 0; i-- {
			listed = append(listed, ordered[i])
		}
		list.Refresh()
		selectInList()
		describe()
	}
	bc.OnSelect = func(string) {
		selectInList()
		describe()
	}
	if err := bc.Reload(); err != nil {
		return err
	}

	showErr := func(err error) {
		if err != nil {
			l.Error("action failed", slog.Any("err", err))
			dialog.ShowError(err, w)
		}
	}
	updateZoom := func() { zoomLabel.SetText(zoomPercent(bc.Viewport().Zoom())) }
	updateZoom()
	refresh := bc.Viewport().OnChange
	bc.Viewport().OnChange = func(v *viewport.Viewport) {
		refresh(v)
		updateZoom()
	}
	zoom := func(f func() float64) func() {
		return func() { f() }
	}
	addNote := func() {
		if _, err := bc.AddItem("note"); err != nil {
			showErr(err)
		}
	}
	deleteSel := func() { showErr(bc.DeleteSelected()) }
	layer := func(op layering.Op) func() {
		return func() { showErr(bc.Layer(op)) }
	}

	toolbar := widget.NewToolbar(
		widget.NewToolbarAction(theme.ContentAddIcon(), addNote),
		widget.NewToolbarAction(theme.DeleteIcon(), deleteSel),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.UploadIcon(), layer(layering.Front)),
		widget.NewToolbarAction(theme.MoveUpIcon(), layer(layering.Forward)),
		widget.NewToolbarAction(theme.MoveDownIcon(), layer(layering.Backward)),
		widget.NewToolbarAction(theme.DownloadIcon(), layer(layering.Back)),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ZoomOutIcon(), zoom(bc.Viewport().ZoomOut)),
		widget.NewToolbarAction(theme.ZoomInIcon(), zoom(bc.Viewport().ZoomIn)),
		widget.NewToolbarAction(theme.ZoomFitIcon(), bc.Fit),
		widget.NewToolbarAction(theme.HomeIcon(), bc.Home),
	)

	right := container.NewBorder(
		container.NewVBox(widget.NewLabel("Items"), widget.NewSeparator()),
		container.NewVBox(widget.NewSeparator(), inspector),
		nil, nil, list,
	)
	split := container.NewHSplit(bc, right)
	split.Offset = 0.78
	bottom := container.NewBorder(nil, nil, nil, zoomLabel, status)
	w.SetContent(container.NewBorder(toolbar, bottom, nil, nil, split))

	// Menus
	exportItem := func(label, ext string) *fyne.MenuItem {
		return fyne.NewMenuItem(label, func() {
			save := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
				if err != nil || uc == nil {
					showErr(err)
					return
				}
				out := uc.URI().Path()
				_ = uc.Close()
				if ext == ".json" {
					_, err = storage.ExportJSON(ctx, st, out, st.Extent())
				} else {
					err = export.ExportFile(bc.Items(), out, export.Options{Extent: st.Extent(), Labels: true})
				}
				if err != nil {
					showErr(err)
					return
				}
				status.SetText("Exported to " + out)
			}, w)
			save.SetFileName("board" + ext)
			save.SetFilter(fstorage.NewExtensionFileFilter([]string{ext}))
			save.Show()
		})
	}
	importItem := fyne.NewMenuItem("Import Manifest…", func() {
		open := dialog.NewFileOpen(func(uc fyne.URIReadCloser, err error) {
			if err != nil || uc == nil {
				showErr(err)
				return
			}
			in := uc.URI().Path()
			_ = uc.Close()
			res, err := storage.ImportJSON(ctx, st, in, storage.ImportOptions{})
			if err != nil {
				showErr(err)
				return
			}
			if res.Extent > 0 && res.Extent != st.Extent() {
				if err := st.SetExtent(ctx, res.Extent); err != nil {
					showErr(err)
					return
				}
				bc.Viewport().SetExtent(st.Extent())
			}
			showErr(bc.Reload())
			status.SetText(fmt.Sprintf("Imported %d items (%d skipped, %d repaired)", res.Created, res.Skipped, res.Repaired))
		}, w)
		open.SetFilter(fstorage.NewExtensionFileFilter([]string{".json"}))
		open.Show()
	})
	backups := storage.NewBackupScheduler(st, storage.BackupDir(st.Path()), cfg.Storage.BackupsKeep)
	backups.Extent = st.Extent()
	backupItem := fyne.NewMenuItem("Back Up Now", func() {
		path, err := backups.Snapshot(ctx)
		if err != nil {
			showErr(err)
			return
		}
		status.SetText("Backup written to " + path)
	})
	fileMenu := fyne.NewMenu("File", importItem, fyne.NewMenuItemSeparator(),
		exportItem("Export PNG…", ".png"), exportItem("Export SVG…", ".svg"),
		exportItem("Export PDF…", ".pdf"), exportItem("Export Manifest…", ".json"),
		fyne.NewMenuItemSeparator(), backupItem)
	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Add Note", addNote),
		fyne.NewMenuItem("Delete", deleteSel),
		fyne.NewMenuItem("Cancel Gesture", bc.CancelGesture),
	)
	arrangeMenu := fyne.NewMenu("Arrange",
		fyne.NewMenuItem("Bring to Front", layer(layering.Front)),
		fyne.NewMenuItem("Bring Forward", layer(layering.Forward)),
		fyne.NewMenuItem("Send Backward", layer(layering.Backward)),
		fyne.NewMenuItem("Send to Back", layer(layering.Back)),
	)
	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", zoom(bc.Viewport().ZoomIn)),
		fyne.NewMenuItem("Zoom Out", zoom(bc.Viewport().ZoomOut)),
		fyne.NewMenuItem("Fit Items", bc.Fit),
		fyne.NewMenuItem("Canvas Center", bc.Home),
	)
	aboutItem := fyne.NewMenuItem("About Lifeboard", func() {
		exe, _ := os.Executable()
		info := fmt.Sprintf("Lifeboard\nVersion: %s\nOS: %s\nArch: %s\nGo: %s\nExecutable: %s\nBoard: %s",
			version.String(), runtime.GOOS, runtime.GOARCH, runtime.Version(), exe, st.Path())
		dialog.ShowInformation("About", info, w)
	})
	w.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, arrangeMenu, viewMenu, fyne.NewMenu("About", aboutItem)))

	w.Canvas().SetOnTypedKey(func(k *fyne.KeyEvent) {
		switch k.Name {
		case fyne.KeyEscape:
			bc.CancelGesture()
		case fyne.KeyDelete, fyne.KeyBackspace:
			deleteSel()
		case fyne.KeyPageUp:
			layer(layering.Forward)()
		case fyne.KeyPageDown:
			layer(layering.Backward)()
		}
	})

	// Background services
	if spec := strings.TrimSpace(cfg.Storage.BackupCron); spec != "" {
		if err := backups.Start(ctx, spec); err != nil {
			l.Warn("backups disabled", slog.Any("err", err))
		} else {
			defer backups.Stop()
		}
	}
	if watcher, err := storage.NewWatcher(st.Path(), cfg.Storage.WatchDebounce()); err != nil {
		l.Warn("board watcher unavailable", slog.Any("err", err))
	} else {
		defer watcher.Close()
		go func() {
			err := watcher.Run(ctx, func(string) {
				fyne.Do(func() {
					if bc.Dragging() {
						return
					}
					if err := bc.Reload(); err != nil {
						l.Warn("reload after change", slog.Any("err", err))
					}
				})
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				l.Warn("board watcher stopped", slog.Any("err", err))
			}
		}()
	}
	if cfg.General.EnableServer {
		secret, _ := config.Token()
		go func() {
			err := backend.Serve(ctx, st, backend.ServerConfig{Addr: cfg.Backend.Addr, Secret: secret}, func(addr string) {
				fyne.Do(func() { status.SetText("Sync server listening on " + addr) })
			})
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
				l.Error("sync server stopped", slog.Any("err", err))
			}
		}()
	}

	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		bc.Close()
		cancel()
		w.Close()
	})

	w.ShowAndRun()
	l.Info("window closed", slog.Duration("uptime", time.Since(start)))
	return nil
}
