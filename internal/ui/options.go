/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package ui hosts the desktop board window. The Fyne implementation is
// compiled with -tags fyne; other builds get a stub so CI stays headless.
package ui

import (
	"lifeboard/internal/config"
	"lifeboard/internal/crash"
)

// Options selects the board to open and the settings to run it with.
type Options struct {
	Board  string
	Config config.AppConfig
	// Crash, when set, is pointed at the open board so a panic autosaves it.
	Crash *crash.Board
}

func (o Options) withDefaults() Options {
	if o.Config.ConfigVersion == 0 {
		o.Config = config.Defaults()
	}
	if o.Board == "" {
		o.Board = o.Config.Storage.Board
	}
	return o
}
