/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lifeboard/internal/domain"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
	PresetThumb PresetName = "thumb"
)

// ParsePreset accepts a preset name case-insensitively.
func ParsePreset(s string) (PresetName, error) {
	switch p := PresetName(strings.ToLower(strings.TrimSpace(s))); p {
	case PresetWeb, PresetPrint, PresetThumb:
		return p, nil
	}
	return "", fmt.Errorf("unknown preset %q", s)
}

// BatchOptions controls a batch export across formats.
//
// Path semantics:
//   - If OutDir is empty it defaults to the preset name.
//   - A relative OutDir is resolved under <Root>/exports/.
//   - Each format is written as board.<format> in OutDir.
type BatchOptions struct {
	Preset        PresetName
	Formats       []string // png, svg, pdf; empty means preset defaults
	Scale         float64  // when > 0 overrides the preset scale
	IncludeCanvas *bool    // when set, overrides the preset default
	Extent        float64
	Root          string
	OutDir        string
}

// BatchExport runs exports according to the given preset and returns the
// written paths.
func BatchExport(items []domain.Item, opt BatchOptions) ([]string, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}

	baseOut := opt.OutDir
	if baseOut == "" {
		baseOut = string(opt.Preset)
	}
	if !filepath.IsAbs(baseOut) {
		baseOut = filepath.Join(opt.Root, "exports", baseOut)
	}
	if err := os.MkdirAll(baseOut, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	o := presetOptions(opt.Preset)
	o.Extent = opt.Extent
	if opt.Scale > 0 {
		o.Scale = opt.Scale
	}
	if opt.IncludeCanvas != nil {
		o.IncludeCanvas = *opt.IncludeCanvas
	}

	var written []string
	for _, raw := range formats {
		f := Format(strings.ToLower(strings.TrimSpace(raw)))
		switch f {
		case FormatPNG, FormatSVG, FormatPDF:
		default:
			return written, fmt.Errorf("unknown format: %s", raw)
		}
		out := filepath.Join(baseOut, "board."+string(f))
		if err := exportAs(f, items, out, o); err != nil {
			return written, fmt.Errorf("%s: %w", f, err)
		}
		written = append(written, out)
	}
	return written, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"png", "svg"}
	case PresetPrint:
		return []string{"pdf", "png"}
	case PresetThumb:
		return []string{"png"}
	default:
		return []string{"pdf"}
	}
}

func presetOptions(p PresetName) Options {
	switch p {
	case PresetWeb:
		return Options{Scale: 1, Padding: 20, Labels: true}
	case PresetPrint:
		return Options{Scale: 2, Padding: 40, Labels: true, IncludeCanvas: true}
	case PresetThumb:
		return Options{Scale: 0.1, Padding: 10}
	default:
		return Options{Scale: 1, Padding: 20, IncludeCanvas: true}
	}
}
