/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func lastJSONLine(t *testing.T, data []byte) map[string]any {
	t.Helper()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	var last string
	for scanner.Scan() {
		if s := strings.TrimSpace(scanner.Text()); s != "" {
			last = s
		}
	}
	if last == "" {
		t.Fatalf("no log lines found")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal json log: %v", err)
	}
	return m
}

// TestInitAndStructuredLoggingToFile verifies that Init with a file handler writes JSON logs
// carrying static, component and context attributes.
func TestInitAndStructuredLoggingToFile(t *testing.T) {
	fpath := filepath.Join(os.TempDir(), fmt.Sprintf("lb_log_%d.json", time.Now().UnixNano()))
	var console bytes.Buffer
	Init(Options{Level: "debug", Format: "json", File: fpath, Writer: &console})

	ctx := WithItem(WithBoard(context.Background(), "/tmp/board.json"), "item-1")
	l := WithOperation(WithComponent("testcomp"), "op1")
	l.InfoContext(ctx, "hello world", slog.String("k", "v"))

	time.Sleep(50 * time.Millisecond)

	b, err := os.ReadFile(fpath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	m := lastJSONLine(t, b)
	if m["app"] != "lifeboard" {
		t.Fatalf("missing app attr: %v", m["app"])
	}
	if _, ok := m["ver"].(string); !ok {
		t.Fatalf("missing ver attr")
	}
	if m["component"] != "testcomp" || m["op"] != "op1" {
		t.Fatalf("component/op mismatch: %v %v", m["component"], m["op"])
	}
	if m["board"] != "/tmp/board.json" || m["item"] != "item-1" {
		t.Fatalf("context attrs missing: %v %v", m["board"], m["item"])
	}
	if m["msg"] != "hello world" {
		t.Fatalf("msg mismatch: %v", m["msg"])
	}
	if c := lastJSONLine(t, console.Bytes()); c["msg"] != "hello world" {
		t.Fatalf("console handler missed the record: %v", c)
	}
}

func TestInit_ConsoleWriterAndLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "warn", Writer: &buf})
	L().Info("quiet")
	L().Warn("loud", slog.Int("n", 3))
	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Fatalf("info must be filtered at warn: %q", out)
	}
	if !strings.Contains(out, "WRN loud") || !strings.Contains(out, "app=lifeboard") || !strings.Contains(out, "n=3") {
		t.Fatalf("unexpected console line: %q", out)
	}
}
