/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lifeboard/internal/commit"
	"lifeboard/internal/domain"
	"lifeboard/internal/storage"
)

func newTestServer(t *testing.T, secret string) (*storage.MemoryStore, *httptest.Server) {
	t.Helper()
	mem := storage.NewMemoryStore()
	srv := httptest.NewServer(NewHandler(mem, ServerConfig{Secret: secret}))
	t.Cleanup(srv.Close)
	return mem, srv
}

func TestClient_ItemStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem, srv := newTestServer(t, "s3cret")
	c := NewClient(srv.URL+"/", "s3cret", ClientOptions{})

	g := domain.Geometry{Position: domain.Point{X: 10, Y: 20}, Size: domain.Size{Width: 80, Height: 90}, Rotation: 5, ZIndex: 2}
	it, err := c.CreateItem(ctx, domain.NewItem{Kind: "note", Geometry: &g, Payload: []byte(`{"text":"remote"}`)})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if it.ID == "" || it.Geometry() != g {
		t.Fatalf("created = %+v", it)
	}
	if _, err := c.CreateItem(ctx, domain.NewItem{ID: "low", Geometry: &domain.Geometry{Size: domain.Size{Width: 60, Height: 60}, ZIndex: -1}}); err != nil {
		t.Fatal(err)
	}

	// the engine's write path works unchanged against the remote board
	if err := commit.New(c).Write(ctx, it.ID, domain.RotationPatch(-190)); err != nil {
		t.Fatalf("commit through client: %v", err)
	}
	items, err := c.Items(ctx)
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(items) != 2 || items[0].ID != "low" || items[1].Rotation != -190 || string(items[1].Payload) != `{"text":"remote"}` {
		t.Fatalf("items = %+v", items)
	}
	if mem.Len() != 2 {
		t.Fatalf("server store len = %d", mem.Len())
	}

	if err := c.DeleteItem(ctx, "low"); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	err = c.DeleteItem(ctx, "low")
	var se *StatusError
	if !errors.Is(err, domain.ErrNotFound) || !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("delete missing err = %v", err)
	}
	if err := c.UpdateItem(ctx, "missing", domain.ZIndexPatch(3)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("update missing err = %v", err)
	}
}

func TestServer_RejectsInvalidPatch(t *testing.T) {
	ctx := context.Background()
	mem, srv := newTestServer(t, "")
	it, _ := mem.CreateItem(ctx, domain.NewItem{})
	c := NewClient(srv.URL, "", ClientOptions{})
	err := c.UpdateItem(ctx, it.ID, domain.SizePatch(domain.Size{Width: 1, Height: 1}))
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusUnprocessableEntity {
		t.Fatalf("err = %v", err)
	}
	req, _ := http.NewRequest(http.MethodPatch, srv.URL+"/api/items/"+it.ID, strings.NewReader("{not json"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad body status = %d", resp.StatusCode)
	}
}

func TestServer_AuthAndTokens(t *testing.T) {
	ctx := context.Background()
	_, srv := newTestServer(t, "s3cret")

	if _, err := NewClient(srv.URL, "", ClientOptions{}).Items(ctx); err == nil {
		t.Fatalf("expected 401 without token")
	}
	if _, err := NewClient(srv.URL, "wrong", ClientOptions{}).Items(ctx); err == nil {
		t.Fatalf("expected 401 with wrong token")
	}

	owner := NewClient(srv.URL, "s3cret", ClientOptions{})
	tok, err := owner.MintToken(ctx, "tablet", time.Minute)
	if err != nil || tok == "" {
		t.Fatalf("MintToken: %q %v", tok, err)
	}
	if _, err := NewClient(srv.URL, tok, ClientOptions{}).Items(ctx); err != nil {
		t.Fatalf("minted token rejected: %v", err)
	}

	expired, _ := SignToken("s3cret", "old", time.Now().Add(-time.Minute))
	if _, err := NewClient(srv.URL, expired, ClientOptions{}).Items(ctx); err == nil {
		t.Fatalf("expired token accepted")
	}
	forged, _ := SignToken("other", "x", time.Now().Add(time.Minute))
	if _, err := NewClient(srv.URL, forged, ClientOptions{}).Items(ctx); err == nil {
		t.Fatalf("forged token accepted")
	}
	if _, err := SignToken("", "x", time.Now()); err == nil {
		t.Fatalf("signing without a secret must fail")
	}
}

func TestServer_HealthAndVersion(t *testing.T) {
	_, srv := newTestServer(t, "s3cret")
	for path, want := range map[string]string{"/healthz": "ok", "/readyz": "ready"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || string(b) != want {
			t.Fatalf("%s = %d %q", path, resp.StatusCode, b)
		}
	}
	v, err := NewClient(srv.URL, "", ClientOptions{}).Version(context.Background())
	if err != nil || !strings.HasPrefix(v, "lifeboard ") {
		t.Fatalf("Version = %q %v", v, err)
	}

	down := httptest.NewServer(NewHandler(storage.NewMemoryStore(), ServerConfig{Ping: func(context.Context) error { return errors.New("down") }}))
	defer down.Close()
	resp, err := http.Get(down.URL + "/readyz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing ping = %d", resp.StatusCode)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	addrc := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, storage.NewMemoryStore(), ServerConfig{Addr: "127.0.0.1:0"}, func(a string) { addrc <- a })
	}()
	var addr string
	select {
	case addr = <-addrc:
	case err := <-done:
		t.Fatalf("Serve returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not start")
	}
	if _, err := NewClient("http://"+addr, "", ClientOptions{}).Items(ctx); err != nil {
		t.Fatalf("Items against live server: %v", err)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}

func TestParseVersion(t *testing.T) {
	if v, err := parseVersion("migrations/0002_items_paint_index.sql"); err != nil || v != 2 {
		t.Fatalf("parseVersion = %d %v", v, err)
	}
	if _, err := parseVersion("items.sql"); err == nil {
		t.Fatalf("expected error for unversioned file")
	}
}
