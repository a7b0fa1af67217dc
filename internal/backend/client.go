/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lifeboard/internal/domain"
)

// Client talks to a sync server. It implements domain.ItemStore, so the
// canvas engine can commit straight to a remote board.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

var _ domain.ItemStore = (*Client)(nil)

// ClientOptions tunes the HTTP transport.
type ClientOptions struct {
	Timeout     time.Duration
	TLSInsecure bool
}

// NewClient creates a client. A trailing slash on baseURL is ignored.
func NewClient(baseURL, token string, opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	hc := &http.Client{Timeout: opts.Timeout}
	if opts.TLSInsecure {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed dev servers
		hc.Transport = tr
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), Token: token, client: hc}
}

// StatusError is returned for non-2xx responses. Not found responses also
// match domain.ErrNotFound.
type StatusError struct {
	Method, Path string
	Code         int
	Message      string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server %s %s: %d %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("server %s %s: %d", e.Method, e.Path, e.Code)
}

func (e *StatusError) Is(target error) bool {
	return target == domain.ErrNotFound && e.Code == http.StatusNotFound
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{Method: method, Path: u.Path, Code: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			se.Message = e.Error
		} else {
			se.Message = strings.TrimSpace(string(raw))
		}
		return se
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// Items fetches the board in paint order.
func (c *Client) Items(ctx context.Context) ([]domain.Item, error) {
	var list []domain.Item
	if err := c.doJSON(ctx, http.MethodGet, "/api/items", nil, &list); err != nil {
		return nil, err
	}
	return domain.PaintOrder(list), nil
}

// UpdateItem sends patch as one PATCH request.
func (c *Client) UpdateItem(ctx context.Context, id string, patch domain.GeometryPatch) error {
	return c.doJSON(ctx, http.MethodPatch, "/api/items/"+url.PathEscape(id), patch, nil)
}

// DeleteItem removes the item on the server.
func (c *Client) DeleteItem(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/items/"+url.PathEscape(id), nil, nil)
}

// CreateItem creates an item on the server.
func (c *Client) CreateItem(ctx context.Context, fields domain.NewItem) (domain.Item, error) {
	var it domain.Item
	if err := c.doJSON(ctx, http.MethodPost, "/api/items", fields, &it); err != nil {
		return domain.Item{}, err
	}
	return it, nil
}

// MintToken mints a short-lived token for subject. The client must hold the
// server secret.
func (c *Client) MintToken(ctx context.Context, subject string, ttl time.Duration) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	req := map[string]any{"subject": subject, "ttl_seconds": int64(ttl / time.Second)}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", req, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// Version returns the server's version line.
func (c *Client) Version(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/version", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Method: http.MethodGet, Path: "/version", Code: resp.StatusCode}
	}
	return strings.TrimSpace(string(b)), nil
}
