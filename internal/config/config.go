/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the user configuration from YAML, applies LB_*
// environment overrides and keeps the sync token in the OS keyring.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"lifeboard/internal/gesture"
	"lifeboard/internal/layering"
	lblog "lifeboard/internal/log"
	"lifeboard/internal/viewport"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Canvas        CanvasConfig  `yaml:"canvas"`
	Layering      LayerConfig   `yaml:"layering"`
	Gesture       GestureConfig `yaml:"gesture"`
	Storage       StorageConfig `yaml:"storage"`
	Backend       BackendConfig `yaml:"backend"`
	Logging       LoggingConfig `yaml:"logging"`
}

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Theme          string `yaml:"theme"` // "system" | "light" | "dark"
	EnableServer   bool   `yaml:"enable_server"`
}

type CanvasConfig struct {
	MinZoom   float64 `yaml:"min_zoom"`
	MaxZoom   float64 `yaml:"max_zoom"`
	ZoomStep  float64 `yaml:"zoom_step"`
	Extent    float64 `yaml:"extent"`
	MinExtent float64 `yaml:"min_extent"`
}

type LayerConfig struct {
	// Limit bounds |zIndex| before the board is renumbered.
	Limit int `yaml:"limit"`
}

type GestureConfig struct {
	CancelPolicy string `yaml:"cancel_policy"` // "commit" | "revert"
}

type StorageConfig struct {
	Board       string `yaml:"board"`
	BackupCron  string `yaml:"backup_cron"` // empty disables scheduled backups
	BackupsKeep int    `yaml:"backups_keep"`
	WatchMs     int    `yaml:"watch_debounce_ms"`
}

type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	Addr        string `yaml:"addr"`
	PGDSN       string `yaml:"pg_dsn"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	vc := viewport.DefaultConfig()
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{Theme: "system"},
		Canvas: CanvasConfig{
			MinZoom: vc.MinZoom, MaxZoom: vc.MaxZoom, ZoomStep: vc.ZoomStep,
			Extent: vc.Extent, MinExtent: vc.MinExtent,
		},
		Layering: LayerConfig{Limit: layering.DefaultLimit},
		Gesture:  GestureConfig{CancelPolicy: gesture.CommitOnCancel.String()},
		Storage:  StorageConfig{Board: "board.db", BackupCron: "@every 15m", BackupsKeep: 10, WatchMs: 500},
		Backend:  BackendConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000, Addr: "127.0.0.1:8080"},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath       = "LB_CONFIG"
	EnvBoard            = "LB_BOARD"
	EnvBackupCron       = "LB_BACKUP_CRON"
	EnvCancelPolicy     = "LB_CANCEL_POLICY"
	EnvBackendURL       = "LB_BACKEND_URL"
	EnvBackendTimeoutMs = "LB_BACKEND_TIMEOUT_MS"
	EnvBackendTLSInsec  = "LB_TLS_INSECURE"
	EnvServerAddr       = "LB_SERVER_ADDR"
	EnvPGDSN            = "LB_PG_DSN"
	EnvTelemetryOptIn   = "LB_TELEMETRY_OPT_IN"
	EnvEnableServer     = "LB_ENABLE_SERVER"
	EnvLogLevel         = lblog.EnvLevel
	EnvLogFormat        = lblog.EnvFormat
	EnvLogSource        = lblog.EnvSource
	EnvLogFile          = lblog.EnvFile
)

// Service/keys for OS keyring.
const (
	keyringService = "Lifeboard"
	keyringToken   = "backend_token"
)

// tokenStore abstracts the keyring so tests can swap it.
var tokenStore TokenStore = osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore using github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// Token returns the stored sync token, or "" when none is stored.
func Token() (string, error) {
	tok, err := tokenStore.Get(keyringService, keyringToken)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return tok, err
}

// SetToken stores the sync token. An empty token deletes it.
func SetToken(tok string) error {
	if tok == "" {
		return DeleteToken()
	}
	return tokenStore.Set(keyringService, keyringToken, tok)
}

// DeleteToken removes the sync token. Deleting a missing token is not an error.
func DeleteToken() error {
	if err := tokenStore.Delete(keyringService, keyringToken); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

// ConfigPath returns the per-user config file path. LB_CONFIG overrides it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "Lifeboard")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Lifeboard")
	default:
		base = filepath.Join(os.Getenv("HOME"), ".config", "lifeboard")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// The backend token comes from the keyring and is returned separately; a keyring failure leaves it empty.
func Load() (AppConfig, string, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), "", err
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return cfg, "", err
	}
	tok, _ := Token()
	return cfg, tok, nil
}

// LoadFile reads path over the defaults and applies environment overrides.
// A missing file is not an error; a malformed one is.
func LoadFile(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, err
	}
	applyEnvOverrides(&cfg)
	return cfg, cfg.Validate()
}

// Save writes the user config YAML and persists the token into the OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := SaveFile(path, cfg); err != nil {
		return err
	}
	if token != "" {
		return SetToken(token)
	}
	return nil
}

// SaveFile writes cfg as YAML to path.
func SaveFile(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate reports the first setting that cannot be used.
func (c AppConfig) Validate() error {
	if c.Canvas.MinZoom <= 0 || c.Canvas.MaxZoom < c.Canvas.MinZoom {
		return fmt.Errorf("canvas: zoom range [%g, %g] is invalid", c.Canvas.MinZoom, c.Canvas.MaxZoom)
	}
	if c.Layering.Limit < 2 {
		return fmt.Errorf("layering: limit %d is too small", c.Layering.Limit)
	}
	if _, err := gesture.ParseCancelPolicy(c.Gesture.CancelPolicy); err != nil {
		return fmt.Errorf("gesture: %w", err)
	}
	if s := strings.TrimSpace(c.Storage.BackupCron); s != "" {
		if _, err := cron.ParseStandard(s); err != nil {
			return fmt.Errorf("storage: backup_cron %q: %w", s, err)
		}
	}
	return nil
}

// Viewport returns the canvas section as viewport bounds.
func (c CanvasConfig) Viewport() viewport.Config {
	return viewport.Config{
		MinZoom: c.MinZoom, MaxZoom: c.MaxZoom, ZoomStep: c.ZoomStep,
		Extent: c.Extent, MinExtent: c.MinExtent,
	}
}

// Policy returns the parsed cancel policy, falling back to commit.
func (g GestureConfig) Policy() gesture.CancelPolicy {
	p, _ := gesture.ParseCancelPolicy(g.CancelPolicy)
	return p
}

// LogOptions maps the logging section onto the logger's options.
func (l LoggingConfig) LogOptions() lblog.Options {
	return lblog.Options{
		Level:     l.Level,
		Format:    l.Format,
		AddSource: l.Source,
		File:      l.File,
	}
}

// Timeout returns the backend timeout, falling back to the default.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// WatchDebounce returns the watcher debounce interval.
func (s StorageConfig) WatchDebounce() time.Duration {
	if s.WatchMs <= 0 {
		return time.Duration(Defaults().Storage.WatchMs) * time.Millisecond
	}
	return time.Duration(s.WatchMs) * time.Millisecond
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	dst.General.EnableServer = src.General.EnableServer

	setFloat(&dst.Canvas.MinZoom, src.Canvas.MinZoom)
	setFloat(&dst.Canvas.MaxZoom, src.Canvas.MaxZoom)
	setFloat(&dst.Canvas.ZoomStep, src.Canvas.ZoomStep)
	setFloat(&dst.Canvas.Extent, src.Canvas.Extent)
	setFloat(&dst.Canvas.MinExtent, src.Canvas.MinExtent)
	if src.Layering.Limit != 0 {
		dst.Layering.Limit = src.Layering.Limit
	}
	setString(&dst.Gesture.CancelPolicy, strings.ToLower(src.Gesture.CancelPolicy))

	setString(&dst.Storage.Board, src.Storage.Board)
	setString(&dst.Storage.BackupCron, src.Storage.BackupCron)
	if src.Storage.BackupsKeep != 0 {
		dst.Storage.BackupsKeep = src.Storage.BackupsKeep
	}
	if src.Storage.WatchMs != 0 {
		dst.Storage.WatchMs = src.Storage.WatchMs
	}

	setString(&dst.Backend.BaseURL, src.Backend.BaseURL)
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	dst.Backend.TLSInsecure = src.Backend.TLSInsecure
	setString(&dst.Backend.Addr, src.Backend.Addr)
	setString(&dst.Backend.PGDSN, src.Backend.PGDSN)

	setString(&dst.Logging.Level, strings.ToLower(src.Logging.Level))
	setString(&dst.Logging.Format, strings.ToLower(src.Logging.Format))
	dst.Logging.Source = src.Logging.Source
	setString(&dst.Logging.File, src.Logging.File)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	env := func(name string) string { return strings.TrimSpace(os.Getenv(name)) }
	setString(&cfg.Storage.Board, env(EnvBoard))
	if _, ok := os.LookupEnv(EnvBackupCron); ok {
		cfg.Storage.BackupCron = env(EnvBackupCron)
	}
	setString(&cfg.Gesture.CancelPolicy, strings.ToLower(env(EnvCancelPolicy)))
	setString(&cfg.Backend.BaseURL, env(EnvBackendURL))
	if v := env(EnvBackendTimeoutMs); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := env(EnvBackendTLSInsec); v != "" {
		cfg.Backend.TLSInsecure = envBool(v)
	}
	setString(&cfg.Backend.Addr, env(EnvServerAddr))
	setString(&cfg.Backend.PGDSN, env(EnvPGDSN))
	if v := env(EnvTelemetryOptIn); v != "" {
		cfg.General.TelemetryOptIn = envBool(v)
	}
	if v := env(EnvEnableServer); v != "" {
		cfg.General.EnableServer = envBool(v)
	}
	setString(&cfg.Logging.Level, strings.ToLower(env(EnvLogLevel)))
	setString(&cfg.Logging.Format, strings.ToLower(env(EnvLogFormat)))
	if v := env(EnvLogSource); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	setString(&cfg.Logging.File, env(EnvLogFile))
}

var envKeys = map[string]string{
	"storage.board":            EnvBoard,
	"storage.backup_cron":      EnvBackupCron,
	"gesture.cancel_policy":    EnvCancelPolicy,
	"backend.base_url":         EnvBackendURL,
	"backend.timeout_ms":       EnvBackendTimeoutMs,
	"backend.tls_insecure":     EnvBackendTLSInsec,
	"backend.addr":             EnvServerAddr,
	"backend.pg_dsn":           EnvPGDSN,
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"general.enable_server":    EnvEnableServer,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok {
		return "", false
	}
	if _, set := os.LookupEnv(name); !set {
		return "", false
	}
	if name != EnvBackupCron && os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}
