// Package config loads wsocketd settings from TOML on top of built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/wsocket/internal/compress"
	"github.com/danmuck/wsocket/internal/protocol/frame"
	"github.com/danmuck/wsocket/internal/transport"
)

var ErrInvalidConfig = errors.New("config: invalid")

// ServiceConfig is everything a wsocketd process needs to start.
type ServiceConfig struct {
	Node      string
	Addr      string
	AdminAddr string
	// AdminToken guards mutating admin routes; empty leaves them open.
	AdminToken string
	Transport  transport.Config
	Compress   compress.Options
}

func DefaultServiceConfig() ServiceConfig {
	cfg := ServiceConfig{
		Node:      "wsocketd",
		Addr:      ":9200",
		AdminAddr: ":9201",
		Transport: transport.DefaultConfig(),
		Compress:  compress.DefaultOptions(),
	}
	cfg.Transport.Session.Compression.Enabled = true
	return cfg
}

// wsocketd config.toml key mapping to runtime settings.
type fileConfig struct {
	Node                 string   `toml:"node"`
	Addr                 string   `toml:"addr"`
	AdminAddr            string   `toml:"admin_addr"`
	AdminToken           string   `toml:"admin_token"`
	ReceiveBuffer        int      `toml:"receive_buffer"`
	MinRead              int      `toml:"min_read"`
	MaxPayload           uint64   `toml:"max_payload"`
	KeepAliveExpiry      string   `toml:"keepalive_expiry"`
	KeepAliveTimeout     string   `toml:"keepalive_timeout"`
	Compression          []string `toml:"compression"`
	CompressionThreshold int      `toml:"compression_threshold"`
	CompressionLevel     int      `toml:"compression_level"`
	RejectEmpty          bool     `toml:"reject_empty"`
	CloseTimeout         string   `toml:"close_timeout"`
	DialAttempts         int      `toml:"dial_attempts"`
	BackoffInitial       string   `toml:"backoff_initial"`
	BackoffMax           string   `toml:"backoff_max"`
}

// Load reads path and overlays every defined key on DefaultServiceConfig.
func Load(path string) (ServiceConfig, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ServiceConfig{}, fmt.Errorf("load wsocket config: %w", err)
	}
	return apply(DefaultServiceConfig(), raw, meta)
}

// Parse is Load for an in-memory document.
func Parse(data string) (ServiceConfig, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return ServiceConfig{}, fmt.Errorf("load wsocket config: %w", err)
	}
	return apply(DefaultServiceConfig(), raw, meta)
}

func apply(cfg ServiceConfig, raw fileConfig, meta toml.MetaData) (ServiceConfig, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return ServiceConfig{}, fmt.Errorf("%w: unknown key %q", ErrInvalidConfig, undecoded[0].String())
	}
	sess := &cfg.Transport.Session

	if meta.IsDefined("node") {
		cfg.Node = strings.TrimSpace(raw.Node)
	}
	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("receive_buffer") {
		sess.ReceiveBufferSize = raw.ReceiveBuffer
	}
	if meta.IsDefined("min_read") {
		sess.MinReadSize = raw.MinRead
	}
	if meta.IsDefined("max_payload") {
		sess.MaxPayloadBytes = raw.MaxPayload
	}
	if meta.IsDefined("keepalive_expiry") {
		d, err := parseDuration("keepalive_expiry", raw.KeepAliveExpiry)
		if err != nil {
			return ServiceConfig{}, err
		}
		sess.KeepAlive.Expiry = d
		sess.KeepAlive.Timeout = 0
	}
	if meta.IsDefined("keepalive_timeout") {
		d, err := parseDuration("keepalive_timeout", raw.KeepAliveTimeout)
		if err != nil {
			return ServiceConfig{}, err
		}
		sess.KeepAlive.Timeout = d
	}
	if meta.IsDefined("compression") {
		sess.Compression.Codecs = trimAll(raw.Compression)
		sess.Compression.Enabled = len(sess.Compression.Codecs) > 0
	}
	if meta.IsDefined("compression_threshold") {
		sess.Compression.Threshold = raw.CompressionThreshold
	}
	if meta.IsDefined("compression_level") {
		cfg.Compress.Level = raw.CompressionLevel
	}
	if meta.IsDefined("reject_empty") {
		sess.RejectEmptyMessages = raw.RejectEmpty
	}
	if meta.IsDefined("close_timeout") {
		d, err := parseDuration("close_timeout", raw.CloseTimeout)
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.Transport.CloseTimeout = d
	}
	if meta.IsDefined("dial_attempts") {
		cfg.Transport.DialAttempts = raw.DialAttempts
	}
	if meta.IsDefined("backoff_initial") {
		d, err := parseDuration("backoff_initial", raw.BackoffInitial)
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.Transport.Backoff.InitialDelay = d
	}
	if meta.IsDefined("backoff_max") {
		d, err := parseDuration("backoff_max", raw.BackoffMax)
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.Transport.Backoff.MaxDelay = d
	}

	if err := Validate(cfg); err != nil {
		return ServiceConfig{}, err
	}
	cfg.Transport.Session = cfg.Transport.Session.WithDefaults()
	return cfg, nil
}

// Validate rejects settings the protocol layers would otherwise silently clamp.
func Validate(cfg ServiceConfig) error {
	sess := cfg.Transport.Session
	switch {
	case strings.TrimSpace(cfg.Node) == "":
		return fmt.Errorf("%w: node is required", ErrInvalidConfig)
	case strings.TrimSpace(cfg.Addr) == "":
		return fmt.Errorf("%w: addr is required", ErrInvalidConfig)
	case sess.ReceiveBufferSize < 0:
		return fmt.Errorf("%w: receive_buffer must not be negative", ErrInvalidConfig)
	case sess.MinReadSize < 0:
		return fmt.Errorf("%w: min_read must not be negative", ErrInvalidConfig)
	case sess.MaxPayloadBytes > frame.MaxPayloadLimit:
		return fmt.Errorf("%w: max_payload must not exceed %d", ErrInvalidConfig, uint64(frame.MaxPayloadLimit))
	case sess.KeepAlive.Expiry < 0 || sess.KeepAlive.Timeout < 0:
		return fmt.Errorf("%w: keepalive durations must not be negative", ErrInvalidConfig)
	case sess.KeepAlive.Expiry > 0 && sess.KeepAlive.Timeout > 0 && sess.KeepAlive.Timeout <= sess.KeepAlive.Expiry:
		return fmt.Errorf("%w: keepalive_timeout must exceed keepalive_expiry", ErrInvalidConfig)
	case sess.Compression.Threshold < 0:
		return fmt.Errorf("%w: compression_threshold must not be negative", ErrInvalidConfig)
	case cfg.Transport.DialAttempts < 0:
		return fmt.Errorf("%w: dial_attempts must not be negative", ErrInvalidConfig)
	}
	if _, err := cfg.Registry().Types(sess.Compression.Codecs); err != nil {
		return fmt.Errorf("%w: compression: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Registry builds the codec registry configured by cfg.
func (cfg ServiceConfig) Registry() *compress.Registry {
	return compress.DefaultWith(cfg.Compress)
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, key)
	}
	return d, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
