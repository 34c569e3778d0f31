// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"blog-edge/internal/edge"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/blog-edge/config.toml",
	"configs/config.toml",
}

// reservedRoutes are served by the edge itself and cannot host metrics.
var reservedRoutes = []string{"/_edge", "/healthz"}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config    string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host      string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port      int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	OriginURL string `kong:"help='HTTP origin base URL (overrides config).',env='ORIGIN_URL'"`
	LogLevel  string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Origin  OriginConfig  `toml:"origin"`
	Edge    EdgeConfig    `toml:"edge"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// Viewer protocol policies.
const (
	ViewerProtocolAllowAll        = "allow-all"
	ViewerProtocolRedirectToHTTPS = "redirect-to-https"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string          `toml:"host"`
	Port           int             `toml:"port"` // 0 means "use default" (8000); TOML cannot distinguish 0 from unset
	BodyMaxBytes   int64           `toml:"body_max_bytes"`
	ViewerProtocol string          `toml:"viewer_protocol"`
	RateLimit      RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Origin store types.
const (
	OriginHTTP = "http"
	OriginS3   = "s3"
)

// OriginConfig selects and configures the origin store.
type OriginConfig struct {
	Type            string   `toml:"type"`
	BaseURL         string   `toml:"base_url"`
	KeyPrefix       string   `toml:"key_prefix"`
	TimeoutSeconds  int      `toml:"timeout_seconds"`
	IdleConnections int      `toml:"idle_connections"`
	S3              S3Config `toml:"s3"`
}

// S3Config holds bucket settings for the s3 origin.
type S3Config struct {
	Bucket       string `toml:"bucket"`
	Region       string `toml:"region"`
	Endpoint     string `toml:"endpoint"` // custom endpoint, e.g. a local S3-compatible store
	UsePathStyle bool   `toml:"use_path_style"`
}

// EdgeConfig associates edge functions with lifecycle events. A nil list
// means the default association; an explicit empty list disables the event.
type EdgeConfig struct {
	OriginRequest  []string `toml:"origin_request"`
	ViewerResponse []string `toml:"viewer_response"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/blog-edge/config.toml then configs/config.toml.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path == "" {
		return nil, fmt.Errorf("config: no config file found (searched %v)", configSearchPaths)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.filePath = path
	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.OriginURL != "" {
		c.Origin.BaseURL = cli.OriginURL
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	if err := c.validateOrigin(); err != nil {
		return err
	}
	if err := c.validateEdge(); err != nil {
		return err
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}
	switch strings.ToLower(c.Server.ViewerProtocol) {
	case ViewerProtocolAllowAll, ViewerProtocolRedirectToHTTPS, "":
		// valid
	default:
		return fmt.Errorf("server.viewer_protocol must be one of: allow-all, redirect-to-https; got %q", c.Server.ViewerProtocol)
	}

	// Log fields.
	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range reservedRoutes {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

func (c *Config) validateOrigin() error {
	switch strings.ToLower(c.Origin.Type) {
	case OriginHTTP, "":
		if c.Origin.BaseURL == "" {
			return fmt.Errorf("origin.base_url is required for the http origin")
		}
		if err := validateHTTPURL("origin.base_url", c.Origin.BaseURL); err != nil {
			return err
		}
	case OriginS3:
		if c.Origin.S3.Bucket == "" {
			return fmt.Errorf("origin.s3.bucket is required for the s3 origin")
		}
		if c.Origin.S3.Endpoint != "" {
			if err := validateHTTPURL("origin.s3.endpoint", c.Origin.S3.Endpoint); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("origin.type must be one of: http, s3; got %q", c.Origin.Type)
	}

	if strings.HasPrefix(c.Origin.KeyPrefix, "/") {
		return fmt.Errorf("origin.key_prefix must not start with '/'; got %q", c.Origin.KeyPrefix)
	}
	if c.Origin.TimeoutSeconds < 0 {
		return fmt.Errorf("origin.timeout_seconds must be non-negative; got %d", c.Origin.TimeoutSeconds)
	}
	if c.Origin.IdleConnections < 0 {
		return fmt.Errorf("origin.idle_connections must be non-negative; got %d", c.Origin.IdleConnections)
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https; got %q", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host; got %q", field, raw)
	}
	return nil
}

// validateEdge resolves the function associations once so unknown or
// misplaced function names fail at startup.
func (c *Config) validateEdge() error {
	if _, err := edge.NewChain(c.Edge.OriginRequest, c.Edge.ViewerResponse, nil); err != nil {
		return fmt.Errorf("edge: %w", err)
	}
	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, BodyMaxBytes, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key. Setting port=0 in
// the config file therefore results in the default port (8000).
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 1024 * 1024 // 1 MB, invoke API only
	}
	c.Server.ViewerProtocol = strings.ToLower(c.Server.ViewerProtocol)
	if c.Server.ViewerProtocol == "" {
		c.Server.ViewerProtocol = ViewerProtocolAllowAll
	}
	c.Origin.Type = strings.ToLower(c.Origin.Type)
	if c.Origin.Type == "" {
		c.Origin.Type = OriginHTTP
	}
	if c.Origin.TimeoutSeconds == 0 {
		c.Origin.TimeoutSeconds = 30
	}
	if c.Origin.IdleConnections == 0 {
		c.Origin.IdleConnections = 100
	}
	if c.Origin.Type == OriginS3 && c.Origin.S3.Region == "" {
		c.Origin.S3.Region = "us-east-1"
	}
	if c.Edge.OriginRequest == nil {
		c.Edge.OriginRequest = edge.DefaultOriginRequest
	}
	if c.Edge.ViewerResponse == nil {
		c.Edge.ViewerResponse = edge.DefaultViewerResponse
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// OriginLocation describes where objects are fetched from, for status output.
func (c *OriginConfig) OriginLocation() string {
	if c.Type == OriginS3 {
		return "s3://" + c.S3.Bucket + "/" + c.KeyPrefix
	}
	return strings.TrimSuffix(c.BaseURL, "/") + "/" + c.KeyPrefix
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
