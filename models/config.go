// Package models defines data structures for configuration, fetched pages and exports.
package models

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "config.json"
	DefaultOutputDir  = "output"
	DefaultProxyHost  = "127.0.0.1"
	DefaultUserAgent  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0 Safari/537.36"
	DefaultAPIBase    = "https://civitai.com"
	DefaultImageHost  = "image.civitai.com"

	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"
)

// ProxyConfig routes every outbound request through host:port when Enabled.
type ProxyConfig struct {
	Enabled bool
	Host    string
	Port    int
}

// URL returns the proxy URL, or "" when the proxy is disabled or unusable.
func (p ProxyConfig) URL() string {
	if !p.Enabled || p.Port <= 0 {
		return ""
	}
	host := strings.TrimSpace(p.Host)
	if host == "" {
		host = DefaultProxyHost
	}
	return fmt.Sprintf("http://%s:%d", host, p.Port)
}

// ImageCriteria decides whether a downloaded candidate counts as a usable preview.
type ImageCriteria struct {
	ContentTypes     []string // accepted Content-Type prefixes
	MinBytes         int
	RequireDecodable bool
}

// Config is the on-disk configuration. The file may be JSON or YAML.
type Config struct {
	EnableProxy bool   `yaml:"enable_proxy"`
	ProxyHost   string `yaml:"proxy_host"`
	ProxyPort   int    `yaml:"proxy_port"`

	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
	OutputDir      string `yaml:"output_dir"`
	FetchMode      string `yaml:"fetch_mode"`
	MaxPageBytes   int64  `yaml:"max_page_bytes"`
	LogLevel       string `yaml:"log_level"`

	ImageHosts        []string `yaml:"image_hosts"`
	ImageContentTypes []string `yaml:"image_content_types"`
	MinImageBytes     int      `yaml:"min_image_bytes"`
	RequireDecodable  bool     `yaml:"require_decodable"`

	APIFallback      bool   `yaml:"api_fallback"`
	APIBase          string `yaml:"api_base"`
	ResolveFileNames bool   `yaml:"resolve_file_names"`

	// Warnings collects non-fatal problems found while loading.
	Warnings []string `yaml:"-"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads the config file at path. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes config bytes. JSON is valid YAML, so both formats share one decoder.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.EnableProxy && c.ProxyPort <= 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("proxy_port must be a positive integer (got %d), proxy disabled", c.ProxyPort))
		c.EnableProxy = false
	}
	if strings.TrimSpace(c.ProxyHost) == "" {
		c.ProxyHost = DefaultProxyHost
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	switch strings.ToLower(c.FetchMode) {
	case FetchModeBrowser:
		c.FetchMode = FetchModeBrowser
	case "", FetchModeHTTP:
		c.FetchMode = FetchModeHTTP
	default:
		c.Warnings = append(c.Warnings, fmt.Sprintf("unknown fetch_mode %q, using %q", c.FetchMode, FetchModeHTTP))
		c.FetchMode = FetchModeHTTP
	}
	if c.MaxPageBytes <= 0 {
		c.MaxPageBytes = 10 << 20
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ImageHosts == nil {
		c.ImageHosts = []string{DefaultImageHost}
	}
	if len(c.ImageContentTypes) == 0 {
		c.ImageContentTypes = []string{"image/"}
	}
	if c.MinImageBytes <= 0 {
		c.MinImageBytes = 512
	}
	if c.APIBase == "" {
		c.APIBase = DefaultAPIBase
	}
	c.APIBase = strings.TrimRight(c.APIBase, "/")
}

// Proxy returns the proxy settings as an explicit value for the network components.
func (c *Config) Proxy() ProxyConfig {
	return ProxyConfig{Enabled: c.EnableProxy, Host: c.ProxyHost, Port: c.ProxyPort}
}

// Timeout returns the per-request network timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ImageCriteria returns the preview validation rules.
func (c *Config) ImageCriteria() ImageCriteria {
	return ImageCriteria{
		ContentTypes:     c.ImageContentTypes,
		MinBytes:         c.MinImageBytes,
		RequireDecodable: c.RequireDecodable,
	}
}
