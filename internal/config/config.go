package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/bobmcallan/translation-helps-proxy/internal/common"
)

// allTools is the allow-list value that exposes the whole upstream catalog.
const allTools = "all"

// Config represents the application configuration.
type Config struct {
	Debug    bool                 `toml:"debug"`
	Server   ServerConfig         `toml:"server"`
	Upstream UpstreamConfig       `toml:"upstream"`
	Filter   FilterSettings       `toml:"filter"`
	Session  SessionConfig        `toml:"session"`
	Logging  common.LoggingConfig `toml:"logging"`
}

// ServerConfig contains settings for the MCP server itself.
type ServerConfig struct {
	Name     string `toml:"name"`
	HTTPHost string `toml:"http_host"`
	HTTPPort int    `toml:"http_port"`
}

// UpstreamConfig contains the translation-helps service settings.
type UpstreamConfig struct {
	URL     string `toml:"url"`
	Timeout string `toml:"timeout"`
	// InsecureSkipVerify disables certificate validation. The deployed upstream
	// presents a broken chain, so this defaults to true.
	InsecureSkipVerify bool `toml:"insecure_skip_verify"`
}

// GetTimeout parses and returns the timeout duration
func (c *UpstreamConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return DefaultUpstreamTimeout
	}
	return d
}

// FilterSettings is the raw, file-level form of FilterConfig.
type FilterSettings struct {
	// EnabledTools lists exposed tools. Unset or ["all"] exposes everything;
	// an explicit empty list exposes nothing.
	EnabledTools           []string `toml:"enabled_tools"`
	HiddenParams           []string `toml:"hidden_params"`
	FilterBookChapterNotes bool     `toml:"filter_book_chapter_notes"`
}

// SessionConfig contains stdio session settings.
type SessionConfig struct {
	// MaxInFlight bounds concurrent tool calls; 1 serializes them.
	MaxInFlight       int  `toml:"max_in_flight"`
	ValidateArguments bool `toml:"validate_arguments"`
}

// FilterConfig builds the immutable filter configuration.
func (c *Config) FilterConfig() *FilterConfig {
	return NewFilterConfig(c.Filter.EnabledTools, c.Filter.HiddenParams, c.Filter.FilterBookChapterNotes)
}

// LoggingConfig returns the logging configuration with debug applied.
func (c *Config) LoggingConfig() common.LoggingConfig {
	lc := c.Logging
	if c.Debug {
		lc.Level = "debug"
	}
	return lc
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies TH_PROXY_* environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if url := os.Getenv("TH_PROXY_UPSTREAM_URL"); url != "" {
		config.Upstream.URL = url
	}
	if tools := os.Getenv("TH_PROXY_ENABLED_TOOLS"); tools != "" {
		config.Filter.EnabledTools = SplitList(tools)
	}
	if params := os.Getenv("TH_PROXY_HIDDEN_PARAMS"); params != "" {
		config.Filter.HiddenParams = SplitList(params)
	}
	if v := os.Getenv("TH_PROXY_FILTER_NOTES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Filter.FilterBookChapterNotes = b
		}
	}
	if port := os.Getenv("TH_PROXY_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.HTTPPort = p
		}
	}
	if level := os.Getenv("TH_PROXY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// Overrides carries command-line flag values. Zero values leave config untouched.
type Overrides struct {
	UpstreamURL            string
	EnabledTools           string
	HiddenParams           string
	FilterBookChapterNotes bool
	Debug                  bool
	HTTPPort               int
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(config *Config, o Overrides) {
	if o.UpstreamURL != "" {
		config.Upstream.URL = o.UpstreamURL
	}
	if o.EnabledTools != "" {
		config.Filter.EnabledTools = SplitList(o.EnabledTools)
	}
	if o.HiddenParams != "" {
		config.Filter.HiddenParams = SplitList(o.HiddenParams)
	}
	if o.FilterBookChapterNotes {
		config.Filter.FilterBookChapterNotes = true
	}
	if o.Debug {
		config.Debug = true
	}
	if o.HTTPPort > 0 {
		config.Server.HTTPPort = o.HTTPPort
	}
}

// SplitList splits a comma-separated list, trimming blanks. Empty input
// yields nil; input holding only separators yields an empty, non-nil slice.
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
