package config

import (
	"time"

	"github.com/bobmcallan/translation-helps-proxy/internal/common"
)

// DefaultUpstreamTimeout bounds every upstream request.
const DefaultUpstreamTimeout = 30 * time.Second

// DefaultUpstreamURL is the public translation-helps MCP endpoint.
const DefaultUpstreamURL = "https://translation-helps-mcp.pages.dev/api/mcp"

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:     "translation-helps-mcp-proxy",
			HTTPHost: "localhost",
			HTTPPort: 4243,
		},
		Upstream: UpstreamConfig{
			URL:                DefaultUpstreamURL,
			Timeout:            "30s",
			InsecureSkipVerify: true,
		},
		Session: SessionConfig{
			MaxInFlight: 4,
		},
		Logging: common.LoggingConfig{
			Level:   "info",
			Outputs: []string{"console"},
		},
	}
}
