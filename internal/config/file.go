package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wagiedev/mcp-toolhub-go/internal/errors"
	"github.com/wagiedev/mcp-toolhub-go/internal/mcp"
)

// Environment variables read by LoadEnv.
const (
	EnvConfigPath = "TOOLHUB_CONFIG"
	EnvServers    = "TOOLHUB_SERVERS"
)

// File is the on-disk server list.
//
// YAML and JSON are both accepted:
//
//	defaults:
//	  timeout: 30s
//	servers:
//	  - id: fs
//	    type: stdio
//	    command: npx
//	    args: ["-y", "@modelcontextprotocol/server-filesystem", "${HOME}"]
//	  - id: search
//	    type: http
//	    url: https://example.com/mcp
//	    headers:
//	      Authorization: Bearer ${SEARCH_TOKEN}
type File struct {
	Defaults Defaults      `yaml:"defaults" json:"defaults"`
	Servers  []ServerEntry `yaml:"servers" json:"servers"`
}

// Defaults apply to every entry that leaves the field unset.
type Defaults struct {
	Timeout string `yaml:"timeout" json:"timeout"`
	Trust   bool   `yaml:"trust" json:"trust"`
}

// ServerEntry is one server in a config file.
type ServerEntry struct {
	ID            string            `yaml:"id" json:"id"`
	Name          string            `yaml:"name" json:"name"`
	Type          string            `yaml:"type" json:"type"`
	Command       string            `yaml:"command" json:"command"`
	Args          []string          `yaml:"args" json:"args"`
	Env           map[string]string `yaml:"env" json:"env"`
	Cwd           string            `yaml:"cwd" json:"cwd"`
	URL           string            `yaml:"url" json:"url"`
	Headers       map[string]string `yaml:"headers" json:"headers"`
	Enabled       *bool             `yaml:"enabled" json:"enabled"`
	Timeout       string            `yaml:"timeout" json:"timeout"`
	Trust         *bool             `yaml:"trust" json:"trust"`
	DisabledTools []string          `yaml:"disabledTools" json:"disabledTools"`
}

// LoadFile reads and parses a server list from path.
func LoadFile(path string) ([]mcp.ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	configs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return configs, nil
}

// LoadEnv reads the server list named by TOOLHUB_CONFIG, or the inline list
// in TOOLHUB_SERVERS. It returns nil when neither is set.
func LoadEnv() ([]mcp.ServerConfig, error) {
	if path := strings.TrimSpace(os.Getenv(EnvConfigPath)); path != "" {
		return LoadFile(path)
	}

	inline := strings.TrimSpace(os.Getenv(EnvServers))
	if inline == "" {
		return nil, nil
	}

	// A bare JSON array is accepted as the servers list.
	if strings.HasPrefix(inline, "[") {
		inline = `{"servers":` + inline + `}`
	}

	configs, err := Parse([]byte(inline))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvServers, err)
	}

	return configs, nil
}

// Parse decodes a server list. ${VAR} references are expanded from the
// environment before decoding.
func Parse(data []byte) ([]mcp.ServerConfig, error) {
	expanded := os.ExpandEnv(string(data))

	var file File
	if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return file.ServerConfigs()
}

// ServerConfigs converts and validates every entry.
func (f *File) ServerConfigs() ([]mcp.ServerConfig, error) {
	var defaultTimeout time.Duration

	if f.Defaults.Timeout != "" {
		d, err := time.ParseDuration(f.Defaults.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: defaults.timeout: %w", errors.ErrInvalidConfig, err)
		}

		defaultTimeout = d
	}

	configs := make([]mcp.ServerConfig, 0, len(f.Servers))
	seen := make(map[string]struct{}, len(f.Servers))

	for i := range f.Servers {
		cfg, err := f.Servers[i].toServerConfig(defaultTimeout, f.Defaults.Trust)
		if err != nil {
			return nil, fmt.Errorf("servers[%d]: %w", i, err)
		}

		if _, dup := seen[cfg.ID]; dup {
			return nil, fmt.Errorf("servers[%d]: %w: %q", i, errors.ErrServerExists, cfg.ID)
		}

		seen[cfg.ID] = struct{}{}

		configs = append(configs, cfg)
	}

	return configs, nil
}

func (e *ServerEntry) toServerConfig(defaultTimeout time.Duration, defaultTrust bool) (mcp.ServerConfig, error) {
	cfg := mcp.ServerConfig{
		ID:            e.ID,
		Name:          e.Name,
		Enabled:       e.Enabled,
		Timeout:       defaultTimeout,
		Trust:         defaultTrust,
		DisabledTools: e.DisabledTools,
	}

	if e.Trust != nil {
		cfg.Trust = *e.Trust
	}

	if e.Timeout != "" {
		d, err := time.ParseDuration(e.Timeout)
		if err != nil {
			return cfg, fmt.Errorf("%w: server %q: timeout: %w", errors.ErrInvalidConfig, e.ID, err)
		}

		cfg.Timeout = d
	}

	kind := mcp.TransportKind(strings.ToLower(e.Type))
	if kind == "" {
		if e.URL != "" {
			kind = mcp.TransportHTTP
		} else {
			kind = mcp.TransportStdio
		}
	}

	switch kind {
	case mcp.TransportStdio:
		cfg.Transport = &mcp.StdioTransport{Command: e.Command, Args: e.Args, Env: e.Env, Cwd: e.Cwd}
	case mcp.TransportHTTP:
		cfg.Transport = &mcp.HTTPTransport{URL: e.URL, Headers: e.Headers}
	case mcp.TransportSSE:
		cfg.Transport = &mcp.SSETransport{URL: e.URL, Headers: e.Headers}
	case mcp.TransportWebSocket:
		cfg.Transport = &mcp.WebSocketTransport{URL: e.URL, Headers: e.Headers}
	default:
		return cfg, fmt.Errorf("%w: server %q: unsupported transport type %q", errors.ErrInvalidConfig, e.ID, e.Type)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}
