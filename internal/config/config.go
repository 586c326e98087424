// Package config loads the codesync.json service configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/codesync-dev/codesync/pkg/sandbox"
	"github.com/codesync-dev/codesync/pkg/server"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "codesync.json"

	// DefaultAddress is the default listen address.
	DefaultAddress = ":8080"

	// DefaultLanguage is the language tag new sessions start with.
	DefaultLanguage = "python"
)

// Config represents the complete codesync.json configuration. Durations are
// written as Go duration strings ("10s", "1m30s").
type Config struct {
	// Name is an optional deployment name, used only for logging.
	Name string `json:"name,omitempty"`

	// Address is the listen address (e.g., ":8080").
	Address string `json:"address,omitempty"`

	// DefaultLanguage is the language tag assigned to new sessions.
	DefaultLanguage string `json:"defaultLanguage,omitempty"`

	// Execution configures the code execution sandbox.
	Execution ExecutionConfig `json:"execution,omitempty"`

	// WebSocket configures per-connection transport behavior.
	WebSocket WebSocketConfig `json:"websocket,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ExecutionConfig contains sandbox settings.
type ExecutionConfig struct {
	// Timeout is the wall-clock bound per execution.
	Timeout string `json:"timeout,omitempty"`

	// Native lists languages to run with a real interpreter instead of
	// simulation mode. Anything not listed here stays simulated.
	Native []NativeLanguage `json:"native,omitempty"`
}

// NativeLanguage enables real interpreter execution for one language tag.
type NativeLanguage struct {
	// Language is the tag ("python", "javascript", ...).
	Language string `json:"language"`

	// Command is the interpreter argv prefix, e.g. ["python3"].
	Command []string `json:"command"`

	// Extension is the source file extension, without dot.
	Extension string `json:"extension"`
}

// WebSocketConfig contains connection transport settings.
type WebSocketConfig struct {
	// SendQueueSize is the per-connection outbound frame buffer.
	SendQueueSize int `json:"sendQueueSize,omitempty"`

	// MaxMessageSize is the maximum inbound frame size in bytes.
	MaxMessageSize int64 `json:"maxMessageSize,omitempty"`

	// ReadTimeout is the inactivity bound for inbound frames.
	ReadTimeout string `json:"readTimeout,omitempty"`

	// WriteTimeout is the bound per outbound write.
	WriteTimeout string `json:"writeTimeout,omitempty"`

	// PingInterval is the keepalive ping period.
	PingInterval string `json:"pingInterval,omitempty"`
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Address:         DefaultAddress,
		DefaultLanguage: DefaultLanguage,
	}
}

// Load reads configuration from the specified directory, looking for
// codesync.json. A missing file is not an error: the defaults apply.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
// A missing file yields the default configuration.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.configPath = path

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Path returns the path where the config was loaded from, or "" for the
// built-in defaults.
func (c *Config) Path() string {
	return c.configPath
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	c.configPath = path
	return nil
}

func (c *Config) validate() error {
	for _, field := range []struct {
		name  string
		value string
	}{
		{"execution.timeout", c.Execution.Timeout},
		{"websocket.readTimeout", c.WebSocket.ReadTimeout},
		{"websocket.writeTimeout", c.WebSocket.WriteTimeout},
		{"websocket.pingInterval", c.WebSocket.PingInterval},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
	}
	for i, nl := range c.Execution.Native {
		if nl.Language == "" {
			return fmt.Errorf("execution.native[%d]: language is required", i)
		}
		if len(nl.Command) == 0 {
			return fmt.Errorf("execution.native[%d]: command is required", i)
		}
	}
	return nil
}

// duration returns the parsed duration, or zero when unset. Values are
// validated at load time, so a parse failure here cannot happen for loaded
// configs and zero is the safe answer regardless.
func duration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// ServerConfig converts the file settings to a server configuration.
// Unset fields are zero and backfilled by the server's own defaults.
func (c *Config) ServerConfig() *server.ServerConfig {
	return &server.ServerConfig{
		Address:        c.Address,
		SendQueueSize:  c.WebSocket.SendQueueSize,
		MaxMessageSize: c.WebSocket.MaxMessageSize,
		ReadTimeout:    duration(c.WebSocket.ReadTimeout),
		WriteTimeout:   duration(c.WebSocket.WriteTimeout),
		PingInterval:   duration(c.WebSocket.PingInterval),
	}
}

// SandboxConfig converts the file settings to an executor configuration.
// Native entries override the default simulation setup per language.
func (c *Config) SandboxConfig() *sandbox.Config {
	cfg := sandbox.DefaultConfig()
	cfg.Timeout = duration(c.Execution.Timeout)
	if cfg.Timeout == 0 {
		cfg.Timeout = sandbox.DefaultConfig().Timeout
	}
	for _, nl := range c.Execution.Native {
		cfg.Languages[nl.Language] = sandbox.LanguageConfig{
			Native:    true,
			Command:   nl.Command,
			Extension: nl.Extension,
		}
	}
	return cfg
}
