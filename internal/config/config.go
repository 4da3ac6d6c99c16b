package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/ini.v1"
	"sigs.k8s.io/yaml"
)

// Environment variables that override file settings.
const (
	EnvAPIBase  = "EZ_NETWATCH_API_BASE"
	EnvToken    = "EZ_NETWATCH_TOKEN"
	EnvLogLevel = "EZ_NETWATCH_LOG_LEVEL"
)

// Config holds all application configuration.
type Config struct {
	// Backend
	APIBase  string `json:"api_base" toml:"api_base"`
	Token    string `json:"token,omitempty" toml:"token"`
	Username string `json:"username,omitempty" toml:"username"`
	Password string `json:"password,omitempty" toml:"password"`
	Timeout  string `json:"timeout,omitempty" toml:"timeout"`

	// Local files
	DataDir     string `json:"data_dir" toml:"data_dir"`
	JournalFile string `json:"journal_file" toml:"journal_file"`
	OUIFile     string `json:"oui_file,omitempty" toml:"oui_file"`

	// Diagnostics
	LogFile   string `json:"log_file" toml:"log_file"`
	LogLevel  string `json:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" toml:"log_format"`
	TraceFile string `json:"trace_file,omitempty" toml:"trace_file"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		APIBase:     "http://127.0.0.1:5000",
		DataDir:     ".",
		JournalFile: "ez-netwatch-journal.db",
		LogFile:     "ez-netwatch.log",
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// Load reads the file at path on top of the defaults and applies environment
// overrides. The format follows the extension: .yaml, .yml and .json are
// decoded as YAML, .toml as TOML and .ini as INI. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadFromFile merges the settings in path into c.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", ".json":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".ini":
		if err := c.loadINI(data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	return nil
}

func (c *Config) loadINI(data []byte) error {
	file, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, data)
	if err != nil {
		return err
	}

	section := file.Section("")
	c.APIBase = section.Key("api_base").MustString(c.APIBase)
	c.Token = section.Key("token").MustString(c.Token)
	c.Username = section.Key("username").MustString(c.Username)
	c.Password = section.Key("password").MustString(c.Password)
	c.Timeout = section.Key("timeout").MustString(c.Timeout)
	c.DataDir = section.Key("data_dir").MustString(c.DataDir)
	c.JournalFile = section.Key("journal_file").MustString(c.JournalFile)
	c.OUIFile = section.Key("oui_file").MustString(c.OUIFile)
	c.LogFile = section.Key("log_file").MustString(c.LogFile)
	c.LogLevel = section.Key("log_level").MustString(c.LogLevel)
	c.LogFormat = section.Key("log_format").MustString(c.LogFormat)
	c.TraceFile = section.Key("trace_file").MustString(c.TraceFile)
	return nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvAPIBase)); v != "" {
		c.APIBase = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvToken)); v != "" {
		c.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
}

// Validate normalizes and checks the configuration.
func (c *Config) Validate() error {
	c.APIBase = strings.TrimRight(strings.TrimSpace(c.APIBase), "/")
	if c.APIBase == "" {
		return fmt.Errorf("api_base must be set")
	}
	u, err := url.Parse(c.APIBase)
	if err != nil {
		return fmt.Errorf("invalid api_base %q: %w", c.APIBase, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_base %q must be an absolute http or https URL", c.APIBase)
	}
	if _, err := c.HTTPTimeout(); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if c.DataDir == "" {
		c.DataDir = "."
	}
	return nil
}

// HTTPTimeout parses Timeout. Empty means no timeout.
func (c *Config) HTTPTimeout() (time.Duration, error) {
	if strings.TrimSpace(c.Timeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(c.Timeout))
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout must not be negative, got %s", d)
	}
	return d, nil
}

// ResolvePath makes a relative path relative to DataDir. "-" names stderr
// and is returned as is.
func (c *Config) ResolvePath(path string) string {
	if path == "" || path == "-" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}
