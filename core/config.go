package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/envi"
	"gopkg.in/yaml.v3"

	"github.com/aititan/deepseek-agent/deepseek"
)

// Config holds the process configuration.  It is loaded once at
// startup and passed explicitly to the components that need it.
type Config struct {
	APIKey      string       `yaml:"api_key"`
	BaseURL     string       `yaml:"base_url"`
	Model       string       `yaml:"model"`
	Temperature *float32     `yaml:"temperature"`
	MaxTokens   *int         `yaml:"max_tokens"`
	Timeout     Duration     `yaml:"timeout"`
	History     string       `yaml:"history"` // empty disables history
	Editor      string       `yaml:"editor"`
	Server      ServerConfig `yaml:"server"`
}

// ServerConfig holds settings for the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Duration is a time.Duration that reads and writes as a Go duration
// string in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// DefaultConfig returns a Config with built-in defaults.
func DefaultConfig() *Config {
	temp := float32(0.7)
	maxTokens := 1000
	return &Config{
		BaseURL:     deepseek.DefaultBaseURL,
		Model:       deepseek.DefaultModel,
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		Server: ServerConfig{
			Addr: ":4000",
		},
	}
}

// DefaultConfigPath returns the path of the per-user config file.
func DefaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "deepseek-agent", "config.yaml")
}

// LoadConfig loads configuration from, in increasing precedence:
// built-in defaults, the YAML file at path (or $DEEPSEEK_CONFIG, or
// DefaultConfigPath), a .env file in the working directory, and
// DEEPSEEK_* environment variables.  A missing file is only an error
// when path is given explicitly.
func LoadConfig(path string) (cfg *Config, err error) {
	return loadConfig(path, ".env")
}

func loadConfig(path, dotenv string) (cfg *Config, err error) {
	defer Return(&err)

	// .env never overrides variables that are already set
	err = godotenv.Load(dotenv)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", dotenv, err)
	}
	err = nil

	cfg = DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = envi.String("DEEPSEEK_CONFIG", DefaultConfigPath())
	}
	if path != "" {
		var buf []byte
		buf, err = os.ReadFile(path)
		switch {
		case err == nil:
			Debug("loading config from %s", path)
			err = yaml.Unmarshal(buf, cfg)
			Ck(err, "failed to parse config file %s", path)
		case errors.Is(err, fs.ErrNotExist) && !explicit:
			err = nil
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	err = cfg.applyEnv()
	Ck(err)
	return
}

// applyEnv overrides cfg with DEEPSEEK_* environment variables.
func (cfg *Config) applyEnv() (err error) {
	// DeepSeek is the legacy variable name; DEEPSEEK_API_KEY wins
	cfg.APIKey = envi.String("DeepSeek", cfg.APIKey)
	cfg.APIKey = envi.String("DEEPSEEK_API_KEY", cfg.APIKey)
	cfg.BaseURL = envi.String("DEEPSEEK_BASE_URL", cfg.BaseURL)
	cfg.Model = envi.String("DEEPSEEK_MODEL", cfg.Model)
	cfg.History = envi.String("DEEPSEEK_HISTORY", cfg.History)
	cfg.Editor = envi.String("DEEPSEEK_EDITOR", cfg.Editor)
	cfg.Server.Addr = envi.String("DEEPSEEK_ADDR", cfg.Server.Addr)

	if s := envi.String("DEEPSEEK_TEMPERATURE", ""); s != "" {
		var v float64
		v, err = strconv.ParseFloat(s, 32)
		if err != nil {
			return fmt.Errorf("invalid DEEPSEEK_TEMPERATURE %q: %w", s, err)
		}
		t := float32(v)
		cfg.Temperature = &t
	}
	if s := envi.String("DEEPSEEK_MAX_TOKENS", ""); s != "" {
		var n int
		n, err = strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid DEEPSEEK_MAX_TOKENS %q: %w", s, err)
		}
		cfg.MaxTokens = &n
	}
	if s := envi.String("DEEPSEEK_TIMEOUT", ""); s != "" {
		var d time.Duration
		d, err = time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid DEEPSEEK_TIMEOUT %q: %w", s, err)
		}
		cfg.Timeout = Duration(d)
	}
	return
}

// Validate checks values that would otherwise only fail at request
// time.
func (cfg *Config) Validate() error {
	if cfg.Temperature != nil && (*cfg.Temperature < 0 || *cfg.Temperature > 2) {
		return fmt.Errorf("temperature %v out of range [0, 2]", *cfg.Temperature)
	}
	if cfg.MaxTokens != nil && *cfg.MaxTokens < 0 {
		return fmt.Errorf("max_tokens %d must not be negative", *cfg.MaxTokens)
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("timeout %v must not be negative", time.Duration(cfg.Timeout))
	}
	return nil
}

// ClientConfig returns the deepseek.Config for this configuration.
func (cfg *Config) ClientConfig() deepseek.Config {
	return deepseek.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
}

// Redacted returns the config as YAML with the API key masked.
func (cfg *Config) Redacted() (out string, err error) {
	defer Return(&err)
	c := *cfg
	if len(c.APIKey) > 8 {
		c.APIKey = c.APIKey[:3] + strings.Repeat("*", len(c.APIKey)-7) + c.APIKey[len(c.APIKey)-4:]
	} else if c.APIKey != "" {
		c.APIKey = "****"
	}
	buf, err := yaml.Marshal(&c)
	Ck(err)
	out = string(buf)
	return
}
