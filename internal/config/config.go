// Package config loads spendlog settings.
//
// Sources, later ones winning:
//   - built-in defaults
//   - ~/.spendlog/config.toml
//   - .env in the working directory
//   - SPENDLOG_* environment variables
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
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Environment variable names.
const (
	EnvAPIURL    = "SPENDLOG_API_URL"
	EnvTokenFile = "SPENDLOG_TOKEN_FILE"
	EnvLogFile   = "SPENDLOG_LOG_FILE"
	EnvLogLevel  = "SPENDLOG_LOG_LEVEL"
	EnvTimeout   = "SPENDLOG_TIMEOUT"
)

const (
	DefaultAPIURL  = "http://localhost:8000"
	DefaultLevel   = "info"
	DefaultTimeout = 30 * time.Second
)

// Config holds resolved settings.
type Config struct {
	APIURL    string        `toml:"api_url"`
	TokenFile string        `toml:"token_file"`
	LogFile   string        `toml:"log_file"`
	LogLevel  string        `toml:"log_level"`
	Timeout   time.Duration `toml:"timeout"`

	// UnknownKeys lists config file keys that matched no setting.
	UnknownKeys []string `toml:"-"`
}

// Dir returns ~/.spendlog.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: home dir: %w", err)
	}
	return filepath.Join(home, ".spendlog"), nil
}

// DefaultPath returns ~/.spendlog/config.toml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Default returns the built-in configuration rooted at dir.
func Default(dir string) *Config {
	return &Config{
		APIURL:    DefaultAPIURL,
		TokenFile: filepath.Join(dir, "token"),
		LogFile:   filepath.Join(dir, "spendlog.log"),
		LogLevel:  DefaultLevel,
		Timeout:   DefaultTimeout,
	}
}

// Loader resolves a Config from its sources.
type Loader struct {
	// Dir holds the default token and log files.
	Dir string
	// File is the TOML config path. A missing file is not an error.
	File string
	// EnvFile is the dotenv path. A missing file is not an error.
	EnvFile string
	// Getenv reads the process environment; os.Getenv when nil.
	Getenv func(string) string
}

// Load resolves configuration from the standard locations.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	l := Loader{Dir: dir, File: filepath.Join(dir, "config.toml"), EnvFile: ".env"}
	return l.Load()
}

// Load applies defaults, the TOML file, the dotenv file and the environment
// in that order, then validates the result.
func (l Loader) Load() (*Config, error) {
	getenv := l.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := Default(l.Dir)

	if l.File != "" {
		md, err := toml.DecodeFile(l.File, cfg)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: parse %s: %w", l.File, err)
		default:
			for _, k := range md.Undecoded() {
				cfg.UnknownKeys = append(cfg.UnknownKeys, k.String())
			}
		}
	}

	dotenv := map[string]string{}
	if l.EnvFile != "" {
		m, err := godotenv.Read(l.EnvFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: parse %s: %w", l.EnvFile, err)
		default:
			dotenv = m
		}
	}

	lookup := func(key string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return strings.TrimSpace(dotenv[key])
	}

	if v := lookup(EnvAPIURL); v != "" {
		cfg.APIURL = v
	}
	if v := lookup(EnvTokenFile); v != "" {
		cfg.TokenFile = v
	}
	if v := lookup(EnvLogFile); v != "" {
		cfg.LogFile = v
	}
	if v := lookup(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := lookup(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", EnvTimeout, err)
		}
		cfg.Timeout = d
	}

	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WarnUnknown logs the config file keys that were ignored.
func (c *Config) WarnUnknown(log *zap.Logger) {
	if len(c.UnknownKeys) > 0 {
		log.Warn("unknown config keys", zap.Strings("keys", c.UnknownKeys))
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.APIURL)
	switch {
	case c.APIURL == "":
		errs = append(errs, errors.New("api_url is required"))
	case err != nil:
		errs = append(errs, fmt.Errorf("api_url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("api_url %q: scheme must be http or https", c.APIURL))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("api_url %q: missing host", c.APIURL))
	}

	if c.TokenFile == "" {
		errs = append(errs, errors.New("token_file is required"))
	}
	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level %q: %w", c.LogLevel, err))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout %s: must be positive", c.Timeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
