// Package config loads docport settings from a TOML file, an optional .env
// file and DOCPORT_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	PlatformShimo = "shimo"
	PlatformMubu  = "mubu"
)

type Config struct {
	Platform string        `toml:"platform"`
	Shimo    ShimoConfig   `toml:"shimo"`
	Mubu     MubuConfig    `toml:"mubu"`
	Export   ExportConfig  `toml:"export"`
	Formats  FormatsConfig `toml:"formats"`
	Naming   NamingConfig  `toml:"naming"`
	Pacing   PacingConfig  `toml:"pacing"`
	Store    StoreConfig   `toml:"store"`
	Log      LogConfig     `toml:"log"`
	Server   ServerConfig  `toml:"server"`
}

type ShimoConfig struct {
	BaseURL string `toml:"base_url"`
	SID     string `toml:"sid"`
}

type MubuConfig struct {
	BaseURL   string `toml:"base_url"`
	ImageHost string `toml:"image_host"`
	JWTToken  string `toml:"jwt_token"`
}

type ExportConfig struct {
	Format      string            `toml:"format"`
	Subfolder   string            `toml:"subfolder"`
	OutputDir   string            `toml:"output_dir"`
	TypeFormats map[string]string `toml:"type_formats"`
	FrontMatter bool              `toml:"front_matter"`
}

// FormatsConfig overrides entries of the platform's type → format table.
type FormatsConfig struct {
	Matrix      map[string][]string `toml:"matrix"`
	Aliases     map[string]string   `toml:"aliases"`
	Unsupported []string            `toml:"unsupported"`
	Fallback    string              `toml:"fallback"`
}

type NamingConfig struct {
	TimestampSource string `toml:"timestamp_source"`
	TimestampFormat string `toml:"timestamp_format"`
}

type PacingConfig struct {
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
	MaxAttempts       int     `toml:"max_attempts"`
	RetryDelayMs      int     `toml:"retry_delay_ms"`
	PollAttempts      int     `toml:"poll_attempts"`
	PollBaseMs        int     `toml:"poll_base_ms"`
	PollCapMs         int     `toml:"poll_cap_ms"`
	PollJitterMs      int     `toml:"poll_jitter_ms"`
	DocDelayMs        int     `toml:"doc_delay_ms"`
	DocJitterMs       int     `toml:"doc_jitter_ms"`
	PauseTickMs       int     `toml:"pause_tick_ms"`
	MaxPages          int     `toml:"max_pages"`
}

type StoreConfig struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Timing is the orchestrator's view of the pacing settings.
type Timing struct {
	MaxAttempts  int
	RetryDelay   time.Duration
	PollAttempts int
	PollBase     time.Duration
	PollCap      time.Duration
	PollJitter   time.Duration
	DocDelay     time.Duration
	DocJitter    time.Duration
	PauseTick    time.Duration
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func (p PacingConfig) Timing() Timing {
	return Timing{
		MaxAttempts:  p.MaxAttempts,
		RetryDelay:   ms(p.RetryDelayMs),
		PollAttempts: p.PollAttempts,
		PollBase:     ms(p.PollBaseMs),
		PollCap:      ms(p.PollCapMs),
		PollJitter:   ms(p.PollJitterMs),
		DocDelay:     ms(p.DocDelayMs),
		DocJitter:    ms(p.DocJitterMs),
		PauseTick:    ms(p.PauseTickMs),
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	stateDir := StateDir()
	home, _ := os.UserHomeDir()
	return &Config{
		Platform: PlatformShimo,
		Shimo: ShimoConfig{
			BaseURL: "https://shimo.im",
		},
		Mubu: MubuConfig{
			BaseURL:   "https://api2.mubu.com",
			ImageHost: "https://document-image.mubu.com/",
		},
		Export: ExportConfig{
			Format:      "auto",
			OutputDir:   filepath.Join(home, "Downloads", "docport"),
			TypeFormats: map[string]string{},
		},
		Naming: NamingConfig{
			TimestampSource: "off",
			TimestampFormat: "YYYY-MM-DD_HH-mm",
		},
		Pacing: PacingConfig{
			RequestsPerSecond: 2,
			Burst:             1,
			MaxAttempts:       2,
			RetryDelayMs:      2000,
			PollAttempts:      5,
			PollBaseMs:        1000,
			PollCapMs:         16000,
			PollJitterMs:      1000,
			DocDelayMs:        3000,
			DocJitterMs:       2000,
			PauseTickMs:       1000,
			MaxPages:          50,
		},
		Store: StoreConfig{
			Driver: "duckdb",
			DSN:    filepath.Join(stateDir, "state.duckdb"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:7878",
		},
	}
}

// StateDir is where the job store and log file live by default.
func StateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docport"
	}
	return filepath.Join(home, ".docport")
}

func DefaultPath() string {
	return filepath.Join(StateDir(), "config.toml")
}

// Load builds the configuration. A missing config file or .env file is not an
// error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if err := LoadTOML(cfg, path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTOML decodes path over cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if cfg.Export.TypeFormats == nil {
		cfg.Export.TypeFormats = map[string]string{}
	}
	return nil
}

func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		// Existing environment wins over .env entries.
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnvOverrides copies DOCPORT_* variables over the loaded values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("DOCPORT_PLATFORM"); v != "" {
		c.Platform = strings.ToLower(v)
	}
	if v := os.Getenv("DOCPORT_SHIMO_SID"); v != "" {
		c.Shimo.SID = v
	}
	if v := os.Getenv("DOCPORT_SHIMO_URL"); v != "" {
		c.Shimo.BaseURL = v
	}
	if v := os.Getenv("DOCPORT_MUBU_TOKEN"); v != "" {
		c.Mubu.JWTToken = v
	}
	if v := os.Getenv("DOCPORT_MUBU_URL"); v != "" {
		c.Mubu.BaseURL = v
	}
	if v := os.Getenv("DOCPORT_FORMAT"); v != "" {
		c.Export.Format = v
	}
	if v := os.Getenv("DOCPORT_OUTPUT_DIR"); v != "" {
		c.Export.OutputDir = v
	}
	if v := os.Getenv("DOCPORT_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("DOCPORT_STORE_DSN"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("DOCPORT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("DOCPORT_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("DOCPORT_PRESERVE_TIMES"); v != "" {
		on, err := strconv.ParseBool(v)
		switch {
		case err != nil:
		case !on:
			c.Naming.TimestampSource = "off"
		case c.Naming.TimestampSource == "off":
			c.Naming.TimestampSource = "createdAt"
		}
	}
}

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func (c *Config) Validate() error {
	var errs ValidateErrors

	switch c.Platform {
	case PlatformShimo, PlatformMubu:
	default:
		errs = append(errs, ValidationError{"platform", fmt.Sprintf("unknown platform %q, must be shimo or mubu", c.Platform)})
	}

	switch c.Store.Driver {
	case "duckdb", "sqlite", "redis":
	default:
		errs = append(errs, ValidationError{"store.driver", fmt.Sprintf("unknown driver %q, must be duckdb, sqlite or redis", c.Store.Driver)})
	}
	if c.Store.DSN == "" {
		errs = append(errs, ValidationError{"store.dsn", "must not be empty"})
	}

	switch c.Naming.TimestampSource {
	case "off", "createdAt", "updatedAt":
	default:
		errs = append(errs, ValidationError{"naming.timestamp_source", "must be off, createdAt or updatedAt"})
	}

	p := c.Pacing
	if p.MaxAttempts < 1 {
		errs = append(errs, ValidationError{"pacing.max_attempts", "must be at least 1"})
	}
	if p.PollAttempts < 1 {
		errs = append(errs, ValidationError{"pacing.poll_attempts", "must be at least 1"})
	}
	if p.MaxPages < 1 {
		errs = append(errs, ValidationError{"pacing.max_pages", "must be at least 1"})
	}
	for field, v := range map[string]int{
		"pacing.retry_delay_ms": p.RetryDelayMs,
		"pacing.poll_base_ms":   p.PollBaseMs,
		"pacing.poll_cap_ms":    p.PollCapMs,
		"pacing.poll_jitter_ms": p.PollJitterMs,
		"pacing.doc_delay_ms":   p.DocDelayMs,
		"pacing.doc_jitter_ms":  p.DocJitterMs,
		"pacing.pause_tick_ms":  p.PauseTickMs,
	} {
		if v < 0 {
			errs = append(errs, ValidationError{field, "must not be negative"})
		}
	}
	if p.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{"pacing.requests_per_second", "must not be negative"})
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{"log.level", fmt.Sprintf("unknown level %q", c.Log.Level)})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
