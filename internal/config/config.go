package config

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/vango-dev/urlstore/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "urlstore.json"

	// DefaultAddr is the default listen address of the host server.
	DefaultAddr = "localhost:7070"

	// DefaultInitialURL is the first history entry of a served history.
	DefaultInitialURL = "/"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultLogFormat is the default log handler.
	DefaultLogFormat = "text"

	// DefaultMetricsNamespace prefixes every metric name.
	DefaultMetricsNamespace = "urlstore"

	// DefaultSettle is the quiet period before a location change is logged
	// as settled.
	DefaultSettle = "250ms"
)

// Config represents urlstore.json. Every field can be overridden by the
// URLSTORE_* environment variable named in its env tag.
type Config struct {
	// Addr is the host server listen address.
	Addr string `json:"addr,omitempty" env:"URLSTORE_ADDR"`

	// InitialURL is the first entry of the served history.
	InitialURL string `json:"initialURL,omitempty" env:"URLSTORE_INITIAL_URL"`

	// Log contains logging configuration.
	Log LogConfig `json:"log,omitempty" envPrefix:"URLSTORE_LOG_"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics,omitempty" envPrefix:"URLSTORE_METRICS_"`

	// Query contains query store defaults.
	Query QueryConfig `json:"query,omitempty" envPrefix:"URLSTORE_QUERY_"`

	// Host contains websocket settings.
	Host HostConfig `json:"host,omitempty" envPrefix:"URLSTORE_HOST_"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" env:"LEVEL"`

	// Format is text or json.
	Format string `json:"format,omitempty" env:"FORMAT"`

	// Settle is the quiet period, as a Go duration, after which a served
	// location change is logged.
	Settle string `json:"settle,omitempty" env:"SETTLE"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Disabled removes the /metrics endpoint.
	Disabled bool `json:"disabled,omitempty" env:"DISABLED"`

	// Namespace prefixes metric names.
	Namespace string `json:"namespace,omitempty" env:"NAMESPACE"`
}

// QueryConfig contains query store defaults.
type QueryConfig struct {
	// NoSort keeps codec order instead of sorting query keys.
	NoSort bool `json:"noSort,omitempty" env:"NO_SORT"`

	// PushState records query writes as new history entries instead of
	// replacing the current one.
	PushState bool `json:"pushState,omitempty" env:"PUSH_STATE"`
}

// HostConfig contains websocket settings.
type HostConfig struct {
	// AllowedOrigins restricts websocket origins. Empty allows all.
	AllowedOrigins []string `json:"allowedOrigins,omitempty" env:"ALLOWED_ORIGINS" envSeparator:","`
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads urlstore.json from dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from path and applies environment overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigNotFound).
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path)).
				WithSuggestion("Run 'urlstore config init' to write the defaults")
		}
		return nil, errors.New(errors.CodeConfigParse).Wrap(err)
	}

	cfg, err := Parse(data)
	if err != nil {
		var coded *errors.Error
		if errors.As(err, &coded) && coded.Code == errors.CodeConfigParse {
			if line, col, ok := syntaxPosition(data, coded.Wrapped); ok {
				coded.WithLocation(path, line, col)
			}
		}
		return nil, err
	}
	cfg.configPath = path
	return cfg, nil
}

// LoadOrDefault is Load that falls back to the defaults, with environment
// overrides, when dir has no config file.
func LoadOrDefault(dir string) (*Config, error) {
	cfg, err := Load(dir)
	if errors.HasCode(err, errors.CodeConfigNotFound) {
		cfg = New()
		if err := cfg.ApplyEnv(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, err
}

// Parse decodes a config document, fills defaults and applies environment
// overrides.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.New(errors.CodeConfigParse).
			WithDetail(err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON").
			Wrap(err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// ApplyEnv overrides fields from URLSTORE_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return errors.New(errors.CodeConfigEnv).WithDetail(err.Error()).Wrap(err)
	}
	return nil
}

// syntaxPosition maps a JSON syntax or type error to a 1-based line and
// column of data.
func syntaxPosition(data []byte, err error) (line, col int, ok bool) {
	var offset int64
	var syntax *json.SyntaxError
	var typ *json.UnmarshalTypeError
	switch {
	case stderrors.As(err, &syntax):
		offset = syntax.Offset
	case stderrors.As(err, &typ):
		offset = typ.Offset
	default:
		return 0, 0, false
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	// Offset counts the offending byte.
	before := data[:max(offset-1, 0)]
	line = bytes.Count(before, []byte("\n")) + 1
	col = len(before) - bytes.LastIndexByte(before, '\n')
	return line, col, true
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.New(errors.CodeConfigWrite).WithDetail("no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New(errors.CodeConfigWrite).Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New(errors.CodeConfigWrite).Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.InitialURL == "" {
		c.InitialURL = DefaultInitialURL
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Log.Settle == "" {
		c.Log.Settle = DefaultSettle
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return invalid("addr", c.Addr, err)
	}
	u, err := url.Parse(c.InitialURL)
	if err != nil {
		return invalid("initialURL", c.InitialURL, err)
	}
	if u.IsAbs() || !strings.HasPrefix(u.Path, "/") {
		return invalid("initialURL", c.InitialURL, stderrors.New("must be a path starting with /"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return invalid("log.level", c.Log.Level, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log.format", c.Log.Format, stderrors.New("must be text or json"))
	}
	if _, err := c.Log.SettleDuration(); err != nil {
		return invalid("log.settle", c.Log.Settle, err)
	}
	return nil
}

func invalid(field, value string, cause error) error {
	return errors.New(errors.CodeConfigInvalid).
		WithDetailf("%s: %q", field, value).
		Wrap(cause)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(l.Level))
	return level, err
}

// SettleDuration parses Settle.
func (l LogConfig) SettleDuration() (time.Duration, error) {
	d, err := time.ParseDuration(l.Settle)
	if err == nil && d < 0 {
		err = stderrors.New("negative duration")
	}
	return d, err
}

// NewLogger builds the logger described by l, writing to w. Invalid levels
// fall back to info.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// OriginAllowed reports whether a websocket origin may connect.
func (h HostConfig) OriginAllowed(origin string) bool {
	if len(h.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.AllowedOrigins {
		if strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}
	return false
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindRoot walks up from startDir to the directory holding urlstore.json.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New(errors.CodeConfigNotFound).
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory").
				WithSuggestion("Run 'urlstore config init' to write the defaults")
		}
		dir = parent
	}
}
