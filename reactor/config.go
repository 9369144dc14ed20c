package reactor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joeycumines/logiface"
	"gopkg.in/yaml.v3"
)

// Config is the file form of the Multiplexer options.
//
//	backends: [epoll, poll, select]
//	max_events: 512
//	edge_triggered: false
//	log_level: warning
type Config struct {
	EdgeTriggered *bool    `yaml:"edge_triggered"`
	LogLevel      string   `yaml:"log_level"`
	Backends      []string `yaml:"backends"`
	MaxEvents     int      `yaml:"max_events"`
}

// ParseConfig decodes YAML. Unknown keys are rejected.
func ParseConfig(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("reactor: parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and decodes a YAML file.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reactor: load config: %w", err)
	}
	return ParseConfig(b)
}

// BackendKinds resolves the configured backend names.
func (c Config) BackendKinds() ([]BackendKind, error) {
	kinds := make([]BackendKind, 0, len(c.Backends))
	for _, name := range c.Backends {
		k, err := ParseBackendKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Level resolves the configured log level, defaulting to warning.
func (c Config) Level() (logiface.Level, error) {
	return ParseLevel(c.LogLevel)
}

func (c Config) validate() error {
	if c.MaxEvents < 0 {
		return fmt.Errorf("reactor: config: max_events must not be negative, got %d", c.MaxEvents)
	}
	if _, err := c.BackendKinds(); err != nil {
		return fmt.Errorf("reactor: config: %w", err)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("reactor: config: %w", err)
	}
	return nil
}

func (c Config) apply(opts *options) error {
	if err := c.validate(); err != nil {
		return err
	}
	if len(c.Backends) != 0 {
		kinds, _ := c.BackendKinds()
		if err := WithBackends(kinds...).applyMultiplexer(opts); err != nil {
			return err
		}
	}
	if c.MaxEvents != 0 {
		opts.maxEvents = c.MaxEvents
	}
	if c.EdgeTriggered != nil {
		opts.edgeTriggered = *c.EdgeTriggered
	}
	return nil
}

// ParseLevel parses a syslog-style level keyword, as rendered by
// logiface.Level.String, plus a few common aliases. The empty string maps to
// warning.
func ParseLevel(s string) (logiface.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return logiface.LevelWarning, nil
	case "disabled", "off", "none":
		return logiface.LevelDisabled, nil
	case "emerg", "emergency":
		return logiface.LevelEmergency, nil
	case "alert":
		return logiface.LevelAlert, nil
	case "crit", "critical":
		return logiface.LevelCritical, nil
	case "err", "error":
		return logiface.LevelError, nil
	case "warning", "warn":
		return logiface.LevelWarning, nil
	case "notice":
		return logiface.LevelNotice, nil
	case "info", "informational":
		return logiface.LevelInformational, nil
	case "debug":
		return logiface.LevelDebug, nil
	case "trace":
		return logiface.LevelTrace, nil
	default:
		return logiface.LevelDisabled, fmt.Errorf("reactor: unknown log level %q", s)
	}
}
