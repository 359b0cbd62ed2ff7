package tenant

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the static force registry loaded at startup. Adding a force is a
// configuration change, not a code change.
type Config struct {
	Forces []ForceConfig `yaml:"forces"`
}

// ForceConfig holds the connection parameters for one force's database.
type ForceConfig struct {
	Key             string   `yaml:"key"`
	Name            string   `yaml:"name"`
	DSN             string   `yaml:"dsn"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
}

// Duration accepts "30m" style values in yaml.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 10
	defaultConnMaxLifetime = 30 * time.Minute
)

// LoadConfig reads and validates the force registry file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read force registry: %w", err)
	}
	var cfg Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse force registry: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Forces) == 0 {
		return errors.New("force registry is empty")
	}
	seen := make(map[string]struct{}, len(c.Forces))
	for i := range c.Forces {
		fc := &c.Forces[i]
		fc.Key = strings.TrimSpace(strings.ToLower(fc.Key))
		if fc.Key == "" {
			return errors.New("force key is required")
		}
		if _, dup := seen[fc.Key]; dup {
			return fmt.Errorf("duplicate force key %q", fc.Key)
		}
		seen[fc.Key] = struct{}{}
		if strings.TrimSpace(fc.DSN) == "" {
			return fmt.Errorf("force %q: dsn is required", fc.Key)
		}
		if fc.MaxOpenConns <= 0 {
			fc.MaxOpenConns = defaultMaxOpenConns
		}
		if fc.MaxIdleConns <= 0 {
			fc.MaxIdleConns = defaultMaxIdleConns
		}
		if fc.ConnMaxLifetime <= 0 {
			fc.ConnMaxLifetime = Duration(defaultConnMaxLifetime)
		}
	}
	return nil
}
