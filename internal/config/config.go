// Package config loads runtime settings from YAML.
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration. Zero fields in a file keep their
// defaults.
type Config struct {
	SampleRate    int     `yaml:"sample_rate"`
	FrameRate     float64 `yaml:"frame_rate"`
	Channels      int     `yaml:"channels"`
	Loop          bool    `yaml:"loop"`
	Section       string  `yaml:"section,omitempty"`
	Tuning        float64 `yaml:"tuning"`
	Speed         float64 `yaml:"speed"`
	SlideBias     float64 `yaml:"slide_bias"`
	MasterGain    float64 `yaml:"master_gain"`
	LogLevel      string  `yaml:"log_level"`
	WatchInterval string  `yaml:"watch_interval"`
}

func Default() Config {
	return Config{
		SampleRate:    48000,
		FrameRate:     50,
		Channels:      3,
		Loop:          true,
		Tuning:        440,
		Speed:         16,
		SlideBias:     2,
		MasterGain:    0.3,
		LogLevel:      "info",
		WatchInterval: "100ms",
	}
}

// Load reads path over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return errors.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	case c.FrameRate <= 0 || c.FrameRate > float64(c.SampleRate):
		return errors.Errorf("frame_rate must be between 0 and sample_rate, got %v", c.FrameRate)
	case c.Channels <= 0:
		return errors.Errorf("channels must be positive, got %d", c.Channels)
	case c.Tuning <= 0:
		return errors.Errorf("tuning must be positive, got %v", c.Tuning)
	case c.Speed <= 0:
		return errors.Errorf("speed must be positive, got %v", c.Speed)
	case c.SlideBias <= 0:
		return errors.Errorf("slide_bias must be positive, got %v", c.SlideBias)
	case c.MasterGain < 0:
		return errors.Errorf("master_gain must not be negative, got %v", c.MasterGain)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := c.Interval(); err != nil {
		return err
	}
	return nil
}

// Level is the slog level named by log_level.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, errors.Errorf("bad log_level %q", c.LogLevel)
	}
	return l, nil
}

// Interval is how often the watcher polls the score file.
func (c Config) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(c.WatchInterval)
	if err != nil {
		return 0, errors.Wrap(err, "watch_interval")
	}
	if d <= 0 {
		return 0, errors.Errorf("watch_interval must be positive, got %s", c.WatchInterval)
	}
	return d, nil
}

// Marshal encodes c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
