// Package config loads channelboard.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ChannelBoard/internal/host"
)

// FileName is the default configuration file name.
const FileName = "channelboard.yaml"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the validated application configuration.
type Config struct {
	// WorkdirRoot is where session working directories are created. Empty
	// means the system temp directory.
	WorkdirRoot    string
	OverlayOpacity uint8
	Settle         host.SettlePolicy
	Binarize       Binarize
	Service        Service
	Log            Log
}

// Binarize holds the alpha curves of the successive levels passes used by
// mask synthesis.
type Binarize struct {
	Passes []host.LevelsCurve
}

// Service locates the generation service.
type Service struct {
	// Address is host:port. Empty means discover it over mDNS.
	Address         string
	DiscoverTimeout time.Duration
}

// Log configures the file logger.
type Log struct {
	Dir   string
	Debug bool
}

// Default returns the tuned defaults.
func Default() Config {
	return Config{
		OverlayOpacity: 127,
		Settle:         host.DefaultSettlePolicy,
		Binarize: Binarize{Passes: []host.LevelsCurve{
			{InBlack: 0, InWhite: 1, Gamma: 10, OutBlack: 0, OutWhite: 1},
			{InBlack: 0, InWhite: 1, Gamma: 20, OutBlack: 0, OutWhite: 1},
		}},
		Service: Service{DiscoverTimeout: 3 * time.Second},
		Log:     Log{Dir: "."},
	}
}

// FieldError reports an invalid field.
type FieldError struct {
	Path  string
	Field string
	Msg   string
}

func (e *FieldError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Field, e.Msg)
}

func (e *FieldError) Unwrap() error { return ErrInvalid }

// Load reads and validates the file at path. Fields absent from the file
// keep their defaults.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(path, b)
}

// LoadOrDefault is Load, but a missing file yields Default.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes yaml data. path is only used in error messages.
func Parse(path string, data []byte) (Config, error) {
	var dto yamlConfig
	if err := yaml.Unmarshal(data, &dto); err != nil {
		return Config{}, fmt.Errorf("%s: %w: %w", path, ErrInvalid, err)
	}
	return mapConfig(path, dto)
}
