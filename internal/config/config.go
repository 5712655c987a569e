// Package config aggregates the per-component configurations into one
// document loadable from YAML or JSON. Every field defaults to the owning
// package's DefaultConfig, so a config file only needs to name what it
// changes.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/orrerysim/orrery/internal/core/asset"
	"github.com/orrerysim/orrery/internal/core/physics"
	"github.com/orrerysim/orrery/internal/core/script"
	"github.com/orrerysim/orrery/internal/core/state"
	"github.com/orrerysim/orrery/internal/server"
)

// ErrUnsupportedFormat reports a config file extension Load cannot decode.
var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// Logging selects the log level by name: debug, info, warn, error, fatal.
type Logging struct {
	Level string `yaml:"level" json:"level"`
}

// Config is the whole server configuration. Duration fields decode as
// integer nanoseconds in config files; the shipped defaults keep them in
// code.
type Config struct {
	Logging Logging        `yaml:"logging" json:"logging"`
	State   state.Config   `yaml:"state" json:"state"`
	Assets  asset.Config   `yaml:"assets" json:"assets"`
	Physics physics.Config `yaml:"physics" json:"physics"`
	Server  server.Config  `yaml:"server" json:"server"`
	Scripts script.Config  `yaml:"scripts" json:"scripts"`
}

// Default composes the DefaultConfig of every component.
func Default() Config {
	return Config{
		Logging: Logging{Level: "info"},
		State:   state.DefaultConfig(),
		Assets:  asset.DefaultConfig(),
		Physics: physics.DefaultConfig(),
		Server:  server.DefaultConfig(),
		Scripts: script.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	switch c.State.Backend {
	case state.BackendMemory, state.BackendMongo, "":
	default:
		return fmt.Errorf("state: unknown backend %q", c.State.Backend)
	}
	if err := c.Physics.Validate(); err != nil {
		return fmt.Errorf("physics: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// LoadYAML decodes a YAML document over the defaults. An empty document
// yields the defaults unchanged.
func LoadYAML(r io.Reader) (Config, error) {
	c := Default()
	if err := yaml.NewDecoder(r).Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return c, c.Validate()
}

// LoadJSON decodes a JSON document over the defaults.
func LoadJSON(r io.Reader) (Config, error) {
	c := Default()
	if err := json.NewDecoder(r).Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return c, c.Validate()
}

// Load reads a config file, picking the decoder by extension.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(f)
	case ".json":
		return LoadJSON(f)
	default:
		return Config{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}
