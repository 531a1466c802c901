// Package config loads the virtplan configuration file.
//
// The file is YAML with a handful of flat keys; every key has a default,
// so a missing file is a valid (all-defaults) configuration. Unknown keys
// are rejected to catch typos.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the default config file location.
const EnvConfigPath = "VIRTPLAN_CONF"

// Config holds every setting the tool consumes.
type Config struct {
	// URI is the hypervisor connection URI.
	URI string `yaml:"uri"`

	// MetadataNamespace is the namespace URI the plan fragment is
	// stored under in domain metadata.
	MetadataNamespace string `yaml:"metadata_namespace"`

	// MetadataKey is the element key for the metadata attachment call.
	MetadataKey string `yaml:"metadata_key"`

	// PlanDir and PlanFile locate the plan store file.
	PlanDir  string `yaml:"plan_dir"`
	PlanFile string `yaml:"plan_file"`

	// DefaultPlan is assigned when `vm set` is given no plan name.
	DefaultPlan string `yaml:"default_plan"`

	// HistoryDB is the path of the assignment journal database.
	HistoryDB string `yaml:"history_db"`
}

// DefaultPath returns the config file location: $VIRTPLAN_CONF if set,
// otherwise config.yaml under the user config directory.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config directory: %w", err)
	}
	return filepath.Join(base, "virtplan", "config.yaml"), nil
}

// Load reads the config file at path and fills unset keys with defaults.
// A missing file yields the defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// All defaults.
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := unmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyDefaults(cfg, filepath.Dir(path))
	return cfg, nil
}

// PlanStorePath joins the plan store directory and filename.
func (c *Config) PlanStorePath() string {
	return filepath.Join(c.PlanDir, c.PlanFile)
}

func unmarshalStrict(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyDefaults fills every unset key. Paths default to the directory
// holding the config file, so a relocated config keeps its data close.
func applyDefaults(cfg *Config, baseDir string) {
	if cfg.URI == "" {
		cfg.URI = "qemu:///system"
	}
	if cfg.MetadataNamespace == "" {
		cfg.MetadataNamespace = "urn:virtplan:plan:1.0"
	}
	if cfg.MetadataKey == "" {
		cfg.MetadataKey = "virtplan"
	}
	if cfg.PlanDir == "" {
		cfg.PlanDir = baseDir
	}
	if cfg.PlanFile == "" {
		cfg.PlanFile = "plans.yaml"
	}
	if cfg.DefaultPlan == "" {
		cfg.DefaultPlan = "default"
	}
	if cfg.HistoryDB == "" {
		cfg.HistoryDB = filepath.Join(cfg.PlanDir, "history.db")
	}
}
