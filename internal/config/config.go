// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads the HCL configuration file the trieguardd binary
// is started with, describing the attached interface, default action,
// rule-store capacity, and the logging/metrics/api ambient services.
package config

import (
	"github.com/hashicorp/hcl/v2/hclsimple"
	"trieguard.dev/trieguard/internal/ferror"
)

// LoggingConfig configures the ambient logger (internal/logging).
type LoggingConfig struct {
	Level  string `hcl:"level,optional"`
	Syslog bool   `hcl:"syslog,optional"`
}

// MetricsConfig configures the Prometheus HTTP exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `hcl:"enabled,optional"`
	Listen  string `hcl:"listen,optional"`
}

// APIConfig configures the gorilla/mux control HTTP surface.
type APIConfig struct {
	Enabled bool   `hcl:"enabled,optional"`
	Listen  string `hcl:"listen,optional"`
}

// Config is the top-level trieguardd configuration document.
type Config struct {
	Interface     string         `hcl:"interface"`
	DefaultAction string         `hcl:"default_action,optional"`
	MaxRanges     int            `hcl:"max_ranges,optional"`
	Logging       *LoggingConfig `hcl:"logging,block"`
	Metrics       *MetricsConfig `hcl:"metrics,block"`
	API           *APIConfig     `hcl:"api,block"`
}

// defaults mirrors hclsimple.Decode leaving optional fields zero-valued;
// applyDefaults fills the ones callers expect a sane value for.
func (c *Config) applyDefaults() {
	if c.DefaultAction == "" {
		c.DefaultAction = "reject"
	}
	if c.MaxRanges == 0 {
		c.MaxRanges = 128
	}
	if c.Logging == nil {
		c.Logging = &LoggingConfig{Level: "info"}
	} else if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Load parses and validates the HCL file at path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, ferror.Wrapf(err, ferror.KindMalformed, "decode config %q", path)
	}
	cfg.applyDefaults()

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, ferror.Wrapf(errs, ferror.KindMalformed, "invalid config %q", path)
	}
	return &cfg, nil
}
