// Package shared holds the context passed to all CLI commands.
package shared

import (
	"path/filepath"

	"github.com/go-ports/sitebridge/internal/config"
)

// Context carries global CLI state (flags set on the root command).
type Context struct {
	// ConfigPath overrides the config file location.
	// When empty, <state home>/config.yaml is used.
	ConfigPath string

	// Home overrides the state home directory.
	// When empty, resolution falls through to SITEBRIDGE_HOME env var →
	// persisted config → ~/.sitebridge.
	Home string

	// SourcePassword and TargetPassword override the config file values,
	// so credentials can stay out of the file.
	SourcePassword string
	TargetPassword string
}

// StateHome returns the resolved state home directory.
func (c *Context) StateHome() string {
	if c.Home != "" {
		return c.Home
	}
	return config.GetStateHome()
}

// ConfigFile returns the resolved config file path.
func (c *Context) ConfigFile() string {
	if c.ConfigPath != "" {
		return c.ConfigPath
	}
	return filepath.Join(c.StateHome(), "config.yaml")
}

// LoadConfig loads the config file and applies the password flag overrides.
func (c *Context) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.ConfigFile())
	if err != nil {
		return nil, err
	}
	if c.SourcePassword != "" {
		cfg.Source.Password = c.SourcePassword
	}
	if c.TargetPassword != "" {
		cfg.Target.Password = c.TargetPassword
	}
	return cfg, nil
}
