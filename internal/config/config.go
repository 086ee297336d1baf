// Package config handles configuration loading and state home resolution.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Config types
// ---------------------------------------------------------------------------

// InstanceConfig holds connection settings for one Odoo instance.
type InstanceConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"` // #nosec G117 -- Password is an intentional field name for the instance login credential
}

// OptionsConfig controls what the migration copies and how.
type OptionsConfig struct {
	SkipExisting       bool `yaml:"skip_existing"`
	MigrateWebsites    bool `yaml:"migrate_websites"`
	MigratePages       bool `yaml:"migrate_pages"`
	MigrateMenus       bool `yaml:"migrate_menus"`
	MigrateThemes      bool `yaml:"migrate_themes"`
	MigrateAssets      bool `yaml:"migrate_assets"`
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
	TimeoutSeconds     int  `yaml:"timeout_seconds"`
}

// Config is the root migration configuration.
type Config struct {
	Source  InstanceConfig `yaml:"source"`
	Target  InstanceConfig `yaml:"target"`
	Options OptionsConfig  `yaml:"options"`
}

// Default returns a Config with every entity kind enabled and safe transport
// defaults. Connection settings have no defaults.
func Default() *Config {
	return &Config{
		Options: OptionsConfig{
			SkipExisting:    true,
			MigrateWebsites: true,
			MigratePages:    true,
			MigrateMenus:    true,
			MigrateThemes:   true,
			MigrateAssets:   true,
			TimeoutSeconds:  60,
		},
	}
}

// Load reads a config.yaml from path.
// If the file does not exist it returns Default() with no error.
// Missing keys retain their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	// Unmarshal into a plain map so we can apply only the keys that are present.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	applyInstance(raw, "source", &cfg.Source)
	applyInstance(raw, "target", &cfg.Target)

	if opts, ok := raw["options"].(map[string]any); ok {
		applyBool(opts, "skip_existing", &cfg.Options.SkipExisting)
		applyBool(opts, "migrate_websites", &cfg.Options.MigrateWebsites)
		applyBool(opts, "migrate_pages", &cfg.Options.MigratePages)
		applyBool(opts, "migrate_menus", &cfg.Options.MigrateMenus)
		applyBool(opts, "migrate_themes", &cfg.Options.MigrateThemes)
		applyBool(opts, "migrate_assets", &cfg.Options.MigrateAssets)
		applyBool(opts, "insecure_skip_verify", &cfg.Options.InsecureSkipVerify)
		if v, ok := opts["timeout_seconds"].(int); ok && v > 0 {
			cfg.Options.TimeoutSeconds = v
		}
	}

	return cfg, nil
}

// Validate checks that both instances carry the connection parameters the
// migration cannot run without. Passwords may be empty here; they can be
// supplied via flags or prompt.
func (c *Config) Validate() error {
	var missing []string
	check := func(side string, inst *InstanceConfig) {
		if strings.TrimSpace(inst.URL) == "" {
			missing = append(missing, side+".url")
		}
		if strings.TrimSpace(inst.Database) == "" {
			missing = append(missing, side+".database")
		}
		if strings.TrimSpace(inst.Username) == "" {
			missing = append(missing, side+".username")
		}
	}
	check("source", &c.Source)
	check("target", &c.Target)
	if len(missing) > 0 {
		return fmt.Errorf("missing required parameters: %s", strings.Join(missing, ", "))
	}
	return nil
}

func applyInstance(raw map[string]any, key string, dst *InstanceConfig) {
	inst, ok := raw[key].(map[string]any)
	if !ok {
		return
	}
	if v, ok := inst["url"].(string); ok && v != "" {
		dst.URL = strings.TrimRight(v, "/")
	}
	if v, ok := inst["database"].(string); ok && v != "" {
		dst.Database = v
	}
	if v, ok := inst["username"].(string); ok && v != "" {
		dst.Username = v
	}
	if v, ok := inst["password"].(string); ok {
		dst.Password = v
	}
}

func applyBool(m map[string]any, key string, dst *bool) {
	if v, ok := m[key].(bool); ok {
		*dst = v
	}
}

// Sample is a commented starter config written by `sitebridge config init`.
const Sample = `# sitebridge configuration
source:
  url: https://odoo16.example.com
  database: production
  username: admin
  password: ""

target:
  url: https://odoo18.example.com
  database: production
  username: admin
  password: ""

options:
  skip_existing: true
  migrate_websites: true
  migrate_pages: true
  migrate_menus: true
  migrate_themes: true
  migrate_assets: true
  insecure_skip_verify: false
  timeout_seconds: 60
`

// ---------------------------------------------------------------------------
// State home resolution
// ---------------------------------------------------------------------------

// globalConfigPath returns the path to the global sitebridge config file.
// This file stores only state_home (and future global settings).
func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "sitebridge", "config.yaml"), nil
}

// normalizePath expands ~ and makes the path absolute.
func normalizePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(os.ExpandEnv(path))
}

// ResolveStateHome returns the state home path and the source of the resolution.
// Priority: SITEBRIDGE_HOME env → persisted global config → ~/.sitebridge
// source is one of "env", "config", or "default".
func ResolveStateHome() (path, source string) {
	if env := os.Getenv("SITEBRIDGE_HOME"); env != "" {
		p, err := normalizePath(env)
		if err == nil {
			return p, "env"
		}
	}

	if persisted, ok, _ := GetPersistedStateHome(); ok {
		return persisted, "config"
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sitebridge"), "default"
}

// GetStateHome returns the resolved state home path.
func GetStateHome() string {
	path, _ := ResolveStateHome()
	return path
}

// GetPersistedStateHome reads state_home from the global config.
// Returns ("", false, nil) if not set.
func GetPersistedStateHome() (string, bool, error) {
	cfgPath, err := globalConfigPath()
	if err != nil {
		return "", false, err
	}

	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return "", false, nil
	}

	val, _ := raw["state_home"].(string)
	val = strings.TrimSpace(val)
	if val == "" {
		return "", false, nil
	}

	p, err := normalizePath(val)
	if err != nil {
		return "", false, err
	}
	return p, true, nil
}

// SetPersistedStateHome normalizes path and persists it in the global config.
// Returns the normalized path.
func SetPersistedStateHome(path string) (string, error) {
	normalized, err := normalizePath(path)
	if err != nil {
		return "", err
	}

	cfgPath, err := globalConfigPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return "", err
	}

	// Read existing global config, preserving any other keys.
	var raw map[string]any
	if data, err := os.ReadFile(cfgPath); err == nil {
		_ = yaml.Unmarshal(data, &raw)
	}
	if raw == nil {
		raw = make(map[string]any)
	}
	raw["state_home"] = normalized

	out, err := yaml.Marshal(raw)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(cfgPath, out, 0o600); err != nil {
		return "", err
	}
	return normalized, nil
}

// ClearPersistedStateHome removes state_home from the global config.
// Returns true if the key was present and removed.
// If the file becomes empty after removal it is deleted.
func ClearPersistedStateHome() (bool, error) {
	cfgPath, err := globalConfigPath()
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return false, nil
	}

	if _, ok := raw["state_home"]; !ok {
		return false, nil
	}
	delete(raw, "state_home")

	if len(raw) == 0 {
		_ = os.Remove(cfgPath)
		return true, nil
	}

	out, err := yaml.Marshal(raw)
	if err != nil {
		return false, err
	}
	return true, os.WriteFile(cfgPath, out, 0o600)
}
