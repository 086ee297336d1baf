package config_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/sitebridge/internal/config"
)

func TestDefault_HappyPath(t *testing.T) {
	c := qt.New(t)
	cfg := config.Default()
	c.Assert(cfg, qt.IsNotNil)
	c.Assert(cfg.Options.SkipExisting, qt.IsTrue)
	c.Assert(cfg.Options.MigrateWebsites, qt.IsTrue)
	c.Assert(cfg.Options.MigratePages, qt.IsTrue)
	c.Assert(cfg.Options.MigrateMenus, qt.IsTrue)
	c.Assert(cfg.Options.MigrateThemes, qt.IsTrue)
	c.Assert(cfg.Options.MigrateAssets, qt.IsTrue)
	c.Assert(cfg.Options.InsecureSkipVerify, qt.IsFalse)
	c.Assert(cfg.Options.TimeoutSeconds, qt.Equals, 60)
	c.Assert(cfg.Source.URL, qt.Equals, "")
	c.Assert(cfg.Target.URL, qt.Equals, "")
}

func TestLoad_HappyPath(t *testing.T) {
	c := qt.New(t)

	c.Run("non-existent file returns defaults without error", func(c *qt.C) {
		cfg, err := config.Load("/nonexistent/config.yaml")
		c.Assert(err, qt.IsNil)
		c.Assert(cfg, qt.IsNotNil)
		c.Assert(cfg.Options.SkipExisting, qt.IsTrue)
	})

	c.Run("full config", func(c *qt.C) {
		yaml := "source:\n" +
			"  url: https://odoo16.example.com/\n" +
			"  database: prod16\n" +
			"  username: admin\n" +
			"  password: s3cret\n" +
			"target:\n" +
			"  url: https://odoo18.example.com\n" +
			"  database: prod18\n" +
			"  username: admin\n" +
			"options:\n" +
			"  skip_existing: false\n" +
			"  migrate_assets: false\n" +
			"  timeout_seconds: 120\n"
		cfg, err := config.Load(writeConfig(c, yaml))
		c.Assert(err, qt.IsNil)
		// Trailing slash is trimmed from URLs.
		c.Assert(cfg.Source.URL, qt.Equals, "https://odoo16.example.com")
		c.Assert(cfg.Source.Database, qt.Equals, "prod16")
		c.Assert(cfg.Source.Password, qt.Equals, "s3cret")
		c.Assert(cfg.Target.URL, qt.Equals, "https://odoo18.example.com")
		c.Assert(cfg.Options.SkipExisting, qt.IsFalse)
		c.Assert(cfg.Options.MigrateAssets, qt.IsFalse)
		c.Assert(cfg.Options.TimeoutSeconds, qt.Equals, 120)
	})

	c.Run("partial override retains defaults", func(c *qt.C) {
		cfg, err := config.Load(writeConfig(c, "options:\n  migrate_themes: false\n"))
		c.Assert(err, qt.IsNil)
		c.Assert(cfg.Options.MigrateThemes, qt.IsFalse)
		c.Assert(cfg.Options.MigrateWebsites, qt.IsTrue)
		c.Assert(cfg.Options.SkipExisting, qt.IsTrue)
		c.Assert(cfg.Options.TimeoutSeconds, qt.Equals, 60)
	})

	c.Run("sample config parses", func(c *qt.C) {
		cfg, err := config.Load(writeConfig(c, config.Sample))
		c.Assert(err, qt.IsNil)
		c.Assert(cfg.Source.URL, qt.Equals, "https://odoo16.example.com")
		c.Assert(cfg.Target.Database, qt.Equals, "production")
		c.Assert(cfg.Options.InsecureSkipVerify, qt.IsFalse)
		c.Assert(cfg.Validate(), qt.IsNil)
	})
}

func TestLoad_FailurePath(t *testing.T) {
	c := qt.New(t)

	_, err := config.Load(writeConfig(c, "source: [not a mapping\n"))
	c.Assert(err, qt.IsNotNil)
}

func TestValidate_FailurePath(t *testing.T) {
	c := qt.New(t)

	c.Run("empty config lists every missing parameter", func(c *qt.C) {
		err := config.Default().Validate()
		c.Assert(err, qt.ErrorMatches,
			`missing required parameters: source\.url, source\.database, source\.username, target\.url, target\.database, target\.username`)
	})

	c.Run("one side configured", func(c *qt.C) {
		cfg := config.Default()
		cfg.Source = config.InstanceConfig{URL: "https://a", Database: "d", Username: "u"}
		err := cfg.Validate()
		c.Assert(err, qt.ErrorMatches, `missing required parameters: target\.url, target\.database, target\.username`)
	})

	c.Run("password may be empty", func(c *qt.C) {
		cfg := config.Default()
		cfg.Source = config.InstanceConfig{URL: "https://a", Database: "d", Username: "u"}
		cfg.Target = config.InstanceConfig{URL: "https://b", Database: "d", Username: "u"}
		c.Assert(cfg.Validate(), qt.IsNil)
	})
}

func TestResolveStateHome_EnvOverride(t *testing.T) {
	c := qt.New(t)

	tmp := t.TempDir()
	t.Setenv("SITEBRIDGE_HOME", tmp)

	path, source := config.ResolveStateHome()
	c.Assert(source, qt.Equals, "env")
	c.Assert(path, qt.Equals, tmp)
}

func writeConfig(c *qt.C, yaml string) string {
	c.Helper()
	path := filepath.Join(c.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(yaml), 0o600)
	c.Assert(err, qt.IsNil)
	return path
}
