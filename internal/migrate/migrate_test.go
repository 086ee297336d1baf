package migrate_test

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/sitebridge/internal/config"
	"github.com/go-ports/sitebridge/internal/migrate"
	"github.com/go-ports/sitebridge/internal/models"
	"github.com/go-ports/sitebridge/internal/odoo"
	"github.com/go-ports/sitebridge/internal/odoo/odootest"
)

// newService spins up a migration service against two fake Odoo instances.
func newService(c *qt.C, src, tgt *odootest.Server) *migrate.Service {
	c.Helper()

	cfg := config.Default()
	cfg.Source = config.InstanceConfig{
		URL: src.URL(), Database: src.Database, Username: src.Username, Password: src.Password,
	}
	cfg.Target = config.InstanceConfig{
		URL: tgt.URL(), Database: tgt.Database, Username: tgt.Username, Password: tgt.Password,
	}

	svc, err := migrate.New(context.Background(), cfg, c.TempDir())
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = svc.Close() })
	return svc
}

func newPair(c *qt.C) (*odootest.Server, *odootest.Server) {
	c.Helper()
	src := odootest.New("prod16", "admin", "secret")
	tgt := odootest.New("prod18", "admin", "secret")
	c.Cleanup(src.Close)
	c.Cleanup(tgt.Close)
	return src, tgt
}

// findRecord returns the first row of model whose field equals value.
func findRecord(c *qt.C, srv *odootest.Server, model, field string, value any) odoo.Record {
	c.Helper()
	for _, r := range srv.Records(model) {
		if r[field] == value {
			return r
		}
	}
	c.Fatalf("no %s record with %s=%v", model, field, value)
	return nil
}

func TestCheckInstance_HappyPath(t *testing.T) {
	c := qt.New(t)

	src, _ := newPair(c)
	src.Seed("website", odoo.Record{"name": "Main Website"})

	res, err := migrate.CheckInstance(context.Background(), config.InstanceConfig{
		URL: src.URL(), Database: src.Database, Username: src.Username, Password: src.Password,
	}, odoo.Options{})
	c.Assert(err, qt.IsNil)
	c.Assert(res.UID, qt.Equals, 7)
	c.Assert(res.ServerVersion, qt.Equals, "16.0")
	c.Assert(res.ModelCounts["website"], qt.Equals, 1)
	c.Assert(res.ModelCounts["website.page"], qt.Equals, 0)
	c.Assert(res.ModelErrors, qt.HasLen, 0)
}

func TestCheckInstance_FailurePath(t *testing.T) {
	c := qt.New(t)

	src, _ := newPair(c)
	_, err := migrate.CheckInstance(context.Background(), config.InstanceConfig{
		URL: src.URL(), Database: src.Database, Username: src.Username, Password: "wrong",
	}, odoo.Options{})
	c.Assert(err, qt.IsNotNil)
}

func TestServiceCheck_HappyPath(t *testing.T) {
	c := qt.New(t)

	src, tgt := newPair(c)
	svc := newService(c, src, tgt)

	source, target, err := svc.Check(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(source.Database, qt.Equals, "prod16")
	c.Assert(target.Database, qt.Equals, "prod18")
}

func TestRun_HappyPath(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	src, tgt := newPair(c)

	src.Seed("website", odoo.Record{
		"name":   "Main Website",
		"domain": "example.com",
	})

	// A website-builder page, stored as a qweb view on the source.
	src.Seed("ir.ui.view", odoo.Record{
		"name":    "Landing",
		"key":     "website.page.landing",
		"type":    "qweb",
		"arch_db": "<t>landing</t>",
	})
	// A regular published page.
	src.Seed("website.page", odoo.Record{
		"name":         "Contact",
		"url":          "/contact",
		"is_published": true,
		"arch_db":      "<t>contact</t>",
	})

	// Child seeded before its parent: creation order must not matter.
	src.Seed("website.menu", odoo.Record{
		"id": 51, "name": "Products", "url": "/products",
		"parent_id": []any{50, "Shop"},
	})
	src.Seed("website.menu", odoo.Record{
		"id": 50, "name": "Shop", "url": "/shop",
	})

	src.Seed("ir.module.module", odoo.Record{
		"name": "theme_alpine", "state": "installed", "shortdesc": "Alpine",
	})
	tgt.Seed("ir.module.module", odoo.Record{
		"name": "theme_alpine", "state": "uninstalled",
	})

	src.Seed("ir.attachment", odoo.Record{
		"name": "logo.png", "mimetype": "image/png", "datas": "aGk=",
	})

	svc := newService(c, src, tgt)
	summary, rendered, err := svc.Run(ctx, false)
	c.Assert(err, qt.IsNil)

	c.Run("per-kind counts", func(c *qt.C) {
		c.Assert(summary.Stats.Migrated[models.KindWebsites], qt.Equals, 1)
		c.Assert(summary.Stats.Migrated[models.KindPages], qt.Equals, 2)
		c.Assert(summary.Stats.Migrated[models.KindMenus], qt.Equals, 2)
		c.Assert(summary.Stats.Migrated[models.KindThemes], qt.Equals, 1)
		c.Assert(summary.Stats.Migrated[models.KindAssets], qt.Equals, 1)
		c.Assert(summary.Stats.Errors, qt.HasLen, 0)
	})

	c.Run("website created on target", func(c *qt.C) {
		w := findRecord(c, tgt, "website", "name", "Main Website")
		c.Assert(w["domain"], qt.Equals, "example.com")
	})

	c.Run("builder page gets its view created first", func(c *qt.C) {
		p := findRecord(c, tgt, "website.page", "url", "/landing")
		viewID, ok := p["view_id"].(int)
		c.Assert(ok, qt.IsTrue)
		v := findRecord(c, tgt, "ir.ui.view", "id", viewID)
		c.Assert(v["type"], qt.Equals, "qweb")
		c.Assert(v["key"], qt.Equals, "website.page.landing")
	})

	c.Run("regular page carries its arch", func(c *qt.C) {
		p := findRecord(c, tgt, "website.page", "url", "/contact")
		c.Assert(p["arch_db"], qt.Equals, "<t>contact</t>")
	})

	c.Run("menu parent remapped to the new target id", func(c *qt.C) {
		parent := findRecord(c, tgt, "website.menu", "name", "Shop")
		child := findRecord(c, tgt, "website.menu", "name", "Products")
		c.Assert(child["parent_id"], qt.Equals, parent["id"])
	})

	c.Run("theme installed on target", func(c *qt.C) {
		m := findRecord(c, tgt, "ir.module.module", "name", "theme_alpine")
		c.Assert(m["state"], qt.Equals, "installed")
	})

	c.Run("asset copied", func(c *qt.C) {
		a := findRecord(c, tgt, "ir.attachment", "name", "logo.png")
		c.Assert(a["datas"], qt.Equals, "aGk=")
	})

	c.Run("run persisted with report and id mappings", func(c *qt.C) {
		c.Assert(rendered, qt.Contains, "Website Migration Report")

		run, err := svc.DB().GetRun(summary.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(run.Report, qt.Equals, rendered)
		c.Assert(run.DryRun, qt.IsFalse)

		mappings, err := svc.DB().Mappings(summary.ID, models.KindMenus)
		c.Assert(err, qt.IsNil)
		c.Assert(mappings, qt.HasLen, 2)
	})
}

func TestRun_SkipExisting(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	c.Run("existing records are skipped", func(c *qt.C) {
		src, tgt := newPair(c)
		src.Seed("website", odoo.Record{"name": "Main Website"})
		tgt.Seed("website", odoo.Record{"name": "Main Website"})

		svc := newService(c, src, tgt)
		summary, _, err := svc.Run(ctx, false)
		c.Assert(err, qt.IsNil)

		c.Assert(summary.Stats.Migrated[models.KindWebsites], qt.Equals, 0)
		c.Assert(tgt.CallCount("website", "create"), qt.Equals, 0)
		c.Assert(summary.Results[0].Action, qt.Equals, models.ActionSkipped)
	})

	c.Run("no-skip-existing creates a duplicate", func(c *qt.C) {
		src, tgt := newPair(c)
		src.Seed("website", odoo.Record{"name": "Main Website"})
		tgt.Seed("website", odoo.Record{"name": "Main Website"})

		svc := newService(c, src, tgt)
		svc.Config.Options.SkipExisting = false
		_, _, err := svc.Run(ctx, false)
		c.Assert(err, qt.IsNil)

		c.Assert(tgt.Records("website"), qt.HasLen, 2)
	})
}

func TestRun_DryRun(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	src, tgt := newPair(c)
	src.Seed("website", odoo.Record{"name": "Main Website"})
	src.Seed("website.page", odoo.Record{
		"name": "Contact", "url": "/contact", "is_published": true, "arch_db": "<t>x</t>",
	})
	tgt.Seed("website.page", odoo.Record{"name": "Contact", "url": "/contact"})

	svc := newService(c, src, tgt)
	summary, rendered, err := svc.Run(ctx, true)
	c.Assert(err, qt.IsNil)

	// Nothing written to the target.
	for _, model := range []string{"website", "website.page", "website.menu", "ir.attachment"} {
		c.Assert(tgt.CallCount(model, "create"), qt.Equals, 0)
		c.Assert(tgt.CallCount(model, "write"), qt.Equals, 0)
	}

	c.Assert(summary.Results, qt.HasLen, 2)
	actions := map[string]models.Action{}
	for _, r := range summary.Results {
		actions[r.Name] = r.Action
	}
	c.Assert(actions["Main Website"], qt.Equals, models.ActionCreate)
	c.Assert(actions["Contact"], qt.Equals, models.ActionSkipped)

	c.Assert(rendered, qt.Contains, "create  Main Website")
	c.Assert(rendered, qt.Contains, "Totals: 1 to create, 1 to skip")
}

func TestRun_RecordFailure(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	src, tgt := newPair(c)
	src.Seed("ir.attachment", odoo.Record{
		"name": "logo.png", "mimetype": "image/png", "datas": "aGk=",
	})
	src.Seed("ir.attachment", odoo.Record{
		"name": "style.css", "mimetype": "text/css", "datas": "Ym9keQ==",
	})
	tgt.FailCreate["ir.attachment"] = "disk quota exceeded"

	svc := newService(c, src, tgt)
	summary, rendered, err := svc.Run(ctx, false)
	c.Assert(err, qt.IsNil) // per-record failures never abort the run

	c.Assert(summary.Stats.Migrated[models.KindAssets], qt.Equals, 0)
	c.Assert(summary.Stats.Errors, qt.HasLen, 2)
	c.Assert(summary.Stats.Errors[0], qt.Contains, "Error migrating asset logo.png")
	c.Assert(summary.Stats.Errors[0], qt.Contains, "disk quota exceeded")
	c.Assert(rendered, qt.Contains, "Errors (2):")

	for _, r := range summary.Results {
		c.Assert(r.Action, qt.Equals, models.ActionFailed)
	}
}

func TestRun_ThemeMissingOnTarget(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	src, tgt := newPair(c)
	src.Seed("ir.module.module", odoo.Record{
		"name": "theme_custom", "state": "installed",
	})

	svc := newService(c, src, tgt)
	summary, _, err := svc.Run(ctx, false)
	c.Assert(err, qt.IsNil)

	c.Assert(summary.Stats.Migrated[models.KindThemes], qt.Equals, 0)
	c.Assert(summary.Results, qt.HasLen, 1)
	c.Assert(summary.Results[0].Action, qt.Equals, models.ActionSkipped)
	c.Assert(summary.Results[0].Err, qt.Equals, "not found in target instance")
}

func TestRun_OptionsGateKinds(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	src, tgt := newPair(c)
	src.Seed("website", odoo.Record{"name": "Main Website"})
	src.Seed("ir.attachment", odoo.Record{
		"name": "logo.png", "mimetype": "image/png", "datas": "aGk=",
	})

	svc := newService(c, src, tgt)
	svc.Config.Options.MigrateAssets = false
	summary, _, err := svc.Run(ctx, false)
	c.Assert(err, qt.IsNil)

	c.Assert(summary.Stats.Migrated[models.KindWebsites], qt.Equals, 1)
	c.Assert(summary.Stats.Migrated[models.KindAssets], qt.Equals, 0)
	c.Assert(src.CallCount("ir.attachment", "search_read"), qt.Equals, 0)
	c.Assert(tgt.Records("ir.attachment"), qt.HasLen, 0)
}
