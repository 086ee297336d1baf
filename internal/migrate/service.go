// Package migrate implements the migration orchestrator that wires together
// configuration, the Odoo clients, the state database, and report rendering.
package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-ports/sitebridge/internal/config"
	"github.com/go-ports/sitebridge/internal/models"
	"github.com/go-ports/sitebridge/internal/odoo"
	"github.com/go-ports/sitebridge/internal/report"
	"github.com/go-ports/sitebridge/internal/state"
)

// CheckModels are the models probed by the connection self-test.
var CheckModels = []string{
	"website", "website.page", "website.menu", "ir.module.module", "ir.attachment",
}

// Service orchestrates one source→target migration.
type Service struct {
	Config *config.Config
	Source *odoo.Client
	Target *odoo.Client

	db *state.DB
}

// New validates cfg, authenticates against both instances, and opens the
// state database under stateHome.
func New(ctx context.Context, cfg *config.Config, stateHome string) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("migrate.New: %w", err)
	}
	if stateHome == "" {
		stateHome = config.GetStateHome()
	}
	if err := os.MkdirAll(stateHome, 0o755); err != nil {
		return nil, fmt.Errorf("migrate.New: create state home: %w", err)
	}

	opts := clientOptions(cfg)

	source, err := odoo.Dial(ctx, endpoint(cfg.Source), opts)
	if err != nil {
		return nil, fmt.Errorf("migrate.New: source: %w", err)
	}
	target, err := odoo.Dial(ctx, endpoint(cfg.Target), opts)
	if err != nil {
		return nil, fmt.Errorf("migrate.New: target: %w", err)
	}

	db, err := state.Open(filepath.Join(stateHome, "state.db"))
	if err != nil {
		return nil, fmt.Errorf("migrate.New: open state db: %w", err)
	}

	return &Service{Config: cfg, Source: source, Target: target, db: db}, nil
}

// Close releases the state database.
func (s *Service) Close() error {
	return s.db.Close()
}

// DB exposes the state database for history queries.
func (s *Service) DB() *state.DB { return s.db }

func endpoint(inst config.InstanceConfig) odoo.Endpoint {
	return odoo.Endpoint{
		URL:      inst.URL,
		Database: inst.Database,
		Username: inst.Username,
		Password: inst.Password,
	}
}

func clientOptions(cfg *config.Config) odoo.Options {
	return odoo.Options{
		Timeout:            time.Duration(cfg.Options.TimeoutSeconds) * time.Second,
		InsecureSkipVerify: cfg.Options.InsecureSkipVerify,
	}
}

// ---------------------------------------------------------------------------
// Connection self-test
// ---------------------------------------------------------------------------

// CheckInstance authenticates against one instance and probes access to the
// website-related models. Per-model failures land in ModelErrors; only a
// failed connection is returned as an error.
func CheckInstance(ctx context.Context, inst config.InstanceConfig, opts odoo.Options) (*models.CheckResult, error) {
	client, err := odoo.Dial(ctx, odoo.Endpoint{
		URL: inst.URL, Database: inst.Database,
		Username: inst.Username, Password: inst.Password,
	}, opts)
	if err != nil {
		return nil, err
	}

	res := &models.CheckResult{
		URL:         client.URL(),
		Database:    client.Database(),
		UID:         client.UID(),
		ModelCounts: make(map[string]int),
		ModelErrors: make(map[string]string),
	}

	if v, err := client.Version(ctx); err == nil {
		res.ServerVersion = v
	} else {
		res.ServerVersion = "unknown"
	}

	for _, model := range CheckModels {
		n, err := client.SearchCount(ctx, model, nil)
		if err != nil {
			res.ModelErrors[model] = err.Error()
			continue
		}
		res.ModelCounts[model] = n
	}
	return res, nil
}

// Check runs the self-test against both configured instances.
func (s *Service) Check(ctx context.Context) (source, target *models.CheckResult, err error) {
	opts := clientOptions(s.Config)
	source, err = CheckInstance(ctx, s.Config.Source, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("check source: %w", err)
	}
	target, err = CheckInstance(ctx, s.Config.Target, opts)
	if err != nil {
		return source, nil, fmt.Errorf("check target: %w", err)
	}
	return source, target, nil
}

// ---------------------------------------------------------------------------
// Snapshot
// ---------------------------------------------------------------------------

// Snapshot fetches every enabled entity kind from the source. The five
// fetches run concurrently; a failed fetch leaves its kind empty and is
// reported in the returned error strings rather than aborting.
func (s *Service) Snapshot(ctx context.Context) (*models.Snapshot, []string) {
	snap := &models.Snapshot{}
	var mu sync.Mutex
	var fetchErrs []string

	fail := func(kind models.Kind, err error) {
		mu.Lock()
		defer mu.Unlock()
		slog.Error("snapshot fetch failed", "kind", kind, "err", err)
		fetchErrs = append(fetchErrs, fmt.Sprintf("%s: %v", titleKind(kind), err))
	}

	var g errgroup.Group
	opts := s.Config.Options

	if opts.MigrateWebsites {
		g.Go(func() error {
			recs, err := s.Source.SearchRead(ctx, "website", nil, models.WebsiteFields)
			if err != nil {
				fail(models.KindWebsites, err)
				return nil
			}
			websites := make([]models.Website, 0, len(recs))
			for _, r := range recs {
				websites = append(websites, models.WebsiteFromRecord(r))
			}
			mu.Lock()
			snap.Websites = websites
			mu.Unlock()
			return nil
		})
	}

	if opts.MigratePages {
		g.Go(func() error {
			pages, err := s.fetchPages(ctx)
			if err != nil {
				fail(models.KindPages, err)
				return nil
			}
			mu.Lock()
			snap.Pages = pages
			mu.Unlock()
			return nil
		})
	}

	if opts.MigrateMenus {
		g.Go(func() error {
			recs, err := s.Source.SearchRead(ctx, "website.menu", nil, models.MenuFields)
			if err != nil {
				fail(models.KindMenus, err)
				return nil
			}
			menus := make([]models.Menu, 0, len(recs))
			for _, r := range recs {
				menus = append(menus, models.MenuFromRecord(r))
			}
			mu.Lock()
			snap.Menus = menus
			mu.Unlock()
			return nil
		})
	}

	if opts.MigrateThemes {
		g.Go(func() error {
			domain := []any{
				[]any{"name", "like", "theme_"},
				[]any{"state", "=", "installed"},
			}
			recs, err := s.Source.SearchRead(ctx, "ir.module.module", domain, models.ThemeFields)
			if err != nil {
				fail(models.KindThemes, err)
				return nil
			}
			themes := make([]models.Theme, 0, len(recs))
			for _, r := range recs {
				themes = append(themes, models.ThemeFromRecord(r))
			}
			mu.Lock()
			snap.Themes = themes
			mu.Unlock()
			return nil
		})
	}

	if opts.MigrateAssets {
		g.Go(func() error {
			domain := []any{[]any{"mimetype", "in", models.AssetMimetypes}}
			recs, err := s.Source.SearchRead(ctx, "ir.attachment", domain, models.AssetFields)
			if err != nil {
				fail(models.KindAssets, err)
				return nil
			}
			assets := make([]models.Asset, 0, len(recs))
			for _, r := range recs {
				assets = append(assets, models.AssetFromRecord(r))
			}
			mu.Lock()
			snap.Assets = assets
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait() // fetch errors are collected, never propagated

	return snap, fetchErrs
}

// fetchPages gathers builder qweb views converted to page shape, then
// regular published pages that don't collide with them by name.
func (s *Service) fetchPages(ctx context.Context) ([]models.Page, error) {
	builderDomain := []any{
		[]any{"type", "=", "qweb"},
		[]any{"key", "like", "website.page%"},
	}
	builderRecs, err := s.Source.SearchRead(ctx, "ir.ui.view", builderDomain, models.BuilderViewFields)
	if err != nil {
		return nil, err
	}

	pages := make([]models.Page, 0, len(builderRecs))
	seen := make(map[string]bool, len(builderRecs))
	for _, r := range builderRecs {
		p := models.PageFromBuilderView(r)
		pages = append(pages, p)
		seen[p.Name] = true
	}

	regularDomain := []any{[]any{"is_published", "=", true}}
	regularRecs, err := s.Source.SearchRead(ctx, "website.page", regularDomain, models.PageFields)
	if err != nil {
		// Builder pages alone are still worth migrating.
		slog.Warn("could not retrieve regular website pages", "err", err)
		return pages, nil
	}
	for _, r := range regularRecs {
		p := models.PageFromRecord(r)
		if seen[p.Name] {
			continue
		}
		pages = append(pages, p)
	}
	return pages, nil
}

func titleKind(k models.Kind) string {
	switch k {
	case models.KindWebsites:
		return "Websites"
	case models.KindPages:
		return "Website pages"
	case models.KindMenus:
		return "Website menus"
	case models.KindThemes:
		return "Website themes"
	case models.KindAssets:
		return "Website assets"
	}
	return string(k)
}

// ---------------------------------------------------------------------------
// Run / Plan
// ---------------------------------------------------------------------------

// Run executes the migration and returns the run summary plus the rendered
// report. Set dryRun to plan only: existence checks run against the target
// but nothing is written to it.
func (s *Service) Run(ctx context.Context, dryRun bool) (*models.RunSummary, string, error) {
	summary := &models.RunSummary{
		StartedAt: time.Now().UTC(),
		SourceURL: s.Source.URL(),
		SourceDB:  s.Source.Database(),
		TargetURL: s.Target.URL(),
		TargetDB:  s.Target.Database(),
		DryRun:    dryRun,
		Options:   s.Config.Options,
		Stats:     models.NewStats(),
	}

	runID, err := s.db.CreateRun(summary.SourceURL, summary.SourceDB,
		summary.TargetURL, summary.TargetDB, dryRun, summary.StartedAt)
	if err != nil {
		return nil, "", err
	}
	summary.ID = runID

	snap, fetchErrs := s.Snapshot(ctx)
	summary.Stats.Errors = append(summary.Stats.Errors, fetchErrs...)

	rec := &recorder{svc: s, summary: summary, dry: dryRun}

	if s.Config.Options.MigrateWebsites {
		s.migrateWebsites(ctx, rec, snap.Websites)
	}
	if s.Config.Options.MigratePages {
		s.migratePages(ctx, rec, snap.Pages)
	}
	if s.Config.Options.MigrateMenus {
		s.migrateMenus(ctx, rec, snap.Menus)
	}
	if s.Config.Options.MigrateThemes {
		s.migrateThemes(ctx, rec, snap.Themes)
	}
	if s.Config.Options.MigrateAssets {
		s.migrateAssets(ctx, rec, snap.Assets)
	}

	summary.FinishedAt = time.Now().UTC()

	rendered := report.Render(summary)
	if dryRun {
		rendered = report.RenderPlan(summary.Results)
	}
	if err := s.db.FinishRun(runID, summary.FinishedAt, rendered); err != nil {
		return summary, rendered, err
	}
	return summary, rendered, nil
}
