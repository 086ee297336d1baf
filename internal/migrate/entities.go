package migrate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-ports/sitebridge/internal/models"
)

// recorder accumulates per-record outcomes into the run summary and the
// state database. A failure to persist an outcome is logged, never fatal;
// the migration itself takes precedence over its bookkeeping.
type recorder struct {
	svc     *Service
	summary *models.RunSummary
	dry     bool
	seq     int
}

func (r *recorder) record(res models.RecordResult) {
	r.seq++
	r.summary.Results = append(r.summary.Results, res)

	switch res.Action {
	case models.ActionCreated:
		r.summary.Stats.Migrated[res.Kind]++
	case models.ActionFailed:
		r.summary.Stats.Errors = append(r.summary.Stats.Errors, res.Err)
	}

	if err := r.svc.db.AddResult(r.summary.ID, r.seq, res); err != nil {
		slog.Warn("could not persist record result", "err", err)
	}
}

// noteError appends a non-record error (settings write, carry-over) to the
// run's error list without counting a record as failed.
func (r *recorder) noteError(msg string) {
	r.summary.Stats.Errors = append(r.summary.Stats.Errors, msg)
}

func (r *recorder) mapID(kind models.Kind, sourceID, targetID int) {
	if err := r.svc.db.AddMapping(r.summary.ID, kind, sourceID, targetID); err != nil {
		slog.Warn("could not persist id mapping", "err", err)
	}
}

// planned is the action reported when a record would be created.
func (r *recorder) planned() models.Action {
	if r.dry {
		return models.ActionCreate
	}
	return models.ActionCreated
}

func eq(field string, value any) []any {
	return []any{[]any{field, "=", value}}
}

// ---------------------------------------------------------------------------
// Websites
// ---------------------------------------------------------------------------

func (s *Service) migrateWebsites(ctx context.Context, rec *recorder, websites []models.Website) {
	slog.Info("starting websites migration", "count", len(websites))

	for _, w := range websites {
		res := models.RecordResult{Kind: models.KindWebsites, Name: w.Name, Key: w.Name}

		if s.Config.Options.SkipExisting {
			exists, err := s.Target.Exists(ctx, "website", eq("name", w.Name))
			if err != nil {
				res.Action = models.ActionFailed
				res.Err = fmt.Sprintf("Error migrating website %s: %v", w.Name, err)
				rec.record(res)
				continue
			}
			if exists {
				slog.Info("website already exists, skipping", "name", w.Name)
				res.Action = models.ActionSkipped
				rec.record(res)
				continue
			}
		}

		if rec.dry {
			res.Action = rec.planned()
			rec.record(res)
			continue
		}

		newID, err := s.Target.Create(ctx, "website", w.CreateValues())
		if err != nil {
			res.Action = models.ActionFailed
			res.Err = fmt.Sprintf("Error migrating website %s: %v", w.Name, err)
			rec.record(res)
			continue
		}

		slog.Info("migrated website", "name", w.Name, "id", newID)
		res.Action = models.ActionCreated
		rec.record(res)
		rec.mapID(models.KindWebsites, w.ID, newID)

		s.migrateWebsiteSettings(ctx, rec, w, newID)
	}
}

// migrateWebsiteSettings applies the theme and the configuration settings to
// a freshly created website. The theme write is best-effort; a settings
// write failure lands in the error list without failing the record.
func (s *Service) migrateWebsiteSettings(ctx context.Context, rec *recorder, w models.Website, newID int) {
	if w.ThemeID.Set {
		if err := s.Target.Write(ctx, "website", []int{newID}, map[string]any{"theme_id": w.ThemeID.ID}); err != nil {
			slog.Warn("could not apply theme to website", "name", w.Name, "err", err)
		}
	}

	if err := s.Target.Write(ctx, "website", []int{newID}, w.SettingsValues()); err != nil {
		rec.noteError(fmt.Sprintf("Error migrating settings for website %s: %v", w.Name, err))
	}
}

// ---------------------------------------------------------------------------
// Pages
// ---------------------------------------------------------------------------

func (s *Service) migratePages(ctx context.Context, rec *recorder, pages []models.Page) {
	slog.Info("starting website pages migration", "count", len(pages))

	for _, p := range pages {
		res := models.RecordResult{Kind: models.KindPages, Name: p.Name, Key: p.URL}

		if s.Config.Options.SkipExisting {
			exists, err := s.Target.Exists(ctx, "website.page", eq("url", p.URL))
			if err != nil {
				res.Action = models.ActionFailed
				res.Err = fmt.Sprintf("Error migrating page %s: %v", p.Name, err)
				rec.record(res)
				continue
			}
			if exists {
				slog.Info("page already exists, skipping", "name", p.Name, "url", p.URL)
				res.Action = models.ActionSkipped
				rec.record(res)
				continue
			}
		}

		if rec.dry {
			res.Action = rec.planned()
			rec.record(res)
			continue
		}

		newID, err := s.createPage(ctx, p)
		if err != nil {
			res.Action = models.ActionFailed
			res.Err = fmt.Sprintf("Error migrating page %s: %v", p.Name, err)
			rec.record(res)
			continue
		}

		slog.Info("migrated page", "name", p.Name, "id", newID)
		res.Action = models.ActionCreated
		rec.record(res)
		rec.mapID(models.KindPages, p.ID, newID)

		// Carry-over passes are best-effort: the page exists either way.
		if !p.IsBuilder {
			if p.ViewID.Set {
				s.migratePageView(ctx, p.ViewID.ID, newID)
			}
			s.migratePageContent(ctx, p.ID, newID)
		}
		s.migrateBuilderContent(ctx, p.Name, newID)
	}
}

// createPage creates the page record on the target. Builder pages with
// content get their qweb view created first and the page pointed at it.
func (s *Service) createPage(ctx context.Context, p models.Page) (int, error) {
	if p.IsBuilder && p.HasContent() {
		viewID, err := s.Target.Create(ctx, "ir.ui.view", p.ViewValues())
		if err != nil {
			return 0, err
		}
		return s.Target.Create(ctx, "website.page", map[string]any{
			"name":         p.Name,
			"url":          p.URL,
			"is_published": p.IsPublished,
			"view_id":      viewID,
		})
	}
	return s.Target.Create(ctx, "website.page", p.CreateValues())
}

// migratePageView copies the source view a regular page referenced and
// points the new page at the copy.
func (s *Service) migratePageView(ctx context.Context, viewID, newPageID int) {
	views, err := s.Source.Read(ctx, "ir.ui.view", []int{viewID},
		[]string{"name", "type", "arch", "arch_fs", "key", "inherit_id"})
	if err != nil || len(views) == 0 {
		slog.Warn("could not migrate view for page", "view_id", viewID, "err", err)
		return
	}
	v := views[0]

	newViewID, err := s.Target.Create(ctx, "ir.ui.view", map[string]any{
		"name": models.Str(v, "name"),
		"type": models.Str(v, "type"),
		"arch": models.Str(v, "arch"),
		"key":  models.Str(v, "key"),
	})
	if err != nil {
		slog.Warn("could not migrate view for page", "view_id", viewID, "err", err)
		return
	}

	if err := s.Target.Write(ctx, "website.page", []int{newPageID}, map[string]any{"view_id": newViewID}); err != nil {
		slog.Warn("could not attach migrated view to page", "page_id", newPageID, "err", err)
	}
}

// migratePageContent re-reads the source page arch and writes it onto the
// new page.
func (s *Service) migratePageContent(ctx context.Context, pageID, newPageID int) {
	contents, err := s.Source.Read(ctx, "website.page", []int{pageID}, []string{"arch_db", "arch"})
	if err != nil || len(contents) == 0 {
		slog.Warn("could not migrate content for page", "page_id", pageID, "err", err)
		return
	}

	update := archUpdate(contents[0])
	if len(update) == 0 {
		return
	}
	if err := s.Target.Write(ctx, "website.page", []int{newPageID}, update); err != nil {
		slog.Warn("could not migrate content for page", "page_id", pageID, "err", err)
	}
}

// migrateBuilderContent looks for a source qweb view named after the page
// and writes its arch onto the new page.
func (s *Service) migrateBuilderContent(ctx context.Context, pageName string, newPageID int) {
	domain := []any{
		[]any{"type", "=", "qweb"},
		[]any{"name", "=", pageName},
	}
	views, err := s.Source.SearchRead(ctx, "ir.ui.view", domain, []string{"arch_db", "arch"})
	if err != nil || len(views) == 0 {
		if err != nil {
			slog.Warn("could not migrate builder content", "page", pageName, "err", err)
		}
		return
	}

	update := archUpdate(views[0])
	if len(update) == 0 {
		return
	}
	if err := s.Target.Write(ctx, "website.page", []int{newPageID}, update); err != nil {
		slog.Warn("could not migrate builder content", "page", pageName, "err", err)
	}
}

func archUpdate(rec map[string]any) map[string]any {
	if arch := models.Str(rec, "arch_db"); arch != "" {
		return map[string]any{"arch_db": arch}
	}
	if arch := models.Str(rec, "arch"); arch != "" {
		return map[string]any{"arch": arch}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Menus
// ---------------------------------------------------------------------------

func (s *Service) migrateMenus(ctx context.Context, rec *recorder, menus []models.Menu) {
	slog.Info("starting website menus migration", "count", len(menus))

	// Parents first, so the id map is warm when children need remapping.
	menus = models.SortMenusParentsFirst(menus)
	idMap := make(map[int]int, len(menus))

	for _, m := range menus {
		res := models.RecordResult{Kind: models.KindMenus, Name: m.Name, Key: m.URL}

		if s.Config.Options.SkipExisting {
			domain := []any{
				[]any{"name", "=", m.Name},
				[]any{"url", "=", m.URL},
			}
			exists, err := s.Target.Exists(ctx, "website.menu", domain)
			if err != nil {
				res.Action = models.ActionFailed
				res.Err = fmt.Sprintf("Error migrating menu %s: %v", m.Name, err)
				rec.record(res)
				continue
			}
			if exists {
				slog.Info("menu already exists, skipping", "name", m.Name)
				res.Action = models.ActionSkipped
				rec.record(res)
				continue
			}
		}

		if rec.dry {
			res.Action = rec.planned()
			rec.record(res)
			continue
		}

		values := m.CreateValues()
		if m.ParentID.Set {
			if newParent, ok := idMap[m.ParentID.ID]; ok {
				values["parent_id"] = newParent
			}
		}

		newID, err := s.Target.Create(ctx, "website.menu", values)
		if err != nil {
			res.Action = models.ActionFailed
			res.Err = fmt.Sprintf("Error migrating menu %s: %v", m.Name, err)
			rec.record(res)
			continue
		}

		idMap[m.ID] = newID
		slog.Info("migrated menu", "name", m.Name, "id", newID)
		res.Action = models.ActionCreated
		rec.record(res)
		rec.mapID(models.KindMenus, m.ID, newID)
	}
}

// ---------------------------------------------------------------------------
// Themes
// ---------------------------------------------------------------------------

func (s *Service) migrateThemes(ctx context.Context, rec *recorder, themes []models.Theme) {
	slog.Info("starting website themes migration", "count", len(themes))

	for _, t := range themes {
		res := models.RecordResult{Kind: models.KindThemes, Name: t.Name, Key: t.Name}

		if s.Config.Options.SkipExisting {
			existing, err := s.Target.SearchRead(ctx, "ir.module.module", eq("name", t.Name), []string{"state"})
			if err != nil {
				res.Action = models.ActionFailed
				res.Err = fmt.Sprintf("Error installing theme %s: %v", t.Name, err)
				rec.record(res)
				continue
			}
			if len(existing) > 0 && models.Str(existing[0], "state") == "installed" {
				slog.Info("theme already installed, skipping", "name", t.Name)
				res.Action = models.ActionSkipped
				rec.record(res)
				continue
			}
		}

		if rec.dry {
			res.Action = rec.planned()
			rec.record(res)
			continue
		}

		moduleIDs, err := s.Target.Search(ctx, "ir.module.module", eq("name", t.Name))
		if err != nil {
			res.Action = models.ActionFailed
			res.Err = fmt.Sprintf("Error installing theme %s: %v", t.Name, err)
			rec.record(res)
			continue
		}
		if len(moduleIDs) == 0 {
			slog.Warn("theme not found in target instance", "name", t.Name)
			res.Action = models.ActionSkipped
			res.Err = "not found in target instance"
			rec.record(res)
			continue
		}

		if _, err := s.Target.ExecuteKw(ctx, "ir.module.module", "button_immediate_install",
			[]any{intsAsAny(moduleIDs)}, nil); err != nil {
			res.Action = models.ActionFailed
			res.Err = fmt.Sprintf("Error installing theme %s: %v", t.Name, err)
			rec.record(res)
			continue
		}

		slog.Info("installed theme", "name", t.Name)
		res.Action = models.ActionCreated
		rec.record(res)
	}
}

func intsAsAny(ids []int) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// ---------------------------------------------------------------------------
// Assets
// ---------------------------------------------------------------------------

func (s *Service) migrateAssets(ctx context.Context, rec *recorder, assets []models.Asset) {
	slog.Info("starting website assets migration", "count", len(assets))

	for _, a := range assets {
		res := models.RecordResult{Kind: models.KindAssets, Name: a.Name, Key: a.Name}

		if s.Config.Options.SkipExisting {
			exists, err := s.Target.Exists(ctx, "ir.attachment", eq("name", a.Name))
			if err != nil {
				res.Action = models.ActionFailed
				res.Err = fmt.Sprintf("Error migrating asset %s: %v", a.Name, err)
				rec.record(res)
				continue
			}
			if exists {
				slog.Info("asset already exists, skipping", "name", a.Name)
				res.Action = models.ActionSkipped
				rec.record(res)
				continue
			}
		}

		if rec.dry {
			res.Action = rec.planned()
			rec.record(res)
			continue
		}

		newID, err := s.Target.Create(ctx, "ir.attachment", a.CreateValues())
		if err != nil {
			res.Action = models.ActionFailed
			res.Err = fmt.Sprintf("Error migrating asset %s: %v", a.Name, err)
			rec.record(res)
			continue
		}

		slog.Info("migrated asset", "name", a.Name, "id", newID)
		res.Action = models.ActionCreated
		rec.record(res)
		rec.mapID(models.KindAssets, a.ID, newID)
	}
}
