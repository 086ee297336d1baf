// Package models defines the domain records the migrator copies and the
// result types it reports on.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-ports/sitebridge/internal/config"
	"github.com/go-ports/sitebridge/internal/odoo"
)

// Kind names one migratable entity kind.
type Kind string

// The five entity kinds, in migration order.
const (
	KindWebsites Kind = "websites"
	KindPages    Kind = "pages"
	KindMenus    Kind = "menus"
	KindThemes   Kind = "themes"
	KindAssets   Kind = "assets"
)

// Kinds lists all entity kinds in migration order.
var Kinds = []Kind{KindWebsites, KindPages, KindMenus, KindThemes, KindAssets}

// Many2One is Odoo's relational field shape: the wire value is either
// boolean false (unset) or a two-element [id, label] array.
type Many2One struct {
	ID    int
	Label string
	Set   bool
}

// ---------------------------------------------------------------------------
// Record field helpers
// ---------------------------------------------------------------------------

// Str reads a string field; Odoo sends boolean false for empty strings.
func Str(rec odoo.Record, key string) string {
	if s, ok := rec[key].(string); ok {
		return s
	}
	return ""
}

// Int reads an integer field.
func Int(rec odoo.Record, key string) int {
	if n, ok := rec[key].(int); ok {
		return n
	}
	return 0
}

// Bool reads a boolean field.
func Bool(rec odoo.Record, key string) bool {
	b, _ := rec[key].(bool)
	return b
}

// M2O reads a many2one field from its [id, label] wire shape.
func M2O(rec odoo.Record, key string) Many2One {
	pair, ok := rec[key].([]any)
	if !ok || len(pair) < 1 {
		return Many2One{}
	}
	id, ok := pair[0].(int)
	if !ok {
		return Many2One{}
	}
	label := ""
	if len(pair) > 1 {
		label, _ = pair[1].(string)
	}
	return Many2One{ID: id, Label: label, Set: true}
}

// ---------------------------------------------------------------------------
// Websites
// ---------------------------------------------------------------------------

// WebsiteFields is the field set fetched from the source `website` model.
var WebsiteFields = []string{
	"name", "domain", "company_id", "default_lang_id",
	"social_twitter", "social_facebook", "social_github",
	"social_linkedin", "social_youtube", "social_instagram",
	"google_analytics_key", "google_maps_api_key",
	"cdn_activated", "cdn_url", "cdn_filters",
	"favicon", "logo", "theme_id",
}

// Website is one record of the `website` model.
type Website struct {
	ID                 int
	Name               string
	Domain             string
	SocialTwitter      string
	SocialFacebook     string
	SocialGithub       string
	SocialLinkedin     string
	SocialYoutube      string
	SocialInstagram    string
	GoogleAnalyticsKey string
	GoogleMapsAPIKey   string
	CDNActivated       bool
	CDNURL             string
	CDNFilters         string
	ThemeID            Many2One
}

// WebsiteFromRecord maps a wire record onto a Website.
func WebsiteFromRecord(rec odoo.Record) Website {
	return Website{
		ID:                 Int(rec, "id"),
		Name:               Str(rec, "name"),
		Domain:             Str(rec, "domain"),
		SocialTwitter:      Str(rec, "social_twitter"),
		SocialFacebook:     Str(rec, "social_facebook"),
		SocialGithub:       Str(rec, "social_github"),
		SocialLinkedin:     Str(rec, "social_linkedin"),
		SocialYoutube:      Str(rec, "social_youtube"),
		SocialInstagram:    Str(rec, "social_instagram"),
		GoogleAnalyticsKey: Str(rec, "google_analytics_key"),
		GoogleMapsAPIKey:   Str(rec, "google_maps_api_key"),
		CDNActivated:       Bool(rec, "cdn_activated"),
		CDNURL:             Str(rec, "cdn_url"),
		CDNFilters:         Str(rec, "cdn_filters"),
		ThemeID:            M2O(rec, "theme_id"),
	}
}

// CreateValues returns the payload for `website.create` on the target.
func (w Website) CreateValues() map[string]any {
	return map[string]any{
		"name":                 w.Name,
		"domain":               w.Domain,
		"social_twitter":       w.SocialTwitter,
		"social_facebook":      w.SocialFacebook,
		"social_github":        w.SocialGithub,
		"social_linkedin":      w.SocialLinkedin,
		"social_youtube":       w.SocialYoutube,
		"social_instagram":     w.SocialInstagram,
		"google_analytics_key": w.GoogleAnalyticsKey,
		"google_maps_api_key":  w.GoogleMapsAPIKey,
		"cdn_activated":        w.CDNActivated,
		"cdn_url":              w.CDNURL,
		"cdn_filters":          w.CDNFilters,
	}
}

// SettingsValues returns the follow-up `website.write` payload applied to the
// freshly created target record.
func (w Website) SettingsValues() map[string]any {
	return map[string]any{
		"google_analytics_key": w.GoogleAnalyticsKey,
		"google_maps_api_key":  w.GoogleMapsAPIKey,
		"cdn_activated":        w.CDNActivated,
		"cdn_url":              w.CDNURL,
		"cdn_filters":          w.CDNFilters,
	}
}

// ---------------------------------------------------------------------------
// Pages
// ---------------------------------------------------------------------------

// PageFields is the field set fetched from the source `website.page` model.
var PageFields = []string{
	"name", "url", "is_published", "website_id",
	"view_id", "key", "arch", "arch_db",
}

// BuilderViewFields is the field set fetched for qweb builder views that
// stand in for pages.
var BuilderViewFields = []string{"name", "key", "arch_db", "arch", "id"}

// Page is one website page, either a regular `website.page` record or a
// website-builder qweb view converted into page shape.
type Page struct {
	ID          int
	Name        string
	URL         string
	IsPublished bool
	WebsiteID   Many2One
	ViewID      Many2One
	Key         string
	Arch        string
	ArchDB      string
	IsBuilder   bool
}

// PageFromRecord maps a `website.page` wire record onto a Page.
func PageFromRecord(rec odoo.Record) Page {
	return Page{
		ID:          Int(rec, "id"),
		Name:        Str(rec, "name"),
		URL:         Str(rec, "url"),
		IsPublished: Bool(rec, "is_published"),
		WebsiteID:   M2O(rec, "website_id"),
		ViewID:      M2O(rec, "view_id"),
		Key:         Str(rec, "key"),
		Arch:        Str(rec, "arch"),
		ArchDB:      Str(rec, "arch_db"),
	}
}

// PageFromBuilderView converts a qweb builder view record into page shape,
// deriving the URL from the view key when possible.
func PageFromBuilderView(rec odoo.Record) Page {
	name := Str(rec, "name")
	key := Str(rec, "key")

	url := "/" + strings.ReplaceAll(strings.ReplaceAll(strings.ToLower(name), " ", "-"), "_", "-")
	if rest, ok := strings.CutPrefix(key, "website.page."); ok {
		url = "/" + rest
	}

	return Page{
		ID:          Int(rec, "id"),
		Name:        name,
		URL:         url,
		IsPublished: true,
		ViewID:      Many2One{ID: Int(rec, "id"), Set: true},
		Key:         key,
		Arch:        Str(rec, "arch"),
		ArchDB:      Str(rec, "arch_db"),
		IsBuilder:   true,
	}
}

// HasContent reports whether the page carries any view architecture.
func (p Page) HasContent() bool {
	return p.Arch != "" || p.ArchDB != ""
}

// CreateValues returns the payload for `website.page.create`, synthesizing a
// minimal qweb arch when the source carried none.
func (p Page) CreateValues() map[string]any {
	values := map[string]any{
		"name":         p.Name,
		"url":          p.URL,
		"is_published": p.IsPublished,
	}
	switch {
	case p.ArchDB != "":
		values["arch_db"] = p.ArchDB
	case p.Arch != "":
		values["arch"] = p.Arch
	default:
		values["arch"] = SynthesizeArch(p.Name)
	}
	return values
}

// ViewValues returns the payload for the `ir.ui.view.create` that precedes a
// builder page create.
func (p Page) ViewValues() map[string]any {
	return map[string]any{
		"name":    p.Name,
		"type":    "qweb",
		"key":     p.Key,
		"arch":    p.Arch,
		"arch_db": p.ArchDB,
	}
}

// SynthesizeArch builds a minimal qweb template for a page with no content.
func SynthesizeArch(name string) string {
	safe := strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(name, " ", "_"), "-", "_"))
	return fmt.Sprintf(
		`<t t-name="page_%s"><div class="container"><h1>%s</h1><p>Content for %s</p></div></t>`,
		safe, name, name,
	)
}

// ---------------------------------------------------------------------------
// Menus
// ---------------------------------------------------------------------------

// MenuFields is the field set fetched from the source `website.menu` model.
var MenuFields = []string{
	"name", "url", "page_id", "parent_id", "sequence",
	"website_id", "is_visible", "is_mega_menu",
}

// Menu is one record of the `website.menu` model.
type Menu struct {
	ID         int
	Name       string
	URL        string
	PageID     Many2One
	ParentID   Many2One
	Sequence   int
	WebsiteID  Many2One
	IsVisible  bool
	IsMegaMenu bool
}

// MenuFromRecord maps a wire record onto a Menu.
func MenuFromRecord(rec odoo.Record) Menu {
	seq := 10
	if _, ok := rec["sequence"]; ok {
		seq = Int(rec, "sequence")
	}
	return Menu{
		ID:         Int(rec, "id"),
		Name:       Str(rec, "name"),
		URL:        Str(rec, "url"),
		PageID:     M2O(rec, "page_id"),
		ParentID:   M2O(rec, "parent_id"),
		Sequence:   seq,
		WebsiteID:  M2O(rec, "website_id"),
		IsVisible:  Bool(rec, "is_visible"),
		IsMegaMenu: Bool(rec, "is_mega_menu"),
	}
}

// CreateValues returns the payload for `website.menu.create`. Parent
// remapping is the caller's job; the source parent id never travels.
func (m Menu) CreateValues() map[string]any {
	return map[string]any{
		"name":         m.Name,
		"url":          m.URL,
		"sequence":     m.Sequence,
		"is_visible":   m.IsVisible,
		"is_mega_menu": m.IsMegaMenu,
	}
}

// SortMenusParentsFirst orders menus so every parent precedes its children,
// keeping the original order inside each depth level. Orphaned parents
// (parent not in the slice) are treated as roots.
func SortMenusParentsFirst(menus []Menu) []Menu {
	byID := make(map[int]Menu, len(menus))
	for _, m := range menus {
		byID[m.ID] = m
	}
	depth := func(m Menu) int {
		d := 0
		for m.ParentID.Set {
			parent, ok := byID[m.ParentID.ID]
			if !ok || d > len(menus) { // orphan or cycle
				break
			}
			d++
			m = parent
		}
		return d
	}
	out := make([]Menu, 0, len(menus))
	for d := 0; len(out) < len(menus) && d <= len(menus); d++ {
		for _, m := range menus {
			if depth(m) == d {
				out = append(out, m)
			}
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Themes
// ---------------------------------------------------------------------------

// ThemeFields is the field set fetched from the source `ir.module.module` model.
var ThemeFields = []string{"name", "shortdesc", "description", "state"}

// Theme is one installed theme module on the source instance.
type Theme struct {
	ID        int
	Name      string
	ShortDesc string
	State     string
}

// ThemeFromRecord maps a wire record onto a Theme.
func ThemeFromRecord(rec odoo.Record) Theme {
	return Theme{
		ID:        Int(rec, "id"),
		Name:      Str(rec, "name"),
		ShortDesc: Str(rec, "shortdesc"),
		State:     Str(rec, "state"),
	}
}

// ---------------------------------------------------------------------------
// Assets
// ---------------------------------------------------------------------------

// AssetFields is the field set fetched from the source `ir.attachment` model.
var AssetFields = []string{"name", "datas", "mimetype", "url", "res_model", "res_id"}

// AssetMimetypes lists the attachment mimetypes considered website assets.
var AssetMimetypes = []any{
	"text/css", "application/javascript",
	"image/png", "image/jpeg", "image/gif", "image/svg+xml",
}

// Asset is one record of the `ir.attachment` model. Datas stays in the
// base64 form Odoo puts on the wire.
type Asset struct {
	ID       int
	Name     string
	Datas    string
	Mimetype string
	URL      string
	ResModel string
	ResID    int
}

// AssetFromRecord maps a wire record onto an Asset.
func AssetFromRecord(rec odoo.Record) Asset {
	datas := Str(rec, "datas")
	if b, ok := rec["datas"].([]byte); ok {
		// Some servers type the payload as base64 rather than string.
		datas = string(b)
	}
	return Asset{
		ID:       Int(rec, "id"),
		Name:     Str(rec, "name"),
		Datas:    datas,
		Mimetype: Str(rec, "mimetype"),
		URL:      Str(rec, "url"),
		ResModel: Str(rec, "res_model"),
		ResID:    Int(rec, "res_id"),
	}
}

// CreateValues returns the payload for `ir.attachment.create`.
func (a Asset) CreateValues() map[string]any {
	return map[string]any{
		"name":     a.Name,
		"mimetype": a.Mimetype,
		"datas":    a.Datas,
		"url":      a.URL,
	}
}

// ---------------------------------------------------------------------------
// Snapshot
// ---------------------------------------------------------------------------

// Snapshot holds everything fetched from the source in one pass.
type Snapshot struct {
	Websites []Website
	Pages    []Page
	Menus    []Menu
	Themes   []Theme
	Assets   []Asset
}

// Count returns the number of records of one kind in the snapshot.
func (s *Snapshot) Count(kind Kind) int {
	switch kind {
	case KindWebsites:
		return len(s.Websites)
	case KindPages:
		return len(s.Pages)
	case KindMenus:
		return len(s.Menus)
	case KindThemes:
		return len(s.Themes)
	case KindAssets:
		return len(s.Assets)
	}
	return 0
}

// Total returns the number of records across all kinds.
func (s *Snapshot) Total() int {
	n := 0
	for _, k := range Kinds {
		n += s.Count(k)
	}
	return n
}

// ---------------------------------------------------------------------------
// Run results
// ---------------------------------------------------------------------------

// Action classifies the outcome for one record.
type Action string

// Record outcomes. ActionCreate is the planned form used by dry runs.
const (
	ActionCreated Action = "created"
	ActionSkipped Action = "skipped"
	ActionFailed  Action = "failed"
	ActionCreate  Action = "create"
)

// RecordResult is the outcome for one migrated (or planned) record.
type RecordResult struct {
	Kind   Kind
	Name   string
	Key    string // existence-check key: URL for pages, name elsewhere
	Action Action
	Err    string
}

// Stats aggregates per-kind migrated counts and the error list, mirroring
// the migration report layout.
type Stats struct {
	Migrated map[Kind]int
	Errors   []string
}

// NewStats returns a Stats with all counters zeroed.
func NewStats() *Stats {
	m := make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		m[k] = 0
	}
	return &Stats{Migrated: m}
}

// RunSummary describes one migration run end to end.
type RunSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	SourceURL  string
	SourceDB   string
	TargetURL  string
	TargetDB   string
	DryRun     bool
	Options    config.OptionsConfig
	Stats      *Stats
	Results    []RecordResult
}

// CheckResult is the outcome of the connection self-test against one instance.
type CheckResult struct {
	URL           string
	Database      string
	UID           int
	ServerVersion string
	ModelCounts   map[string]int
	ModelErrors   map[string]string
}
