// Package report renders migration runs, plans, and connection checks as
// plain text for the terminal and the run history.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-ports/sitebridge/internal/models"
	"github.com/go-ports/sitebridge/internal/redaction"
	"github.com/go-ports/sitebridge/internal/state"
)

const timeLayout = "2006-01-02 15:04:05"

// Render produces the migration report for a finished run.
func Render(run *models.RunSummary) string {
	var b strings.Builder

	title := "Website Migration Report"
	if run.DryRun {
		title = "Website Migration Plan (dry run)"
	}
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", run.FinishedAt.UTC().Format(timeLayout))

	fmt.Fprintf(&b, "Source: %s (%s)\n", run.SourceURL, run.SourceDB)
	fmt.Fprintf(&b, "Target: %s (%s)\n\n", run.TargetURL, run.TargetDB)

	b.WriteString("Migration Statistics:\n")
	for _, kind := range models.Kinds {
		fmt.Fprintf(&b, "- %s migrated: %d\n", titleCase(string(kind)), run.Stats.Migrated[kind])
	}
	b.WriteString("\n")

	b.WriteString("Migration Options Used:\n")
	fmt.Fprintf(&b, "- Skip existing: %t\n", run.Options.SkipExisting)
	fmt.Fprintf(&b, "- Migrate websites: %t\n", run.Options.MigrateWebsites)
	fmt.Fprintf(&b, "- Migrate pages: %t\n", run.Options.MigratePages)
	fmt.Fprintf(&b, "- Migrate menus: %t\n", run.Options.MigrateMenus)
	fmt.Fprintf(&b, "- Migrate themes: %t\n", run.Options.MigrateThemes)
	fmt.Fprintf(&b, "- Migrate assets: %t\n", run.Options.MigrateAssets)
	b.WriteString("\n")

	fmt.Fprintf(&b, "Errors (%d):\n", len(run.Stats.Errors))
	if len(run.Stats.Errors) == 0 {
		b.WriteString("- No errors encountered\n")
	}
	for _, e := range run.Stats.Errors {
		fmt.Fprintf(&b, "- %s\n", redaction.Mask(e))
	}

	return b.String()
}

// RenderPlan lists the planned per-record actions of a dry run, grouped by
// kind, followed by create/skip totals.
func RenderPlan(results []models.RecordResult) string {
	var b strings.Builder

	byKind := make(map[models.Kind][]models.RecordResult)
	for _, r := range results {
		byKind[r.Kind] = append(byKind[r.Kind], r)
	}

	creates, skips := 0, 0
	for _, kind := range models.Kinds {
		rs := byKind[kind]
		if len(rs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s:\n", kind)
		for _, r := range rs {
			label := r.Name
			if r.Key != "" && r.Key != r.Name {
				label = fmt.Sprintf("%s (%s)", r.Key, r.Name)
			}
			fmt.Fprintf(&b, "  %-7s %s\n", r.Action, label)
			switch r.Action {
			case models.ActionCreate:
				creates++
			case models.ActionSkipped:
				skips++
			}
		}
	}

	fmt.Fprintf(&b, "\nTotals: %d to create, %d to skip\n", creates, skips)
	return b.String()
}

// RenderCheck prints the connection self-test outcome for one instance.
func RenderCheck(label string, res *models.CheckResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s (%s)\n", label, res.URL, res.Database)
	fmt.Fprintf(&b, "  server version: %s\n", res.ServerVersion)
	fmt.Fprintf(&b, "  user id: %d\n", res.UID)

	modelNames := make([]string, 0, len(res.ModelCounts)+len(res.ModelErrors))
	for m := range res.ModelCounts {
		modelNames = append(modelNames, m)
	}
	for m := range res.ModelErrors {
		modelNames = append(modelNames, m)
	}
	sort.Strings(modelNames)

	for _, m := range modelNames {
		if msg, bad := res.ModelErrors[m]; bad {
			fmt.Fprintf(&b, "  %-18s not accessible: %s\n", m, redaction.Mask(msg))
			continue
		}
		fmt.Fprintf(&b, "  %-18s ok (%d records)\n", m, res.ModelCounts[m])
	}
	return b.String()
}

// RenderHistory lists past runs, newest first.
func RenderHistory(runs []*state.Run, counts map[string]map[models.Action]int) string {
	if len(runs) == 0 {
		return "No migration runs recorded.\n"
	}

	var b strings.Builder
	for _, r := range runs {
		mode := "run"
		if r.DryRun {
			mode = "plan"
		}
		line := fmt.Sprintf("%s  %s  %-4s  %s -> %s",
			state.ShortID(r.ID),
			r.StartedAt.UTC().Format(timeLayout),
			mode,
			r.SourceURL, r.TargetURL,
		)
		if c := counts[r.ID]; c != nil {
			line += fmt.Sprintf("  (%d created, %d skipped, %d failed)",
				c[models.ActionCreated]+c[models.ActionCreate],
				c[models.ActionSkipped], c[models.ActionFailed])
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// titleCase upper-cases the first letter of a kind name for report lines.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
