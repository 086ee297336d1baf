// Package runcmd implements the `sitebridge run` command.
package runcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/sitebridge/cmd/sitebridge/shared"
	"github.com/go-ports/sitebridge/internal/migrate"
	"github.com/go-ports/sitebridge/internal/models"
	"github.com/go-ports/sitebridge/internal/state"
)

// Command implements `sitebridge run`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	noSkipExisting bool
	noPages        bool
	noMenus        bool
	noThemes       bool
	noAssets       bool
	noWebsites     bool
}

// New creates the run command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "run",
		Short: "Execute the website migration",
		RunE:  c.run,
	}

	f := c.cmd.Flags()
	f.BoolVar(&c.noSkipExisting, "no-skip-existing", false, "Do not skip records that already exist on the target")
	f.BoolVar(&c.noWebsites, "no-websites", false, "Skip website migration")
	f.BoolVar(&c.noPages, "no-pages", false, "Skip page migration")
	f.BoolVar(&c.noMenus, "no-menus", false, "Skip menu migration")
	f.BoolVar(&c.noThemes, "no-themes", false, "Skip theme migration")
	f.BoolVar(&c.noAssets, "no-assets", false, "Skip asset migration")

	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, _ []string) error {
	cfg, err := c.ctx.LoadConfig()
	if err != nil {
		return err
	}

	// Flags narrow the config, never widen it.
	if c.noSkipExisting {
		cfg.Options.SkipExisting = false
	}
	if c.noWebsites {
		cfg.Options.MigrateWebsites = false
	}
	if c.noPages {
		cfg.Options.MigratePages = false
	}
	if c.noMenus {
		cfg.Options.MigrateMenus = false
	}
	if c.noThemes {
		cfg.Options.MigrateThemes = false
	}
	if c.noAssets {
		cfg.Options.MigrateAssets = false
	}

	svc, err := migrate.New(cmd.Context(), cfg, c.ctx.StateHome())
	if err != nil {
		return err
	}
	defer svc.Close()

	summary, rendered, err := svc.Run(cmd.Context(), false)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), rendered)
	fmt.Fprintf(cmd.OutOrStdout(), "Run recorded as %s\n", state.ShortID(summary.ID))

	if n := countFailed(summary); n > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Migration finished with %d failed records.\n", n)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Migration completed successfully!")
	}
	return nil
}

func countFailed(summary *models.RunSummary) int {
	n := 0
	for _, r := range summary.Results {
		if r.Action == models.ActionFailed {
			n++
		}
	}
	return n
}
