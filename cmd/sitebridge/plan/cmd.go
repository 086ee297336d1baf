// Package plancmd implements the `sitebridge plan` command.
package plancmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/sitebridge/cmd/sitebridge/shared"
	"github.com/go-ports/sitebridge/internal/migrate"
	"github.com/go-ports/sitebridge/internal/redaction"
	"github.com/go-ports/sitebridge/internal/state"
)

// Command implements `sitebridge plan`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the plan command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "plan",
		Short: "Dry-run the migration: show what would be created or skipped",
		RunE:  c.run,
	}
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, _ []string) error {
	cfg, err := c.ctx.LoadConfig()
	if err != nil {
		return err
	}

	svc, err := migrate.New(cmd.Context(), cfg, c.ctx.StateHome())
	if err != nil {
		return err
	}
	defer svc.Close()

	summary, rendered, err := svc.Run(cmd.Context(), true)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), rendered)
	for _, e := range summary.Stats.Errors {
		fmt.Fprintf(cmd.OutOrStdout(), "Warning: %s\n", redaction.Mask(e))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Plan recorded as run %s\n", state.ShortID(summary.ID))
	return nil
}
