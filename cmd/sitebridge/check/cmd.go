// Package checkcmd implements the `sitebridge check` command.
package checkcmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-ports/sitebridge/cmd/sitebridge/shared"
	"github.com/go-ports/sitebridge/internal/config"
	"github.com/go-ports/sitebridge/internal/migrate"
	"github.com/go-ports/sitebridge/internal/odoo"
	"github.com/go-ports/sitebridge/internal/redaction"
	"github.com/go-ports/sitebridge/internal/report"
)

// Command implements `sitebridge check`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the check command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "check",
		Short: "Test connectivity and model access on both instances",
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
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts := odoo.Options{
		Timeout:            time.Duration(cfg.Options.TimeoutSeconds) * time.Second,
		InsecureSkipVerify: cfg.Options.InsecureSkipVerify,
	}

	sides := []struct {
		label string
		inst  config.InstanceConfig
	}{
		{"Source", cfg.Source},
		{"Target", cfg.Target},
	}

	failed := false
	for _, side := range sides {
		res, err := migrate.CheckInstance(cmd.Context(), side.inst, opts)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n  connection failed: %s\n",
				side.label, side.inst.URL, side.inst.Database, redaction.Mask(err.Error()))
			failed = true
			continue
		}
		fmt.Fprint(cmd.OutOrStdout(), report.RenderCheck(side.label, res))
	}

	if failed {
		return fmt.Errorf("connection check failed")
	}
	return nil
}
