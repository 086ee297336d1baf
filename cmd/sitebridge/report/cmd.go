// Package reportcmd implements the `sitebridge report` command.
package reportcmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/go-ports/sitebridge/cmd/sitebridge/shared"
	"github.com/go-ports/sitebridge/internal/state"
)

// Command implements `sitebridge report`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the report command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "report [run-id]",
		Short: "Print the stored report for a run (default: latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  c.run,
	}
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, args []string) error {
	db, err := state.Open(filepath.Join(c.ctx.StateHome(), "state.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	id := ""
	if len(args) == 1 {
		id = args[0]
	}

	run, err := db.GetRun(id)
	if err != nil {
		return err
	}
	if run.Report == "" {
		return fmt.Errorf("run %s has no stored report (still in progress?)", state.ShortID(run.ID))
	}

	fmt.Fprint(cmd.OutOrStdout(), run.Report)
	return nil
}
