// Package historycmd implements the `sitebridge history` command.
package historycmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/go-ports/sitebridge/cmd/sitebridge/shared"
	"github.com/go-ports/sitebridge/internal/models"
	"github.com/go-ports/sitebridge/internal/report"
	"github.com/go-ports/sitebridge/internal/state"
)

// Command implements `sitebridge history`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	limit int
}

// New creates the history command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "history",
		Short: "List past migration runs",
		RunE:  c.run,
	}
	c.cmd.Flags().IntVarP(&c.limit, "limit", "n", 20, "Max runs to list")
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, _ []string) error {
	db, err := state.Open(filepath.Join(c.ctx.StateHome(), "state.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(c.limit)
	if err != nil {
		return err
	}

	counts := make(map[string]map[models.Action]int, len(runs))
	for _, r := range runs {
		cnt, err := db.CountResults(r.ID)
		if err != nil {
			return err
		}
		counts[r.ID] = cnt
	}

	fmt.Fprint(cmd.OutOrStdout(), report.RenderHistory(runs, counts))
	return nil
}
