// Package mcpcmd implements the `sitebridge mcp` command.
package mcpcmd

import (
	"github.com/spf13/cobra"

	"github.com/go-ports/sitebridge/cmd/sitebridge/shared"
	"github.com/go-ports/sitebridge/internal/mcp"
)

// Command implements `sitebridge mcp`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the mcp command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "mcp",
		Short: "Serve migration tools over stdio MCP",
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
	return mcp.Serve(cmd.Context(), cfg, c.ctx.StateHome())
}
