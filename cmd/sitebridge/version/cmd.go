// Package versioncmd implements the `sitebridge version` command.
package versioncmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/sitebridge/internal/buildinfo"
)

// Command implements `sitebridge version`.
type Command struct {
	cmd *cobra.Command
}

// New creates the version command.
func New() *Command {
	c := &Command{}
	c.cmd = &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sitebridge %s (commit %s, built %s)\n",
				buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildDate)
		},
	}
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }
