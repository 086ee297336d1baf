// Package rootcmd wires the root cobra.Command for the sitebridge CLI binary.
package rootcmd

import (
	"github.com/spf13/cobra"

	checkcmd "github.com/go-ports/sitebridge/cmd/sitebridge/check"
	configcmd "github.com/go-ports/sitebridge/cmd/sitebridge/config"
	historycmd "github.com/go-ports/sitebridge/cmd/sitebridge/history"
	inspectcmd "github.com/go-ports/sitebridge/cmd/sitebridge/inspect"
	mcpcmd "github.com/go-ports/sitebridge/cmd/sitebridge/mcp"
	plancmd "github.com/go-ports/sitebridge/cmd/sitebridge/plan"
	reportcmd "github.com/go-ports/sitebridge/cmd/sitebridge/report"
	runcmd "github.com/go-ports/sitebridge/cmd/sitebridge/run"
	"github.com/go-ports/sitebridge/cmd/sitebridge/shared"
	versioncmd "github.com/go-ports/sitebridge/cmd/sitebridge/version"
)

// New creates and returns the root cobra.Command for the sitebridge CLI.
func New() *cobra.Command {
	ctx := &shared.Context{}

	root := &cobra.Command{
		Use:           "sitebridge",
		Short:         "Copy website configuration between Odoo instances",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&ctx.ConfigPath, "config", "c", "",
		"Config file path (default: <state home>/config.yaml)")
	pf.StringVar(&ctx.Home, "home", "",
		"Override state home directory (default: $SITEBRIDGE_HOME env → persisted config → ~/.sitebridge)")
	pf.StringVar(&ctx.SourcePassword, "source-password", "",
		"Source instance password (overrides config file)")
	pf.StringVar(&ctx.TargetPassword, "target-password", "",
		"Target instance password (overrides config file)")

	root.AddCommand(
		checkcmd.New(ctx).Cmd(),
		plancmd.New(ctx).Cmd(),
		runcmd.New(ctx).Cmd(),
		historycmd.New(ctx).Cmd(),
		reportcmd.New(ctx).Cmd(),
		inspectcmd.New(ctx).Cmd(),
		configcmd.New(ctx).Cmd(),
		mcpcmd.New(ctx).Cmd(),
		versioncmd.New().Cmd(),
	)

	return root
}
