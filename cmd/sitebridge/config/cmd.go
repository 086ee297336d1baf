// Package configcmd implements the `sitebridge config` command group.
package configcmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/go-ports/sitebridge/cmd/sitebridge/shared"
	"github.com/go-ports/sitebridge/internal/config"
)

// Command implements `sitebridge config` and its subcommands.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the config command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "config",
		Short: "Show or manage sitebridge configuration",
		RunE:  c.show,
	}

	c.cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the resolved configuration (credentials redacted)",
			RunE:  c.show,
		},
		&cobra.Command{
			Use:   "init",
			Short: "Write a commented sample config file",
			RunE:  c.init,
		},
		&cobra.Command{
			Use:   "set-home <path>",
			Short: "Persist the state home directory in the global config",
			Args:  cobra.ExactArgs(1),
			RunE:  c.setHome,
		},
		&cobra.Command{
			Use:   "clear-home",
			Short: "Remove the persisted state home",
			RunE:  c.clearHome,
		},
	)

	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) show(cmd *cobra.Command, _ []string) error {
	cfg, err := c.ctx.LoadConfig()
	if err != nil {
		return err
	}

	// Never print credentials, even on request.
	masked := *cfg
	if masked.Source.Password != "" {
		masked.Source.Password = "[REDACTED]"
	}
	if masked.Target.Password != "" {
		masked.Target.Password = "[REDACTED]"
	}

	out, err := yaml.Marshal(&masked)
	if err != nil {
		return err
	}

	home, source := config.ResolveStateHome()
	fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", c.ctx.ConfigFile())
	fmt.Fprintf(cmd.OutOrStdout(), "State home: %s (from %s)\n\n", home, source)
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

func (c *Command) init(cmd *cobra.Command, _ []string) error {
	path := c.ctx.ConfigFile()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.MkdirAll(c.ctx.StateHome(), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(config.Sample), 0o600); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func (c *Command) setHome(cmd *cobra.Command, args []string) error {
	normalized, err := config.SetPersistedStateHome(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "State home set to %s\n", normalized)
	return nil
}

func (c *Command) clearHome(cmd *cobra.Command, _ []string) error {
	removed, err := config.ClearPersistedStateHome()
	if err != nil {
		return err
	}
	if removed {
		fmt.Fprintln(cmd.OutOrStdout(), "Persisted state home cleared.")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "No persisted state home was set.")
	}
	return nil
}
