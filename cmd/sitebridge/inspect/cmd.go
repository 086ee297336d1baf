// Package inspectcmd implements the `sitebridge inspect` command.
package inspectcmd

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-ports/sitebridge/cmd/sitebridge/shared"
	"github.com/go-ports/sitebridge/internal/config"
	"github.com/go-ports/sitebridge/internal/odoo"
	"github.com/go-ports/sitebridge/internal/query"
)

// Command implements `sitebridge inspect`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	model  string
	domain string
	fields string
	from   string
	path   string
}

// New creates the inspect command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "inspect",
		Short: "Fetch records from an instance and print them as JSON",
		Long: `Fetch records from any model on the source (or target) instance and print
them as JSON, optionally narrowed with a JSONPath expression, e.g.

  sitebridge inspect --model website.page --fields name,url --path '$[*].url'`,
		RunE: c.run,
	}

	f := c.cmd.Flags()
	f.StringVar(&c.model, "model", "", "Model to read, e.g. website.page (required)")
	f.StringVar(&c.domain, "domain", "[]", "Search domain as JSON, e.g. '[[\"is_published\",\"=\",true]]'")
	f.StringVar(&c.fields, "fields", "", "Comma-separated fields (default: all)")
	f.StringVar(&c.from, "from", "source", "Instance to read from: source or target")
	f.StringVar(&c.path, "path", "", "JSONPath expression applied to the result array")

	_ = c.cmd.MarkFlagRequired("model")

	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, _ []string) error {
	cfg, err := c.ctx.LoadConfig()
	if err != nil {
		return err
	}

	var inst config.InstanceConfig
	switch c.from {
	case "source":
		inst = cfg.Source
	case "target":
		inst = cfg.Target
	default:
		return fmt.Errorf("--from must be source or target, got %q", c.from)
	}

	var domain []any
	if err := json.Unmarshal([]byte(c.domain), &domain); err != nil {
		return fmt.Errorf("invalid --domain: %w", err)
	}
	domain = normalizeNumbers(domain).([]any)

	var fields []string
	if c.fields != "" {
		for _, f := range strings.Split(c.fields, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
	}

	client, err := odoo.Dial(cmd.Context(), odoo.Endpoint{
		URL: inst.URL, Database: inst.Database,
		Username: inst.Username, Password: inst.Password,
	}, odoo.Options{
		Timeout:            time.Duration(cfg.Options.TimeoutSeconds) * time.Second,
		InsecureSkipVerify: cfg.Options.InsecureSkipVerify,
	})
	if err != nil {
		return err
	}

	records, err := client.SearchRead(cmd.Context(), c.model, domain, fields)
	if err != nil {
		return err
	}

	// Hand the evaluator a []any tree, matching what the decoder produces.
	tree := make([]any, len(records))
	for i, r := range records {
		tree[i] = map[string]any(r)
	}

	out, err := query.Extract(tree, c.path)
	if err != nil {
		return err
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}

// normalizeNumbers converts integral float64 values (the product of JSON
// decoding) back to int so domain comparisons hit Odoo's integer fields.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case []any:
		for i, el := range t {
			t[i] = normalizeNumbers(el)
		}
		return t
	case map[string]any:
		for k, el := range t {
			t[k] = normalizeNumbers(el)
		}
		return t
	case float64:
		if t == math.Trunc(t) {
			return int(t)
		}
		return t
	}
	return v
}
