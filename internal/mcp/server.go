// Package mcp provides the stdio MCP server exposing migration tools, so an
// agent can probe connectivity, dry-run a migration, and read run history
// without shelling out to the CLI.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/go-ports/sitebridge/internal/buildinfo"
	"github.com/go-ports/sitebridge/internal/config"
	"github.com/go-ports/sitebridge/internal/migrate"
	"github.com/go-ports/sitebridge/internal/models"
	"github.com/go-ports/sitebridge/internal/redaction"
	"github.com/go-ports/sitebridge/internal/state"
)

const checkDescription = `Test connectivity to the configured source and target Odoo instances and probe access to the website-related models. Run this before planning or executing a migration.`

const planDescription = `Dry-run the website migration: snapshot the source instance and report, per record, whether it would be created on the target or skipped because it already exists. Nothing is written.`

const historyDescription = `List past migration runs (both plans and real runs) with per-action record counts.`

// Server bundles the configuration the tool handlers need. Connections are
// opened per call; an MCP session can outlive any single Odoo session.
type Server struct {
	cfg       *config.Config
	stateHome string
}

// NewServer creates and registers all migration tools on a new MCP server.
// It is intentionally separate from Serve so that tests and other callers
// can obtain a fully configured server without committing to the stdio
// transport.
func NewServer(cfg *config.Config, stateHome string) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("sitebridge", buildinfo.Version)
	registerTools(s, &Server{cfg: cfg, stateHome: stateHome})
	return s
}

// Serve starts the stdio MCP server, blocking until stdin closes.
func Serve(_ context.Context, cfg *config.Config, stateHome string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return mcpserver.ServeStdio(NewServer(cfg, stateHome))
}

func registerTools(s *mcpserver.MCPServer, srv *Server) {
	s.AddTool(mcp.NewTool("migration_check",
		mcp.WithDescription(checkDescription),
	), srv.handleCheck)

	s.AddTool(mcp.NewTool("migration_plan",
		mcp.WithDescription(planDescription),
	), srv.handlePlan)

	s.AddTool(mcp.NewTool("migration_history",
		mcp.WithDescription(historyDescription),
		mcp.WithNumber("limit",
			mcp.Description("Max runs to return (default 10)"),
		),
	), srv.handleHistory)
}

// ---------------------------------------------------------------------------
// Tool handlers
// ---------------------------------------------------------------------------

func (srv *Server) handleCheck(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, err := migrate.New(ctx, srv.cfg, srv.stateHome)
	if err != nil {
		return mcp.NewToolResultError(redaction.Mask(err.Error())), nil
	}
	defer svc.Close()

	source, target, err := svc.Check(ctx)
	if err != nil {
		return mcp.NewToolResultError(redaction.Mask(err.Error())), nil
	}
	return jsonResult(map[string]any{
		"source": checkPayload(source),
		"target": checkPayload(target),
	})
}

func (srv *Server) handlePlan(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, err := migrate.New(ctx, srv.cfg, srv.stateHome)
	if err != nil {
		return mcp.NewToolResultError(redaction.Mask(err.Error())), nil
	}
	defer svc.Close()

	summary, _, err := svc.Run(ctx, true)
	if err != nil {
		return mcp.NewToolResultError(redaction.Mask(err.Error())), nil
	}

	records := make([]map[string]any, 0, len(summary.Results))
	for _, r := range summary.Results {
		records = append(records, map[string]any{
			"kind":   r.Kind,
			"name":   r.Name,
			"key":    r.Key,
			"action": r.Action,
		})
	}
	return jsonResult(map[string]any{
		"run_id":  summary.ID,
		"records": records,
		"errors":  redaction.MaskAll(summary.Stats.Errors),
	})
}

func (srv *Server) handleHistory(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}

	home := srv.stateHome
	if home == "" {
		home = config.GetStateHome()
	}
	db, err := state.Open(filepath.Join(home, "state.db"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer db.Close()

	runs, err := db.ListRuns(limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out := make([]map[string]any, 0, len(runs))
	for _, r := range runs {
		counts, err := db.CountResults(r.ID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out = append(out, map[string]any{
			"id":         r.ID,
			"started_at": r.StartedAt,
			"dry_run":    r.DryRun,
			"source":     r.SourceURL,
			"target":     r.TargetURL,
			"created":    counts[models.ActionCreated] + counts[models.ActionCreate],
			"skipped":    counts[models.ActionSkipped],
			"failed":     counts[models.ActionFailed],
		})
	}
	return jsonResult(out)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func checkPayload(res *models.CheckResult) map[string]any {
	return map[string]any{
		"url":            res.URL,
		"database":       res.Database,
		"uid":            res.UID,
		"server_version": res.ServerVersion,
		"model_counts":   res.ModelCounts,
		"model_errors":   res.ModelErrors,
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
