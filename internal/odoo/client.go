// Package odoo implements an XML-RPC client for the Odoo external API
// (/xmlrpc/2/common and /xmlrpc/2/object endpoints).
package odoo

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrAuthFailed is returned when authenticate yields no user id.
var ErrAuthFailed = errors.New("odoo: authentication failed")

// Record is one row returned by read/search_read.
type Record = map[string]any

// Endpoint identifies one Odoo instance and the credentials to use with it.
type Endpoint struct {
	URL      string
	Database string
	Username string
	Password string
}

// Options control transport behavior.
type Options struct {
	// Timeout for each RPC round trip. Zero means 60s.
	Timeout time.Duration
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
}

// Client is an authenticated connection to one Odoo instance.
type Client struct {
	ep    Endpoint
	uid   int
	httpc *http.Client
}

// Dial authenticates against the instance and returns a ready client.
func Dial(ctx context.Context, ep Endpoint, opts Options) (*Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpc := &http.Client{Timeout: timeout}
	if opts.InsecureSkipVerify {
		httpc.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402 -- opt-in via config for self-signed Odoo deployments
		}
	}

	c := &Client{
		ep:    Endpoint{URL: strings.TrimRight(ep.URL, "/"), Database: ep.Database, Username: ep.Username, Password: ep.Password},
		httpc: httpc,
	}

	res, err := c.call(ctx, "/xmlrpc/2/common", "authenticate",
		[]any{c.ep.Database, c.ep.Username, c.ep.Password, map[string]any{}})
	if err != nil {
		return nil, fmt.Errorf("odoo: authenticate %s: %w", c.ep.URL, err)
	}
	// Odoo answers boolean false for bad credentials instead of a fault.
	uid, ok := res.(int)
	if !ok || uid <= 0 {
		return nil, fmt.Errorf("%w: %s (%s)", ErrAuthFailed, c.ep.URL, c.ep.Database)
	}
	c.uid = uid
	return c, nil
}

// UID returns the authenticated user id.
func (c *Client) UID() int { return c.uid }

// URL returns the trimmed base URL of the instance.
func (c *Client) URL() string { return c.ep.URL }

// Database returns the database name of the connection.
func (c *Client) Database() string { return c.ep.Database }

// Version calls common.version and returns the server version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	res, err := c.call(ctx, "/xmlrpc/2/common", "version", nil)
	if err != nil {
		return "", fmt.Errorf("odoo: version: %w", err)
	}
	info, ok := res.(map[string]any)
	if !ok {
		return "", fmt.Errorf("odoo: version: unexpected response %T", res)
	}
	v, _ := info["server_version"].(string)
	if v == "" {
		v = "unknown"
	}
	return v, nil
}

// ExecuteKw invokes model.method through the object endpoint. args are the
// positional arguments; kw may be nil.
func (c *Client) ExecuteKw(ctx context.Context, model, method string, args []any, kw map[string]any) (any, error) {
	if args == nil {
		args = []any{}
	}
	params := []any{c.ep.Database, c.uid, c.ep.Password, model, method, args}
	if kw != nil {
		params = append(params, kw)
	}
	res, err := c.call(ctx, "/xmlrpc/2/object", "execute_kw", params)
	if err != nil {
		return nil, fmt.Errorf("odoo: %s.%s: %w", model, method, err)
	}
	return res, nil
}

// SearchRead returns records matching domain, limited to fields.
func (c *Client) SearchRead(ctx context.Context, model string, domain []any, fields []string) ([]Record, error) {
	if domain == nil {
		domain = []any{}
	}
	res, err := c.ExecuteKw(ctx, model, "search_read", []any{domain}, map[string]any{"fields": fields})
	if err != nil {
		return nil, err
	}
	return toRecords(model, res)
}

// Search returns the ids of records matching domain.
func (c *Client) Search(ctx context.Context, model string, domain []any) ([]int, error) {
	if domain == nil {
		domain = []any{}
	}
	res, err := c.ExecuteKw(ctx, model, "search", []any{domain}, nil)
	if err != nil {
		return nil, err
	}
	raw, ok := res.([]any)
	if !ok {
		return nil, fmt.Errorf("odoo: %s.search: unexpected response %T", model, res)
	}
	ids := make([]int, 0, len(raw))
	for _, v := range raw {
		id, ok := v.(int)
		if !ok {
			return nil, fmt.Errorf("odoo: %s.search: non-integer id %v", model, v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SearchCount returns the number of records matching domain.
func (c *Client) SearchCount(ctx context.Context, model string, domain []any) (int, error) {
	if domain == nil {
		domain = []any{}
	}
	res, err := c.ExecuteKw(ctx, model, "search_count", []any{domain}, nil)
	if err != nil {
		return 0, err
	}
	n, ok := res.(int)
	if !ok {
		return 0, fmt.Errorf("odoo: %s.search_count: unexpected response %T", model, res)
	}
	return n, nil
}

// Read fetches the given fields for one or more record ids.
func (c *Client) Read(ctx context.Context, model string, ids []int, fields []string) ([]Record, error) {
	res, err := c.ExecuteKw(ctx, model, "read", []any{intsToAny(ids)}, map[string]any{"fields": fields})
	if err != nil {
		return nil, err
	}
	return toRecords(model, res)
}

// Create inserts a record and returns its new id.
func (c *Client) Create(ctx context.Context, model string, values map[string]any) (int, error) {
	res, err := c.ExecuteKw(ctx, model, "create", []any{values}, nil)
	if err != nil {
		return 0, err
	}
	id, ok := res.(int)
	if !ok {
		return 0, fmt.Errorf("odoo: %s.create: unexpected response %T", model, res)
	}
	return id, nil
}

// Write updates fields on the given record ids.
func (c *Client) Write(ctx context.Context, model string, ids []int, values map[string]any) error {
	_, err := c.ExecuteKw(ctx, model, "write", []any{intsToAny(ids), values}, nil)
	return err
}

// Exists reports whether any record matches domain.
func (c *Client) Exists(ctx context.Context, model string, domain []any) (bool, error) {
	n, err := c.SearchCount(ctx, model, domain)
	return n > 0, err
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// call executes one XML-RPC round trip against path. A fault response comes
// back as a *Fault error.
func (c *Client) call(ctx context.Context, path, method string, params []any) (any, error) {
	body, err := MarshalMethodCall(method, params)
	if err != nil {
		return nil, fmt.Errorf("call marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ep.URL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("call new request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := c.httpc.Do(req) // #nosec G704 -- URL is the user-configured Odoo instance endpoint
	if err != nil {
		return nil, fmt.Errorf("call request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("call: HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	return UnmarshalMethodResponse(resp.Body)
}

func toRecords(model string, res any) ([]Record, error) {
	raw, ok := res.([]any)
	if !ok {
		return nil, fmt.Errorf("odoo: %s: unexpected response %T", model, res)
	}
	recs := make([]Record, 0, len(raw))
	for _, v := range raw {
		rec, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("odoo: %s: unexpected row %T", model, v)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func intsToAny(ids []int) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
