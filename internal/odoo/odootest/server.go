// Package odootest provides an in-memory fake Odoo instance speaking the
// XML-RPC external API, for use in tests. It covers the subset of the object
// API the migrator exercises: search_read, search, search_count, read,
// create, write and button_immediate_install, with AND-only domains using
// the =, !=, like and in operators ("like" is treated as substring match).
package odootest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-ports/sitebridge/internal/odoo"
)

// Call records one execute_kw invocation.
type Call struct {
	Model  string
	Method string
}

// Server is a fake Odoo instance backed by in-memory model tables.
type Server struct {
	mu sync.Mutex

	srv *httptest.Server

	// Authentication config.
	Database string
	Username string
	Password string
	UID      int

	// ServerVersion is returned from common.version.
	ServerVersion string

	nextID int
	tables map[string][]odoo.Record

	// FailCreate maps a model name to a fault string returned from create,
	// for exercising per-record error paths.
	FailCreate map[string]string

	// Calls lists every execute_kw invocation in order.
	Calls []Call
}

// New starts a fake Odoo server with the given credentials.
func New(database, username, password string) *Server {
	s := &Server{
		Database:      database,
		Username:      username,
		Password:      password,
		UID:           7,
		ServerVersion: "16.0",
		nextID:        1000,
		tables:        make(map[string][]odoo.Record),
		FailCreate:    make(map[string]string),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/xmlrpc/2/common", s.handleCommon)
	mux.HandleFunc("/xmlrpc/2/object", s.handleObject)
	s.srv = httptest.NewServer(mux)
	return s
}

// URL returns the base URL of the fake instance.
func (s *Server) URL() string { return s.srv.URL }

// Close shuts the server down.
func (s *Server) Close() { s.srv.Close() }

// Seed inserts a record into a model table, assigning an id if absent,
// and returns the id.
func (s *Server) Seed(model string, rec odoo.Record) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(model, rec)
}

// Records returns a copy of the rows currently stored for model.
func (s *Server) Records(model string) []odoo.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.tables[model]
	out := make([]odoo.Record, len(rows))
	for i, r := range rows {
		cp := make(odoo.Record, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

// CallCount returns how many times model.method was invoked.
func (s *Server) CallCount(model, method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		if c.Model == model && c.Method == method {
			n++
		}
	}
	return n
}

func (s *Server) insert(model string, rec odoo.Record) int {
	id, ok := rec["id"].(int)
	if !ok {
		s.nextID++
		id = s.nextID
		rec["id"] = id
	}
	s.tables[model] = append(s.tables[model], rec)
	return id
}

// ---------------------------------------------------------------------------
// HTTP handlers
// ---------------------------------------------------------------------------

func (s *Server) handleCommon(w http.ResponseWriter, r *http.Request) {
	method, params, err := odoo.UnmarshalMethodCall(r.Body)
	if err != nil {
		writeFault(w, 1, err.Error())
		return
	}
	switch method {
	case "authenticate":
		s.mu.Lock()
		ok := len(params) >= 3 &&
			params[0] == s.Database && params[1] == s.Username && params[2] == s.Password
		uid := s.UID
		s.mu.Unlock()
		if ok {
			writeResult(w, uid)
		} else {
			writeResult(w, false) // Odoo's way of saying "bad credentials"
		}
	case "version":
		s.mu.Lock()
		v := s.ServerVersion
		s.mu.Unlock()
		writeResult(w, map[string]any{"server_version": v})
	default:
		writeFault(w, 1, "unknown common method "+method)
	}
}

func (s *Server) handleObject(w http.ResponseWriter, r *http.Request) {
	method, params, err := odoo.UnmarshalMethodCall(r.Body)
	if err != nil {
		writeFault(w, 1, err.Error())
		return
	}
	if method != "execute_kw" || len(params) < 6 {
		writeFault(w, 1, "expected execute_kw")
		return
	}

	model, _ := params[3].(string)
	op, _ := params[4].(string)
	args, _ := params[5].([]any)
	var kw map[string]any
	if len(params) > 6 {
		kw, _ = params[6].(map[string]any)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, Call{Model: model, Method: op})

	res, ferr := s.execute(model, op, args, kw)
	if ferr != nil {
		writeFault(w, 2, ferr.Error())
		return
	}
	writeResult(w, res)
}

func (s *Server) execute(model, op string, args []any, kw map[string]any) (any, error) {
	switch op {
	case "search_read":
		domain := domainArg(args, 0)
		rows := s.match(model, domain)
		return projectRows(rows, fieldsArg(kw)), nil

	case "search":
		ids := []any{}
		for _, r := range s.match(model, domainArg(args, 0)) {
			ids = append(ids, r["id"])
		}
		return ids, nil

	case "search_count":
		return len(s.match(model, domainArg(args, 0))), nil

	case "read":
		ids, _ := args[0].([]any)
		var rows []odoo.Record
		for _, r := range s.tables[model] {
			for _, id := range ids {
				if r["id"] == id {
					rows = append(rows, r)
				}
			}
		}
		return projectRows(rows, fieldsArg(kw)), nil

	case "create":
		if msg, ok := s.FailCreate[model]; ok {
			return nil, fmt.Errorf("%s", msg)
		}
		values, ok := args[0].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("create: expected values struct, got %T", args[0])
		}
		rec := make(odoo.Record, len(values)+1)
		for k, v := range values {
			rec[k] = v
		}
		delete(rec, "id")
		return s.insert(model, rec), nil

	case "write":
		ids, _ := args[0].([]any)
		values, ok := args[1].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("write: expected values struct, got %T", args[1])
		}
		for _, r := range s.tables[model] {
			for _, id := range ids {
				if r["id"] == id {
					for k, v := range values {
						r[k] = v
					}
				}
			}
		}
		return true, nil

	case "button_immediate_install":
		ids, _ := args[0].([]any)
		for _, r := range s.tables[model] {
			for _, id := range ids {
				if r["id"] == id {
					r["state"] = "installed"
				}
			}
		}
		return true, nil
	}
	return nil, fmt.Errorf("unsupported method %s.%s", model, op)
}

// ---------------------------------------------------------------------------
// Domain evaluation
// ---------------------------------------------------------------------------

func domainArg(args []any, idx int) []any {
	if idx < len(args) {
		if d, ok := args[idx].([]any); ok {
			return d
		}
	}
	return nil
}

func fieldsArg(kw map[string]any) []string {
	raw, _ := kw["fields"].([]any)
	fields := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			fields = append(fields, s)
		}
	}
	return fields
}

func (s *Server) match(model string, domain []any) []odoo.Record {
	var out []odoo.Record
	for _, r := range s.tables[model] {
		if matchDomain(r, domain) {
			out = append(out, r)
		}
	}
	return out
}

func matchDomain(rec odoo.Record, domain []any) bool {
	for _, clause := range domain {
		triple, ok := clause.([]any)
		if !ok || len(triple) != 3 {
			continue // operators like '&' are implicit here
		}
		field, _ := triple[0].(string)
		op, _ := triple[1].(string)
		want := triple[2]
		got, present := rec[field]
		if !present {
			got = false
		}
		if !matchClause(got, op, want) {
			return false
		}
	}
	return true
}

func matchClause(got any, op string, want any) bool {
	switch op {
	case "=":
		return looseEqual(got, want)
	case "!=":
		return !looseEqual(got, want)
	case "like", "ilike":
		g, _ := got.(string)
		w, _ := want.(string)
		return strings.Contains(strings.ToLower(g), strings.ToLower(strings.ReplaceAll(w, "%", "")))
	case "in":
		items, _ := want.([]any)
		for _, it := range items {
			if looseEqual(got, it) {
				return true
			}
		}
		return false
	}
	return false
}

func looseEqual(a, b any) bool {
	// Odoo stores absent strings as boolean false; compare "" and false equal.
	if a == false && b == "" || a == "" && b == false {
		return true
	}
	return a == b
}

func projectRows(rows []odoo.Record, fields []string) []any {
	out := make([]any, 0, len(rows))
	for _, r := range rows {
		proj := make(map[string]any, len(fields)+1)
		proj["id"] = r["id"]
		if len(fields) == 0 {
			for k, v := range r {
				proj[k] = v
			}
		}
		for _, f := range fields {
			if v, ok := r[f]; ok {
				proj[f] = v
			} else {
				proj[f] = false // Odoo returns false for empty fields
			}
		}
		out = append(out, proj)
	}
	return out
}

func writeResult(w http.ResponseWriter, v any) {
	body, err := odoo.MarshalMethodResponse(v)
	if err != nil {
		writeFault(w, 1, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write(body)
}

func writeFault(w http.ResponseWriter, code int, msg string) {
	body, err := odoo.MarshalFault(&odoo.Fault{Code: code, String: msg})
	if err != nil {
		http.Error(w, msg, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write(body)
}
